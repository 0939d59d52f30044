package models

import "time"

// LLMUsageLog records one LLM generation.
type LLMUsageLog struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	FortuneType      string    `gorm:"size:64;index" json:"fortune_type"`
	Provider         string    `gorm:"size:32" json:"provider"`
	Model            string    `gorm:"size:128" json:"model"`
	Source           string    `gorm:"size:32" json:"source"` // "request" or "pregen"
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	LatencyMs        int64     `json:"latency_ms"`
	Success          bool      `json:"success"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	CreatedAt        time.Time `gorm:"index" json:"created_at"`
}

func (LLMUsageLog) TableName() string {
	return "llm_usage_logs"
}

// All lists every model for migrations.
func All() []any {
	return []any{
		&CohortPoolEntry{},
		&CohortPoolSettings{},
		&FortuneCacheEntry{},
		&LLMUsageLog{},
	}
}
