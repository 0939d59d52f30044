// Package usage persists per-call LLM accounting.
package usage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"fortunegate/internal/models"
)

const (
	SourceRequest = "request"
	SourcePregen  = "pregen"
)

// Recorder writes llm_usage_logs rows.
type Recorder struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db, now: time.Now}
}

// Record stores one generation. CreatedAt is filled when zero.
func (r *Recorder) Record(ctx context.Context, entry models.LLMUsageLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("record llm usage: %w", err)
	}
	return nil
}

// Summary aggregates usage of one provider/model pair.
type Summary struct {
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	Calls        int64  `json:"calls"`
	Failures     int64  `json:"failures"`
	TotalTokens  int64  `json:"totalTokens"`
	AvgLatencyMs int64  `json:"avgLatencyMs"`
}

// Summarize aggregates rows created at or after since.
func (r *Recorder) Summarize(ctx context.Context, since time.Time) ([]Summary, error) {
	var out []Summary
	err := r.db.WithContext(ctx).
		Model(&models.LLMUsageLog{}).
		Select(`provider, model,
			COUNT(*) AS calls,
			SUM(CASE WHEN success THEN 0 ELSE 1 END) AS failures,
			COALESCE(SUM(total_tokens), 0) AS total_tokens,
			CAST(COALESCE(AVG(latency_ms), 0) AS INTEGER) AS avg_latency_ms`).
		Where("created_at >= ?", since.UTC()).
		Group("provider, model").
		Order("provider, model").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("summarize llm usage: %w", err)
	}
	return out, nil
}
