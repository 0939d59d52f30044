package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CohortPoolEntry is one shared LLM result for a cohort. Templates keep their
// {{placeholders}}; they are personalized on read. Rows are never deleted.
type CohortPoolEntry struct {
	ID             string         `gorm:"primaryKey;size:36" json:"id"`
	FortuneType    string         `gorm:"not null;size:64;index:idx_cohort_pool_lookup,priority:1" json:"fortune_type"`
	CohortHash     string         `gorm:"not null;size:64;index:idx_cohort_pool_lookup,priority:2" json:"cohort_hash"` // SHA256 hex
	CohortData     datatypes.JSON `gorm:"not null" json:"cohort_data"`
	ResultTemplate datatypes.JSON `gorm:"not null" json:"result_template"`
	QualityScore   float64        `gorm:"not null" json:"quality_score"`
	UsageCount     int64          `gorm:"not null;default:0" json:"usage_count"`
	CreatedAt      time.Time      `json:"created_at"`
}

func (CohortPoolEntry) TableName() string {
	return "cohort_fortune_pool"
}

func (e *CohortPoolEntry) BeforeCreate(*gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// CohortPoolSettings drives batch pre-generation for one fortune type.
type CohortPoolSettings struct {
	FortuneType      string                                  `gorm:"primaryKey;size:64" json:"fortune_type"`
	TargetPoolSize   int                                     `gorm:"not null" json:"target_pool_size"`
	MaxPoolSize      int                                     `gorm:"not null" json:"max_pool_size"`
	CohortDimensions datatypes.JSONSlice[string]             `json:"cohort_dimensions"`
	DimensionValues  datatypes.JSONType[map[string][]string] `json:"dimension_values"`
	Placeholders     datatypes.JSONSlice[string]             `json:"placeholders"`
	IsActive         bool                                    `gorm:"not null;index" json:"is_active"`
	CreatedAt        time.Time                               `json:"created_at"`
	UpdatedAt        time.Time                               `json:"updated_at"`
}

func (CohortPoolSettings) TableName() string {
	return "cohort_pool_settings"
}
