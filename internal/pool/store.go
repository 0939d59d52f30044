package pool

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"fortunegate/internal/models"
)

// Stats summarises the pool of one fortune type.
type Stats struct {
	FortuneType  string `json:"fortune_type"`
	TotalCohorts int64  `json:"total_cohorts"`
	TotalResults int64  `json:"total_results"`
	TotalUsage   int64  `json:"total_usage"`
}

// Store is the persistence the pool needs.
type Store interface {
	// Random returns a random entry for the cohort, or nil when there is none.
	Random(ctx context.Context, fortuneType, cohortHash string) (*models.CohortPoolEntry, error)
	IncrementUsage(ctx context.Context, id string) error
	Size(ctx context.Context, fortuneType, cohortHash string) (int64, error)
	Insert(ctx context.Context, entry *models.CohortPoolEntry) error
	// Stats groups by fortune type; an empty fortuneType means all types.
	Stats(ctx context.Context, fortuneType string) ([]Stats, error)
}

// GormStore keeps the pool in the cohort_fortune_pool table.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore returns a store backed by db.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Random(ctx context.Context, fortuneType, cohortHash string) (*models.CohortPoolEntry, error) {
	var entry models.CohortPoolEntry
	err := s.db.WithContext(ctx).
		Where("fortune_type = ? AND cohort_hash = ?", fortuneType, cohortHash).
		Order("RANDOM()").
		Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *GormStore) IncrementUsage(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).
		Model(&models.CohortPoolEntry{}).
		Where("id = ?", id).
		UpdateColumn("usage_count", gorm.Expr("usage_count + 1")).Error
}

func (s *GormStore) Size(ctx context.Context, fortuneType, cohortHash string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&models.CohortPoolEntry{}).
		Where("fortune_type = ? AND cohort_hash = ?", fortuneType, cohortHash).
		Count(&n).Error
	return n, err
}

func (s *GormStore) Insert(ctx context.Context, entry *models.CohortPoolEntry) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

func (s *GormStore) Stats(ctx context.Context, fortuneType string) ([]Stats, error) {
	q := s.db.WithContext(ctx).
		Model(&models.CohortPoolEntry{}).
		Select("fortune_type, COUNT(DISTINCT cohort_hash) AS total_cohorts, COUNT(*) AS total_results, COALESCE(SUM(usage_count), 0) AS total_usage").
		Group("fortune_type").
		Order("fortune_type")
	if fortuneType != "" {
		q = q.Where("fortune_type = ?", fortuneType)
	}

	var out []Stats
	if err := q.Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
