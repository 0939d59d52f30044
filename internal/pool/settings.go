package pool

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fortunegate/internal/models"
)

// ErrSettingsNotFound is returned when a fortune type has no active settings row.
var ErrSettingsNotFound = errors.New("cohort pool settings not found")

// SettingsStore reads and writes cohort_pool_settings.
type SettingsStore struct {
	db *gorm.DB
}

// NewSettingsStore returns a settings store backed by db.
func NewSettingsStore(db *gorm.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// Active returns the active settings of fortuneType.
func (s *SettingsStore) Active(ctx context.Context, fortuneType string) (*models.CohortPoolSettings, error) {
	var st models.CohortPoolSettings
	err := s.db.WithContext(ctx).
		Where("fortune_type = ? AND is_active = ?", fortuneType, true).
		Take(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSettingsNotFound, fortuneType)
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// ListActive returns every active settings row ordered by fortune type.
func (s *SettingsStore) ListActive(ctx context.Context) ([]models.CohortPoolSettings, error) {
	var out []models.CohortPoolSettings
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("fortune_type").
		Find(&out).Error
	return out, err
}

// Upsert inserts st or replaces the row with the same fortune type.
func (s *SettingsStore) Upsert(ctx context.Context, st *models.CohortPoolSettings) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "fortune_type"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"target_pool_size", "max_pool_size", "cohort_dimensions",
			"dimension_values", "placeholders", "is_active", "updated_at",
		}),
	}).Create(st).Error
}
