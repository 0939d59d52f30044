package pool

import (
	"context"
	"fmt"

	"gorm.io/datatypes"

	"fortunegate/internal/models"
	"fortunegate/internal/prompts"
)

// SettingsFromRegistry turns the pool specs of the registry into settings rows,
// one per fortune type that declares a pool. Rows come out active and ordered
// by fortune type.
func SettingsFromRegistry(reg *prompts.Registry) []models.CohortPoolSettings {
	var out []models.CohortPoolSettings
	for _, fortuneType := range reg.Types() {
		entry, ok := reg.Lookup(fortuneType)
		if !ok || entry.Pool == nil || len(entry.Pool.Dimensions) == 0 {
			continue
		}
		ps := entry.Pool

		maxSize := ps.MaxSize
		if maxSize <= 0 {
			maxSize = DefaultMaxSize
		}
		target := min(ps.TargetSize, maxSize)
		if target <= 0 {
			target = 1
		}

		values := make(map[string][]string, len(ps.Values))
		for k, v := range ps.Values {
			values[k] = append([]string(nil), v...)
		}

		out = append(out, models.CohortPoolSettings{
			FortuneType:      fortuneType,
			TargetPoolSize:   target,
			MaxPoolSize:      maxSize,
			CohortDimensions: datatypes.JSONSlice[string](append([]string(nil), ps.Dimensions...)),
			DimensionValues:  datatypes.NewJSONType(values),
			Placeholders:     datatypes.JSONSlice[string](append([]string(nil), ps.Placeholders...)),
			IsActive:         true,
		})
	}
	return out
}

// Seed upserts the registry's settings and returns how many rows were written.
func Seed(ctx context.Context, store *SettingsStore, reg *prompts.Registry) (int, error) {
	rows := SettingsFromRegistry(reg)
	for i := range rows {
		if err := store.Upsert(ctx, &rows[i]); err != nil {
			return i, fmt.Errorf("seed settings for %s: %w", rows[i].FortuneType, err)
		}
	}
	return len(rows), nil
}
