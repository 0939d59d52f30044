package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fortunegate/internal/cohort"
	"fortunegate/internal/database/databasetest"
	"fortunegate/internal/prompts"
)

func TestSettingsFromRegistry(t *testing.T) {
	reg, err := prompts.Load()
	require.NoError(t, err)

	rows := SettingsFromRegistry(reg)
	require.NotEmpty(t, rows)

	byType := map[string]int{}
	for i, r := range rows {
		byType[r.FortuneType] = i
		assert.True(t, r.IsActive)
		assert.LessOrEqual(t, r.TargetPoolSize, r.MaxPoolSize)
		assert.True(t, cohort.Supports(r.FortuneType), "%s has a pool but no extractor", r.FortuneType)
		entry, _ := reg.Lookup(r.FortuneType)
		assert.Equal(t, entry.Pool.Dimensions, []string(r.CohortDimensions))
		for _, dim := range r.CohortDimensions {
			assert.NotEmpty(t, r.DimensionValues.Data()[dim], "%s lacks values for %s", r.FortuneType, dim)
		}
	}

	i, ok := byType["blind-date"]
	require.True(t, ok)
	bd := rows[i]
	assert.Equal(t, []string{"ageGroup", "gender", "dateGoal"}, []string(bd.CohortDimensions))
	assert.Len(t, Cohorts(&bd), 18)
}

func TestSeedIsIdempotent(t *testing.T) {
	ctx := testContext(t)
	reg, err := prompts.Load()
	require.NoError(t, err)
	store := NewSettingsStore(databasetest.New(t))

	n, err := Seed(ctx, store, reg)
	require.NoError(t, err)
	_, err = Seed(ctx, store, reg)
	require.NoError(t, err)

	active, err := store.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, n)
}
