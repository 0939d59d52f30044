package pool

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"fortunegate/internal/cohort"
	"fortunegate/internal/database/databasetest"
	"fortunegate/internal/models"
)

type fakeTemplates struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeTemplates) GenerateTemplate(_ context.Context, fortuneType string, data cohort.Data) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return map[string]any{"summary": "{{userName}} " + fortuneType + " " + data.Describe()}, nil
}

func blindDateSettings(target int) *models.CohortPoolSettings {
	return &models.CohortPoolSettings{
		FortuneType:      "blind-date",
		TargetPoolSize:   target,
		MaxPoolSize:      50,
		CohortDimensions: datatypes.JSONSlice[string]{"ageGroup", "gender"},
		DimensionValues: datatypes.NewJSONType(map[string][]string{
			"ageGroup": {"20대", "30대"},
			"gender":   {"남", "여"},
		}),
		Placeholders: datatypes.JSONSlice[string]{"userName"},
		IsActive:     true,
	}
}

func TestCohortsCartesianProduct(t *testing.T) {
	got := Cohorts(blindDateSettings(1))

	assert.Equal(t, []cohort.Data{
		{"ageGroup": "20대", "gender": "남"},
		{"ageGroup": "20대", "gender": "여"},
		{"ageGroup": "30대", "gender": "남"},
		{"ageGroup": "30대", "gender": "여"},
	}, got)

	st := blindDateSettings(1)
	st.CohortDimensions = append(st.CohortDimensions, "missing")
	assert.Empty(t, Cohorts(st))
}

func TestGeneratorFillsAndSkips(t *testing.T) {
	ctx := testContext(t)
	db := databasetest.New(t)
	settings := NewSettingsStore(db)
	require.NoError(t, settings.Upsert(ctx, blindDateSettings(3)))

	p := New(NewGormStore(db))
	templates := &fakeTemplates{}
	g := NewGenerator(p, settings, templates, 2)

	rep, err := g.Generate(ctx, GenerateRequest{FortuneType: "blind-date"})
	require.NoError(t, err)
	assert.Equal(t, &GenerateReport{
		Success:      true,
		FortuneType:  "blind-date",
		TotalCohorts: 4,
		Processed:    4,
		Generated:    12,
	}, rep)

	// pre-generated rows are reachable through the request path hash
	got := p.Get(ctx, "blind-date", cohort.Hash(cohort.Data{"gender": "여", "ageGroup": "30대"}))
	require.NotNil(t, got)
	assert.Contains(t, got["summary"], "{{userName}}")

	rep, err = g.Generate(ctx, GenerateRequest{FortuneType: "blind-date"})
	require.NoError(t, err)
	assert.Equal(t, 4, rep.Skipped)
	assert.Zero(t, rep.Generated)
	assert.Equal(t, 12, templates.calls)
}

func TestGeneratorLimitsCohortsAndPerCohort(t *testing.T) {
	ctx := testContext(t)
	db := databasetest.New(t)
	settings := NewSettingsStore(db)
	require.NoError(t, settings.Upsert(ctx, blindDateSettings(20)))

	g := NewGenerator(New(NewGormStore(db)), settings, &fakeTemplates{}, 1)

	rep, err := g.Generate(ctx, GenerateRequest{FortuneType: "blind-date", MaxCohorts: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Processed)
	assert.Equal(t, 2*maxPerCohort, rep.Generated)
	assert.Equal(t, 2, rep.RemainingCohorts)

	// explicit target overrides the settings row
	rep, err = g.Generate(ctx, GenerateRequest{FortuneType: "blind-date", MaxCohorts: 4, TargetSize: 5})
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Skipped)
	assert.Equal(t, 2, rep.Processed)
	assert.Equal(t, 2*maxPerCohort, rep.Generated)
}

func TestGeneratorRecordsErrors(t *testing.T) {
	ctx := testContext(t)
	db := databasetest.New(t)
	settings := NewSettingsStore(db)
	require.NoError(t, settings.Upsert(ctx, blindDateSettings(1)))

	g := NewGenerator(New(NewGormStore(db)), settings, &fakeTemplates{err: errors.New("llm down")}, 2)

	rep, err := g.Generate(ctx, GenerateRequest{FortuneType: "blind-date"})
	require.NoError(t, err)
	assert.True(t, rep.Success)
	assert.Equal(t, 4, rep.Processed)
	assert.Zero(t, rep.Generated)
	assert.Len(t, rep.Errors, 4)
	assert.Contains(t, rep.Errors[0], "llm down")
}

func TestGeneratorSettingsNotFound(t *testing.T) {
	ctx := testContext(t)
	db := databasetest.New(t)
	settings := NewSettingsStore(db)

	inactive := blindDateSettings(1)
	inactive.IsActive = false
	require.NoError(t, settings.Upsert(ctx, inactive))

	g := NewGenerator(New(NewGormStore(db)), settings, &fakeTemplates{}, 1)

	_, err := g.Generate(ctx, GenerateRequest{FortuneType: "blind-date"})
	assert.ErrorIs(t, err, ErrSettingsNotFound)

	_, err = g.Generate(ctx, GenerateRequest{FortuneType: "daily"})
	assert.ErrorIs(t, err, ErrSettingsNotFound)

	_, err = g.Generate(ctx, GenerateRequest{})
	assert.Error(t, err)
}

func TestGenerateAll(t *testing.T) {
	ctx := testContext(t)
	db := databasetest.New(t)
	settings := NewSettingsStore(db)
	require.NoError(t, settings.Upsert(ctx, blindDateSettings(1)))

	daily := &models.CohortPoolSettings{
		FortuneType:      "daily",
		TargetPoolSize:   1,
		MaxPoolSize:      10,
		CohortDimensions: datatypes.JSONSlice[string]{"period"},
		DimensionValues:  datatypes.NewJSONType(map[string][]string{"period": {"아침", "밤"}}),
		IsActive:         true,
	}
	require.NoError(t, settings.Upsert(ctx, daily))

	g := NewGenerator(New(NewGormStore(db)), settings, &fakeTemplates{}, 2)

	reports, err := g.GenerateAll(ctx, 0)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "blind-date", reports[0].FortuneType)
	assert.Equal(t, 4, reports[0].Generated)
	assert.Equal(t, "daily", reports[1].FortuneType)
	assert.Equal(t, 2, reports[1].Generated)
}

func TestSettingsUpsertReplaces(t *testing.T) {
	ctx := testContext(t)
	settings := NewSettingsStore(databasetest.New(t))

	require.NoError(t, settings.Upsert(ctx, blindDateSettings(3)))
	require.NoError(t, settings.Upsert(ctx, blindDateSettings(7)))

	st, err := settings.Active(ctx, "blind-date")
	require.NoError(t, err)
	assert.Equal(t, 7, st.TargetPoolSize)
	assert.Equal(t, []string{"20대", "30대"}, st.DimensionValues.Data()["ageGroup"])
}
