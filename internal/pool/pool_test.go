package pool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"fortunegate/internal/cohort"
	"fortunegate/internal/database/databasetest"
	"fortunegate/internal/models"
	"fortunegate/pkg/logging"
)

func testContext(t *testing.T) context.Context {
	return logging.WithLogger(context.Background(), zaptest.NewLogger(t))
}

var blindDate = cohort.Data{"ageGroup": "20대", "gender": "남", "dateGoal": "진지한만남"}

func TestPoolSaveAndGet(t *testing.T) {
	ctx := testContext(t)
	db := databasetest.New(t)
	p := New(NewGormStore(db))
	hash := cohort.Hash(blindDate)

	assert.Nil(t, p.Get(ctx, "blind-date", hash))

	template := map[string]any{"summary": "{{userName}}님의 소개팅", "overall_score": float64(80)}
	require.True(t, p.Save(ctx, "blind-date", hash, blindDate, template))

	got := p.Get(ctx, "blind-date", hash)
	assert.Equal(t, template, got)

	var entry models.CohortPoolEntry
	require.NoError(t, db.First(&entry).Error)
	assert.Equal(t, int64(1), entry.UsageCount)
	assert.Equal(t, 1.0, entry.QualityScore)
	assert.Equal(t, hash, entry.CohortHash)
	assert.NotEmpty(t, entry.ID)
	assert.JSONEq(t, `{"ageGroup":"20대","gender":"남","dateGoal":"진지한만남"}`, string(entry.CohortData))

	// other fortune types and cohorts do not see it
	assert.Nil(t, p.Get(ctx, "love", hash))
	assert.Nil(t, p.Get(ctx, "blind-date", cohort.Hash(cohort.Data{"ageGroup": "30대"})))
}

func TestPoolCapBlocksInserts(t *testing.T) {
	ctx := testContext(t)
	p := New(NewGormStore(databasetest.New(t)))
	hash := cohort.Hash(blindDate)

	for i := 0; i < DefaultMaxSize; i++ {
		require.True(t, p.Save(ctx, "blind-date", hash, blindDate, map[string]any{"n": float64(i)}), "insert %d", i)
	}
	assert.False(t, p.Save(ctx, "blind-date", hash, blindDate, map[string]any{"n": "overflow"}))

	size, err := p.Size(ctx, "blind-date", hash)
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultMaxSize), size)
}

func TestPoolWithMaxSize(t *testing.T) {
	ctx := testContext(t)
	p := New(NewGormStore(databasetest.New(t)), WithMaxSize(2))

	assert.True(t, p.Save(ctx, "daily", "h", cohort.Data{}, map[string]any{}))
	assert.True(t, p.Save(ctx, "daily", "h", cohort.Data{}, map[string]any{}))
	assert.False(t, p.Save(ctx, "daily", "h", cohort.Data{}, map[string]any{}))
	assert.True(t, p.Save(ctx, "daily", "other", cohort.Data{}, map[string]any{}))
}

func TestPoolStats(t *testing.T) {
	ctx := testContext(t)
	p := New(NewGormStore(databasetest.New(t)))

	p.Save(ctx, "daily", "a", cohort.Data{}, map[string]any{"x": "1"})
	p.Save(ctx, "daily", "a", cohort.Data{}, map[string]any{"x": "2"})
	p.Save(ctx, "daily", "b", cohort.Data{}, map[string]any{"x": "3"})
	p.Save(ctx, "love", "c", cohort.Data{}, map[string]any{"x": "4"})
	p.Get(ctx, "love", "c")

	all, err := p.Stats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []Stats{
		{FortuneType: "daily", TotalCohorts: 2, TotalResults: 3},
		{FortuneType: "love", TotalCohorts: 1, TotalResults: 1, TotalUsage: 1},
	}, all)

	one, err := p.Stats(ctx, "daily")
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, int64(3), one[0].TotalResults)

	none, err := p.Stats(ctx, "tarot")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPoolCorruptTemplateIsMiss(t *testing.T) {
	ctx := testContext(t)
	db := databasetest.New(t)
	p := New(NewGormStore(db))

	require.NoError(t, db.Create(&models.CohortPoolEntry{
		FortuneType:    "daily",
		CohortHash:     "h",
		CohortData:     []byte(`{}`),
		ResultTemplate: []byte(`"just a string"`),
		QualityScore:   1,
	}).Error)

	assert.Nil(t, p.Get(ctx, "daily", "h"))
}

type failingStore struct{ err error }

func (s failingStore) Random(context.Context, string, string) (*models.CohortPoolEntry, error) {
	return nil, s.err
}
func (s failingStore) IncrementUsage(context.Context, string) error        { return s.err }
func (s failingStore) Size(context.Context, string, string) (int64, error) { return 0, s.err }
func (s failingStore) Insert(context.Context, *models.CohortPoolEntry) error {
	return s.err
}
func (s failingStore) Stats(context.Context, string) ([]Stats, error) { return nil, s.err }

func TestPoolStoreErrorsAreMisses(t *testing.T) {
	ctx := testContext(t)
	p := New(failingStore{err: errors.New("connection refused")})

	assert.Nil(t, p.Get(ctx, "daily", "h"))
	assert.False(t, p.Save(ctx, "daily", "h", cohort.Data{}, map[string]any{}))

	_, err := p.Stats(ctx, "")
	assert.ErrorContains(t, err, "connection refused")
}
