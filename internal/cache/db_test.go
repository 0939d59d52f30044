package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fortunegate/internal/database/databasetest"
	"fortunegate/internal/models"
)

func TestDBExactCache(t *testing.T) {
	db := databasetest.New(t)
	c := NewDBExactCache(db)

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	ctx := context.Background()
	key := ExactCacheKey{UserID: "user-1", FortuneType: "wealth", Date: "2025-03-01", VersionID: "v1", Hash: "abc"}.String()

	_, hit, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Set(ctx, key, []byte(`{"score":70}`), time.Hour))
	require.NoError(t, c.Set(ctx, key, []byte(`{"score":90}`), time.Hour))

	got, hit, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, hit)
	assert.JSONEq(t, `{"score":90}`, string(got))

	var rows []models.FortuneCacheEntry
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "wealth", rows[0].FortuneType)
	assert.Equal(t, "user-1", rows[0].UserID)

	// expired rows are misses until purged
	now = now.Add(2 * time.Hour)
	_, hit, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, hit)

	n, err := c.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestDBExactCacheAnonymousAndDelete(t *testing.T) {
	db := databasetest.New(t)
	c := NewDBExactCache(db)
	ctx := context.Background()

	key := ExactCacheKey{UserID: AnonymousUser, FortuneType: "mbti", Date: "2025-03-01", VersionID: "v1", Hash: "h"}.String()
	require.NoError(t, c.Set(ctx, key, []byte(`{}`), time.Hour))

	var row models.FortuneCacheEntry
	require.NoError(t, db.First(&row).Error)
	assert.Empty(t, row.UserID)

	require.NoError(t, c.Delete(ctx, key))
	_, hit, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, hit)
}
