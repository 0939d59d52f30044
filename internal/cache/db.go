package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fortunegate/internal/models"
)

// DBExactCache keeps entries in the fortune_cache table. Expiry is checked on
// read; PurgeExpired removes old rows.
type DBExactCache struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDBExactCache returns a cache backed by db.
func NewDBExactCache(db *gorm.DB) *DBExactCache {
	return &DBExactCache{db: db, now: time.Now}
}

func (c *DBExactCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var entry models.FortuneCacheEntry
	err := c.db.WithContext(ctx).Where("cache_key = ?", key).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("fortune_cache get failed: %w", err)
	}

	if entry.IsExpired(c.now()) {
		return nil, false, nil
	}
	return entry.Result, true, nil
}

// Set upserts the row for key. A non-positive ttl removes it.
func (c *DBExactCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return c.Delete(ctx, key)
	}

	now := c.now()
	entry := models.FortuneCacheEntry{
		CacheKey:  key,
		Result:    value,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if parts, ok := ParseExactCacheKey(key); ok {
		entry.FortuneType = parts.FortuneType
		if parts.UserID != AnonymousUser {
			entry.UserID = parts.UserID
		}
	}

	err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"result", "created_at", "expires_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("fortune_cache set failed: %w", err)
	}
	return nil
}

func (c *DBExactCache) Delete(ctx context.Context, key string) error {
	err := c.db.WithContext(ctx).Where("cache_key = ?", key).Delete(&models.FortuneCacheEntry{}).Error
	if err != nil {
		return fmt.Errorf("fortune_cache delete failed: %w", err)
	}
	return nil
}

// PurgeExpired deletes expired rows and returns how many were removed.
func (c *DBExactCache) PurgeExpired(ctx context.Context) (int64, error) {
	res := c.db.WithContext(ctx).Where("expires_at <= ?", c.now()).Delete(&models.FortuneCacheEntry{})
	if res.Error != nil {
		return 0, fmt.Errorf("fortune_cache purge failed: %w", res.Error)
	}
	return res.RowsAffected, nil
}
