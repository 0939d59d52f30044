package models

import (
	"time"

	"gorm.io/datatypes"
)

// FortuneCacheEntry is one exact-match daily result. At most one live row per key.
type FortuneCacheEntry struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CacheKey    string         `gorm:"uniqueIndex;not null;size:255" json:"cache_key"`
	FortuneType string         `gorm:"size:64;index" json:"fortune_type"`
	UserID      string         `gorm:"size:128;index" json:"user_id"`
	Result      datatypes.JSON `gorm:"not null" json:"result"`
	CreatedAt   time.Time      `json:"created_at"`
	ExpiresAt   time.Time      `gorm:"not null;index" json:"expires_at"`
}

func (FortuneCacheEntry) TableName() string {
	return "fortune_cache"
}

// IsExpired reports whether the entry is past its expiry at now.
func (e *FortuneCacheEntry) IsExpired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}
