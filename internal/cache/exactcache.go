package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ExactCacheKey identifies one user's fortune of one type for one day.
// Hash is sha256 of the normalized request parameters.
type ExactCacheKey struct {
	UserID      string
	FortuneType string
	Date        string // YYYY-MM-DD in the service time zone
	VersionID   string
	Hash        string
}

// String converts the structured key into the final string used in Redis/map/table.
func (k ExactCacheKey) String() string {
	// fortune:<USER_ID>:<FORTUNE_TYPE>:<DATE>:<VERSION_ID>:<HASH_HEX>
	return fmt.Sprintf("fortune:%s:%s:%s:%s:%s", k.UserID, k.FortuneType, k.Date, k.VersionID, k.Hash)
}

// ParseExactCacheKey is the inverse of ExactCacheKey.String.
func ParseExactCacheKey(key string) (ExactCacheKey, bool) {
	parts := strings.Split(key, ":")
	if len(parts) != 6 || parts[0] != "fortune" {
		return ExactCacheKey{}, false
	}
	return ExactCacheKey{
		UserID:      parts[1],
		FortuneType: parts[2],
		Date:        parts[3],
		VersionID:   parts[4],
		Hash:        parts[5],
	}, true
}

// ExactCache is the exact-match daily cache used by the fortune service.
// Implemented by memory (dev), Redis and SQL (prod) backends.
// A miss is (nil, false, nil); errors are for the caller to log and treat as a miss.
type ExactCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Purger is implemented by backends whose expired entries need explicit removal.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}
