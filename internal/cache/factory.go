package cache

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Config struct {
	Backend         string // memory | redis | db
	CleanupInterval time.Duration
	Prefix          string
}

// NewExactCache builds the configured backend wrapped with logging and metrics.
// redisClient and db are only used by their backends and may be nil otherwise.
func NewExactCache(cfg Config, redisClient redis.UniversalClient, db *gorm.DB) (ExactCache, error) {
	switch cfg.Backend {
	case "redis":
		if redisClient == nil {
			return nil, fmt.Errorf("redis cache backend requires a redis client")
		}
		return NewLoggingExactCache(NewRedisExactCache(redisClient, RedisConfig{
			Prefix: cfg.Prefix,
		})), nil
	case "db":
		if db == nil {
			return nil, fmt.Errorf("db cache backend requires a database")
		}
		return NewLoggingExactCache(NewDBExactCache(db)), nil
	case "memory", "":
		return NewLoggingExactCache(NewMemoryExactCache(cfg.CleanupInterval)), nil
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", cfg.Backend)
	}
}
