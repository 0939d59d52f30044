package cache

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"fortunegate/internal/metrics"
	"fortunegate/pkg/logging"
)

// LoggingExactCache wraps an ExactCache with logging + metrics.
type LoggingExactCache struct {
	inner ExactCache
}

// NewLoggingExactCache returns a cache that logs and records metrics.
func NewLoggingExactCache(inner ExactCache) *LoggingExactCache {
	return &LoggingExactCache{inner: inner}
}

// Unwrap returns the wrapped backend.
func (c *LoggingExactCache) Unwrap() ExactCache { return c.inner }

func (c *LoggingExactCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	value, ok, err := c.inner.Get(ctx, key)

	result := "miss"
	if err != nil {
		result = "error"
	} else if ok {
		result = "hit"
	}

	parts, parsed := ParseExactCacheKey(key)
	if result == "hit" && parsed {
		metrics.ExactHitsTotal.WithLabelValues(parts.FortuneType).Inc()
	}

	fields := append(keyFields(key, parts, parsed, start),
		zap.String("cache_result", result), // hit | miss | error
	)

	logger := logging.L(ctx)
	if err != nil {
		logger.Error("exact_cache_get", append(fields, zap.Error(err))...)
	} else {
		logger.Debug("exact_cache_get", fields...)
	}

	return value, ok, err
}

func (c *LoggingExactCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := c.inner.Set(ctx, key, value, ttl)

	parts, parsed := ParseExactCacheKey(key)
	fields := append(keyFields(key, parts, parsed, start), zap.Duration("ttl", ttl))

	logger := logging.L(ctx)
	if err != nil {
		logger.Error("exact_cache_set", append(fields, zap.Error(err))...)
	} else {
		logger.Debug("exact_cache_set", fields...)
	}

	return err
}

func (c *LoggingExactCache) Delete(ctx context.Context, key string) error {
	err := c.inner.Delete(ctx, key)
	if err != nil {
		logging.L(ctx).Error("exact_cache_delete", zap.String("hash_key", key), zap.Error(err))
	}
	return err
}

// PurgeExpired delegates to the backend when it supports purging.
func (c *LoggingExactCache) PurgeExpired(ctx context.Context) (int64, error) {
	p, ok := c.inner.(Purger)
	if !ok {
		return 0, nil
	}
	return p.PurgeExpired(ctx)
}

// Close releases the backend when it holds resources.
func (c *LoggingExactCache) Close() error {
	if cl, ok := c.inner.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}

func keyFields(key string, parts ExactCacheKey, parsed bool, start time.Time) []zap.Field {
	fields := []zap.Field{
		zap.String("cache_tier", "exact"),
		zap.String("hash_key", key),
		zap.Float64("latency_ms", float64(time.Since(start).Microseconds())/1000.0),
	}
	if parsed {
		fields = append(fields,
			zap.String("user_id", parts.UserID),
			zap.String("fortune_type", parts.FortuneType),
			zap.String("date", parts.Date),
			zap.String("version_id", parts.VersionID),
		)
	}
	return fields
}
