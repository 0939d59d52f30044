package middleware

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"fortunegate/internal/metrics"
	"fortunegate/pkg/logging"
)

// UserIDHeader identifies the caller for rate limiting, logging and cache scoping.
const UserIDHeader = "X-User-ID"

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter counts requests per key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// RedisLimiter is a fixed-window counter shared by every gateway instance.
type RedisLimiter struct {
	client redis.UniversalClient
	limit  int
	window time.Duration
	prefix string
	now    func() time.Time
}

func NewRedisLimiter(client redis.UniversalClient, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		limit:  limit,
		window: window,
		prefix: "ratelimit:",
		now:    time.Now,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now()
	windowStart := now.Truncate(l.window)
	redisKey := fmt.Sprintf("%s%s:%d", l.prefix, key, windowStart.Unix())

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("rate limit counter: %w", err)
	}

	count := int(incr.Val())
	if count > l.limit {
		return Decision{
			Allowed:    false,
			RetryAfter: windowStart.Add(l.window).Sub(now),
		}, nil
	}
	return Decision{Allowed: true, Remaining: l.limit - count}, nil
}

// MemoryLimiter keeps a token bucket per key in process memory.
type MemoryLimiter struct {
	buckets sync.Map // key -> *bucket
	every   rate.Limit
	burst   int
	window  time.Duration
	now     func() time.Time
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

// NewMemoryLimiter allows limit requests per window with bursts of up to limit.
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		every:  rate.Every(window / time.Duration(limit)),
		burst:  limit,
		window: window,
		now:    time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	v, ok := l.buckets.Load(key)
	if !ok {
		v, _ = l.buckets.LoadOrStore(key, &bucket{lim: rate.NewLimiter(l.every, l.burst)})
	}
	b := v.(*bucket)

	now := l.now()
	b.lastSeen.Store(now.UnixNano())
	res := b.lim.ReserveN(now, 1)
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return Decision{Allowed: false, RetryAfter: delay}, nil
	}
	return Decision{Allowed: true, Remaining: int(b.lim.TokensAt(now))}, nil
}

// EvictIdle drops buckets unused for a full window. Such a bucket has refilled,
// so a fresh one behaves the same. It returns the number of buckets removed.
func (l *MemoryLimiter) EvictIdle() int {
	cutoff := l.now().Add(-l.window).UnixNano()
	removed := 0
	l.buckets.Range(func(k, v any) bool {
		if v.(*bucket).lastSeen.Load() <= cutoff && l.buckets.CompareAndDelete(k, v) {
			removed++
		}
		return true
	})
	return removed
}

// Len reports the number of tracked keys.
func (l *MemoryLimiter) Len() int {
	n := 0
	l.buckets.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// RateLimit rejects callers over their quota with 429 and Retry-After.
// Callers are keyed by X-User-ID, else by client IP. Limiter errors let the request through.
func RateLimit(l Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rateLimitKey(r)

			d, err := l.Allow(r.Context(), key)
			if err != nil {
				logging.L(r.Context()).Warn("rate_limit_error", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			if !d.Allowed {
				metrics.RateLimitedTotal.Inc()
				retry := int(math.Ceil(d.RetryAfter.Seconds()))
				if retry < 1 {
					retry = 1
				}
				logging.L(r.Context()).Info("rate_limited",
					zap.String("key", key),
					zap.Int("retry_after_s", retry),
				)
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"success":false,"error":"too many requests"}`))
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			next.ServeHTTP(w, r)
		})
	}
}

func rateLimitKey(r *http.Request) string {
	if id := r.Header.Get(UserIDHeader); id != "" {
		return "user:" + id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
