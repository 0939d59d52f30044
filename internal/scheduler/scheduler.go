package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"fortunegate/internal/cache"
	"fortunegate/internal/metrics"
	"fortunegate/internal/pool"
	"fortunegate/pkg/logging"
)

// PoolStats reports per-type pool counts.
type PoolStats interface {
	Stats(ctx context.Context, fortuneType string) ([]pool.Stats, error)
}

// PoolFiller runs a pre-generation pass over every active settings row.
type PoolFiller interface {
	GenerateAll(ctx context.Context, maxCohorts int) ([]*pool.GenerateReport, error)
}

// IdleEvicter drops per-key state nobody has used lately.
type IdleEvicter interface {
	EvictIdle() int
}

type Options struct {
	Location      *time.Location
	StatsInterval time.Duration // default 1m
	JobTimeout    time.Duration // default 30s, pre-generation excluded

	Pool  PoolStats
	Cache cache.Purger // nil skips the purge job

	// Limiter is the in-process rate limiter; nil skips bucket eviction.
	Limiter IdleEvicter

	// Filler and GenerateCron enable scheduled pre-generation when both are set.
	Filler       PoolFiller
	GenerateCron string
	MaxCohorts   int

	Logger *zap.Logger
}

// Scheduler runs the gateway's maintenance jobs.
type Scheduler struct {
	s    gocron.Scheduler
	opts Options
}

// New registers the jobs without starting them.
func New(opts Options) (*Scheduler, error) {
	if opts.Pool == nil {
		return nil, errors.New("scheduler: pool stats source is required")
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.StatsInterval <= 0 {
		opts.StatsInterval = time.Minute
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s, err := gocron.NewScheduler(gocron.WithLocation(opts.Location))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	sc := &Scheduler{s: s, opts: opts}

	if err := sc.add("pool_gauges", gocron.DurationJob(opts.StatsInterval), sc.timed(sc.RefreshPoolGauges)); err != nil {
		return nil, err
	}
	if opts.Cache != nil {
		if err := sc.add("exact_cache_purge", gocron.DurationJob(10*time.Minute), sc.timed(sc.PurgeExpired)); err != nil {
			return nil, err
		}
	}
	if opts.Limiter != nil {
		if err := sc.add("rate_limit_evict", gocron.DurationJob(5*time.Minute), sc.EvictIdleBuckets); err != nil {
			return nil, err
		}
	}
	if opts.Filler != nil && opts.GenerateCron != "" {
		if err := sc.add("pool_generate", gocron.CronJob(opts.GenerateCron, false), sc.GeneratePool); err != nil {
			return nil, err
		}
	}
	return sc, nil
}

func (sc *Scheduler) add(name string, def gocron.JobDefinition, run func(context.Context) error) error {
	logger := sc.opts.Logger.With(zap.String("job", name))
	_, err := sc.s.NewJob(def,
		gocron.NewTask(func() {
			ctx := logging.WithLogger(context.Background(), logger)
			if err := run(ctx); err != nil {
				logger.Error("scheduled job failed", zap.Error(err))
			}
		}),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sc.s.Shutdown()
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	return nil
}

func (sc *Scheduler) timed(run func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, sc.opts.JobTimeout)
		defer cancel()
		return run(ctx)
	}
}

func (sc *Scheduler) Start() {
	sc.opts.Logger.Info("scheduler started", zap.Int("jobs", len(sc.s.Jobs())))
	sc.s.Start()
}

// Shutdown stops the scheduler and waits for running jobs.
func (sc *Scheduler) Shutdown() error {
	return sc.s.Shutdown()
}

// RefreshPoolGauges publishes the stored results and cohorts of every fortune type.
func (sc *Scheduler) RefreshPoolGauges(ctx context.Context) error {
	stats, err := sc.opts.Pool.Stats(ctx, "")
	if err != nil {
		return fmt.Errorf("pool stats: %w", err)
	}
	metrics.PoolResults.Reset()
	metrics.PoolCohorts.Reset()
	for _, st := range stats {
		metrics.PoolResults.WithLabelValues(st.FortuneType).Set(float64(st.TotalResults))
		metrics.PoolCohorts.WithLabelValues(st.FortuneType).Set(float64(st.TotalCohorts))
	}
	return nil
}

// PurgeExpired drops exact cache entries past their end of day.
func (sc *Scheduler) PurgeExpired(ctx context.Context) error {
	if sc.opts.Cache == nil {
		return nil
	}
	n, err := sc.opts.Cache.PurgeExpired(ctx)
	if err != nil {
		return fmt.Errorf("purge exact cache: %w", err)
	}
	if n > 0 {
		logging.L(ctx).Info("exact_cache_purged", zap.Int64("removed", n))
	}
	return nil
}

// EvictIdleBuckets trims rate limit buckets of callers that went quiet.
func (sc *Scheduler) EvictIdleBuckets(ctx context.Context) error {
	if sc.opts.Limiter == nil {
		return nil
	}
	if n := sc.opts.Limiter.EvictIdle(); n > 0 {
		logging.L(ctx).Debug("rate_limit_buckets_evicted", zap.Int("removed", n))
	}
	return nil
}

// GeneratePool runs one pre-generation pass over all active settings.
func (sc *Scheduler) GeneratePool(ctx context.Context) error {
	reports, err := sc.opts.Filler.GenerateAll(ctx, sc.opts.MaxCohorts)
	if err != nil {
		return err
	}
	generated := 0
	for _, r := range reports {
		generated += r.Generated
	}
	logging.L(ctx).Info("cohort_pool_generate_completed",
		zap.Int("fortune_types", len(reports)),
		zap.Int("generated", generated),
	)
	return sc.RefreshPoolGauges(ctx)
}
