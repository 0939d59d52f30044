package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"fortunegate/internal/cache"
	"fortunegate/internal/cohort"
	"fortunegate/internal/config"
	"fortunegate/internal/database"
	"fortunegate/internal/fortune"
	"fortunegate/internal/llm"
	"fortunegate/internal/pool"
	"fortunegate/internal/prompts"
	"fortunegate/internal/usage"
	"fortunegate/internal/worker"
)

// app holds the wired dependencies shared by the commands.
type app struct {
	cfg    config.Config
	logger *zap.Logger

	db          *gorm.DB
	redisClient *redis.Client
	registry    *prompts.Registry
	pool        *pool.Pool
	settings    *pool.SettingsStore
	usage       *usage.Recorder

	// set by withGeneration
	exactCache cache.ExactCache
	llm        llm.Generator
	queue      *worker.Queue
	service    *fortune.Service
	generator  *pool.Generator
}

// newApp opens storage. Commands that generate call withGeneration afterwards.
func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	registry, err := prompts.Load()
	if err != nil {
		return nil, err
	}
	a.registry = registry

	// ----- Database -----
	db, err := database.Open(database.Config{Driver: cfg.DBDriver, DSN: cfg.DBDSN, LogLevel: "warn"}, logger)
	if err != nil {
		return nil, err
	}
	a.db = db
	if err := database.Migrate(db); err != nil {
		a.close(ctx)
		return nil, err
	}

	// ----- Redis client (only if needed) -----
	if cfg.RedisAddr != "" {
		a.redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

		// Fail fast if Redis is misconfigured
		if err := a.redisClient.Ping(ctx).Err(); err != nil {
			logger.Error("redis connection failed", zap.Error(err))
			a.close(ctx)
			return nil, err
		}
		logger.Info("redis connection established", zap.String("addr", cfg.RedisAddr))
	}

	a.pool = pool.New(pool.NewGormStore(db), pool.WithMaxSize(cfg.PoolMaxSize))
	a.settings = pool.NewSettingsStore(db)
	a.usage = usage.NewRecorder(db)
	return a, nil
}

// withGeneration wires the LLM, exact cache, write queue and fortune service.
func (a *app) withGeneration(ctx context.Context) error {
	cfg := a.cfg

	exact, err := cache.NewExactCache(cache.Config{
		Backend:         cfg.CacheBackend,
		CleanupInterval: 10 * time.Minute,
		Prefix:          "fortunegate",
	}, a.redisClient, a.db)
	if err != nil {
		return err
	}
	a.exactCache = exact

	gen, err := llm.NewGenerator(ctx, llm.ProviderConfig{
		Provider: cfg.LLMProvider,
		OpenAI: llm.Config{
			BaseURL: cfg.LLMBaseURL,
			APIKey:  cfg.LLMAPIKey,
			Model:   cfg.LLMModel,
		},
		Gemini: llm.GeminiConfig{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
		},
	}, a.logger)
	if err != nil {
		return fmt.Errorf("llm provider: %w", err)
	}
	a.llm = gen

	a.queue = worker.New(worker.Options{
		Workers: cfg.WriteQueueWorkers,
		Size:    cfg.WriteQueueSize,
		Logger:  a.logger,
	})

	loc := cfg.Location()
	a.service = fortune.NewService(fortune.Options{
		Registry:  a.registry,
		Extractor: cohort.NewExtractor(loc),
		Pool:      a.pool,
		Cache:     exact,
		LLM:       gen,
		Queue:     a.queue,
		Usage:     a.usage,
		VersionID: cfg.VersionID,
		Location:  loc,
	})
	a.generator = pool.NewGenerator(a.pool, a.settings, a.service, cfg.PoolConcurrency)
	return nil
}

// ready pings the database and redis.
func (a *app) ready(ctx context.Context) error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if a.redisClient != nil {
		if err := a.redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// close drains the write queue before releasing storage.
func (a *app) close(ctx context.Context) {
	if a.queue != nil {
		if err := a.queue.Close(ctx); err != nil {
			a.logger.Warn("write queue close", zap.Error(err))
		}
	}
	for _, c := range []any{a.llm, a.exactCache} {
		if closer, ok := c.(io.Closer); ok {
			_ = closer.Close()
		}
	}
	if a.redisClient != nil {
		_ = a.redisClient.Close()
	}
	if a.db != nil {
		if err := database.Close(a.db); err != nil {
			a.logger.Warn("database close", zap.Error(err))
		}
	}
}
