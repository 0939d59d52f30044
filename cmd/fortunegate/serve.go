package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fortunegate/internal/cache"
	"fortunegate/internal/handlers"
	"fortunegate/internal/httpserver"
	"fortunegate/internal/metrics"
	"fortunegate/internal/middleware"
	"fortunegate/internal/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP gateway",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context())
	},
}

func run(ctx context.Context) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	// ----- Metrics -----
	metrics.Register()

	logger.Info("loaded config",
		zap.String("port", cfg.Port),
		zap.String("cache_backend", cfg.CacheBackend),
		zap.String("db_driver", cfg.DBDriver),
		zap.String("llm_provider", cfg.LLMProvider),
		zap.String("redis_addr", cfg.RedisAddr),
		zap.Int("pool_max_size", cfg.PoolMaxSize),
	)

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if err := a.withGeneration(ctx); err != nil {
		a.close(ctx)
		return err
	}

	// ----- Rate limiting -----
	var limiter middleware.Limiter
	var memLimiter *middleware.MemoryLimiter
	if cfg.RateLimitPerMinute > 0 {
		if a.redisClient != nil {
			limiter = middleware.NewRedisLimiter(a.redisClient, cfg.RateLimitPerMinute, time.Minute)
		} else {
			memLimiter = middleware.NewMemoryLimiter(cfg.RateLimitPerMinute, time.Minute)
			limiter = memLimiter
		}
	}

	// ----- Scheduler -----
	schedOpts := scheduler.Options{
		Location:      cfg.Location(),
		StatsInterval: cfg.StatsInterval,
		Pool:          a.pool,
		Filler:        a.generator,
		GenerateCron:  cfg.PoolGenerateCron,
		Logger:        logger,
	}
	if p, ok := a.exactCache.(cache.Purger); ok {
		schedOpts.Cache = p
	}
	if memLimiter != nil {
		schedOpts.Limiter = memLimiter
	}
	sched, err := scheduler.New(schedOpts)
	if err != nil {
		a.close(ctx)
		return err
	}
	sched.Start()

	// ----- Router + middleware -----
	r := chi.NewRouter()
	httpserver.SetupRouter(r, logger, httpserver.Routes{
		Fortune:        handlers.NewFortuneHandler(a.service),
		Admin:          handlers.NewAdminHandler(a.generator, a.pool, a.usage, a.queue),
		Limiter:        limiter,
		AdminToken:     cfg.AdminToken,
		RequestTimeout: cfg.RequestTimeout,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		Ready:          a.ready,
	})

	// ----- HTTP server -----
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 10*time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("starting gateway",
		zap.String("addr", srv.Addr),
		zap.String("prompt_version", a.registry.Version()),
	)

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// ----- Graceful shutdown -----
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			logger.Error("server error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	if err := sched.Shutdown(); err != nil {
		logger.Warn("scheduler shutdown error", zap.Error(err))
	}
	a.close(shutdownCtx)

	logger.Info("server shutdown complete")
	return nil
}
