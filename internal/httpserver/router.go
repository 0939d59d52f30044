package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"fortunegate/internal/handlers"
	"fortunegate/internal/metrics"
	"fortunegate/internal/middleware"
	"fortunegate/pkg/logging"
)

// Routes carries the handlers and route-level settings of the gateway.
type Routes struct {
	Fortune *handlers.FortuneHandler
	Admin   *handlers.AdminHandler

	Limiter        middleware.Limiter // nil disables rate limiting
	AdminToken     string
	RequestTimeout time.Duration // fortune routes, default 30s
	AdminTimeout   time.Duration // pool generation, default 10m
	MaxBodyBytes   int64         // default 512 KB

	// Ready reports dependency health for /healthz; nil means always ready.
	Ready func(ctx context.Context) error
}

func SetupRouter(r *chi.Mux, baseLogger *zap.Logger, routes Routes) {
	if routes.RequestTimeout <= 0 {
		routes.RequestTimeout = 30 * time.Second
	}
	if routes.AdminTimeout <= 0 {
		routes.AdminTimeout = 10 * time.Minute
	}
	if routes.MaxBodyBytes <= 0 {
		routes.MaxBodyBytes = 512 * 1024
	}

	r.Use(metrics.Middleware)

	// base middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)

	r.Use(middleware.LoggingContext(baseLogger))
	r.Use(middleware.Recoverer())
	r.Use(middleware.CORS())
	r.Use(chimw.RequestSize(routes.MaxBodyBytes))

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if routes.Limiter != nil {
				r.Use(middleware.RateLimit(routes.Limiter))
			}
			r.Use(middleware.Timeout(routes.RequestTimeout))
			r.Post("/fortune/{fortuneType}", routes.Fortune.Tell)
		})

		r.Route("/admin/cohort-pool", func(r chi.Router) {
			r.Use(middleware.RequireBearer(routes.AdminToken))
			r.Use(middleware.Timeout(routes.AdminTimeout))
			r.Post("/generate", routes.Admin.Generate)
			r.Get("/stats", routes.Admin.Stats)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if routes.Ready != nil {
			if err := routes.Ready(r.Context()); err != nil {
				logging.L(r.Context()).Warn("health check failed", zap.Error(err))
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("unavailable"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Handle("/metrics", metrics.Handler())
}
