package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Counter: fortunes served from the exact daily cache.
	ExactHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fortune_exact_cache_hits_total",
			Help: "Total number of exact cache hits.",
		},
		[]string{"fortune_type"},
	)

	// Counter: cohort pool lookups by result (hit | miss | error | skipped).
	PoolLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fortune_cohort_pool_lookups_total",
			Help: "Cohort pool lookups partitioned by result.",
		},
		[]string{"fortune_type", "result"},
	)

	// Counter: cohort pool inserts by result (saved | full | error).
	PoolSavesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fortune_cohort_pool_saves_total",
			Help: "Cohort pool save attempts partitioned by result.",
		},
		[]string{"fortune_type", "result"},
	)

	// Gauge: stored results per fortune type, refreshed by the scheduler.
	PoolResults = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fortune_cohort_pool_results",
			Help: "Stored cohort pool results per fortune type.",
		},
		[]string{"fortune_type"},
	)

	// Gauge: distinct cohorts per fortune type, refreshed by the scheduler.
	PoolCohorts = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fortune_cohort_pool_cohorts",
			Help: "Distinct cohorts in the pool per fortune type.",
		},
		[]string{"fortune_type"},
	)

	// Counter: LLM calls by outcome (ok | error | invalid_json).
	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fortune_llm_requests_total",
			Help: "LLM generations partitioned by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)

	// Histogram: LLM latency in seconds.
	LLMLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fortune_llm_latency_seconds",
			Help:    "LLM generation latency in seconds.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
		},
		[]string{"provider"},
	)

	// Counter: fallback payloads served instead of an LLM result.
	FallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fortune_fallbacks_total",
			Help: "Fallback payloads served because the LLM failed.",
		},
		[]string{"fortune_type"},
	)

	// Counter: background tasks dropped because the queue was full or closed.
	QueueDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fortune_write_queue_dropped_total",
			Help: "Background write tasks dropped.",
		},
		[]string{"task"},
	)

	// Counter: background tasks that returned an error.
	QueueFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fortune_write_queue_failed_total",
			Help: "Background write tasks that failed.",
		},
		[]string{"task"},
	)

	// Counter: requests rejected by the rate limiter.
	RateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fortune_rate_limited_total",
			Help: "Requests rejected with 429.",
		},
	)

	// Histogram: gateway HTTP latency in seconds.
	GatewayLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_latency_seconds",
			Help:    "HTTP request latency for the gateway in seconds.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"path", "method", "status_code"},
	)
)

// Register is called once in main() to register metrics.
func Register() {
	prometheus.MustRegister(
		ExactHitsTotal,
		PoolLookupsTotal,
		PoolSavesTotal,
		PoolResults,
		PoolCohorts,
		LLMRequestsTotal,
		LLMLatencySeconds,
		FallbacksTotal,
		QueueDroppedTotal,
		QueueFailedTotal,
		RateLimitedTotal,
		GatewayLatencySeconds,
	)
}

// Handler exposes the /metrics endpoint for Prometheus to scrape.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware measures gateway latency for each HTTP request.
// The path label is the chi route pattern so fortune types do not explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// capture status code
		rec := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rec, r)

		duration := time.Since(start).Seconds()

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}

		GatewayLatencySeconds.
			WithLabelValues(path, r.Method, strconv.Itoa(rec.statusCode)).
			Observe(duration)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}
