package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"fortunegate/internal/pool"
	"fortunegate/internal/usage"
	"fortunegate/internal/worker"
	"fortunegate/pkg/logging"
)

// PoolGenerator runs batch pre-generation.
type PoolGenerator interface {
	Generate(ctx context.Context, req pool.GenerateRequest) (*pool.GenerateReport, error)
}

// PoolStats reports pool contents.
type PoolStats interface {
	Stats(ctx context.Context, fortuneType string) ([]pool.Stats, error)
}

// UsageSummary reports LLM usage.
type UsageSummary interface {
	Summarize(ctx context.Context, since time.Time) ([]usage.Summary, error)
}

// QueueStats reports background queue counters.
type QueueStats interface {
	Stats() worker.Stats
}

// AdminHandler serves the cohort pool maintenance endpoints.
type AdminHandler struct {
	gen   PoolGenerator
	stats PoolStats
	usage UsageSummary
	queue QueueStats
	now   func() time.Time
}

// NewAdminHandler wires the admin endpoints. usage and queue may be nil.
func NewAdminHandler(gen PoolGenerator, stats PoolStats, usage UsageSummary, queue QueueStats) *AdminHandler {
	return &AdminHandler{gen: gen, stats: stats, usage: usage, queue: queue, now: time.Now}
}

// Generate handles POST /v1/admin/cohort-pool/generate.
func (h *AdminHandler) Generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)

	var req pool.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid request", zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := validateGenerateRequest(ctx, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rep, err := h.gen.Generate(ctx, req)
	if errors.Is(err, pool.ErrSettingsNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		logger.Error("cohort_pool_generate_failed", zap.String("fortune_type", req.FortuneType), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_server_error")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

type statsResponse struct {
	Success bool            `json:"success"`
	Stats   []pool.Stats    `json:"stats"`
	Usage   []usage.Summary `json:"usage,omitempty"`
	Queue   *worker.Stats   `json:"queue,omitempty"`
}

// Stats handles GET /v1/admin/cohort-pool/stats?fortuneType=.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)

	stats, err := h.stats.Stats(ctx, r.URL.Query().Get("fortuneType"))
	if err != nil {
		logger.Error("cohort_pool_stats_failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_server_error")
		return
	}
	if stats == nil {
		stats = []pool.Stats{}
	}

	resp := statsResponse{Success: true, Stats: stats}
	if h.usage != nil {
		summary, err := h.usage.Summarize(ctx, h.now().Add(-24*time.Hour))
		if err != nil {
			logger.Warn("llm_usage_summary_failed", zap.Error(err))
		}
		resp.Usage = summary
	}
	if h.queue != nil {
		qs := h.queue.Stats()
		resp.Queue = &qs
	}
	writeJSON(w, http.StatusOK, resp)
}
