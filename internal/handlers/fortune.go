package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"fortunegate/internal/cohort"
	"fortunegate/internal/fortune"
	"fortunegate/internal/middleware"
	"fortunegate/pkg/logging"
)

// Teller is the fortune service as seen by the handler.
type Teller interface {
	Known(fortuneType string) bool
	Tell(ctx context.Context, req fortune.Request) (*fortune.Result, error)
}

// FortuneHandler serves POST /v1/fortune/{fortuneType}.
type FortuneHandler struct {
	svc Teller
}

func NewFortuneHandler(svc Teller) *FortuneHandler {
	return &FortuneHandler{svc: svc}
}

type fortuneEnvelope struct {
	UserID    string `json:"userId"`
	IsPremium bool   `json:"isPremium"`
}

type fortuneResponse struct {
	Success        bool           `json:"success"`
	Data           map[string]any `json:"data"`
	Cached         bool           `json:"cached"`
	FromCohortPool bool           `json:"fromCohortPool"`
	Fallback       bool           `json:"fallback,omitempty"`
	TokensUsed     int            `json:"tokensUsed"`
}

// clientOnlyParams never change the answer and stay out of the cache key.
var clientOnlyParams = []string{"userId", "isPremium"}

func (h *FortuneHandler) Tell(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fortuneType := chi.URLParam(r, "fortuneType")
	logger := logging.L(ctx).With(zap.String("fortune_type", fortuneType))

	if !h.svc.Known(fortuneType) {
		writeError(w, http.StatusNotFound, "unknown fortune type: "+fortuneType)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Warn("invalid request", zap.Error(err))
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "could not read request body")
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}

	var params map[string]any
	if err := json.Unmarshal(body, &params); err != nil {
		logger.Warn("invalid request", zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	var env fortuneEnvelope
	var in cohort.Input
	if err := json.Unmarshal(body, &env); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := json.Unmarshal(body, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid field type: "+err.Error())
		return
	}

	if err := validateFortuneInput(ctx, fortuneType, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	userID := strings.TrimSpace(r.Header.Get(middleware.UserIDHeader))
	if userID == "" {
		userID = env.UserID
	}
	for _, k := range clientOnlyParams {
		delete(params, k)
	}

	res, err := h.svc.Tell(ctx, fortune.Request{
		FortuneType: fortuneType,
		UserID:      userID,
		IsPremium:   env.IsPremium,
		Input:       in,
		Params:      params,
	})
	if errors.Is(err, fortune.ErrUnknownFortuneType) {
		writeError(w, http.StatusNotFound, "unknown fortune type: "+fortuneType)
		return
	}
	if err != nil {
		logger.Error("fortune_failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_server_error")
		return
	}

	writeJSON(w, http.StatusOK, fortuneResponse{
		Success:        true,
		Data:           res.Data,
		Cached:         res.Cached,
		FromCohortPool: res.FromCohortPool,
		Fallback:       res.Fallback,
		TokensUsed:     res.TokensUsed,
	})
}
