// Package fortune answers fortune requests from the exact daily cache, the
// cohort pool or the LLM, in that order.
package fortune

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"fortunegate/internal/cache"
	"fortunegate/internal/cohort"
	"fortunegate/internal/llm"
	"fortunegate/internal/metrics"
	"fortunegate/internal/models"
	"fortunegate/internal/prompts"
	"fortunegate/internal/usage"
	"fortunegate/internal/worker"
	"fortunegate/pkg/logging"
)

// ErrUnknownFortuneType is returned for types with neither a prompt entry nor a cohort extractor.
var ErrUnknownFortuneType = errors.New("fortune: unknown fortune type")

// CohortPool is the part of pool.Pool the service reads and writes.
type CohortPool interface {
	Get(ctx context.Context, fortuneType, cohortHash string) map[string]any
	Save(ctx context.Context, fortuneType, cohortHash string, data cohort.Data, template map[string]any) bool
}

// Enqueuer hands best-effort writes to the background queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, t worker.Task) bool
}

// UsageRecorder stores LLM accounting rows.
type UsageRecorder interface {
	Record(ctx context.Context, entry models.LLMUsageLog) error
}

// Request is one fortune request after validation.
type Request struct {
	FortuneType string
	UserID      string
	IsPremium   bool
	Input       cohort.Input

	// Params are the request fields hashed into the exact cache key.
	// Input is used when nil.
	Params map[string]any
}

// Result is the payload returned to the client with its provenance.
type Result struct {
	Data           map[string]any
	Cached         bool
	FromCohortPool bool
	Fallback       bool
	TokensUsed     int
	CohortHash     string
}

// Options wires a Service. Usage may be nil.
type Options struct {
	Registry  *prompts.Registry
	Extractor *cohort.Extractor
	Pool      CohortPool
	Cache     cache.ExactCache
	LLM       llm.Generator
	Queue     Enqueuer
	Usage     UsageRecorder

	// VersionID scopes exact cache keys; defaults to the registry version.
	VersionID string
	Location  *time.Location
	Now       func() time.Time
}

type Service struct {
	registry  *prompts.Registry
	extractor *cohort.Extractor
	pool      CohortPool
	cache     cache.ExactCache
	llm       llm.Generator
	queue     Enqueuer
	usage     UsageRecorder
	versionID string
	loc       *time.Location
	now       func() time.Time
}

func NewService(opts Options) *Service {
	s := &Service{
		registry:  opts.Registry,
		extractor: opts.Extractor,
		pool:      opts.Pool,
		cache:     opts.Cache,
		llm:       opts.LLM,
		queue:     opts.Queue,
		usage:     opts.Usage,
		versionID: opts.VersionID,
		loc:       opts.Location,
		now:       opts.Now,
	}
	if s.loc == nil {
		s.loc = cohort.SeoulLocation()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.extractor == nil {
		s.extractor = cohort.NewExtractor(s.loc, cohort.WithClock(s.now))
	}
	if s.versionID == "" {
		s.versionID = s.registry.Version()
	}
	return s
}

// Known reports whether fortuneType can be served.
func (s *Service) Known(fortuneType string) bool {
	if _, ok := s.registry.Lookup(fortuneType); ok {
		return true
	}
	return cohort.Supports(fortuneType)
}

// canonical resolves extractor and prompt aliases so every spelling of a type
// shares one pool.
func (s *Service) canonical(fortuneType string) string {
	return s.registry.Canonical(cohort.Canonical(fortuneType))
}

// Tell serves one fortune. Cache and pool failures degrade to misses and LLM
// failures to the fallback payload, so the only errors are unknown types and
// key building.
func (s *Service) Tell(ctx context.Context, req Request) (*Result, error) {
	if !s.Known(req.FortuneType) {
		return nil, ErrUnknownFortuneType
	}

	start := time.Now()
	now := s.now().In(s.loc)
	poolType := s.canonical(req.FortuneType)
	entry := s.registry.Get(poolType)
	logger := logging.L(ctx).With(zap.String("fortune_type", req.FortuneType))

	var params any = req.Params
	if req.Params == nil {
		params = req.Input
	}
	key, err := cache.BuildExactCacheKey(req.UserID, req.FortuneType, now, s.versionID, params)
	if err != nil {
		return nil, fmt.Errorf("build exact cache key: %w", err)
	}
	cacheKey := key.String()

	// ---- exact daily cache ----
	lookupStart := time.Now()
	if data := s.readExact(ctx, logger, cacheKey); data != nil {
		metrics.ExactHitsTotal.WithLabelValues(req.FortuneType).Inc()
		logger.Info("cache_decision",
			zap.String("cache_tier", "exact"),
			zap.String("hash_key", key.Hash),
			zap.Bool("cache_hit", true),
			zap.Duration("cache_lookup_latency_ms", time.Since(lookupStart)),
			zap.Duration("total_latency_ms", time.Since(start)),
		)
		return &Result{Data: decorate(data, entry, req), Cached: true}, nil
	}

	personal := req.Input.Personal()

	// ---- cohort pool ----
	data := s.extractor.Extract(ctx, req.FortuneType, req.Input)
	var cohortHash string
	if data != nil {
		cohortHash = cohort.Hash(data)
		if template := s.pool.Get(ctx, poolType, cohortHash); template != nil {
			out := decorate(cohort.Personalize(template, personal), entry, req)
			s.writeExact(ctx, logger, cacheKey, out, now)

			logger.Info("cache_decision",
				zap.String("cache_tier", "cohort"),
				zap.String("cohort_hash", cohortHash),
				zap.Bool("cache_hit", true),
				zap.Duration("total_latency_ms", time.Since(start)),
			)
			return &Result{Data: out, FromCohortPool: true, CohortHash: cohortHash}, nil
		}
	}

	// ---- LLM ----
	res := &Result{CohortHash: cohortHash}
	payload, gen, err := s.generate(ctx, entry, poolType, data)
	if gen != nil {
		res.TokensUsed = gen.Usage.TotalTokens
		s.recordUsage(ctx, req.FortuneType, usage.SourceRequest, gen, err)
	}
	if err != nil {
		metrics.FallbacksTotal.WithLabelValues(req.FortuneType).Inc()
		logger.Warn("fortune_llm_fallback", zap.Error(err))
		payload = entry.FallbackPayload()
		res.Fallback = true
	} else if data != nil {
		s.enqueuePoolSave(ctx, poolType, cohortHash, data, payload)
	}

	res.Data = decorate(cohort.Personalize(payload, personal), entry, req)
	s.writeExact(ctx, logger, cacheKey, res.Data, now)

	var llmLatency time.Duration
	if gen != nil {
		llmLatency = gen.Latency
	}
	logger.Info("cache_decision",
		zap.String("cache_tier", "llm"),
		zap.String("hash_key", key.Hash),
		zap.String("cohort_hash", cohortHash),
		zap.Bool("cache_hit", false),
		zap.Bool("fallback", res.Fallback),
		zap.Duration("llm_latency_ms", llmLatency),
		zap.Duration("total_latency_ms", time.Since(start)),
	)
	return res, nil
}

// GenerateTemplate produces a placeholder-bearing result for a cohort, for
// batch pre-generation.
func (s *Service) GenerateTemplate(ctx context.Context, fortuneType string, data cohort.Data) (map[string]any, error) {
	fortuneType = s.canonical(fortuneType)
	entry := s.registry.Get(fortuneType)
	payload, gen, err := s.generate(ctx, entry, fortuneType, data)
	if gen != nil {
		s.recordUsage(ctx, fortuneType, usage.SourcePregen, gen, err)
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// generate calls the LLM in JSON mode. gen is non-nil whenever the provider answered,
// even if the answer was unusable.
func (s *Service) generate(ctx context.Context, entry *prompts.Fortune, fortuneType string, data cohort.Data) (map[string]any, *llm.Generation, error) {
	var description string
	if data != nil {
		description = data.Describe()
	}
	userPrompt, err := entry.UserPrompt(fortuneType, description)
	if err != nil {
		return nil, nil, err
	}

	gen, err := s.llm.Generate(ctx, []llm.ChatMessage{
		{Role: llm.RoleSystem, Content: entry.System},
		{Role: llm.RoleUser, Content: userPrompt},
	}, llm.GenerateOptions{
		Temperature: entry.Temperature,
		MaxTokens:   entry.MaxTokens,
		JSONMode:    true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("generate %s: %w", fortuneType, err)
	}

	payload, err := llm.DecodeObject(gen.Content)
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(gen.Provider, "invalid_json").Inc()
		return nil, gen, err
	}
	if err := entry.Validate(payload); err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(gen.Provider, "invalid_json").Inc()
		return nil, gen, err
	}
	return payload, gen, nil
}

func (s *Service) readExact(ctx context.Context, logger *zap.Logger, key string) map[string]any {
	raw, hit, err := s.cache.Get(ctx, key)
	if err != nil {
		logger.Warn("exact_cache_get_error", zap.Error(err))
		return nil
	}
	if !hit {
		return nil
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil || data == nil {
		logger.Warn("exact_cache_unmarshal_error", zap.Error(err))
		return nil
	}
	return data
}

func (s *Service) writeExact(ctx context.Context, logger *zap.Logger, key string, data map[string]any, now time.Time) {
	raw, err := json.Marshal(data)
	if err != nil {
		logger.Warn("marshal_response_error", zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, key, raw, cache.EndOfDay(now)); err != nil {
		logger.Warn("exact_cache_set_error", zap.Error(err))
	}
}

func (s *Service) enqueuePoolSave(ctx context.Context, fortuneType, cohortHash string, data cohort.Data, template map[string]any) {
	s.queue.Enqueue(ctx, worker.Task{
		Name: "cohort_pool_save",
		Run: func(ctx context.Context) error {
			s.pool.Save(ctx, fortuneType, cohortHash, data, template)
			return nil
		},
	})
}

func (s *Service) recordUsage(ctx context.Context, fortuneType, source string, gen *llm.Generation, genErr error) {
	if s.usage == nil {
		return
	}
	entry := models.LLMUsageLog{
		FortuneType:      fortuneType,
		Provider:         gen.Provider,
		Model:            gen.Model,
		Source:           source,
		PromptTokens:     gen.Usage.PromptTokens,
		CompletionTokens: gen.Usage.CompletionTokens,
		TotalTokens:      gen.Usage.TotalTokens,
		LatencyMs:        gen.Latency.Milliseconds(),
		Success:          genErr == nil,
	}
	if genErr != nil {
		entry.ErrorMessage = genErr.Error()
	}
	s.queue.Enqueue(ctx, worker.Task{
		Name: "llm_usage_log",
		Run: func(ctx context.Context) error {
			return s.usage.Record(ctx, entry)
		},
	})
}
