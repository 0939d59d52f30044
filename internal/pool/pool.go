package pool

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"fortunegate/internal/cohort"
	"fortunegate/internal/metrics"
	"fortunegate/internal/models"
	"fortunegate/pkg/logging"
)

// DefaultMaxSize is the per-cohort soft cap.
const DefaultMaxSize = 50

// Pool shares LLM results between users of the same cohort.
//
// The cap is checked before inserting, without a transaction, so concurrent
// saves for one cohort can overshoot it by a few rows.
type Pool struct {
	store   Store
	maxSize int64
}

// Option configures a Pool.
type Option func(*Pool)

// WithMaxSize sets the per-cohort cap.
func WithMaxSize(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.maxSize = int64(n)
		}
	}
}

// New returns a pool over store.
func New(store Store, opts ...Option) *Pool {
	p := &Pool{store: store, maxSize: DefaultMaxSize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// MaxSize returns the per-cohort cap.
func (p *Pool) MaxSize() int64 { return p.maxSize }

// Get returns a random template for the cohort and bumps its usage count.
// Any failure is logged and reported as a miss.
func (p *Pool) Get(ctx context.Context, fortuneType, cohortHash string) map[string]any {
	logger := logging.L(ctx).With(
		zap.String("fortune_type", fortuneType),
		zap.String("cohort_hash", cohortHash),
	)

	entry, err := p.store.Random(ctx, fortuneType, cohortHash)
	if err != nil {
		metrics.PoolLookupsTotal.WithLabelValues(fortuneType, "error").Inc()
		logger.Warn("cohort_pool_get", zap.String("cohort_result", "error"), zap.Error(err))
		return nil
	}
	if entry == nil {
		metrics.PoolLookupsTotal.WithLabelValues(fortuneType, "miss").Inc()
		logger.Info("cohort_pool_get", zap.String("cohort_result", "miss"))
		return nil
	}

	template, err := decodeTemplate(entry.ResultTemplate)
	if err != nil {
		metrics.PoolLookupsTotal.WithLabelValues(fortuneType, "error").Inc()
		logger.Warn("cohort_pool_get",
			zap.String("cohort_result", "error"),
			zap.String("entry_id", entry.ID),
			zap.Error(err),
		)
		return nil
	}

	if err := p.store.IncrementUsage(ctx, entry.ID); err != nil {
		logger.Warn("cohort_pool_usage_bump_failed", zap.String("entry_id", entry.ID), zap.Error(err))
	}

	metrics.PoolLookupsTotal.WithLabelValues(fortuneType, "hit").Inc()
	logger.Info("cohort_pool_get",
		zap.String("cohort_result", "hit"),
		zap.String("entry_id", entry.ID),
		zap.Int64("usage_count", entry.UsageCount+1),
	)
	return template
}

// Save stores template for the cohort unless the cohort is already full.
// It reports whether a row was inserted; errors are logged, never returned.
func (p *Pool) Save(ctx context.Context, fortuneType, cohortHash string, data cohort.Data, template map[string]any) bool {
	logger := logging.L(ctx).With(
		zap.String("fortune_type", fortuneType),
		zap.String("cohort_hash", cohortHash),
	)

	size, err := p.store.Size(ctx, fortuneType, cohortHash)
	if err != nil {
		metrics.PoolSavesTotal.WithLabelValues(fortuneType, "error").Inc()
		logger.Warn("cohort_pool_save", zap.String("save_result", "error"), zap.Error(err))
		return false
	}
	if size >= p.maxSize {
		metrics.PoolSavesTotal.WithLabelValues(fortuneType, "full").Inc()
		logger.Info("cohort_pool_save", zap.String("save_result", "full"), zap.Int64("pool_size", size))
		return false
	}

	if err := p.insert(ctx, fortuneType, cohortHash, data, template); err != nil {
		metrics.PoolSavesTotal.WithLabelValues(fortuneType, "error").Inc()
		logger.Warn("cohort_pool_save", zap.String("save_result", "error"), zap.Error(err))
		return false
	}

	metrics.PoolSavesTotal.WithLabelValues(fortuneType, "saved").Inc()
	logger.Info("cohort_pool_save", zap.String("save_result", "saved"), zap.Int64("pool_size", size+1))
	return true
}

func (p *Pool) insert(ctx context.Context, fortuneType, cohortHash string, data cohort.Data, template map[string]any) error {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode cohort_data: %w", err)
	}
	templateJSON, err := json.Marshal(template)
	if err != nil {
		return fmt.Errorf("encode result_template: %w", err)
	}

	return p.store.Insert(ctx, &models.CohortPoolEntry{
		FortuneType:    fortuneType,
		CohortHash:     cohortHash,
		CohortData:     dataJSON,
		ResultTemplate: templateJSON,
		QualityScore:   1.0,
	})
}

func decodeTemplate(raw []byte) (map[string]any, error) {
	var template map[string]any
	if err := json.Unmarshal(raw, &template); err != nil {
		return nil, fmt.Errorf("decode result_template: %w", err)
	}
	if template == nil {
		return nil, fmt.Errorf("decode result_template: not an object")
	}
	return template, nil
}

// Size returns the number of stored results for the cohort.
func (p *Pool) Size(ctx context.Context, fortuneType, cohortHash string) (int64, error) {
	return p.store.Size(ctx, fortuneType, cohortHash)
}

// Stats returns per-type counts; an empty fortuneType means every type.
func (p *Pool) Stats(ctx context.Context, fortuneType string) ([]Stats, error) {
	stats, err := p.store.Stats(ctx, fortuneType)
	if err != nil {
		return nil, fmt.Errorf("cohort pool stats: %w", err)
	}
	return stats, nil
}
