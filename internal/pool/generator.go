package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fortunegate/internal/cohort"
	"fortunegate/internal/models"
	"fortunegate/pkg/logging"
)

const (
	DefaultMaxCohorts = 10
	MaxCohortsLimit   = 50

	// results generated per cohort and run
	maxPerCohort = 5
)

// TemplateGenerator produces one placeholder-bearing result for a cohort.
type TemplateGenerator interface {
	GenerateTemplate(ctx context.Context, fortuneType string, data cohort.Data) (map[string]any, error)
}

// SettingsSource provides the active pre-generation settings.
type SettingsSource interface {
	Active(ctx context.Context, fortuneType string) (*models.CohortPoolSettings, error)
	ListActive(ctx context.Context) ([]models.CohortPoolSettings, error)
}

// GenerateRequest selects what one pre-generation run fills.
type GenerateRequest struct {
	FortuneType string `json:"fortuneType"`
	MaxCohorts  int    `json:"maxCohorts,omitempty"` // default 10, at most 50
	TargetSize  int    `json:"targetSize,omitempty"` // default from settings
}

// GenerateReport summarises a pre-generation run.
type GenerateReport struct {
	Success          bool     `json:"success"`
	FortuneType      string   `json:"fortuneType"`
	TotalCohorts     int      `json:"totalCohorts"`
	Processed        int      `json:"processed"`
	Generated        int      `json:"generated"`
	Skipped          int      `json:"skipped"`
	RemainingCohorts int      `json:"remainingCohorts"`
	Errors           []string `json:"errors,omitempty"`
}

// Generator fills cohort pools ahead of traffic.
type Generator struct {
	pool        *Pool
	settings    SettingsSource
	gen         TemplateGenerator
	concurrency int
}

// NewGenerator returns a generator running at most concurrency cohorts at once.
func NewGenerator(p *Pool, settings SettingsSource, gen TemplateGenerator, concurrency int) *Generator {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Generator{pool: p, settings: settings, gen: gen, concurrency: concurrency}
}

// Cohorts enumerates the cartesian product of the configured dimension values,
// in dimension order. A dimension without values yields no cohorts.
func Cohorts(st *models.CohortPoolSettings) []cohort.Data {
	dims := st.CohortDimensions
	values := st.DimensionValues.Data()
	if len(dims) == 0 {
		return nil
	}

	var out []cohort.Data
	current := make(cohort.Data, len(dims))

	var walk func(i int)
	walk = func(i int) {
		if i == len(dims) {
			c := make(cohort.Data, len(current))
			for k, v := range current {
				c[k] = v
			}
			out = append(out, c)
			return
		}
		for _, v := range values[dims[i]] {
			current[dims[i]] = v
			walk(i + 1)
		}
	}
	walk(0)
	return out
}

// Generate runs one pre-generation pass for req.FortuneType.
func (g *Generator) Generate(ctx context.Context, req GenerateRequest) (*GenerateReport, error) {
	if req.FortuneType == "" {
		return nil, errors.New("fortuneType is required")
	}

	st, err := g.settings.Active(ctx, req.FortuneType)
	if err != nil {
		return nil, err
	}
	return g.run(ctx, st, req)
}

// GenerateAll runs a pass for every active settings row. Failing types are
// logged and skipped.
func (g *Generator) GenerateAll(ctx context.Context, maxCohorts int) ([]*GenerateReport, error) {
	all, err := g.settings.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pool settings: %w", err)
	}

	reports := make([]*GenerateReport, 0, len(all))
	for i := range all {
		st := &all[i]
		rep, err := g.run(ctx, st, GenerateRequest{FortuneType: st.FortuneType, MaxCohorts: maxCohorts})
		if err != nil {
			logging.L(ctx).Error("cohort_pool_generate_failed", zap.String("fortune_type", st.FortuneType), zap.Error(err))
			continue
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

func (g *Generator) run(ctx context.Context, st *models.CohortPoolSettings, req GenerateRequest) (*GenerateReport, error) {
	logger := logging.L(ctx).With(zap.String("fortune_type", st.FortuneType))

	target := int64(req.TargetSize)
	if target <= 0 {
		target = int64(st.TargetPoolSize)
	}
	ceiling := g.pool.MaxSize()
	if st.MaxPoolSize > 0 && int64(st.MaxPoolSize) < ceiling {
		ceiling = int64(st.MaxPoolSize)
	}

	maxCohorts := req.MaxCohorts
	if maxCohorts <= 0 {
		maxCohorts = DefaultMaxCohorts
	}
	if maxCohorts > MaxCohortsLimit {
		maxCohorts = MaxCohortsLimit
	}

	all := Cohorts(st)
	batch := all
	if len(batch) > maxCohorts {
		batch = batch[:maxCohorts]
	}

	logger.Info("cohort_pool_generate_started",
		zap.Int("total_cohorts", len(all)),
		zap.Int("batch", len(batch)),
		zap.Int64("target_size", target),
	)

	rep := &GenerateReport{FortuneType: st.FortuneType, TotalCohorts: len(all)}
	var mu sync.Mutex

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)

	for _, data := range batch {
		eg.Go(func() error {
			generated, skipped, errs := g.fill(egCtx, st.FortuneType, data, target, ceiling)

			mu.Lock()
			defer mu.Unlock()
			rep.Generated += generated
			rep.Errors = append(rep.Errors, errs...)
			if skipped {
				rep.Skipped++
			} else {
				rep.Processed++
			}
			return egCtx.Err()
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("generate cohort pool %s: %w", st.FortuneType, err)
	}

	rep.Success = true
	rep.RemainingCohorts = rep.TotalCohorts - rep.Processed - rep.Skipped

	logger.Info("cohort_pool_generate_finished",
		zap.Int("processed", rep.Processed),
		zap.Int("generated", rep.Generated),
		zap.Int("skipped", rep.Skipped),
		zap.Int("errors", len(rep.Errors)),
	)
	return rep, nil
}

// fill tops up one cohort. skipped is true when the cohort already holds target results.
func (g *Generator) fill(ctx context.Context, fortuneType string, data cohort.Data, target, ceiling int64) (generated int, skipped bool, errs []string) {
	hash := cohort.Hash(data)

	size, err := g.pool.Size(ctx, fortuneType, hash)
	if err != nil {
		return 0, false, []string{fmt.Sprintf("size error for %s: %v", hash, err)}
	}
	if size >= target || size >= ceiling {
		return 0, true, nil
	}

	needed := min(target-size, ceiling-size, maxPerCohort)
	for i := int64(0); i < needed; i++ {
		if ctx.Err() != nil {
			break
		}

		template, err := g.gen.GenerateTemplate(ctx, fortuneType, data)
		if err != nil {
			errs = append(errs, fmt.Sprintf("generation error for %s: %v", hash, err))
			continue
		}
		if err := g.pool.insert(ctx, fortuneType, hash, data, template); err != nil {
			errs = append(errs, fmt.Sprintf("insert error for %s: %v", hash, err))
			continue
		}
		generated++
	}
	return generated, false, errs
}
