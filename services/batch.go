package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"sku-service/models"
	aws_pkg "sku-service/pkg/aws"

	"go.uber.org/zap"
)

// Batch defaults.
const (
	DefaultPageSize = 50

	// DefaultTotal stands in for the total when the state of a running
	// operation has expired. Progress is approximate from then on.
	DefaultTotal int64 = 100

	DefaultStateTTL = 300 * time.Second
)

// BatchConfig sizes the unit of work done per step.
type BatchConfig struct {
	PageSize     int
	DefaultTotal int64
}

func (c BatchConfig) withDefaults() BatchConfig {
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.DefaultTotal <= 0 {
		c.DefaultTotal = DefaultTotal
	}
	return c
}

// stepOutcome is what one page of work produced.
type stepOutcome struct {
	processed int // items that received the effect
	removed   int // items that left a shrinking target set
	secondary int // variations numbered alongside their parent
	fallbacks int
}

// stepPlan describes one bulk operation to the processor.
type stepPlan struct {
	kind models.OperationKind

	// shrinking marks target sets that lose items as they are processed.
	// Pages are then fetched from OperationState.Cursor, not the offset.
	shrinking bool
	// progressByPage computes progress from the items actually fetched.
	progressByPage bool
	// keepState retains the state on completion instead of clearing it.
	keepState bool
	// assigns marks operations whose processed items received a new SKU.
	assigns bool

	count    func(ctx context.Context) (int64, error)
	fetch    func(ctx context.Context, limit, offset int) ([]int64, error)
	apply    func(ctx context.Context, st *models.OperationState, ids []int64) (stepOutcome, error)
	complete func(ctx context.Context, st *models.OperationState, rep *models.ProgressReport)
}

// BatchProcessor runs one bounded step of a bulk operation per call. A step
// either succeeds and persists its progress or fails with a StepError and
// leaves the persisted state untouched.
type BatchProcessor struct {
	state   *StateStore
	cfg     BatchConfig
	metrics aws_pkg.MetricsRecorder
	log     *zap.Logger
	now     func() time.Time
}

func NewBatchProcessor(state *StateStore, cfg BatchConfig, metrics aws_pkg.MetricsRecorder, log *zap.Logger) *BatchProcessor {
	return &BatchProcessor{state: state, cfg: cfg.withDefaults(), metrics: metrics, log: log, now: time.Now}
}

// PageSize is the number of items fetched per step.
func (b *BatchProcessor) PageSize() int { return b.cfg.PageSize }

func (b *BatchProcessor) Run(ctx context.Context, plan stepPlan, offset int) (*models.ProgressReport, *models.OperationState, error) {
	start := b.now()
	rep, st, out, err := b.run(ctx, plan, offset)
	dims := map[string]string{"Operation": string(plan.kind)}
	if b.metrics != nil {
		_ = b.metrics.RecordLatency(ctx, aws_pkg.MetricStepLatency, b.now().Sub(start), dims)
	}
	if err != nil {
		b.log.Error("Batch step failed",
			zap.String("operation", string(plan.kind)),
			zap.Int("offset", offset),
			zap.Error(err))
		if b.metrics != nil {
			_ = b.metrics.RecordValue(ctx, aws_pkg.MetricStepFailures, 1, dims)
		}
		return nil, nil, &StepError{Operation: plan.kind, Offset: offset, Err: err}
	}

	if b.metrics != nil && plan.assigns {
		if n := out.processed + out.secondary; n > 0 {
			_ = b.metrics.RecordValue(ctx, aws_pkg.MetricSKUsAssigned, float64(n), dims)
		}
		if out.fallbacks > 0 {
			_ = b.metrics.RecordValue(ctx, aws_pkg.MetricSKUFallbacks, float64(out.fallbacks), dims)
		}
	}
	return rep, st, nil
}

func (b *BatchProcessor) run(ctx context.Context, plan stepPlan, offset int) (*models.ProgressReport, *models.OperationState, stepOutcome, error) {
	var out stepOutcome

	st, err := b.begin(ctx, plan, offset)
	if err != nil {
		return nil, nil, out, err
	}

	if offset == 0 && st.Total == 0 {
		rep := &models.ProgressReport{Complete: true, Progress: 100}
		if err := b.finish(ctx, plan, st, rep); err != nil {
			return nil, nil, out, err
		}
		return rep, st, out, nil
	}

	cursor := offset
	if plan.shrinking {
		cursor = st.Cursor
	}
	ids, err := plan.fetch(ctx, b.cfg.PageSize, cursor)
	if err != nil {
		return nil, nil, out, fmt.Errorf("fetch page: %w", err)
	}

	out, err = plan.apply(ctx, st, ids)
	if err != nil {
		return nil, nil, out, err
	}
	st.Processed += out.processed
	st.Secondary += out.secondary
	if plan.shrinking {
		st.Cursor += len(ids) - out.removed
	}

	reached := offset + b.cfg.PageSize
	if plan.progressByPage {
		reached = offset + len(ids)
	}
	rep := &models.ProgressReport{
		Progress:            percent(reached, st.Total),
		Total:               st.Total,
		ThisBatchCount:      out.processed,
		VariationsThisBatch: out.secondary,
		Processed:           st.Processed,
	}

	if len(ids) < b.cfg.PageSize || rep.Progress >= 100 {
		rep.Complete = true
		rep.Progress = 100
		if err := b.finish(ctx, plan, st, rep); err != nil {
			return nil, nil, out, err
		}
		return rep, st, out, nil
	}

	if err := b.state.Save(ctx, st); err != nil {
		return nil, nil, out, err
	}
	rep.NextOffset = offset + b.cfg.PageSize
	return rep, st, out, nil
}

// begin starts a fresh state at offset 0 and loads it otherwise. An expired
// state is replaced with one carrying the default total.
func (b *BatchProcessor) begin(ctx context.Context, plan stepPlan, offset int) (*models.OperationState, error) {
	if offset == 0 {
		if err := b.state.Clear(ctx, plan.kind); err != nil {
			return nil, err
		}
		total, err := plan.count(ctx)
		if err != nil {
			return nil, fmt.Errorf("count targets: %w", err)
		}
		return &models.OperationState{Kind: plan.kind, Total: total, StartedAt: b.now().UTC()}, nil
	}

	st, err := b.state.Load(ctx, plan.kind)
	if errors.Is(err, ErrStateExpired) {
		b.log.Warn("Operation state expired, continuing with default total",
			zap.String("operation", string(plan.kind)),
			zap.Int("offset", offset),
			zap.Int64("default_total", b.cfg.DefaultTotal))
		return &models.OperationState{Kind: plan.kind, Total: b.cfg.DefaultTotal, StartedAt: b.now().UTC()}, nil
	}
	return st, err
}

func (b *BatchProcessor) finish(ctx context.Context, plan stepPlan, st *models.OperationState, rep *models.ProgressReport) error {
	rep.Processed = st.Processed
	if plan.keepState {
		if err := b.state.Save(ctx, st); err != nil {
			return err
		}
	} else if err := b.state.Clear(ctx, plan.kind); err != nil {
		return err
	}
	if plan.complete != nil {
		plan.complete(ctx, st, rep)
	}
	return nil
}

// percent is min(100, round(reached/total*100)); an empty total is done.
func percent(reached int, total int64) int {
	if total <= 0 {
		return 100
	}
	p := int(math.Round(float64(reached) / float64(total) * 100))
	if p > 100 {
		return 100
	}
	return p
}
