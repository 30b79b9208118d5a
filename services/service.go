package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"sku-service/models"
	aws_pkg "sku-service/pkg/aws"
	"sku-service/repository"
	"sku-service/store"

	"go.uber.org/zap"
)

// SKUService is the entry point for every SKU operation. Bulk operations are
// driven one bounded step at a time by the caller, starting at offset 0 and
// following NextOffset until Complete.
type SKUService interface {
	GenerateStep(ctx context.Context, offset int) (*models.ProgressReport, error)
	GenerateVariationsStep(ctx context.Context, offset int) (*models.ProgressReport, error)
	GenerateVariationsForParent(ctx context.Context, parentID int64) (int, error)

	ValidateStep(ctx context.Context, offset int) (*models.ProgressReport, *models.ValidationSummary, error)
	FixInvalid(ctx context.Context) (*models.FixSummary, error)

	CleanupStep(ctx context.Context, kind models.CleanupKind, offset int) (*models.ProgressReport, error)
	CopyToGTINStep(ctx context.Context, offset int) (*models.ProgressReport, error)

	Statistics(ctx context.Context) (*models.Statistics, error)
	Diagnostics(ctx context.Context) (*models.Diagnostics, error)
	CheckSKU(ctx context.Context, sku string, excludeID int64) (*models.SKUCheck, error)

	GetOptions(ctx context.Context) (models.Options, error)
	SaveOptions(ctx context.Context, opts models.Options) (models.Options, error)
}

// ReportStore keeps exported validation reports and returns a download URL.
type ReportStore interface {
	Upload(ctx context.Context, key string, body []byte) (string, error)
}

// Deps wires a SKUService. Gate, SNS, Reports and Metrics are optional.
type Deps struct {
	Repo     repository.ProductRepo
	Options  repository.OptionsRepo
	State    store.Store
	StateTTL time.Duration
	Batch    BatchConfig
	Gate     PermissionGate

	SNS         aws_pkg.SNSPublisher
	SNSTopicArn string
	Reports     ReportStore
	Metrics     aws_pkg.MetricsRecorder

	Logger *zap.Logger
	Clock  func() time.Time
	Random io.Reader
}

type skuServiceImpl struct {
	repo        repository.ProductRepo
	optionsRepo repository.OptionsRepo
	gate        PermissionGate
	oracle      Oracle
	generator   *Generator
	assigner    *assigner
	numberer    *Numberer
	state       *StateStore
	batch       *BatchProcessor
	snsClient   aws_pkg.SNSPublisher
	snsTopicArn string
	reports     ReportStore
	metrics     aws_pkg.MetricsRecorder
	logger      *zap.Logger
	now         func() time.Time
}

// NewSKUService creates a new SKUService.
func NewSKUService(d Deps) SKUService {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Gate == nil {
		d.Gate = AllowAll{}
	}
	if d.StateTTL <= 0 {
		d.StateTTL = DefaultStateTTL
	}

	oracle := NewOracle(d.Repo)
	generator := NewGenerator(oracle, d.Logger, WithClock(d.Clock), WithRandom(d.Random))
	asg := &assigner{repo: d.Repo, generator: generator, log: d.Logger}
	state := NewStateStore(d.State, d.StateTTL)
	batch := NewBatchProcessor(state, d.Batch, d.Metrics, d.Logger)
	batch.now = d.Clock

	return &skuServiceImpl{
		repo:        d.Repo,
		optionsRepo: d.Options,
		gate:        d.Gate,
		oracle:      oracle,
		generator:   generator,
		assigner:    asg,
		numberer:    &Numberer{repo: d.Repo, oracle: oracle, assigner: asg, log: d.Logger},
		state:       state,
		batch:       batch,
		snsClient:   d.SNS,
		snsTopicArn: d.SNSTopicArn,
		reports:     d.Reports,
		metrics:     d.Metrics,
		logger:      d.Logger,
		now:         d.Clock,
	}
}

func (s *skuServiceImpl) authorize(ctx context.Context) error {
	if !s.gate.Allowed(ctx) {
		return ErrPermissionDenied
	}
	return nil
}

// loadOptions reads the stored options once per request.
func (s *skuServiceImpl) loadOptions(ctx context.Context) (models.Options, error) {
	opts, err := s.optionsRepo.Get(ctx)
	if err != nil {
		return models.Options{}, fmt.Errorf("load options: %w", err)
	}
	return opts.Sanitize(), nil
}

// stepFailed reports a failure that happened before the batch processor ran.
func (s *skuServiceImpl) stepFailed(kind models.OperationKind, offset int, err error) error {
	s.logger.Error("Batch step failed",
		zap.String("operation", string(kind)),
		zap.Int("offset", offset),
		zap.Error(err))
	return &StepError{Operation: kind, Offset: offset, Err: err}
}

// completion sets the final message and announces the finished operation.
func (s *skuServiceImpl) completion(detail string, message func(st *models.OperationState) string) func(context.Context, *models.OperationState, *models.ProgressReport) {
	return func(ctx context.Context, st *models.OperationState, rep *models.ProgressReport) {
		rep.Message = message(st)
		s.logger.Info("Operation complete",
			zap.String("operation", string(st.Kind)),
			zap.Int("processed", st.Processed),
			zap.Int64("total", st.Total))
		s.publishOperationCompleted(ctx, OperationCompletedEvent{
			Operation: st.Kind,
			Detail:    detail,
			Processed: st.Processed,
			Total:     st.Total,
		})
	}
}

func fixedMessage(msg string) func(*models.OperationState) string {
	return func(*models.OperationState) string { return msg }
}

func countMessage(format string) func(*models.OperationState) string {
	return func(st *models.OperationState) string { return fmt.Sprintf(format, st.Processed) }
}

func (s *skuServiceImpl) recordValue(ctx context.Context, name string, value float64, kind models.OperationKind) {
	if s.metrics == nil || value <= 0 {
		return
	}
	if err := s.metrics.RecordValue(ctx, name, value, map[string]string{"Operation": string(kind)}); err != nil {
		s.logger.Debug("Failed to record metric", zap.String("metric", name), zap.Error(err))
	}
}
