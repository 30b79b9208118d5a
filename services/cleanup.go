package services

import (
	"context"
	"fmt"

	"sku-service/models"

	"go.uber.org/zap"
)

func cleanupOperation(kind models.CleanupKind) models.OperationKind {
	return models.OperationKind(string(models.OpCleanup) + "_" + string(kind))
}

// CleanupStep runs one step of a cleanup. remove_empty completes in a single
// call; the other kinds page through the catalog.
func (s *skuServiceImpl) CleanupStep(ctx context.Context, kind models.CleanupKind, offset int) (*models.ProgressReport, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, ErrUnknownCleanup
	}
	op := cleanupOperation(kind)

	if kind == models.CleanupRemoveEmpty {
		return s.removeEmpty(ctx, op)
	}

	plan := stepPlan{kind: op}
	switch kind {
	case models.CleanupRemoveAll:
		plan.shrinking = true
		plan.count = s.repo.CountWithSKU
		plan.fetch = s.repo.FindWithSKU
		plan.apply = func(ctx context.Context, _ *models.OperationState, ids []int64) (stepOutcome, error) {
			return s.removeSKUs(ctx, ids, func(*models.Product) bool { return true })
		}
		plan.complete = s.completion(string(kind), countMessage("Removed SKUs from %d products!"))

	case models.CleanupRemoveGenerated:
		opts, err := s.loadOptions(ctx)
		if err != nil {
			return nil, s.stepFailed(op, offset, err)
		}
		plan.shrinking = true
		plan.count = s.repo.CountWithSKU
		plan.fetch = s.repo.FindWithSKU
		plan.apply = func(ctx context.Context, _ *models.OperationState, ids []int64) (stepOutcome, error) {
			return s.removeSKUs(ctx, ids, func(p *models.Product) bool { return LooksGenerated(p.SKU, opts) })
		}
		plan.complete = s.completion(string(kind), countMessage("Removed %d generated SKUs!"))

	case models.CleanupRemoveGTIN:
		plan.count = s.repo.CountAll
		plan.fetch = s.repo.FindAll
		plan.apply = func(ctx context.Context, _ *models.OperationState, ids []int64) (stepOutcome, error) {
			return s.removeGTIN(ctx, ids)
		}
		plan.complete = s.completion(string(kind), countMessage("Removed GTIN fields from %d products!"))
	}

	rep, _, err := s.batch.Run(ctx, plan, offset)
	return rep, err
}

func (s *skuServiceImpl) removeEmpty(ctx context.Context, op models.OperationKind) (*models.ProgressReport, error) {
	n, err := s.repo.ClearEmptySKUs(ctx)
	if err != nil {
		return nil, s.stepFailed(op, 0, err)
	}
	s.logger.Info("Cleaned up empty SKU fields", zap.Int64("affected", n))

	st := &models.OperationState{Kind: op, Total: n, Processed: int(n)}
	rep := &models.ProgressReport{
		Complete:       true,
		Progress:       100,
		Total:          n,
		ThisBatchCount: int(n),
	}
	s.completion(string(models.CleanupRemoveEmpty), countMessage("Cleaned up %d empty SKU fields!"))(ctx, st, rep)
	rep.Processed = st.Processed
	return rep, nil
}

// removeSKUs clears the SKU of every loaded product matching match. Products
// left alone stay in the target set.
func (s *skuServiceImpl) removeSKUs(ctx context.Context, ids []int64, match func(*models.Product) bool) (stepOutcome, error) {
	var out stepOutcome
	for _, id := range ids {
		p, err := s.repo.Load(ctx, id)
		if err != nil {
			s.logger.Warn("Skipping product that failed to load", zap.Int64("product_id", id), zap.Error(err))
			continue
		}
		if !p.HasSKU() {
			out.removed++
			continue
		}
		if !match(p) {
			continue
		}
		old := p.SKU
		p.SKU = ""
		if err := s.repo.Save(ctx, p); err != nil {
			return out, fmt.Errorf("save product %d: %w", id, err)
		}
		s.logger.Debug("Removed SKU", zap.Int64("product_id", id), zap.String("sku", old))
		out.processed++
		out.removed++
	}
	return out, nil
}

func (s *skuServiceImpl) removeGTIN(ctx context.Context, ids []int64) (stepOutcome, error) {
	var out stepOutcome
	for _, id := range ids {
		p, err := s.repo.Load(ctx, id)
		if err != nil {
			s.logger.Warn("Skipping product that failed to load", zap.Int64("product_id", id), zap.Error(err))
			continue
		}
		if !ClearGTIN(p) {
			continue
		}
		if err := s.repo.Save(ctx, p); err != nil {
			return out, fmt.Errorf("save product %d: %w", id, err)
		}
		s.logger.Debug("Removed GTIN fields", zap.Int64("product_id", id))
		out.processed++
	}
	return out, nil
}

// CopyToGTINStep mirrors the SKU of one page of products into their GTIN
// field.
func (s *skuServiceImpl) CopyToGTINStep(ctx context.Context, offset int) (*models.ProgressReport, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}

	plan := stepPlan{
		kind:  models.OpCopyGTIN,
		count: s.repo.CountWithSKU,
		fetch: s.repo.FindWithSKU,
		apply: func(ctx context.Context, _ *models.OperationState, ids []int64) (stepOutcome, error) {
			return s.copyPage(ctx, ids)
		},
		complete: s.completion("", countMessage("Copied SKUs to GTIN fields for %d products!")),
	}
	rep, _, err := s.batch.Run(ctx, plan, offset)
	return rep, err
}

func (s *skuServiceImpl) copyPage(ctx context.Context, ids []int64) (stepOutcome, error) {
	var out stepOutcome
	for _, id := range ids {
		p, err := s.repo.Load(ctx, id)
		if err != nil {
			s.logger.Warn("Skipping product that failed to load", zap.Int64("product_id", id), zap.Error(err))
			continue
		}
		if !p.HasSKU() {
			continue
		}
		key := MirrorGTIN(p, p.SKU)
		if err := s.repo.Save(ctx, p); err != nil {
			return out, fmt.Errorf("save product %d: %w", id, err)
		}
		s.logger.Debug("Copied SKU to GTIN field",
			zap.Int64("product_id", id),
			zap.String("sku", p.SKU),
			zap.String("meta_key", key))
		out.processed++
	}
	return out, nil
}
