package services

import (
	"context"

	"sku-service/models"
	aws_pkg "sku-service/pkg/aws"

	"go.uber.org/zap"
)

// GenerateStep assigns SKUs to one page of products that have none. Variable
// products also get their variations numbered from the new parent SKU.
//
// A parent leaves the target set as soon as its own SKU is saved. If numbering
// its variations then fails, the retried step no longer sees that parent; the
// unnumbered variations stay in the missing set and GenerateVariationsStep
// numbers them after the parent's highest suffix.
func (s *skuServiceImpl) GenerateStep(ctx context.Context, offset int) (*models.ProgressReport, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}
	opts, err := s.loadOptions(ctx)
	if err != nil {
		return nil, s.stepFailed(models.OpGenerate, offset, err)
	}

	plan := stepPlan{
		kind:      models.OpGenerate,
		shrinking: true,
		assigns:   true,
		count: func(ctx context.Context) (int64, error) {
			return s.repo.CountMissingSKU(ctx, models.ScopeProducts)
		},
		fetch: func(ctx context.Context, limit, offset int) ([]int64, error) {
			return s.repo.FindMissingSKU(ctx, models.ScopeProducts, limit, offset)
		},
		apply: func(ctx context.Context, _ *models.OperationState, ids []int64) (stepOutcome, error) {
			return s.generatePage(ctx, ids, opts)
		},
		complete: s.completion("", fixedMessage("All SKUs generated successfully!")),
	}
	rep, _, err := s.batch.Run(ctx, plan, offset)
	return rep, err
}

func (s *skuServiceImpl) generatePage(ctx context.Context, ids []int64, opts models.Options) (stepOutcome, error) {
	var out stepOutcome
	for _, id := range ids {
		p, err := s.repo.Load(ctx, id)
		if err != nil {
			s.logger.Warn("Skipping product that failed to load", zap.Int64("product_id", id), zap.Error(err))
			continue
		}

		if !p.HasSKU() {
			gen, err := s.assigner.assign(ctx, p, opts)
			if err != nil {
				return out, err
			}
			out.processed++
			if gen.Fallback {
				out.fallbacks++
			}
		}
		// Either assigned now or by someone else since the page was read.
		out.removed++

		if p.IsVariable() {
			n, err := s.numberer.AssignVariationIdentifiers(ctx, p, p.SKU, opts)
			if err != nil {
				return out, err
			}
			out.secondary += n
		}
	}
	return out, nil
}

// GenerateVariationsStep assigns SKUs to one page of variations that have
// none, continuing each parent's numbering after its highest suffix.
func (s *skuServiceImpl) GenerateVariationsStep(ctx context.Context, offset int) (*models.ProgressReport, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}
	opts, err := s.loadOptions(ctx)
	if err != nil {
		return nil, s.stepFailed(models.OpGenerateVariations, offset, err)
	}

	plan := stepPlan{
		kind:      models.OpGenerateVariations,
		shrinking: true,
		assigns:   true,
		count: func(ctx context.Context) (int64, error) {
			return s.repo.CountMissingSKU(ctx, models.ScopeVariations)
		},
		fetch: func(ctx context.Context, limit, offset int) ([]int64, error) {
			return s.repo.FindMissingSKU(ctx, models.ScopeVariations, limit, offset)
		},
		apply: func(ctx context.Context, _ *models.OperationState, ids []int64) (stepOutcome, error) {
			return s.generateVariationsPage(ctx, ids, opts)
		},
		complete: s.completion("", fixedMessage("All variation SKUs generated successfully!")),
	}
	rep, _, err := s.batch.Run(ctx, plan, offset)
	return rep, err
}

func (s *skuServiceImpl) generateVariationsPage(ctx context.Context, ids []int64, opts models.Options) (stepOutcome, error) {
	var out stepOutcome

	var parents []int64
	wanted := make(map[int64]map[int64]bool)
	for _, id := range ids {
		v, err := s.repo.Load(ctx, id)
		if err != nil {
			s.logger.Warn("Skipping variation that failed to load", zap.Int64("variation_id", id), zap.Error(err))
			continue
		}
		if v.HasSKU() {
			out.removed++
			continue
		}
		if v.ParentID == 0 {
			s.logger.Warn("Skipping variation without parent", zap.Int64("variation_id", id))
			continue
		}
		if wanted[v.ParentID] == nil {
			wanted[v.ParentID] = make(map[int64]bool)
			parents = append(parents, v.ParentID)
		}
		wanted[v.ParentID][v.ID] = true
	}

	for _, parentID := range parents {
		parent, err := s.repo.Load(ctx, parentID)
		if err != nil {
			s.logger.Warn("Skipping variations of parent that failed to load", zap.Int64("parent_id", parentID), zap.Error(err))
			continue
		}
		if !parent.IsVariable() {
			s.logger.Warn("Skipping variations of non-variable parent", zap.Int64("parent_id", parentID))
			continue
		}
		n, err := s.numberer.continueNumbering(ctx, parent, opts, wanted[parentID])
		if err != nil {
			return out, err
		}
		out.processed += n
		out.removed += n
	}
	return out, nil
}

// GenerateVariationsForParent numbers the unidentified variations of one
// variable product and returns how many were assigned.
func (s *skuServiceImpl) GenerateVariationsForParent(ctx context.Context, parentID int64) (int, error) {
	if err := s.authorize(ctx); err != nil {
		return 0, err
	}
	opts, err := s.loadOptions(ctx)
	if err != nil {
		return 0, err
	}

	n, err := s.numberer.NumberByParentID(ctx, parentID, opts)
	if err != nil {
		return n, err
	}
	s.recordValue(ctx, aws_pkg.MetricSKUsAssigned, float64(n), models.OpGenerateVariations)
	s.logger.Info("Generated variation SKUs for parent",
		zap.Int64("parent_id", parentID),
		zap.Int("assigned", n))
	return n, nil
}
