package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"sku-service/models"
	aws_pkg "sku-service/pkg/aws"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ValidateStep checks the SKUs of one page of products for format issues and
// records every SKU seen so duplicates are found across pages. The summary is
// only returned with the final step; the findings stay stored for FixInvalid.
func (s *skuServiceImpl) ValidateStep(ctx context.Context, offset int) (*models.ProgressReport, *models.ValidationSummary, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, nil, err
	}

	var summary *models.ValidationSummary
	plan := stepPlan{
		kind:           models.OpValidate,
		progressByPage: true,
		keepState:      true,
		count:          s.repo.CountAll,
		fetch:          s.repo.FindAll,
		apply:          s.validatePage,
		complete: func(ctx context.Context, st *models.OperationState, rep *models.ProgressReport) {
			summary = s.summarize(ctx, st)
			rep.Message = fmt.Sprintf("Validation complete: %d invalid, %d duplicate groups",
				summary.TotalInvalid, summary.TotalDuplicateGroups)
		},
	}
	rep, _, err := s.batch.Run(ctx, plan, offset)
	if err != nil {
		return nil, nil, err
	}
	return rep, summary, nil
}

func (s *skuServiceImpl) validatePage(ctx context.Context, st *models.OperationState, ids []int64) (stepOutcome, error) {
	var out stepOutcome
	if st.Seen == nil {
		st.Seen = make(map[string][]models.ProductRef)
	}
	for _, id := range ids {
		p, err := s.repo.Load(ctx, id)
		if err != nil {
			s.logger.Warn("Skipping product that failed to load", zap.Int64("product_id", id), zap.Error(err))
			continue
		}
		if p.SKU == "" {
			continue
		}
		out.processed++

		if res := ValidateSKU(p.SKU); !res.Valid {
			st.Invalid = append(st.Invalid, models.InvalidFinding{
				ProductID:   p.ID,
				ProductName: p.Name,
				SKU:         p.SKU,
				Issues:      res.Issues,
			})
		}
		st.Seen[p.SKU] = append(st.Seen[p.SKU], models.ProductRef{ProductID: p.ID, ProductName: p.Name})
	}
	return out, nil
}

// duplicateGroups returns every SKU seen on more than one product.
func duplicateGroups(seen map[string][]models.ProductRef) map[string][]models.ProductRef {
	groups := make(map[string][]models.ProductRef)
	for sku, refs := range seen {
		if len(refs) > 1 {
			groups[sku] = slices.Clone(refs)
		}
	}
	return groups
}

func (s *skuServiceImpl) summarize(ctx context.Context, st *models.OperationState) *models.ValidationSummary {
	invalid := st.Invalid
	if invalid == nil {
		invalid = []models.InvalidFinding{}
	}
	dups := duplicateGroups(st.Seen)
	summary := &models.ValidationSummary{
		Complete:             true,
		TotalScanned:         st.Processed,
		TotalInvalid:         len(invalid),
		TotalDuplicateGroups: len(dups),
		Invalid:              invalid,
		Duplicates:           dups,
	}

	if s.reports != nil {
		summary.ReportURL = s.uploadReport(ctx, summary)
	}
	s.recordValue(ctx, aws_pkg.MetricInvalidSKUs, float64(summary.TotalInvalid), models.OpValidate)
	s.recordValue(ctx, aws_pkg.MetricDuplicateSKUs, float64(summary.TotalDuplicateGroups), models.OpValidate)

	s.logger.Info("Validation complete",
		zap.Int("scanned", summary.TotalScanned),
		zap.Int("invalid", summary.TotalInvalid),
		zap.Int("duplicate_groups", summary.TotalDuplicateGroups))
	s.publishOperationCompleted(ctx, OperationCompletedEvent{
		Operation: models.OpValidate,
		Processed: st.Processed,
		Total:     st.Total,
		ReportURL: summary.ReportURL,
	})
	return summary
}

// uploadReport exports the summary and returns its URL, or "" on failure.
func (s *skuServiceImpl) uploadReport(ctx context.Context, summary *models.ValidationSummary) string {
	body, err := json.Marshal(summary)
	if err != nil {
		s.logger.Error("Failed to marshal validation report", zap.Error(err))
		return ""
	}
	key := fmt.Sprintf("validation/%s/%s.json", s.now().UTC().Format("2006-01-02"), uuid.New().String())
	url, err := s.reports.Upload(ctx, key, body)
	if err != nil {
		s.logger.Error("Failed to upload validation report", zap.String("key", key), zap.Error(err))
		return ""
	}
	return url
}

// FixInvalid regenerates the SKU of every product flagged by the last
// validation run: each invalid SKU, and every member of a duplicate group
// except the first. The stored findings are cleared afterwards.
func (s *skuServiceImpl) FixInvalid(ctx context.Context) (*models.FixSummary, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}
	opts, err := s.loadOptions(ctx)
	if err != nil {
		return nil, err
	}

	st, err := s.state.Load(ctx, models.OpValidate)
	if errors.Is(err, ErrStateExpired) {
		st = &models.OperationState{Kind: models.OpValidate}
	} else if err != nil {
		return nil, err
	}

	done := make(map[int64]bool)
	fix := func(id int64) (bool, error) {
		if done[id] {
			return false, nil
		}
		done[id] = true
		p, err := s.repo.Load(ctx, id)
		if err != nil {
			s.logger.Warn("Skipping product that failed to load", zap.Int64("product_id", id), zap.Error(err))
			return false, nil
		}
		old := p.SKU
		gen, err := s.assigner.assign(ctx, p, opts)
		if err != nil {
			return false, err
		}
		s.logger.Info("Replaced SKU",
			zap.Int64("product_id", id),
			zap.String("old_sku", old),
			zap.String("new_sku", gen.Value))
		return true, nil
	}

	summary := &models.FixSummary{}
	for _, f := range st.Invalid {
		ok, err := fix(f.ProductID)
		if err != nil {
			return nil, fmt.Errorf("fix invalid sku of product %d: %w", f.ProductID, err)
		}
		if ok {
			summary.InvalidFixed++
		}
	}

	groups := duplicateGroups(st.Seen)
	skus := make([]string, 0, len(groups))
	for sku := range groups {
		skus = append(skus, sku)
	}
	slices.Sort(skus)
	for _, sku := range skus {
		for _, ref := range groups[sku][1:] {
			ok, err := fix(ref.ProductID)
			if err != nil {
				return nil, fmt.Errorf("fix duplicate sku of product %d: %w", ref.ProductID, err)
			}
			if ok {
				summary.DuplicateFixed++
			}
		}
	}

	if err := s.state.Clear(ctx, models.OpValidate); err != nil {
		return nil, err
	}

	summary.FixedCount = summary.InvalidFixed + summary.DuplicateFixed
	summary.Message = fmt.Sprintf("Fixed %d invalid SKUs successfully!", summary.FixedCount)
	s.recordValue(ctx, aws_pkg.MetricSKUsAssigned, float64(summary.FixedCount), models.OpFixInvalid)
	s.publishOperationCompleted(ctx, OperationCompletedEvent{
		Operation: models.OpFixInvalid,
		Processed: summary.FixedCount,
		Total:     int64(summary.FixedCount),
	})
	return summary, nil
}
