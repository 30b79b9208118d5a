package services

import (
	"context"
	"fmt"
	"strings"

	"sku-service/models"
	"sku-service/repository"

	"go.uber.org/zap"
)

// DiagnosticsSampleSize is the number of products listed by Diagnostics.
const DiagnosticsSampleSize = 5

func (s *skuServiceImpl) Statistics(ctx context.Context) (*models.Statistics, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}
	stats, err := s.repo.Statistics(ctx)
	if err != nil {
		return nil, fmt.Errorf("load statistics: %w", err)
	}
	return stats, nil
}

// Diagnostics reports the active storage adapter together with coverage,
// a product sample, GTIN key usage and the effective options.
func (s *skuServiceImpl) Diagnostics(ctx context.Context) (*models.Diagnostics, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}

	stats, err := s.repo.Statistics(ctx)
	if err != nil {
		return nil, fmt.Errorf("load statistics: %w", err)
	}
	total, err := s.repo.CountAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}
	sample, err := s.repo.Sample(ctx, DiagnosticsSampleSize)
	if err != nil {
		return nil, fmt.Errorf("sample products: %w", err)
	}
	usage, err := s.repo.GTINUsage(ctx, repository.GTINKeys)
	if err != nil {
		return nil, fmt.Errorf("gtin usage: %w", err)
	}
	opts, err := s.loadOptions(ctx)
	if err != nil {
		return nil, err
	}

	return &models.Diagnostics{
		StoreKind:     s.repo.Kind(),
		Statistics:    *stats,
		TotalProducts: total,
		Samples:       sample,
		GTINUsage:     usage,
		Options:       opts,
	}, nil
}

// CheckSKU validates the format of sku and looks for another product
// holding it.
func (s *skuServiceImpl) CheckSKU(ctx context.Context, sku string, excludeID int64) (*models.SKUCheck, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}
	sku = strings.TrimSpace(sku)

	check := &models.SKUCheck{SKU: sku, Format: ValidateSKU(sku), Unique: true}
	if sku == "" {
		return check, nil
	}
	owner, found, err := s.oracle.Owner(ctx, sku, excludeID)
	if err != nil {
		return nil, fmt.Errorf("check sku uniqueness: %w", err)
	}
	if found {
		check.Unique = false
		check.ExistingProduct = owner
	}
	return check, nil
}

func (s *skuServiceImpl) GetOptions(ctx context.Context) (models.Options, error) {
	if err := s.authorize(ctx); err != nil {
		return models.Options{}, err
	}
	return s.loadOptions(ctx)
}

// SaveOptions stores opts after sanitizing and returns what was stored.
func (s *skuServiceImpl) SaveOptions(ctx context.Context, opts models.Options) (models.Options, error) {
	if err := s.authorize(ctx); err != nil {
		return models.Options{}, err
	}
	clean := opts.Sanitize()
	if err := s.optionsRepo.Save(ctx, clean); err != nil {
		return models.Options{}, fmt.Errorf("save options: %w", err)
	}
	s.logger.Info("Saved generation options",
		zap.String("prefix", clean.Prefix),
		zap.String("pattern_type", string(clean.PatternType)),
		zap.Int("pattern_length", clean.PatternLength))
	return clean, nil
}
