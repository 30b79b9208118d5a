package services

import (
	"context"
	"errors"
	"fmt"

	"sku-service/models"
	"sku-service/repository"

	"go.uber.org/zap"
)

// maxWriteAttempts bounds regeneration when the store rejects a SKU as taken
// at write time.
const maxWriteAttempts = 3

// assigner generates a SKU for a product and persists it. The oracle check
// and the write are not atomic; a write-time duplicate triggers a fresh
// generation.
type assigner struct {
	repo      repository.ProductRepo
	generator *Generator
	log       *zap.Logger
}

func (a *assigner) assign(ctx context.Context, p *models.Product, opts models.Options) (models.GeneratedSKU, error) {
	for attempt := 1; ; attempt++ {
		gen, err := a.generator.Generate(ctx, p, opts)
		if err != nil {
			return models.GeneratedSKU{}, err
		}
		p.SKU = gen.Value

		err = a.repo.Save(ctx, p)
		if err == nil {
			a.log.Debug("Assigned SKU",
				zap.Int64("product_id", p.ID),
				zap.String("sku", gen.Value),
				zap.Int("attempts", gen.Attempts),
				zap.Bool("fallback", gen.Fallback))
			return gen, nil
		}
		if errors.Is(err, repository.ErrDuplicateSKU) && attempt < maxWriteAttempts {
			a.log.Debug("SKU taken at write time, regenerating",
				zap.Int64("product_id", p.ID),
				zap.String("sku", gen.Value),
				zap.Int("write_attempt", attempt))
			continue
		}
		return gen, fmt.Errorf("save product %d: %w", p.ID, err)
	}
}
