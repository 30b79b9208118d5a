package services

import (
	"context"

	"sku-service/repository"
)

// Oracle answers uniqueness questions against the live catalog. Nothing is
// cached; every call hits the repository.
type Oracle interface {
	Exists(ctx context.Context, sku string) (bool, error)
	Owner(ctx context.Context, sku string, excludeID int64) (int64, bool, error)
}

// RepoOracle is the Oracle backed by a ProductRepo.
type RepoOracle struct {
	repo repository.ProductRepo
}

func NewOracle(repo repository.ProductRepo) *RepoOracle {
	return &RepoOracle{repo: repo}
}

// Exists reports whether any product holds sku. Product ids start at 1, so
// excluding 0 excludes nothing.
func (o *RepoOracle) Exists(ctx context.Context, sku string) (bool, error) {
	_, found, err := o.repo.SKUOwner(ctx, sku, 0)
	return found, err
}

func (o *RepoOracle) Owner(ctx context.Context, sku string, excludeID int64) (int64, bool, error) {
	return o.repo.SKUOwner(ctx, sku, excludeID)
}
