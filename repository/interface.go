package repository

import (
	"context"
	"errors"

	"sku-service/models"
)

var (
	// ErrNotFound is returned by Load when the product does not exist or is not published.
	ErrNotFound = errors.New("product not found")
	// ErrDuplicateSKU is returned by Save when the store rejects the SKU as already taken.
	ErrDuplicateSKU = errors.New("sku already assigned")
)

// ProductRepo is the catalog view used by the SKU engine. Every query is scoped
// to published items and ordered by ascending id so offsets are stable.
// It uses plain Go types so adapters can be swapped without touching services.
type ProductRepo interface {
	// Kind names the adapter, e.g. "lookup", "postmeta" or "dynamodb".
	Kind() string

	FindMissingSKU(ctx context.Context, scope models.Scope, limit, offset int) ([]int64, error)
	CountMissingSKU(ctx context.Context, scope models.Scope) (int64, error)
	FindWithSKU(ctx context.Context, limit, offset int) ([]int64, error)
	CountWithSKU(ctx context.Context) (int64, error)
	FindAll(ctx context.Context, limit, offset int) ([]int64, error)
	CountAll(ctx context.Context) (int64, error)

	// Load returns the product with categories, children and GTIN meta filled in.
	Load(ctx context.Context, id int64) (*models.Product, error)
	// Save persists the SKU and the GTIN meta of p.
	Save(ctx context.Context, p *models.Product) error

	// SKUOwner returns the id of a product other than excludeID holding sku.
	SKUOwner(ctx context.Context, sku string, excludeID int64) (int64, bool, error)
	// ClearEmptySKUs drops blank SKU values and returns the affected rows.
	ClearEmptySKUs(ctx context.Context) (int64, error)

	Statistics(ctx context.Context) (*models.Statistics, error)
	DuplicateSKUs(ctx context.Context) (map[string][]int64, error)
	GTINUsage(ctx context.Context, keys []string) (map[string]int64, error)
	Sample(ctx context.Context, n int) ([]models.ProductSample, error)
}

// OptionsRepo persists the generation options.
type OptionsRepo interface {
	// Get returns the stored options, or DefaultOptions when nothing is stored.
	Get(ctx context.Context) (models.Options, error)
	Save(ctx context.Context, opts models.Options) error
}

// GTINKeys is the ordered list of secondary identifier meta keys. The first
// entry is the canonical field.
var GTINKeys = []string{
	"_global_unique_id",
	"_wpm_gtin_code",
	"_ywbc_barcode_value",
	"_ts_gtin",
	"_woo_upc",
	"_product_gtin",
	"_gtin",
	"_upc",
	"_ean",
	"_isbn",
	"_barcode",
}
