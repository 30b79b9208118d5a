package repository

import (
	"context"
	"fmt"

	"sku-service/models"

	"gorm.io/gorm"
)

// LookupRepository serves the flat schema: one products table holding both
// products and variations, with SKUs in product_meta_lookup.
type LookupRepository struct {
	db *gorm.DB
}

// NewLookupRepository creates a ProductRepo over the lookup schema.
func NewLookupRepository(db *gorm.DB) *LookupRepository {
	return &LookupRepository{db: db}
}

const (
	lookupFrom    = `FROM products p LEFT JOIN product_meta_lookup l ON l.product_id = p.id`
	lookupHasSKU  = `(l.sku IS NOT NULL AND TRIM(l.sku) <> '')`
	lookupMissing = `(l.sku IS NULL OR TRIM(l.sku) = '')`
)

func lookupScope(scope models.Scope) string {
	if scope == models.ScopeVariations {
		return `p.type = 'variation'`
	}
	return `p.type <> 'variation'`
}

func (r *LookupRepository) Kind() string { return "lookup" }

func (r *LookupRepository) pageIDs(ctx context.Context, where string, limit, offset int) ([]int64, error) {
	var rows []idRow
	q := `SELECT p.id ` + lookupFrom + ` WHERE p.status = ? AND ` + where + ` ORDER BY p.id ASC LIMIT ? OFFSET ?`
	if err := r.db.WithContext(ctx).Raw(q, models.StatusPublish, limit, offset).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return ids(rows), nil
}

func (r *LookupRepository) count(ctx context.Context, where string) (int64, error) {
	var n int64
	q := `SELECT COUNT(*) ` + lookupFrom + ` WHERE p.status = ? AND ` + where
	if err := r.db.WithContext(ctx).Raw(q, models.StatusPublish).Scan(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *LookupRepository) FindMissingSKU(ctx context.Context, scope models.Scope, limit, offset int) ([]int64, error) {
	return r.pageIDs(ctx, lookupScope(scope)+` AND `+lookupMissing, limit, offset)
}

func (r *LookupRepository) CountMissingSKU(ctx context.Context, scope models.Scope) (int64, error) {
	return r.count(ctx, lookupScope(scope)+` AND `+lookupMissing)
}

func (r *LookupRepository) FindWithSKU(ctx context.Context, limit, offset int) ([]int64, error) {
	return r.pageIDs(ctx, lookupScope(models.ScopeProducts)+` AND `+lookupHasSKU, limit, offset)
}

func (r *LookupRepository) CountWithSKU(ctx context.Context) (int64, error) {
	return r.count(ctx, lookupScope(models.ScopeProducts)+` AND `+lookupHasSKU)
}

func (r *LookupRepository) FindAll(ctx context.Context, limit, offset int) ([]int64, error) {
	return r.pageIDs(ctx, lookupScope(models.ScopeProducts), limit, offset)
}

func (r *LookupRepository) CountAll(ctx context.Context) (int64, error) {
	return r.count(ctx, lookupScope(models.ScopeProducts))
}

func (r *LookupRepository) Load(ctx context.Context, id int64) (*models.Product, error) {
	db := r.db.WithContext(ctx)

	var rows []productRow
	if err := db.Raw(`SELECT p.id, p.name, p.slug, p.status, p.type, p.parent_id, COALESCE(l.sku, '') AS sku `+
		lookupFrom+` WHERE p.id = ? AND p.status = ?`, id, models.StatusPublish).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	row := rows[0]
	p := &models.Product{
		ID:       row.ID,
		Name:     row.Name,
		Slug:     row.Slug,
		Status:   row.Status,
		Type:     models.ProductType(row.Type),
		ParentID: row.ParentID,
		SKU:      row.SKU,
	}

	if err := db.Raw(`SELECT slug FROM product_categories WHERE product_id = ? ORDER BY position ASC, slug ASC`, id).
		Scan(&p.Categories).Error; err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}

	if p.IsVariable() {
		var children []idRow
		if err := db.Raw(`SELECT id FROM products WHERE parent_id = ? AND type = 'variation' AND status = ? ORDER BY menu_order ASC, id ASC`,
			id, models.StatusPublish).Scan(&children).Error; err != nil {
			return nil, fmt.Errorf("load children: %w", err)
		}
		p.Children = ids(children)
	}

	var meta []metaRow
	if err := db.Raw(`SELECT meta_key, meta_value FROM product_meta WHERE product_id = ? AND meta_key IN ? AND meta_value <> ''`,
		id, GTINKeys).Scan(&meta).Error; err != nil {
		return nil, fmt.Errorf("load meta: %w", err)
	}
	for _, m := range meta {
		p.SetMeta(m.MetaKey, m.MetaValue)
	}
	return p, nil
}

func (r *LookupRepository) Save(ctx context.Context, p *models.Product) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`INSERT INTO product_meta_lookup (product_id, sku) VALUES (?, ?) ON CONFLICT (product_id) DO UPDATE SET sku = EXCLUDED.sku`,
			p.ID, nullable(p.SKU)).Error; err != nil {
			return err
		}
		for _, key := range sortedKeys(p.Meta) {
			if err := tx.Exec(`DELETE FROM product_meta WHERE product_id = ? AND meta_key = ?`, p.ID, key).Error; err != nil {
				return err
			}
			if value := p.Meta[key]; value != "" {
				if err := tx.Exec(`INSERT INTO product_meta (product_id, meta_key, meta_value) VALUES (?, ?, ?)`,
					p.ID, key, value).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	return translateWriteErr(err)
}

// SKUOwner matches across every status so drafts keep their SKUs reserved.
func (r *LookupRepository) SKUOwner(ctx context.Context, sku string, excludeID int64) (int64, bool, error) {
	var rows []idRow
	if err := r.db.WithContext(ctx).Raw(`SELECT product_id AS id FROM product_meta_lookup WHERE sku = ? AND product_id <> ? ORDER BY product_id ASC LIMIT 1`,
		sku, excludeID).Scan(&rows).Error; err != nil {
		return 0, false, err
	}
	if len(rows) == 0 {
		return 0, false, nil
	}
	return rows[0].ID, true, nil
}

// ClearEmptySKUs nulls whitespace-only SKUs. Rows already NULL are not
// touched, so a second run affects nothing.
func (r *LookupRepository) ClearEmptySKUs(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Exec(`UPDATE product_meta_lookup SET sku = NULL WHERE sku IS NOT NULL AND TRIM(sku) = ''`)
	return res.RowsAffected, res.Error
}

type statsRow struct {
	ProductsTotal     int64 `gorm:"column:products_total"`
	ProductsWithSKU   int64 `gorm:"column:products_with_sku"`
	VariationsTotal   int64 `gorm:"column:variations_total"`
	VariationsWithSKU int64 `gorm:"column:variations_with_sku"`
}

func (r *LookupRepository) Statistics(ctx context.Context) (*models.Statistics, error) {
	var row statsRow
	q := `SELECT ` +
		`COUNT(*) FILTER (WHERE p.type <> 'variation') AS products_total, ` +
		`COUNT(*) FILTER (WHERE p.type <> 'variation' AND ` + lookupHasSKU + `) AS products_with_sku, ` +
		`COUNT(*) FILTER (WHERE p.type = 'variation') AS variations_total, ` +
		`COUNT(*) FILTER (WHERE p.type = 'variation' AND ` + lookupHasSKU + `) AS variations_with_sku ` +
		lookupFrom + ` WHERE p.status = ?`
	if err := r.db.WithContext(ctx).Raw(q, models.StatusPublish).Scan(&row).Error; err != nil {
		return nil, err
	}
	stats := models.NewStatistics(row.ProductsTotal, row.ProductsWithSKU, row.VariationsTotal, row.VariationsWithSKU)
	return &stats, nil
}

func (r *LookupRepository) DuplicateSKUs(ctx context.Context) (map[string][]int64, error) {
	var rows []skuOwnerRow
	q := `SELECT l.sku, l.product_id FROM product_meta_lookup l JOIN products p ON p.id = l.product_id ` +
		`WHERE p.status = ? AND l.sku IN (SELECT sku FROM product_meta_lookup WHERE sku IS NOT NULL AND sku <> '' GROUP BY sku HAVING COUNT(*) > 1) ` +
		`ORDER BY l.sku ASC, l.product_id ASC`
	if err := r.db.WithContext(ctx).Raw(q, models.StatusPublish).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return groupOwners(rows), nil
}

func (r *LookupRepository) GTINUsage(ctx context.Context, keys []string) (map[string]int64, error) {
	var rows []keyCountRow
	if err := r.db.WithContext(ctx).Raw(`SELECT meta_key, COUNT(DISTINCT product_id) AS count FROM product_meta WHERE meta_key IN ? AND meta_value <> '' GROUP BY meta_key`,
		keys).Scan(&rows).Error; err != nil {
		return nil, err
	}
	usage := make(map[string]int64, len(rows))
	for _, row := range rows {
		usage[row.MetaKey] = row.Count
	}
	return usage, nil
}

func (r *LookupRepository) Sample(ctx context.Context, n int) ([]models.ProductSample, error) {
	var rows []productRow
	if err := r.db.WithContext(ctx).Raw(`SELECT p.id, p.name, p.type, COALESCE(l.sku, '') AS sku `+lookupFrom+
		` WHERE p.status = ? AND p.type <> 'variation' ORDER BY p.id ASC LIMIT ?`, models.StatusPublish, n).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return samples(rows), nil
}

func samples(rows []productRow) []models.ProductSample {
	out := make([]models.ProductSample, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.ProductSample{ID: row.ID, Name: row.Name, SKU: row.SKU, Type: models.ProductType(row.Type)})
	}
	return out
}
