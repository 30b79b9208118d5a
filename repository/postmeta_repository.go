package repository

import (
	"context"
	"fmt"

	"sku-service/models"

	"gorm.io/gorm"
)

// Meta keys used by the legacy key/value schema.
const (
	MetaSKU         = "_sku"
	MetaProductType = "_product_type"

	postTypeProduct   = "product"
	postTypeVariation = "product_variation"
)

// PostMetaRepository serves the legacy schema where products are rows of
// posts and every attribute, SKU included, lives in postmeta.
type PostMetaRepository struct {
	db *gorm.DB
}

// NewPostMetaRepository creates a ProductRepo over the posts/postmeta schema.
func NewPostMetaRepository(db *gorm.DB) *PostMetaRepository {
	return &PostMetaRepository{db: db}
}

const (
	postHasSKU = `EXISTS (SELECT 1 FROM postmeta m WHERE m.post_id = p.id AND m.meta_key = '_sku' AND TRIM(m.meta_value) <> '')`
	postNoSKU  = `NOT ` + postHasSKU
)

func postScope(scope models.Scope) string {
	if scope == models.ScopeVariations {
		return `p.post_type = '` + postTypeVariation + `'`
	}
	return `p.post_type = '` + postTypeProduct + `'`
}

func (r *PostMetaRepository) Kind() string { return "postmeta" }

func (r *PostMetaRepository) pageIDs(ctx context.Context, where string, limit, offset int) ([]int64, error) {
	var rows []idRow
	q := `SELECT p.id FROM posts p WHERE p.post_status = ? AND ` + where + ` ORDER BY p.id ASC LIMIT ? OFFSET ?`
	if err := r.db.WithContext(ctx).Raw(q, models.StatusPublish, limit, offset).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return ids(rows), nil
}

func (r *PostMetaRepository) count(ctx context.Context, where string) (int64, error) {
	var n int64
	q := `SELECT COUNT(*) FROM posts p WHERE p.post_status = ? AND ` + where
	if err := r.db.WithContext(ctx).Raw(q, models.StatusPublish).Scan(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *PostMetaRepository) FindMissingSKU(ctx context.Context, scope models.Scope, limit, offset int) ([]int64, error) {
	return r.pageIDs(ctx, postScope(scope)+` AND `+postNoSKU, limit, offset)
}

func (r *PostMetaRepository) CountMissingSKU(ctx context.Context, scope models.Scope) (int64, error) {
	return r.count(ctx, postScope(scope)+` AND `+postNoSKU)
}

func (r *PostMetaRepository) FindWithSKU(ctx context.Context, limit, offset int) ([]int64, error) {
	return r.pageIDs(ctx, postScope(models.ScopeProducts)+` AND `+postHasSKU, limit, offset)
}

func (r *PostMetaRepository) CountWithSKU(ctx context.Context) (int64, error) {
	return r.count(ctx, postScope(models.ScopeProducts)+` AND `+postHasSKU)
}

func (r *PostMetaRepository) FindAll(ctx context.Context, limit, offset int) ([]int64, error) {
	return r.pageIDs(ctx, postScope(models.ScopeProducts), limit, offset)
}

func (r *PostMetaRepository) CountAll(ctx context.Context) (int64, error) {
	return r.count(ctx, postScope(models.ScopeProducts))
}

func (r *PostMetaRepository) Load(ctx context.Context, id int64) (*models.Product, error) {
	db := r.db.WithContext(ctx)

	var posts []post
	if err := db.Raw(`SELECT id, post_title, post_name, post_status, post_type, post_parent FROM posts WHERE id = ? AND post_status = ? AND post_type IN (?, ?)`,
		id, models.StatusPublish, postTypeProduct, postTypeVariation).Scan(&posts).Error; err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, ErrNotFound
	}
	row := posts[0]
	p := &models.Product{
		ID:       row.ID,
		Name:     row.PostTitle,
		Slug:     row.PostName,
		Status:   row.PostStatus,
		Type:     models.ProductSimple,
		ParentID: row.PostParent,
	}

	keys := append([]string{MetaSKU, MetaProductType}, GTINKeys...)
	var meta []metaRow
	if err := db.Raw(`SELECT meta_key, meta_value FROM postmeta WHERE post_id = ? AND meta_key IN ? ORDER BY meta_id ASC`, id, keys).
		Scan(&meta).Error; err != nil {
		return nil, fmt.Errorf("load meta: %w", err)
	}
	for _, m := range meta {
		switch m.MetaKey {
		case MetaSKU:
			p.SKU = m.MetaValue
		case MetaProductType:
			if m.MetaValue != "" {
				p.Type = models.ProductType(m.MetaValue)
			}
		default:
			if m.MetaValue != "" {
				p.SetMeta(m.MetaKey, m.MetaValue)
			}
		}
	}
	if row.PostType == postTypeVariation {
		p.Type = models.ProductVariation
	}

	if err := db.Raw(`SELECT slug FROM product_categories WHERE product_id = ? ORDER BY position ASC, slug ASC`, id).
		Scan(&p.Categories).Error; err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}

	if p.IsVariable() {
		var children []idRow
		if err := db.Raw(`SELECT id FROM posts WHERE post_parent = ? AND post_type = ? AND post_status = ? ORDER BY menu_order ASC, id ASC`,
			id, postTypeVariation, models.StatusPublish).Scan(&children).Error; err != nil {
			return nil, fmt.Errorf("load children: %w", err)
		}
		p.Children = ids(children)
	}
	return p, nil
}

// Save rewrites the _sku row and every GTIN key present on p.
func (r *PostMetaRepository) Save(ctx context.Context, p *models.Product) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.replaceMeta(tx, p.ID, MetaSKU, p.SKU); err != nil {
			return err
		}
		for _, key := range sortedKeys(p.Meta) {
			if err := r.replaceMeta(tx, p.ID, key, p.Meta[key]); err != nil {
				return err
			}
		}
		return nil
	})
	return translateWriteErr(err)
}

func (r *PostMetaRepository) replaceMeta(tx *gorm.DB, postID int64, key, value string) error {
	if err := tx.Exec(`DELETE FROM postmeta WHERE post_id = ? AND meta_key = ?`, postID, key).Error; err != nil {
		return err
	}
	if value == "" {
		return nil
	}
	return tx.Exec(`INSERT INTO postmeta (post_id, meta_key, meta_value) VALUES (?, ?, ?)`, postID, key, value).Error
}

func (r *PostMetaRepository) SKUOwner(ctx context.Context, sku string, excludeID int64) (int64, bool, error) {
	var rows []idRow
	if err := r.db.WithContext(ctx).Raw(`SELECT post_id AS id FROM postmeta WHERE meta_key = ? AND meta_value = ? AND post_id <> ? ORDER BY post_id ASC LIMIT 1`,
		MetaSKU, sku, excludeID).Scan(&rows).Error; err != nil {
		return 0, false, err
	}
	if len(rows) == 0 {
		return 0, false, nil
	}
	return rows[0].ID, true, nil
}

// ClearEmptySKUs deletes blank _sku rows.
func (r *PostMetaRepository) ClearEmptySKUs(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Exec(`DELETE FROM postmeta WHERE meta_key = ? AND TRIM(meta_value) = ''`, MetaSKU)
	return res.RowsAffected, res.Error
}

func (r *PostMetaRepository) Statistics(ctx context.Context) (*models.Statistics, error) {
	var row statsRow
	q := `SELECT ` +
		`COUNT(*) FILTER (WHERE ` + postScope(models.ScopeProducts) + `) AS products_total, ` +
		`COUNT(*) FILTER (WHERE ` + postScope(models.ScopeProducts) + ` AND ` + postHasSKU + `) AS products_with_sku, ` +
		`COUNT(*) FILTER (WHERE ` + postScope(models.ScopeVariations) + `) AS variations_total, ` +
		`COUNT(*) FILTER (WHERE ` + postScope(models.ScopeVariations) + ` AND ` + postHasSKU + `) AS variations_with_sku ` +
		`FROM posts p WHERE p.post_status = ?`
	if err := r.db.WithContext(ctx).Raw(q, models.StatusPublish).Scan(&row).Error; err != nil {
		return nil, err
	}
	stats := models.NewStatistics(row.ProductsTotal, row.ProductsWithSKU, row.VariationsTotal, row.VariationsWithSKU)
	return &stats, nil
}

func (r *PostMetaRepository) DuplicateSKUs(ctx context.Context) (map[string][]int64, error) {
	var rows []skuOwnerRow
	q := `SELECT m.meta_value AS sku, m.post_id AS product_id FROM postmeta m JOIN posts p ON p.id = m.post_id ` +
		`WHERE m.meta_key = '_sku' AND p.post_status = ? ` +
		`AND m.meta_value IN (SELECT meta_value FROM postmeta WHERE meta_key = '_sku' AND meta_value <> '' GROUP BY meta_value HAVING COUNT(*) > 1) ` +
		`ORDER BY m.meta_value ASC, m.post_id ASC`
	if err := r.db.WithContext(ctx).Raw(q, models.StatusPublish).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return groupOwners(rows), nil
}

func (r *PostMetaRepository) GTINUsage(ctx context.Context, keys []string) (map[string]int64, error) {
	var rows []keyCountRow
	if err := r.db.WithContext(ctx).Raw(`SELECT meta_key, COUNT(DISTINCT post_id) AS count FROM postmeta WHERE meta_key IN ? AND meta_value <> '' GROUP BY meta_key`,
		keys).Scan(&rows).Error; err != nil {
		return nil, err
	}
	usage := make(map[string]int64, len(rows))
	for _, row := range rows {
		usage[row.MetaKey] = row.Count
	}
	return usage, nil
}

func (r *PostMetaRepository) Sample(ctx context.Context, n int) ([]models.ProductSample, error) {
	var rows []productRow
	q := `SELECT p.id, p.post_title AS name, COALESCE(t.meta_value, 'simple') AS type, COALESCE(s.meta_value, '') AS sku FROM posts p ` +
		`LEFT JOIN postmeta s ON s.post_id = p.id AND s.meta_key = '_sku' ` +
		`LEFT JOIN postmeta t ON t.post_id = p.id AND t.meta_key = '_product_type' ` +
		`WHERE p.post_status = ? AND ` + postScope(models.ScopeProducts) + ` ORDER BY p.id ASC LIMIT ?`
	if err := r.db.WithContext(ctx).Raw(q, models.StatusPublish, n).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return samples(rows), nil
}
