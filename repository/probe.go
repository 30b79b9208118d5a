package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrNoSchema is returned by Probe when neither relational schema is present.
var ErrNoSchema = errors.New("no supported product schema found")

// Probe inspects the connected database and returns the matching adapter.
// The lookup table wins when both schemas are present.
func Probe(ctx context.Context, db *gorm.DB) (ProductRepo, error) {
	hasLookup, err := tableExists(ctx, db, "product_meta_lookup")
	if err != nil {
		return nil, fmt.Errorf("probe product_meta_lookup: %w", err)
	}
	if hasLookup {
		return NewLookupRepository(db), nil
	}

	hasPosts, err := tableExists(ctx, db, "posts")
	if err != nil {
		return nil, fmt.Errorf("probe posts: %w", err)
	}
	if hasPosts {
		return NewPostMetaRepository(db), nil
	}
	return nil, ErrNoSchema
}

func tableExists(ctx context.Context, db *gorm.DB, table string) (bool, error) {
	var n int64
	if err := db.WithContext(ctx).
		Raw(`SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = CURRENT_SCHEMA() AND table_name = ?`, table).
		Scan(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
