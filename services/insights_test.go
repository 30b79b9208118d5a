package services

import (
	"context"
	"testing"

	"sku-service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckSKU(t *testing.T) {
	repo := newMockRepo(
		&models.Product{ID: 1, SKU: "TAKEN-1"},
		&models.Product{ID: 2, SKU: "DRAFT-1", Status: "draft"},
	)
	env := newTestEnv(t, repo, models.DefaultOptions(), 10)
	ctx := context.Background()

	check, err := env.svc.CheckSKU(ctx, "TAKEN-1", 0)
	require.NoError(t, err)
	assert.True(t, check.Format.Valid)
	assert.False(t, check.Unique)
	assert.Equal(t, int64(1), check.ExistingProduct)

	check, err = env.svc.CheckSKU(ctx, "TAKEN-1", 1)
	require.NoError(t, err)
	assert.True(t, check.Unique)

	check, err = env.svc.CheckSKU(ctx, "DRAFT-1", 0)
	require.NoError(t, err)
	assert.False(t, check.Unique)

	check, err = env.svc.CheckSKU(ctx, "a b", 0)
	require.NoError(t, err)
	assert.False(t, check.Format.Valid)
	assert.True(t, check.Unique)
}

func TestStatisticsAndDiagnostics(t *testing.T) {
	repo := newMockRepo(
		&models.Product{ID: 1, Name: "A", SKU: "A-1", Meta: map[string]string{"_ean": "A-1"}},
		&models.Product{ID: 2, Name: "B"},
		&models.Product{ID: 3, Name: "C", Type: models.ProductVariation, ParentID: 1, SKU: "A-1-1"},
	)
	opts := models.DefaultOptions()
	opts.Prefix = "A"
	env := newTestEnv(t, repo, opts, 10)
	ctx := context.Background()

	stats, err := env.svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.ProductsTotal)
	assert.Equal(t, int64(1), stats.ProductsWithoutSKU)
	assert.Equal(t, int64(1), stats.VariationsWithSKU)
	assert.Equal(t, 66.7, stats.CoveragePercent)

	diag, err := env.svc.Diagnostics(ctx)
	require.NoError(t, err)
	assert.Equal(t, "mock", diag.StoreKind)
	assert.Equal(t, int64(3), diag.TotalProducts)
	assert.Len(t, diag.Samples, 3)
	assert.Equal(t, int64(1), diag.GTINUsage["_ean"])
	assert.Equal(t, "A", diag.Options.Prefix)
	assert.Equal(t, *stats, diag.Statistics)
}

func TestSaveOptions_Sanitizes(t *testing.T) {
	env := newTestEnv(t, newMockRepo(), models.DefaultOptions(), 10)

	saved, err := env.svc.SaveOptions(context.Background(), models.Options{
		Prefix:        "my prefix!",
		PatternType:   "emoji",
		PatternLength: 99,
		Separator:     "/",
		CategoryChars: 9,
		DateFormat:    "dd/mm",
	})
	require.NoError(t, err)

	assert.Equal(t, "myprefix", saved.Prefix)
	assert.Equal(t, models.PatternAlphanumeric, saved.PatternType)
	assert.Equal(t, models.MaxPatternLength, saved.PatternLength)
	assert.Equal(t, "-", saved.Separator)
	assert.Equal(t, models.MaxCategoryChars, saved.CategoryChars)
	assert.Equal(t, models.DateYmd, saved.DateFormat)
	assert.Equal(t, saved, env.options.opts)

	got, err := env.svc.GetOptions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, saved, got)
}

func TestReadEndpoints_PermissionDenied(t *testing.T) {
	env := newTestEnv(t, newMockRepo(), models.DefaultOptions(), 10)
	env.svc.gate = denyAll{}
	ctx := context.Background()

	_, err := env.svc.Statistics(ctx)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	_, err = env.svc.Diagnostics(ctx)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	_, err = env.svc.CheckSKU(ctx, "X-1", 0)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	_, err = env.svc.SaveOptions(ctx, models.DefaultOptions())
	assert.ErrorIs(t, err, ErrPermissionDenied)
}
