package services

import (
	"context"
	"testing"

	"sku-service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupStep_RemoveEmptyIsIdempotent(t *testing.T) {
	repo := newMockRepo(
		&models.Product{ID: 1, SKU: "  "},
		&models.Product{ID: 2, SKU: "KEEP-1"},
		&models.Product{ID: 3, SKU: "\t"},
	)
	env := newTestEnv(t, repo, models.DefaultOptions(), 10)

	first, err := env.svc.CleanupStep(context.Background(), models.CleanupRemoveEmpty, 0)
	require.NoError(t, err)
	assert.True(t, first.Complete)
	assert.Equal(t, 2, first.ThisBatchCount)
	assert.Equal(t, "Cleaned up 2 empty SKU fields!", first.Message)

	second, err := env.svc.CleanupStep(context.Background(), models.CleanupRemoveEmpty, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, second.ThisBatchCount)
	assert.Equal(t, "KEEP-1", repo.products[2].SKU)

	require.Len(t, env.sns.published, 2)
	assert.Equal(t, models.OperationKind("cleanup_remove_empty"), env.sns.published[0].Operation)
	assert.Equal(t, "remove_empty", env.sns.published[0].Detail)
}

func TestCleanupStep_RemoveAll(t *testing.T) {
	repo := newMockRepo(
		&models.Product{ID: 1, SKU: "A-1"},
		&models.Product{ID: 2},
		&models.Product{ID: 3, SKU: "A-3"},
		&models.Product{ID: 4, SKU: "A-4"},
		&models.Product{ID: 5, SKU: "A-5", Type: models.ProductVariation, ParentID: 9},
	)
	env := newTestEnv(t, repo, models.DefaultOptions(), 2)

	reports := drive(t, func(offset int) (*models.ProgressReport, error) {
		return env.svc.CleanupStep(context.Background(), models.CleanupRemoveAll, offset)
	})

	last := reports[len(reports)-1]
	assert.Equal(t, 4, last.Processed)
	assert.Equal(t, "Removed SKUs from 4 products!", last.Message)
	for id, p := range repo.products {
		assert.Empty(t, p.SKU, "product %d", id)
	}
}

func TestCleanupStep_RemoveGenerated(t *testing.T) {
	opts := models.DefaultOptions()
	opts.Prefix = "GEN"
	repo := newMockRepo(
		&models.Product{ID: 1, SKU: "GEN-1234"},
		&models.Product{ID: 2, SKU: "MANUAL-7"},
		&models.Product{ID: 3, SKU: "GEN-5678"},
		&models.Product{ID: 4, SKU: "HANDMADE"},
		&models.Product{ID: 5, SKU: "GEN-9999"},
	)
	env := newTestEnv(t, repo, opts, 2)

	reports := drive(t, func(offset int) (*models.ProgressReport, error) {
		return env.svc.CleanupStep(context.Background(), models.CleanupRemoveGenerated, offset)
	})

	assert.Equal(t, "Removed 3 generated SKUs!", reports[len(reports)-1].Message)
	assert.Empty(t, repo.products[1].SKU)
	assert.Empty(t, repo.products[3].SKU)
	assert.Empty(t, repo.products[5].SKU)
	assert.Equal(t, "MANUAL-7", repo.products[2].SKU)
	assert.Equal(t, "HANDMADE", repo.products[4].SKU)
}

func TestCleanupStep_RemoveGTIN(t *testing.T) {
	repo := newMockRepo(
		&models.Product{ID: 1, SKU: "A-1", Meta: map[string]string{"_ean": "123", "_upc": "456"}},
		&models.Product{ID: 2},
		&models.Product{ID: 3, Meta: map[string]string{"_global_unique_id": "789"}},
	)
	env := newTestEnv(t, repo, models.DefaultOptions(), 2)

	reports := drive(t, func(offset int) (*models.ProgressReport, error) {
		return env.svc.CleanupStep(context.Background(), models.CleanupRemoveGTIN, offset)
	})

	assert.Len(t, reports, 2)
	assert.Equal(t, "Removed GTIN fields from 2 products!", reports[1].Message)
	assert.Empty(t, repo.products[1].Meta)
	assert.Empty(t, repo.products[3].Meta)
	assert.Equal(t, "A-1", repo.products[1].SKU)
}

func TestCleanupStep_UnknownKind(t *testing.T) {
	env := newTestEnv(t, newMockRepo(), models.DefaultOptions(), 2)

	_, err := env.svc.CleanupStep(context.Background(), models.CleanupKind("drop_tables"), 0)
	assert.ErrorIs(t, err, ErrUnknownCleanup)
}

func TestCleanupStep_PermissionDenied(t *testing.T) {
	repo := newMockRepo(&models.Product{ID: 1, SKU: " "})
	env := newTestEnv(t, repo, models.DefaultOptions(), 2)
	env.svc.gate = denyAll{}

	_, err := env.svc.CleanupStep(context.Background(), models.CleanupRemoveEmpty, 0)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, " ", repo.products[1].SKU)
}

func TestCopyToGTINStep(t *testing.T) {
	repo := newMockRepo(
		&models.Product{ID: 1, SKU: "A-1"},
		&models.Product{ID: 2, SKU: "A-2", Meta: map[string]string{"_ean": "old"}},
		&models.Product{ID: 3},
	)
	env := newTestEnv(t, repo, models.DefaultOptions(), 10)

	rep, err := env.svc.CopyToGTINStep(context.Background(), 0)
	require.NoError(t, err)

	assert.True(t, rep.Complete)
	assert.Equal(t, "Copied SKUs to GTIN fields for 2 products!", rep.Message)
	assert.Equal(t, "A-1", repo.products[1].GetMeta("_global_unique_id"))
	assert.Equal(t, "A-2", repo.products[2].GetMeta("_ean"))
	assert.Empty(t, repo.products[3].Meta)
}
