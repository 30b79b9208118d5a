package repository_test

import (
	"context"
	"regexp"
	"testing"

	"sku-service/models"
	"sku-service/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostMetaFindMissingSKU(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewPostMetaRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT p.id FROM posts p WHERE p.post_status = $1 AND p.post_type = 'product_variation' AND NOT EXISTS`)).
		WithArgs(models.StatusPublish, 50, 100).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(301))

	got, err := repo.FindMissingSKU(context.Background(), models.ScopeVariations, 50, 100)
	assert.NoError(t, err)
	assert.Equal(t, []int64{301}, got)
}

func TestPostMetaLoad_ReadsSKUAndTypeFromMeta(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewPostMetaRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, post_title, post_name, post_status, post_type, post_parent FROM posts`)).
		WithArgs(int64(7), models.StatusPublish, "product", "product_variation").
		WillReturnRows(sqlmock.NewRows([]string{"id", "post_title", "post_name", "post_status", "post_type", "post_parent"}).
			AddRow(7, "Mug", "mug", "publish", "product", 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT meta_key, meta_value FROM postmeta`)).
		WillReturnRows(sqlmock.NewRows([]string{"meta_key", "meta_value"}).
			AddRow("_sku", "MUG-1").
			AddRow("_product_type", "variable").
			AddRow("_upc", "").
			AddRow("_woo_upc", "012345678905"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT slug FROM product_categories`)).
		WillReturnRows(sqlmock.NewRows([]string{"slug"}))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM posts WHERE post_parent = $1`)).
		WithArgs(int64(7), "product_variation", models.StatusPublish).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(8))

	p, err := repo.Load(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Mug", p.Name)
	assert.Equal(t, "MUG-1", p.SKU)
	assert.Equal(t, models.ProductVariable, p.Type)
	assert.Equal(t, []int64{8}, p.Children)
	assert.Equal(t, map[string]string{"_woo_upc": "012345678905"}, p.Meta)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostMetaSave_ClearsSKU(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewPostMetaRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM postmeta WHERE post_id = $1 AND meta_key = $2`)).
		WithArgs(int64(7), "_sku").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	assert.NoError(t, repo.Save(context.Background(), &models.Product{ID: 7}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostMetaSave_DuplicateSKU(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewPostMetaRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM postmeta`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO postmeta (post_id, meta_key, meta_value)`)).
		WithArgs(int64(7), "_sku", "MUG-1").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.Save(context.Background(), &models.Product{ID: 7, SKU: "MUG-1"})
	assert.ErrorIs(t, err, assert.AnError)
	assert.NotErrorIs(t, err, repository.ErrDuplicateSKU)
}

func TestPostMetaClearEmptySKUs(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewPostMetaRepository(gormDB)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM postmeta WHERE meta_key = $1 AND TRIM(meta_value) = ''`)).
		WithArgs("_sku").
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.ClearEmptySKUs(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestProbe(t *testing.T) {
	probeQuery := regexp.QuoteMeta(`SELECT COUNT(*) FROM information_schema.tables`)

	t.Run("lookup schema", func(t *testing.T) {
		gormDB, mock := setupMockDB(t)
		mock.ExpectQuery(probeQuery).WithArgs("product_meta_lookup").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		repo, err := repository.Probe(context.Background(), gormDB)
		require.NoError(t, err)
		assert.Equal(t, "lookup", repo.Kind())
	})

	t.Run("postmeta schema", func(t *testing.T) {
		gormDB, mock := setupMockDB(t)
		mock.ExpectQuery(probeQuery).WithArgs("product_meta_lookup").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery(probeQuery).WithArgs("posts").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		repo, err := repository.Probe(context.Background(), gormDB)
		require.NoError(t, err)
		assert.Equal(t, "postmeta", repo.Kind())
	})

	t.Run("no schema", func(t *testing.T) {
		gormDB, mock := setupMockDB(t)
		mock.ExpectQuery(probeQuery).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery(probeQuery).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

		_, err := repository.Probe(context.Background(), gormDB)
		assert.ErrorIs(t, err, repository.ErrNoSchema)
	})
}

func TestGormOptionsRepository(t *testing.T) {
	t.Run("defaults when absent", func(t *testing.T) {
		gormDB, mock := setupMockDB(t)
		repo := repository.NewGormOptionsRepository(gormDB)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT option_name, option_value FROM options`)).
			WithArgs(repository.OptionsKey).
			WillReturnRows(sqlmock.NewRows([]string{"option_name", "option_value"}))

		opts, err := repo.Get(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, models.DefaultOptions(), opts)
	})

	t.Run("stored values are re-clamped", func(t *testing.T) {
		gormDB, mock := setupMockDB(t)
		repo := repository.NewGormOptionsRepository(gormDB)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT option_name, option_value FROM options`)).
			WillReturnRows(sqlmock.NewRows([]string{"option_name", "option_value"}).
				AddRow(repository.OptionsKey, `{"prefix":"A B!","pattern_length":99,"separator":"."}`))

		opts, err := repo.Get(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "AB", opts.Prefix)
		assert.Equal(t, 32, opts.PatternLength)
		assert.Equal(t, "-", opts.Separator)
		assert.Equal(t, models.PatternAlphanumeric, opts.PatternType)
	})

	t.Run("save upserts", func(t *testing.T) {
		gormDB, mock := setupMockDB(t)
		repo := repository.NewGormOptionsRepository(gormDB)
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO options (option_name, option_value)`)).
			WithArgs(repository.OptionsKey, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.Save(context.Background(), models.DefaultOptions()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
