package repository_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"sku-service/models"
	"sku-service/repository"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDynamo keeps items in memory and understands the update expressions
// the adapter issues.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
}

func newFakeDynamo(t *testing.T, items ...map[string]interface{}) *fakeDynamo {
	t.Helper()
	f := &fakeDynamo{items: map[string]map[string]types.AttributeValue{}}
	for _, it := range items {
		av, err := attributevalue.MarshalMap(it)
		require.NoError(t, err)
		f.items[keyOf(av)] = av
	}
	return f
}

func keyOf(item map[string]types.AttributeValue) string {
	for _, name := range []string{"product_id", "option_name"} {
		switch v := item[name].(type) {
		case *types.AttributeValueMemberN:
			return v.Value
		case *types.AttributeValueMemberS:
			return v.Value
		}
	}
	return ""
}

func (f *fakeDynamo) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &dynamodb.ScanOutput{}
	for _, it := range f.items {
		out.Items = append(out.Items, it)
	}
	return out, nil
}

func (f *fakeDynamo) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.items[keyOf(in.Key)]}, nil
}

func (f *fakeDynamo) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[keyOf(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[keyOf(in.Key)]
	if !ok {
		if in.ConditionExpression != nil {
			return nil, &types.ConditionalCheckFailedException{}
		}
		return &dynamodb.UpdateItemOutput{}, nil
	}
	expr := *in.UpdateExpression
	removed := ""
	if i := strings.Index(expr, "REMOVE "); i >= 0 {
		removed = expr[i+len("REMOVE "):]
	}
	for _, attr := range []string{"sku", "#meta"} {
		if strings.Contains(removed, attr) {
			delete(item, strings.TrimPrefix(attr, "#"))
		}
	}
	if v, ok := in.ExpressionAttributeValues[":sku"]; ok {
		item["sku"] = v
	}
	if v, ok := in.ExpressionAttributeValues[":meta"]; ok {
		item["meta"] = v
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeDynamo) DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return &dynamodb.DescribeTableOutput{}, nil
}

func product(id int64, typ, sku string) map[string]interface{} {
	it := map[string]interface{}{"product_id": id, "name": "p", "slug": "p", "status": "publish", "type": typ}
	if sku != "" {
		it["sku"] = sku
	}
	return it
}

func TestDynamoFindMissingSKU_OrderedByID(t *testing.T) {
	fake := newFakeDynamo(t,
		product(30, "simple", ""),
		product(10, "simple", ""),
		product(20, "simple", "HAS"),
		product(40, "variation", ""),
		map[string]interface{}{"product_id": 5, "status": "draft", "type": "simple"},
	)
	repo := repository.NewDynamoAdapter(fake, "products")

	got, err := repo.FindMissingSKU(context.Background(), models.ScopeProducts, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 30}, got)

	got, err = repo.FindMissingSKU(context.Background(), models.ScopeProducts, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{30}, got)

	n, err := repo.CountMissingSKU(context.Background(), models.ScopeVariations)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestDynamoLoad_ChildrenInMenuOrder(t *testing.T) {
	parent := product(1, "variable", "P1")
	parent["categories"] = []string{"hats"}
	c1 := product(2, "variation", "")
	c1["parent_id"], c1["menu_order"] = 1, 2
	c2 := product(3, "variation", "")
	c2["parent_id"], c2["menu_order"] = 1, 1

	repo := repository.NewDynamoAdapter(newFakeDynamo(t, parent, c1, c2), "products")

	p, err := repo.Load(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "P1", p.SKU)
	assert.Equal(t, []string{"hats"}, p.Categories)
	assert.Equal(t, []int64{3, 2}, p.Children)

	_, err = repo.Load(context.Background(), 99)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDynamoSave_MergesMeta(t *testing.T) {
	it := product(1, "simple", "")
	it["meta"] = map[string]string{"_internal": "keep", "_ean": "old"}
	fake := newFakeDynamo(t, it)
	repo := repository.NewDynamoAdapter(fake, "products")

	err := repo.Save(context.Background(), &models.Product{ID: 1, SKU: "NEW-1", Meta: map[string]string{"_ean": "", "_gtin": "NEW-1"}})
	require.NoError(t, err)

	p, err := repo.Load(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "NEW-1", p.SKU)
	assert.Equal(t, map[string]string{"_gtin": "NEW-1"}, p.Meta)

	var raw map[string]interface{}
	require.NoError(t, attributevalue.UnmarshalMap(fake.items["1"], &raw))
	assert.Equal(t, "keep", raw["meta"].(map[string]interface{})["_internal"])
}

func TestDynamoSave_MissingItem(t *testing.T) {
	repo := repository.NewDynamoAdapter(newFakeDynamo(t), "products")
	err := repo.Save(context.Background(), &models.Product{ID: 404, SKU: "X-1"})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDynamoClearEmptySKUs_Idempotent(t *testing.T) {
	repo := repository.NewDynamoAdapter(newFakeDynamo(t,
		product(1, "simple", "   "),
		product(2, "simple", "OK-1"),
	), "products")

	n, err := repo.ClearEmptySKUs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.ClearEmptySKUs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestDynamoSKUOwnerAndDuplicates(t *testing.T) {
	repo := repository.NewDynamoAdapter(newFakeDynamo(t,
		product(1, "simple", "X"),
		product(2, "simple", "X"),
		product(3, "simple", "Y"),
	), "products")

	owner, ok, err := repo.SKUOwner(context.Background(), "X", 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(2), owner)

	dups, err := repo.DuplicateSKUs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string][]int64{"X": {1, 2}}, dups)
}

func TestDynamoOptionsRepository(t *testing.T) {
	repo := repository.NewDynamoOptionsRepository(newFakeDynamo(t), "options")

	opts, err := repo.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.DefaultOptions(), opts)

	opts.Prefix = "SHOP"
	opts.PatternType = models.PatternNumeric
	require.NoError(t, repo.Save(context.Background(), opts))

	got, err := repo.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "SHOP", got.Prefix)
	assert.Equal(t, models.PatternNumeric, got.PatternType)
}
