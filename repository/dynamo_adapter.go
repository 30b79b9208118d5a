package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"sku-service/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the subset of the DynamoDB client used by the adapters.
type DynamoAPI interface {
	dynamodb.ScanAPIClient
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// DynamoAdapter is a ProductRepo over a single DynamoDB table keyed by
// product_id (N). Products and variations share the table.
//
// DynamoDB has no secondary ordering or write-time uniqueness, so every query
// is a full Scan sorted by id in memory. Uniqueness is best effort through
// the oracle only.
type DynamoAdapter struct {
	client DynamoAPI
	table  string
}

func NewDynamoAdapter(client DynamoAPI, table string) *DynamoAdapter {
	return &DynamoAdapter{client: client, table: table}
}

type ddbProduct struct {
	ProductID  int64             `dynamodbav:"product_id"`
	Name       string            `dynamodbav:"name"`
	Slug       string            `dynamodbav:"slug"`
	Status     string            `dynamodbav:"status"`
	Type       string            `dynamodbav:"type"`
	ParentID   int64             `dynamodbav:"parent_id,omitempty"`
	MenuOrder  int               `dynamodbav:"menu_order,omitempty"`
	SKU        *string           `dynamodbav:"sku,omitempty"`
	Categories []string          `dynamodbav:"categories,omitempty"`
	Meta       map[string]string `dynamodbav:"meta,omitempty"`
}

func (dp ddbProduct) sku() string {
	if dp.SKU == nil {
		return ""
	}
	return *dp.SKU
}

func (dp ddbProduct) hasSKU() bool { return strings.TrimSpace(dp.sku()) != "" }

func (dp ddbProduct) published() bool { return dp.Status == models.StatusPublish }

func (dp ddbProduct) isVariation() bool { return dp.Type == string(models.ProductVariation) }

func (d *DynamoAdapter) Kind() string { return "dynamodb" }

// Ping checks that the table exists.
func (d *DynamoAdapter) Ping(ctx context.Context) error {
	if _, err := d.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(d.table)}); err != nil {
		return fmt.Errorf("describe table %s: %w", d.table, err)
	}
	return nil
}

// scanAll reads the whole table and returns items ordered by id.
func (d *DynamoAdapter) scanAll(ctx context.Context) ([]ddbProduct, error) {
	var items []ddbProduct
	paginator := dynamodb.NewScanPaginator(d.client, &dynamodb.ScanInput{TableName: aws.String(d.table)})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan page failed: %w", err)
		}
		var batch []ddbProduct
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal items: %w", err)
		}
		items = append(items, batch...)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })
	return items, nil
}

func (d *DynamoAdapter) filter(ctx context.Context, keep func(ddbProduct) bool) ([]ddbProduct, error) {
	items, err := d.scanAll(ctx)
	if err != nil {
		return nil, err
	}
	out := items[:0]
	for _, it := range items {
		if it.published() && keep(it) {
			out = append(out, it)
		}
	}
	return out, nil
}

func (d *DynamoAdapter) page(ctx context.Context, keep func(ddbProduct) bool, limit, offset int) ([]int64, error) {
	items, err := d.filter(ctx, keep)
	if err != nil {
		return nil, err
	}
	if offset >= len(items) {
		return []int64{}, nil
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]int64, 0, end-offset)
	for _, it := range items[offset:end] {
		out = append(out, it.ProductID)
	}
	return out, nil
}

func (d *DynamoAdapter) count(ctx context.Context, keep func(ddbProduct) bool) (int64, error) {
	items, err := d.filter(ctx, keep)
	if err != nil {
		return 0, err
	}
	return int64(len(items)), nil
}

func inScope(scope models.Scope) func(ddbProduct) bool {
	return func(it ddbProduct) bool {
		return it.isVariation() == (scope == models.ScopeVariations)
	}
}

func missingSKU(scope models.Scope) func(ddbProduct) bool {
	match := inScope(scope)
	return func(it ddbProduct) bool { return match(it) && !it.hasSKU() }
}

func productWithSKU(it ddbProduct) bool { return !it.isVariation() && it.hasSKU() }

func (d *DynamoAdapter) FindMissingSKU(ctx context.Context, scope models.Scope, limit, offset int) ([]int64, error) {
	return d.page(ctx, missingSKU(scope), limit, offset)
}

func (d *DynamoAdapter) CountMissingSKU(ctx context.Context, scope models.Scope) (int64, error) {
	return d.count(ctx, missingSKU(scope))
}

func (d *DynamoAdapter) FindWithSKU(ctx context.Context, limit, offset int) ([]int64, error) {
	return d.page(ctx, productWithSKU, limit, offset)
}

func (d *DynamoAdapter) CountWithSKU(ctx context.Context) (int64, error) {
	return d.count(ctx, productWithSKU)
}

func (d *DynamoAdapter) FindAll(ctx context.Context, limit, offset int) ([]int64, error) {
	return d.page(ctx, inScope(models.ScopeProducts), limit, offset)
}

func (d *DynamoAdapter) CountAll(ctx context.Context) (int64, error) {
	return d.count(ctx, inScope(models.ScopeProducts))
}

func productKey(id int64) (map[string]types.AttributeValue, error) {
	key, err := attributevalue.MarshalMap(map[string]int64{"product_id": id})
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}
	return key, nil
}

func (d *DynamoAdapter) Load(ctx context.Context, id int64) (*models.Product, error) {
	key, err := productKey(id)
	if err != nil {
		return nil, err
	}
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{TableName: aws.String(d.table), Key: key})
	if err != nil {
		return nil, fmt.Errorf("dynamodb GetItem failed: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var dp ddbProduct
	if err := attributevalue.UnmarshalMap(out.Item, &dp); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	if !dp.published() {
		return nil, ErrNotFound
	}

	p := &models.Product{
		ID:         dp.ProductID,
		Name:       dp.Name,
		Slug:       dp.Slug,
		Status:     dp.Status,
		Type:       models.ProductType(dp.Type),
		ParentID:   dp.ParentID,
		SKU:        dp.sku(),
		Categories: dp.Categories,
	}
	for _, k := range GTINKeys {
		if v := dp.Meta[k]; v != "" {
			p.SetMeta(k, v)
		}
	}

	if p.IsVariable() {
		children, err := d.filter(ctx, func(it ddbProduct) bool { return it.isVariation() && it.ParentID == id })
		if err != nil {
			return nil, fmt.Errorf("load children: %w", err)
		}
		sort.SliceStable(children, func(i, j int) bool { return children[i].MenuOrder < children[j].MenuOrder })
		for _, c := range children {
			p.Children = append(p.Children, c.ProductID)
		}
	}
	return p, nil
}

// Save writes sku and merges the GTIN keys of p into the stored meta map.
// Meta entries the adapter does not know about are preserved.
func (d *DynamoAdapter) Save(ctx context.Context, p *models.Product) error {
	key, err := productKey(p.ID)
	if err != nil {
		return err
	}
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:                aws.String(d.table),
		Key:                      key,
		ProjectionExpression:     aws.String("#meta"),
		ExpressionAttributeNames: map[string]string{"#meta": "meta"},
	})
	if err != nil {
		return fmt.Errorf("dynamodb GetItem failed: %w", err)
	}
	var current ddbProduct
	if err := attributevalue.UnmarshalMap(out.Item, &current); err != nil {
		return fmt.Errorf("unmarshal item: %w", err)
	}
	meta := current.Meta
	if meta == nil {
		meta = make(map[string]string)
	}
	for k, v := range p.Meta {
		if v == "" {
			delete(meta, k)
		} else {
			meta[k] = v
		}
	}

	values := map[string]types.AttributeValue{}
	var sets, removes []string
	if strings.TrimSpace(p.SKU) == "" {
		removes = append(removes, "sku")
	} else {
		sets = append(sets, "sku = :sku")
		values[":sku"] = &types.AttributeValueMemberS{Value: p.SKU}
	}
	if len(meta) == 0 {
		removes = append(removes, "#meta")
	} else {
		av, err := attributevalue.Marshal(meta)
		if err != nil {
			return fmt.Errorf("marshal meta: %w", err)
		}
		sets = append(sets, "#meta = :meta")
		values[":meta"] = av
	}

	var expr []string
	if len(sets) > 0 {
		expr = append(expr, "SET "+strings.Join(sets, ", "))
	}
	if len(removes) > 0 {
		expr = append(expr, "REMOVE "+strings.Join(removes, ", "))
	}
	input := &dynamodb.UpdateItemInput{
		TableName:                aws.String(d.table),
		Key:                      key,
		UpdateExpression:         aws.String(strings.Join(expr, " ")),
		ConditionExpression:      aws.String("attribute_exists(product_id)"),
		ExpressionAttributeNames: map[string]string{"#meta": "meta"},
	}
	if len(values) > 0 {
		input.ExpressionAttributeValues = values
	}

	_, err = d.client.UpdateItem(ctx, input)
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("dynamodb UpdateItem failed: %w", err)
	}
	return nil
}

func (d *DynamoAdapter) SKUOwner(ctx context.Context, sku string, excludeID int64) (int64, bool, error) {
	if sku == "" {
		return 0, false, nil
	}
	items, err := d.scanAll(ctx)
	if err != nil {
		return 0, false, err
	}
	for _, it := range items {
		if it.ProductID != excludeID && it.sku() == sku {
			return it.ProductID, true, nil
		}
	}
	return 0, false, nil
}

func (d *DynamoAdapter) ClearEmptySKUs(ctx context.Context) (int64, error) {
	items, err := d.scanAll(ctx)
	if err != nil {
		return 0, err
	}
	var affected int64
	for _, it := range items {
		if it.SKU == nil || it.hasSKU() {
			continue
		}
		key, err := productKey(it.ProductID)
		if err != nil {
			return affected, err
		}
		if _, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:        aws.String(d.table),
			Key:              key,
			UpdateExpression: aws.String("REMOVE sku"),
		}); err != nil {
			return affected, fmt.Errorf("dynamodb UpdateItem failed: %w", err)
		}
		affected++
	}
	return affected, nil
}

func (d *DynamoAdapter) Statistics(ctx context.Context) (*models.Statistics, error) {
	items, err := d.filter(ctx, func(ddbProduct) bool { return true })
	if err != nil {
		return nil, err
	}
	var pTotal, pWith, vTotal, vWith int64
	for _, it := range items {
		if it.isVariation() {
			vTotal++
			if it.hasSKU() {
				vWith++
			}
			continue
		}
		pTotal++
		if it.hasSKU() {
			pWith++
		}
	}
	stats := models.NewStatistics(pTotal, pWith, vTotal, vWith)
	return &stats, nil
}

func (d *DynamoAdapter) DuplicateSKUs(ctx context.Context) (map[string][]int64, error) {
	items, err := d.filter(ctx, func(it ddbProduct) bool { return it.hasSKU() })
	if err != nil {
		return nil, err
	}
	rows := make([]skuOwnerRow, 0, len(items))
	for _, it := range items {
		rows = append(rows, skuOwnerRow{SKU: it.sku(), ProductID: it.ProductID})
	}
	return groupOwners(rows), nil
}

func (d *DynamoAdapter) GTINUsage(ctx context.Context, keys []string) (map[string]int64, error) {
	items, err := d.filter(ctx, func(ddbProduct) bool { return true })
	if err != nil {
		return nil, err
	}
	usage := make(map[string]int64)
	for _, it := range items {
		for _, k := range keys {
			if it.Meta[k] != "" {
				usage[k]++
			}
		}
	}
	return usage, nil
}

func (d *DynamoAdapter) Sample(ctx context.Context, n int) ([]models.ProductSample, error) {
	items, err := d.filter(ctx, inScope(models.ScopeProducts))
	if err != nil {
		return nil, err
	}
	if len(items) > n {
		items = items[:n]
	}
	out := make([]models.ProductSample, 0, len(items))
	for _, it := range items {
		out = append(out, models.ProductSample{ID: it.ProductID, Name: it.Name, SKU: it.sku(), Type: models.ProductType(it.Type)})
	}
	return out, nil
}
