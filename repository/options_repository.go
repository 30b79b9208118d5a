package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"sku-service/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"gorm.io/gorm"
)

// OptionsKey is the name the generation options are stored under.
const OptionsKey = "sku_generator_options"

// optionRow is a row of the options table; the value is a JSON document.
type optionRow struct {
	Name  string `gorm:"column:option_name;primaryKey"`
	Value string `gorm:"column:option_value;type:text"`
}

func (optionRow) TableName() string { return "options" }

// decodeOptions overlays stored JSON onto the defaults so keys added later
// still get a sane value.
func decodeOptions(raw []byte) (models.Options, error) {
	opts := models.DefaultOptions()
	if len(raw) == 0 {
		return opts, nil
	}
	if err := json.Unmarshal(raw, &opts); err != nil {
		return models.DefaultOptions(), fmt.Errorf("decode options: %w", err)
	}
	return opts.Sanitize(), nil
}

// GormOptionsRepository stores options in the relational options table.
type GormOptionsRepository struct {
	db *gorm.DB
}

func NewGormOptionsRepository(db *gorm.DB) *GormOptionsRepository {
	return &GormOptionsRepository{db: db}
}

func (r *GormOptionsRepository) Get(ctx context.Context) (models.Options, error) {
	var rows []optionRow
	if err := r.db.WithContext(ctx).Raw(`SELECT option_name, option_value FROM options WHERE option_name = ?`, OptionsKey).
		Scan(&rows).Error; err != nil {
		return models.DefaultOptions(), err
	}
	if len(rows) == 0 {
		return models.DefaultOptions(), nil
	}
	return decodeOptions([]byte(rows[0].Value))
}

func (r *GormOptionsRepository) Save(ctx context.Context, opts models.Options) error {
	raw, err := json.Marshal(opts.Sanitize())
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	return r.db.WithContext(ctx).Exec(`INSERT INTO options (option_name, option_value) VALUES (?, ?) ON CONFLICT (option_name) DO UPDATE SET option_value = EXCLUDED.option_value`,
		OptionsKey, string(raw)).Error
}

// DynamoOptionsRepository stores options as one item keyed by option_name (S).
type DynamoOptionsRepository struct {
	client DynamoAPI
	table  string
}

func NewDynamoOptionsRepository(client DynamoAPI, table string) *DynamoOptionsRepository {
	return &DynamoOptionsRepository{client: client, table: table}
}

type ddbOption struct {
	Name  string         `dynamodbav:"option_name"`
	Value models.Options `dynamodbav:"option_value"`
}

func (r *DynamoOptionsRepository) Get(ctx context.Context) (models.Options, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"option_name": OptionsKey})
	if err != nil {
		return models.DefaultOptions(), fmt.Errorf("marshal key: %w", err)
	}
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{TableName: aws.String(r.table), Key: key})
	if err != nil {
		return models.DefaultOptions(), fmt.Errorf("dynamodb GetItem failed: %w", err)
	}
	if len(out.Item) == 0 {
		return models.DefaultOptions(), nil
	}
	item := ddbOption{Value: models.DefaultOptions()}
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return models.DefaultOptions(), fmt.Errorf("unmarshal options: %w", err)
	}
	return item.Value.Sanitize(), nil
}

func (r *DynamoOptionsRepository) Save(ctx context.Context, opts models.Options) error {
	item, err := attributevalue.MarshalMap(ddbOption{Name: OptionsKey, Value: opts.Sanitize()})
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}
	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(r.table), Item: item}); err != nil {
		return fmt.Errorf("dynamodb PutItem failed: %w", err)
	}
	return nil
}
