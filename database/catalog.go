package database

import (
	"context"
	"fmt"
	"os"

	"sku-service/repository"
	"sku-service/store"

	"github.com/aws/aws-sdk-go-v2/aws"
	"go.uber.org/zap"
)

// CatalogConfig selects and configures the product storage.
type CatalogConfig struct {
	Backend  string // postgres | dynamodb
	Postgres PostgresConfig
	// Migrate creates the named relational schema (lookup | postmeta) first.
	Migrate string

	DynamoProductsTable string
	DynamoOptionsTable  string
}

// Catalog bundles the repositories picked for the configured backend.
type Catalog struct {
	Products repository.ProductRepo
	Options  repository.OptionsRepo
	close    func() error
}

func (c *Catalog) Close() error {
	if c.close == nil {
		return nil
	}
	return c.close()
}

// PostgresConfigFromEnv reads the POSTGRES_* variables.
func PostgresConfigFromEnv() PostgresConfig {
	return PostgresConfig{
		User:     os.Getenv("POSTGRES_USER"),
		Password: os.Getenv("POSTGRES_PASSWORD"),
		DBName:   os.Getenv("POSTGRES_DB"),
		Host:     envOr("POSTGRES_HOST", "localhost"),
		Port:     envOr("POSTGRES_PORT", "5432"),
		SSLMode:  envOr("POSTGRES_SSLMODE", "disable"),
		TimeZone: envOr("POSTGRES_TIMEZONE", "UTC"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// OpenCatalog connects the configured backend and probes it for a supported
// product schema.
func OpenCatalog(ctx context.Context, cfg CatalogConfig, awsCfg aws.Config, log *zap.Logger) (*Catalog, error) {
	switch cfg.Backend {
	case "dynamodb":
		client := NewDynamoClient(awsCfg)
		products := repository.NewDynamoAdapter(client, cfg.DynamoProductsTable)
		if err := products.Ping(ctx); err != nil {
			return nil, fmt.Errorf("dynamodb products table: %w", err)
		}
		log.Info("Using DynamoDB catalog", zap.String("table", cfg.DynamoProductsTable))
		return &Catalog{
			Products: products,
			Options:  repository.NewDynamoOptionsRepository(client, cfg.DynamoOptionsTable),
		}, nil

	case "postgres":
		db, err := ConnectPostgres(cfg.Postgres, log)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("get sql.DB: %w", err)
		}

		var schema []interface{}
		switch cfg.Migrate {
		case "lookup":
			schema = repository.LookupSchema
		case "postmeta":
			schema = repository.PostMetaSchema
		}
		if len(schema) > 0 {
			if err := db.WithContext(ctx).AutoMigrate(schema...); err != nil {
				sqlDB.Close()
				return nil, fmt.Errorf("migrate %s schema: %w", cfg.Migrate, err)
			}
			log.Info("Schema migrated", zap.String("schema", cfg.Migrate))
		}

		products, err := repository.Probe(ctx, db)
		if err != nil {
			sqlDB.Close()
			return nil, err
		}
		log.Info("Using PostgreSQL catalog", zap.String("adapter", products.Kind()))
		return &Catalog{
			Products: products,
			Options:  repository.NewGormOptionsRepository(db),
			close:    sqlDB.Close,
		}, nil
	}
	return nil, fmt.Errorf("unsupported store backend %q", cfg.Backend)
}

// OpenStateStore returns the ephemeral progress store. A redis backend that
// cannot be reached falls back to process memory.
func OpenStateStore(ctx context.Context, backend, redisURL string, log *zap.Logger) (store.Store, func() error) {
	if backend == "redis" {
		client, err := ConnectRedis(ctx, redisURL, log)
		if err == nil {
			return store.NewRedisStore(client, "sku-service:"), client.Close
		}
		log.Warn("Redis unavailable, keeping batch state in memory", zap.Error(err))
	}
	return store.NewMemoryStore(nil), func() error { return nil }
}
