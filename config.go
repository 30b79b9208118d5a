package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"sku-service/database"
	aws_pkg "sku-service/pkg/aws"
)

// Config holds all configuration for the SKU service.
type Config struct {
	Port   string
	AppEnv string

	// StoreBackend selects the product storage: postgres or dynamodb.
	StoreBackend string
	Postgres     database.PostgresConfig
	// MigrateSchema creates the given relational schema (lookup or postmeta)
	// before probing. Empty leaves the database untouched.
	MigrateSchema string

	DynamoProductsTable string
	DynamoOptionsTable  string

	StateBackend string
	RedisURL     string
	StateTTL     time.Duration
	BatchSize    int

	EventsTopicARN string
	ReportBucket   string
	ReportURLTTL   time.Duration

	RequiredRole string
	Capability   string
	JWTSecret    string

	AllowedOrigins []string

	RateLimitPerSecond float64
	RateLimitBurst     int

	CloudWatchEnabled bool
}

// secretName holds the JSON object with DB credentials and JWT_SECRET.
const secretName = "sku/DB_CREDENTIALS"

// LoadConfig reads configuration from environment variables with optional
// Secrets Manager override.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:                getEnv("PORT", "8085"),
		AppEnv:              getEnv("APP_ENV", "development"),
		StoreBackend:        getEnv("STORE_BACKEND", "postgres"),
		Postgres:            database.PostgresConfigFromEnv(),
		MigrateSchema:       os.Getenv("SCHEMA_MIGRATE"),
		DynamoProductsTable: getEnv("DDB_TABLE_PRODUCTS", "Products"),
		DynamoOptionsTable:  getEnv("DDB_TABLE_OPTIONS", "SKUOptions"),
		StateBackend:        getEnv("STATE_BACKEND", "redis"),
		RedisURL:            getEnv("REDIS_URL", "redis://redis:6379/0"),
		EventsTopicARN:      os.Getenv("SKU_EVENTS_TOPIC_ARN"),
		ReportBucket:        os.Getenv("SKU_REPORT_BUCKET"),
		RequiredRole:        getEnv("SKU_REQUIRED_ROLE", "admin"),
		Capability:          getEnv("SKU_CAPABILITY", "manage_catalog"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		AllowedOrigins:      splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		CloudWatchEnabled:   os.Getenv("CLOUDWATCH_ENABLED") == "true",
	}

	var err error
	if cfg.StateTTL, err = getSeconds("STATE_TTL_SECONDS", 300); err != nil {
		return nil, err
	}
	if cfg.ReportURLTTL, err = getSeconds("SKU_REPORT_URL_TTL_SECONDS", 3600); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = getInt("BATCH_SIZE", 50); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = getInt("RATE_LIMIT_BURST", 10); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerSecond, err = strconv.ParseFloat(getEnv("RATE_LIMIT_PER_SECOND", "5"), 64); err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_PER_SECOND: %w", err)
	}

	// Override credentials from Secrets Manager when running on AWS
	if os.Getenv("AWS_USE_SECRETS") == "true" {
		if awsCfg, err := aws_pkg.LoadAWSConfig(context.Background()); err == nil {
			applySecrets(context.Background(), cfg, aws_pkg.NewSecretsClient(awsCfg))
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applySecrets overlays non-empty values from the service secret. A missing
// or malformed secret keeps the env values.
func applySecrets(ctx context.Context, cfg *Config, sm aws_pkg.SecretsReader) {
	m, err := aws_pkg.GetJSONSecret(ctx, sm, secretName)
	if err != nil {
		return
	}
	overlay := map[string]*string{
		"POSTGRES_USER":     &cfg.Postgres.User,
		"POSTGRES_PASSWORD": &cfg.Postgres.Password,
		"POSTGRES_DB":       &cfg.Postgres.DBName,
		"POSTGRES_HOST":     &cfg.Postgres.Host,
		"POSTGRES_PORT":     &cfg.Postgres.Port,
		"JWT_SECRET":        &cfg.JWTSecret,
	}
	for key, dst := range overlay {
		if v, ok := m[key]; ok && v != "" {
			*dst = v
		}
	}
}

// Catalog returns the storage settings for database.OpenCatalog.
func (c *Config) Catalog() database.CatalogConfig {
	return database.CatalogConfig{
		Backend:             c.StoreBackend,
		Postgres:            c.Postgres,
		Migrate:             c.MigrateSchema,
		DynamoProductsTable: c.DynamoProductsTable,
		DynamoOptionsTable:  c.DynamoOptionsTable,
	}
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case "postgres":
		if err := c.Postgres.Validate(); err != nil {
			return fmt.Errorf("database config incomplete: %w", err)
		}
	case "dynamodb":
	default:
		return fmt.Errorf("unsupported STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.MigrateSchema {
	case "", "lookup", "postmeta":
	default:
		return fmt.Errorf("unsupported SCHEMA_MIGRATE %q", c.MigrateSchema)
	}

	switch c.StateBackend {
	case "redis", "memory":
	default:
		return fmt.Errorf("unsupported STATE_BACKEND %q", c.StateBackend)
	}

	if c.BatchSize <= 0 {
		return fmt.Errorf("BATCH_SIZE must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getSeconds(key string, fallback int) (time.Duration, error) {
	n, err := getInt(key, fallback)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
