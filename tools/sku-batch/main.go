// Command sku-batch drives a bulk SKU operation in-process until it completes.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"sku-service/common/logger"
	"sku-service/database"
	"sku-service/models"
	aws_pkg "sku-service/pkg/aws"
	"sku-service/services"
	"sku-service/store"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type stepFunc func(ctx context.Context, offset int) (*models.ProgressReport, error)

const stepRetries = 3

var retryBackoff = 100 * time.Millisecond

func main() {
	_ = godotenv.Load()

	var (
		op, kind, backend, migrate, table, optionsTable string
		parentID                                        int64
		batchSize                                       int
		yes, verbose                                    bool
	)
	flag.StringVar(&op, "op", "", "operation: generate | variations | parent | validate | fix | cleanup | copy-gtin | stats")
	flag.StringVar(&kind, "kind", "", "cleanup kind: remove_all | remove_generated | remove_gtin | remove_empty")
	flag.Int64Var(&parentID, "parent", 0, "parent product id for -op parent")
	flag.StringVar(&backend, "store", envOr("STORE_BACKEND", "postgres"), "product storage: postgres | dynamodb")
	flag.StringVar(&migrate, "migrate", os.Getenv("SCHEMA_MIGRATE"), "create relational schema first: lookup | postmeta")
	flag.StringVar(&table, "table", envOr("DDB_TABLE_PRODUCTS", "Products"), "DynamoDB products table")
	flag.StringVar(&optionsTable, "options-table", envOr("DDB_TABLE_OPTIONS", "SKUOptions"), "DynamoDB options table")
	flag.IntVar(&batchSize, "batch", services.DefaultPageSize, "products per step")
	flag.BoolVar(&yes, "yes", false, "skip the confirmation prompt for cleanup")
	flag.BoolVar(&verbose, "v", false, "human-readable debug logging")
	flag.Parse()

	if op == "" {
		flag.Usage()
		os.Exit(2)
	}

	env := "development"
	if !verbose {
		env = "production"
	}
	zl := logger.Initialize(env)
	defer zl.Sync()

	ctx := context.Background()
	awsCfg, err := aws_pkg.LoadAWSConfig(ctx)
	if err != nil {
		log.Fatalf("aws config: %v", err)
	}
	catalog, err := database.OpenCatalog(ctx, database.CatalogConfig{
		Backend:             backend,
		Postgres:            database.PostgresConfigFromEnv(),
		Migrate:             migrate,
		DynamoProductsTable: table,
		DynamoOptionsTable:  optionsTable,
	}, awsCfg, zl)
	if err != nil {
		log.Fatalf("catalog: %v", err)
	}
	defer catalog.Close()

	svc := services.NewSKUService(services.Deps{
		Repo:    catalog.Products,
		Options: catalog.Options,
		// Progress never outlives this process.
		State:  store.NewMemoryStore(nil),
		Batch:  services.BatchConfig{PageSize: batchSize},
		Gate:   services.AllowAll{},
		Logger: zl,
	})

	if err := run(ctx, svc, op, models.CleanupKind(kind), parentID, yes, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "sku-batch: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, svc services.SKUService, op string, kind models.CleanupKind, parentID int64, yes bool, in io.Reader, out io.Writer) error {
	switch op {
	case "generate":
		return drive(ctx, svc.GenerateStep, out)
	case "variations":
		return drive(ctx, svc.GenerateVariationsStep, out)
	case "copy-gtin":
		return drive(ctx, svc.CopyToGTINStep, out)
	case "cleanup":
		if !kind.Valid() {
			return fmt.Errorf("unknown cleanup kind %q", kind)
		}
		if !yes && !confirm(in, out, kind) {
			fmt.Fprintln(out, "Operation cancelled.")
			return nil
		}
		return drive(ctx, func(ctx context.Context, offset int) (*models.ProgressReport, error) {
			return svc.CleanupStep(ctx, kind, offset)
		}, out)
	case "validate":
		var summary *models.ValidationSummary
		err := drive(ctx, func(ctx context.Context, offset int) (*models.ProgressReport, error) {
			rep, s, err := svc.ValidateStep(ctx, offset)
			summary = s
			return rep, err
		}, out)
		if err != nil {
			return err
		}
		return printJSON(out, summary)
	case "fix":
		summary, err := svc.FixInvalid(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, summary.Message)
		return nil
	case "parent":
		if parentID <= 0 {
			return errors.New("-parent is required")
		}
		n, err := svc.GenerateVariationsForParent(ctx, parentID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Assigned %d variation SKUs under product %d\n", n, parentID)
		return nil
	case "stats":
		stats, err := svc.Statistics(ctx)
		if err != nil {
			return err
		}
		return printJSON(out, stats)
	}
	return fmt.Errorf("unknown operation %q", op)
}

// drive calls step from offset 0 until the report is complete. A failed step
// is retried at the same offset.
func drive(ctx context.Context, step stepFunc, out io.Writer) error {
	offset := 0
	for {
		var (
			rep *models.ProgressReport
			err error
		)
		for attempt := 1; attempt <= stepRetries; attempt++ {
			rep, err = step(ctx, offset)
			if err == nil {
				break
			}
			var stepErr *services.StepError
			if !errors.As(err, &stepErr) {
				return err
			}
			zap.L().Warn("Step failed, retrying",
				zap.Int("offset", offset),
				zap.Int("attempt", attempt),
				zap.Error(err))
			time.Sleep(time.Duration(attempt) * retryBackoff)
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "[%3d%%] offset=%d batch=%d processed=%d\n", rep.Progress, offset, rep.ThisBatchCount, rep.Processed)
		if rep.Complete {
			if rep.Message != "" {
				fmt.Fprintln(out, rep.Message)
			}
			return nil
		}
		offset = rep.NextOffset
	}
}

func confirm(in io.Reader, out io.Writer, kind models.CleanupKind) bool {
	fmt.Fprintf(out, "This will run %s on every published product. Continue? (yes/no): ", kind)
	var answer string
	fmt.Fscanln(in, &answer)
	return answer == "yes"
}

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
