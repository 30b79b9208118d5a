package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	apperrors "sku-service/common/errors"
	"sku-service/common/logger"
	"sku-service/controllers"
	"sku-service/database"
	"sku-service/middleware"
	aws_pkg "sku-service/pkg/aws"
	"sku-service/routes"
	"sku-service/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const serviceName = "sku-service"

func main() {
	_ = godotenv.Load()

	zl := logger.Initialize(getEnv("APP_ENV", "development"))
	defer zl.Sync()

	cfg, err := LoadConfig()
	if err != nil {
		zl.Fatal("Config load failed", zap.Error(err))
	}

	// --- AWS setup ---
	ctx := context.Background()
	awsCfg, err := aws_pkg.LoadAWSConfig(ctx)
	if err != nil {
		zl.Fatal("Failed to load AWS config", zap.Error(err))
	}
	if cfg.CloudWatchEnabled {
		if cwLogs, err := aws_pkg.NewCloudWatchLogsClient(ctx, awsCfg, serviceName); err != nil {
			zl.Warn("CloudWatch Logs init failed (non-fatal)", zap.Error(err))
		} else {
			zl = logger.InitializeWithWriter(cfg.AppEnv, cwLogs)
		}
	}

	// --- Storage ---
	catalog, err := database.OpenCatalog(ctx, cfg.Catalog(), awsCfg, zl)
	if err != nil {
		zl.Fatal("Catalog storage unavailable", zap.Error(err))
	}
	state, closeState := database.OpenStateStore(ctx, cfg.StateBackend, cfg.RedisURL, zl)

	metricsClient := aws_pkg.NewMetricsClient(awsCfg)

	// --- Dependency injection ---
	deps := services.Deps{
		Repo:        catalog.Products,
		Options:     catalog.Options,
		State:       state,
		StateTTL:    cfg.StateTTL,
		Batch:       services.BatchConfig{PageSize: cfg.BatchSize},
		Gate:        services.CapabilityGate{Role: cfg.RequiredRole, Capability: cfg.Capability},
		SNS:         aws_pkg.NewSNSClient(awsCfg),
		SNSTopicArn: cfg.EventsTopicARN,
		Metrics:     metricsClient,
		Logger:      zl,
	}
	if cfg.ReportBucket != "" {
		deps.Reports = aws_pkg.NewReportUploader(aws_pkg.NewS3Client(awsCfg), cfg.ReportBucket, cfg.ReportURLTTL)
	}
	skuService := services.NewSKUService(deps)
	skuController := controllers.NewSKUController(skuService)

	// --- HTTP router ---
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestLogger())
	r.Use(apperrors.ErrorMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// CloudWatch HTTP metrics middleware
	r.Use(func(c *gin.Context) {
		if !metricsClient.IsEnabled() {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		go func(path, method string, status int, dur time.Duration) {
			mctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			dims := map[string]string{"Service": serviceName, "Method": method, "Path": path}
			_ = metricsClient.RecordValue(mctx, aws_pkg.MetricHTTPRequests, 1, dims)
			_ = metricsClient.RecordLatency(mctx, aws_pkg.MetricHTTPLatency, dur, dims)
			if status >= 500 {
				dims["Status"] = strconv.Itoa(status)
				_ = metricsClient.RecordValue(mctx, aws_pkg.MetricHTTPServerErrs, 1, dims)
			}
		}(c.FullPath(), c.Request.Method, c.Writer.Status(), time.Since(start))
	})

	// Request timeout middleware
	r.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	limiter := middleware.NewRateLimiter(rate.Limit(cfg.RateLimitPerSecond), cfg.RateLimitBurst)
	routes.RegisterSKURoutes(r, skuController, []byte(cfg.JWTSecret), limiter)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "service": serviceName, "store": catalog.Products.Kind()})
	})

	// --- HTTP server ---
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		zl.Info("SKU Service started", zap.String("port", cfg.Port), zap.String("store", catalog.Products.Kind()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zl.Fatal("server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("Initiating graceful shutdown...")
	httpShutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(httpShutdownCtx); err != nil {
		zl.Error("Server shutdown error", zap.Error(err))
	}
	if err := closeState(); err != nil {
		zl.Error("State store close error", zap.Error(err))
	}
	if err := catalog.Close(); err != nil {
		zl.Error("Database close error", zap.Error(err))
	}

	log.Println("SKU Service stopped gracefully")
}
