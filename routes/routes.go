package routes

import (
	"sku-service/controllers"
	"sku-service/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterSKURoutes sets up all SKU-related routes. Batch steps share the
// rate limiter.
func RegisterSKURoutes(r *gin.Engine, sc *controllers.SKUController, jwtSecret []byte, rl *middleware.RateLimiter) {
	skuRoutes := r.Group("/sku")
	skuRoutes.Use(middleware.AuthMiddleware(jwtSecret))

	// Read-only routes
	skuRoutes.GET("/statistics", sc.GetStatistics)
	skuRoutes.GET("/diagnostics", sc.GetDiagnostics)
	skuRoutes.GET("/check", sc.CheckSKU)
	skuRoutes.GET("/options", sc.GetOptions)
	skuRoutes.PUT("/options", sc.UpdateOptions)

	// Batch steps
	steps := skuRoutes.Group("")
	steps.Use(middleware.RateLimit(rl))
	steps.POST("/generate", sc.GenerateSKUs)
	steps.POST("/variations/generate", sc.GenerateVariationSKUs)
	steps.POST("/variations/:parent_id", sc.GenerateForParent)
	steps.POST("/validate", sc.ValidateSKUs)
	steps.POST("/fix", sc.FixInvalidSKUs)
	steps.POST("/cleanup/:kind", sc.Cleanup)
	steps.POST("/gtin/copy", sc.CopyToGTIN)
}
