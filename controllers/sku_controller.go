package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	apperrors "sku-service/common/errors"
	"sku-service/common/logger"
	"sku-service/models"
	"sku-service/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SKUController handles HTTP requests for SKU operations.
type SKUController struct {
	skuService services.SKUService
	validator  *RequestValidator
}

// NewSKUController creates a new SKUController.
func NewSKUController(skuService services.SKUService) *SKUController {
	return &SKUController{skuService: skuService, validator: NewRequestValidator()}
}

// GenerateSKUs handles POST /sku/generate.
func (sc *SKUController) GenerateSKUs(ctx *gin.Context) {
	req, ok := sc.parseStep(ctx)
	if !ok {
		return
	}
	rep, err := sc.skuService.GenerateStep(ctx.Request.Context(), req.Offset)
	if err != nil {
		sc.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, rep)
}

// GenerateVariationSKUs handles POST /sku/variations/generate.
func (sc *SKUController) GenerateVariationSKUs(ctx *gin.Context) {
	req, ok := sc.parseStep(ctx)
	if !ok {
		return
	}
	rep, err := sc.skuService.GenerateVariationsStep(ctx.Request.Context(), req.Offset)
	if err != nil {
		sc.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, rep)
}

// GenerateForParent handles POST /sku/variations/:parent_id.
func (sc *SKUController) GenerateForParent(ctx *gin.Context) {
	parentID, err := strconv.ParseInt(ctx.Param("parent_id"), 10, 64)
	if err != nil || parentID <= 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid parent ID"})
		return
	}

	n, err := sc.skuService.GenerateVariationsForParent(ctx.Request.Context(), parentID)
	if err != nil {
		sc.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"parent_id": parentID,
		"assigned":  n,
		"message":   fmt.Sprintf("Generated %d variation SKUs", n),
	})
}

// ValidateSKUs handles POST /sku/validate. The final step returns the
// validation summary instead of a progress report.
func (sc *SKUController) ValidateSKUs(ctx *gin.Context) {
	req, ok := sc.parseStep(ctx)
	if !ok {
		return
	}
	rep, summary, err := sc.skuService.ValidateStep(ctx.Request.Context(), req.Offset)
	if err != nil {
		sc.respondError(ctx, err)
		return
	}
	if summary != nil {
		ctx.JSON(http.StatusOK, summary)
		return
	}
	ctx.JSON(http.StatusOK, rep)
}

// FixInvalidSKUs handles POST /sku/fix.
func (sc *SKUController) FixInvalidSKUs(ctx *gin.Context) {
	summary, err := sc.skuService.FixInvalid(ctx.Request.Context())
	if err != nil {
		sc.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, summary)
}

// Cleanup handles POST /sku/cleanup/:kind.
func (sc *SKUController) Cleanup(ctx *gin.Context) {
	kind := models.CleanupKind(ctx.Param("kind"))
	if !kind.Valid() {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Unknown cleanup operation", "details": string(kind)})
		return
	}
	req, ok := sc.parseStep(ctx)
	if !ok {
		return
	}
	rep, err := sc.skuService.CleanupStep(ctx.Request.Context(), kind, req.Offset)
	if err != nil {
		sc.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, rep)
}

// CopyToGTIN handles POST /sku/gtin/copy.
func (sc *SKUController) CopyToGTIN(ctx *gin.Context) {
	req, ok := sc.parseStep(ctx)
	if !ok {
		return
	}
	rep, err := sc.skuService.CopyToGTINStep(ctx.Request.Context(), req.Offset)
	if err != nil {
		sc.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, rep)
}

// GetStatistics handles GET /sku/statistics.
func (sc *SKUController) GetStatistics(ctx *gin.Context) {
	stats, err := sc.skuService.Statistics(ctx.Request.Context())
	if err != nil {
		sc.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, stats)
}

// GetDiagnostics handles GET /sku/diagnostics.
func (sc *SKUController) GetDiagnostics(ctx *gin.Context) {
	diag, err := sc.skuService.Diagnostics(ctx.Request.Context())
	if err != nil {
		sc.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, diag)
}

// CheckSKU handles GET /sku/check?sku=...&exclude_id=...
func (sc *SKUController) CheckSKU(ctx *gin.Context) {
	q, err := sc.validator.ParseCheck(ctx)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	check, err := sc.skuService.CheckSKU(ctx.Request.Context(), q.SKU, q.ExcludeID)
	if err != nil {
		sc.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, check)
}

// GetOptions handles GET /sku/options.
func (sc *SKUController) GetOptions(ctx *gin.Context) {
	opts, err := sc.skuService.GetOptions(ctx.Request.Context())
	if err != nil {
		sc.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"options": opts})
}

// UpdateOptions handles PUT /sku/options.
func (sc *SKUController) UpdateOptions(ctx *gin.Context) {
	opts, err := sc.validator.ParseOptions(ctx)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	saved, err := sc.skuService.SaveOptions(ctx.Request.Context(), opts)
	if err != nil {
		sc.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"options": saved, "message": "Options saved"})
}

func (sc *SKUController) parseStep(ctx *gin.Context) (StepRequest, bool) {
	req, err := sc.validator.ParseStep(ctx)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return StepRequest{}, false
	}
	return req, true
}

// respondError renders service failures. A failed step tells the caller to
// retry the same offset.
func (sc *SKUController) respondError(ctx *gin.Context, err error) {
	var stepErr *services.StepError
	if errors.As(err, &stepErr) {
		logger.Error(ctx.Request.Context(), "SKU step failed", err, zap.String("operation", string(stepErr.Operation)))
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Operation failed, please retry the same offset",
			"operation": stepErr.Operation,
			"offset":    stepErr.Offset,
			"details":   stepErr.Err.Error(),
		})
		return
	}

	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		ctx.JSON(appErr.Code, gin.H{"error": appErr.Message})
		return
	}

	logger.Error(ctx.Request.Context(), "SKU request failed", err)
	ctx.JSON(apperrors.StatusCode(err), gin.H{"error": "Internal server error"})
}
