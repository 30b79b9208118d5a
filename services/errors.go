package services

import (
	"errors"
	"fmt"
	"net/http"

	apperrors "sku-service/common/errors"
	"sku-service/models"
)

var (
	// ErrPermissionDenied aborts an entry point before any side effect.
	ErrPermissionDenied = apperrors.New(http.StatusForbidden, "Insufficient permissions", nil)
	// ErrUnknownCleanup is returned for a cleanup kind outside models.CleanupKind.
	ErrUnknownCleanup = apperrors.New(http.StatusBadRequest, "Unknown cleanup operation", nil)
	// ErrNotVariable is returned when variation numbering targets a product without variations.
	ErrNotVariable = apperrors.New(http.StatusBadRequest, "Product is not a variable product", nil)
	// ErrProductNotFound is returned by single-product entry points.
	ErrProductNotFound = apperrors.New(http.StatusNotFound, "Product not found", nil)

	// ErrGenerationExhausted is logged when the attempt cap is hit and the
	// fallback identifier is used. It never reaches callers.
	ErrGenerationExhausted = errors.New("sku generation attempts exhausted")
	// ErrStateExpired means the progress state of a running operation is gone.
	ErrStateExpired = errors.New("operation state expired")
)

// StepError reports a failed batch step. The offset was not advanced, so the
// same step may be retried.
type StepError struct {
	Operation models.OperationKind
	Offset    int
	Err       error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s step at offset %d failed: %v", e.Operation, e.Offset, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
