package controllers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"sku-service/models"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// StepRequest carries the cursor of a batch step.
type StepRequest struct {
	Offset int `json:"offset" validate:"gte=0"`
}

// CheckSKUQuery holds the query of GET /sku/check.
type CheckSKUQuery struct {
	SKU       string `form:"sku" validate:"required,max=200"`
	ExcludeID int64  `form:"exclude_id" validate:"gte=0"`
}

// OptionsRequest is the body of PUT /sku/options. Values that pass here are
// still sanitized by the service.
type OptionsRequest struct {
	Prefix           string             `json:"prefix" validate:"max=64"`
	Suffix           string             `json:"suffix" validate:"max=64"`
	PatternType      models.PatternType `json:"pattern_type" validate:"omitempty,oneof=numeric alphabetic alphanumeric"`
	PatternLength    int                `json:"pattern_length" validate:"omitempty,min=4,max=32"`
	Separator        string             `json:"separator" validate:"omitempty,oneof=- _"`
	IncludeProductID bool               `json:"include_product_id"`
	IncludeCategory  bool               `json:"include_category"`
	CategoryChars    int                `json:"category_chars" validate:"omitempty,min=1,max=5"`
	IncludeDate      bool               `json:"include_date"`
	DateFormat       string             `json:"date_format" validate:"omitempty,oneof=Ymd ymd ym y"`
	CopyToGTIN       bool               `json:"copy_to_gtin"`
	UsePermalink     bool               `json:"use_permalink"`
}

func (r OptionsRequest) toOptions() models.Options {
	return models.Options{
		Prefix:           r.Prefix,
		Suffix:           r.Suffix,
		PatternType:      r.PatternType,
		PatternLength:    r.PatternLength,
		Separator:        r.Separator,
		IncludeProductID: r.IncludeProductID,
		IncludeCategory:  r.IncludeCategory,
		CategoryChars:    r.CategoryChars,
		IncludeDate:      r.IncludeDate,
		DateFormat:       r.DateFormat,
		CopyToGTIN:       r.CopyToGTIN,
		UsePermalink:     r.UsePermalink,
	}
}

// RequestValidator handles all input validation
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{
		validate: validator.New(),
	}
}

// ParseStep reads the step offset. An empty body means offset 0.
func (rv *RequestValidator) ParseStep(c *gin.Context) (StepRequest, error) {
	var req StepRequest
	if c.Request.Body != nil && c.Request.Body != http.NoBody {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			return StepRequest{}, fmt.Errorf("invalid JSON body: %w", err)
		}
	}
	if err := rv.validate.Struct(&req); err != nil {
		return StepRequest{}, fmt.Errorf("validation failed: %w", err)
	}
	return req, nil
}

func (rv *RequestValidator) ParseCheck(c *gin.Context) (CheckSKUQuery, error) {
	var q CheckSKUQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		return CheckSKUQuery{}, fmt.Errorf("invalid query: %w", err)
	}
	if err := rv.validate.Struct(&q); err != nil {
		return CheckSKUQuery{}, fmt.Errorf("validation failed: %w", err)
	}
	return q, nil
}

func (rv *RequestValidator) ParseOptions(c *gin.Context) (models.Options, error) {
	var req OptionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return models.Options{}, fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := rv.validate.Struct(&req); err != nil {
		return models.Options{}, fmt.Errorf("validation failed: %w", err)
	}
	return req.toOptions(), nil
}
