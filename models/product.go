package models

import (
	"math"
	"strings"
)

// ProductType mirrors the catalog product kinds the SKU tooling cares about.
type ProductType string

const (
	ProductSimple    ProductType = "simple"
	ProductVariable  ProductType = "variable"
	ProductVariation ProductType = "variation"
)

// StatusPublish is the only lifecycle status in scope for SKU operations.
const StatusPublish = "publish"

// Scope selects which half of the catalog a missing-SKU query targets.
type Scope string

const (
	ScopeProducts   Scope = "products"
	ScopeVariations Scope = "variations"
)

// Product is the catalog record as seen by the SKU engine. Meta holds only the
// secondary identifier (GTIN) keys; an empty value marks a key for deletion on Save.
type Product struct {
	ID         int64             `json:"id"`
	Name       string            `json:"name"`
	Slug       string            `json:"slug"`
	Status     string            `json:"status"`
	Type       ProductType       `json:"type"`
	ParentID   int64             `json:"parent_id,omitempty"`
	SKU        string            `json:"sku"`
	Categories []string          `json:"categories,omitempty"`
	Children   []int64           `json:"children,omitempty"`
	Meta       map[string]string `json:"meta,omitempty"`
}

// IsVariable reports whether the product owns variations.
func (p *Product) IsVariable() bool {
	return p != nil && p.Type == ProductVariable
}

// HasSKU reports whether the product holds a SKU. A whitespace-only value
// counts as none, as it does in the storage queries.
func (p *Product) HasSKU() bool {
	return p != nil && strings.TrimSpace(p.SKU) != ""
}

// GetMeta returns a meta value or "".
func (p *Product) GetMeta(key string) string {
	if p == nil || p.Meta == nil {
		return ""
	}
	return p.Meta[key]
}

// SetMeta writes a meta value, allocating the map on first use.
func (p *Product) SetMeta(key, value string) {
	if p.Meta == nil {
		p.Meta = make(map[string]string)
	}
	p.Meta[key] = value
}

// ProductRef is the (id, name) pair carried in validation findings.
type ProductRef struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
}

// ProductSample is one row of the diagnostics sample.
type ProductSample struct {
	ID   int64       `json:"id"`
	Name string      `json:"name"`
	SKU  string      `json:"sku"`
	Type ProductType `json:"type"`
}

// Statistics summarizes SKU coverage across products and variations.
type Statistics struct {
	ProductsTotal        int64   `json:"products_total"`
	ProductsWithSKU      int64   `json:"products_with_sku"`
	ProductsWithoutSKU   int64   `json:"products_without_sku"`
	VariationsTotal      int64   `json:"variations_total"`
	VariationsWithSKU    int64   `json:"variations_with_sku"`
	VariationsWithoutSKU int64   `json:"variations_without_sku"`
	CoveragePercent      float64 `json:"coverage_percent"`
}

// NewStatistics derives the without-SKU counts and the coverage percent,
// rounded to one decimal, from the raw totals.
func NewStatistics(productsTotal, productsWithSKU, variationsTotal, variationsWithSKU int64) Statistics {
	s := Statistics{
		ProductsTotal:        productsTotal,
		ProductsWithSKU:      productsWithSKU,
		ProductsWithoutSKU:   productsTotal - productsWithSKU,
		VariationsTotal:      variationsTotal,
		VariationsWithSKU:    variationsWithSKU,
		VariationsWithoutSKU: variationsTotal - variationsWithSKU,
	}
	if total := productsTotal + variationsTotal; total > 0 {
		pct := float64(productsWithSKU+variationsWithSKU) / float64(total) * 100
		s.CoveragePercent = math.Round(pct*10) / 10
	}
	return s
}
