package models

import "time"

// OperationKind keys the persisted progress state of a bulk operation.
type OperationKind string

const (
	OpGenerate           OperationKind = "generate"
	OpGenerateVariations OperationKind = "generate_variations"
	OpValidate           OperationKind = "validate"
	OpCleanup            OperationKind = "cleanup"
	OpCopyGTIN           OperationKind = "copy_gtin"
	OpFixInvalid         OperationKind = "fix_invalid"
)

// CleanupKind names one of the cleanup operations.
type CleanupKind string

const (
	CleanupRemoveAll       CleanupKind = "remove_all"
	CleanupRemoveGenerated CleanupKind = "remove_generated"
	CleanupRemoveGTIN      CleanupKind = "remove_gtin"
	CleanupRemoveEmpty     CleanupKind = "remove_empty"
)

// Valid reports whether k is a known cleanup kind.
func (k CleanupKind) Valid() bool {
	switch k {
	case CleanupRemoveAll, CleanupRemoveGenerated, CleanupRemoveGTIN, CleanupRemoveEmpty:
		return true
	}
	return false
}

// ValidationResult is the outcome of the format check. Issues is never nil.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Issues []string `json:"issues"`
}

// GeneratedSKU is a generator result. Fallback values skipped the uniqueness
// check and callers may re-check them.
type GeneratedSKU struct {
	Value    string `json:"value"`
	Attempts int    `json:"attempts"`
	Fallback bool   `json:"fallback"`
	GTINKey  string `json:"gtin_key,omitempty"`
}

// InvalidFinding records a product whose SKU failed the format check.
type InvalidFinding struct {
	ProductID   int64    `json:"product_id"`
	ProductName string   `json:"product_name"`
	SKU         string   `json:"sku"`
	Issues      []string `json:"issues"`
}

// OperationState is the cross-step state of one running bulk operation.
// Cursor is the repository offset for target sets that shrink as they are
// processed. Seen and Invalid are only used by validation, where Processed
// counts the products scanned.
type OperationState struct {
	Kind      OperationKind           `json:"kind"`
	Total     int64                   `json:"total"`
	Cursor    int                     `json:"cursor"`
	Processed int                     `json:"processed"`
	Secondary int                     `json:"secondary,omitempty"`
	Invalid   []InvalidFinding        `json:"invalid,omitempty"`
	Seen      map[string][]ProductRef `json:"seen,omitempty"`
	StartedAt time.Time               `json:"started_at"`
}

// ProgressReport is returned by every batch step.
type ProgressReport struct {
	Complete            bool   `json:"complete"`
	NextOffset          int    `json:"next_offset,omitempty"`
	Progress            int    `json:"progress"`
	Total               int64  `json:"total"`
	ThisBatchCount      int    `json:"this_batch_count"`
	VariationsThisBatch int    `json:"variations_this_batch,omitempty"`
	Processed           int    `json:"processed"`
	Message             string `json:"message,omitempty"`
}

// ValidationSummary is the final result of a validation run.
type ValidationSummary struct {
	Complete             bool                    `json:"complete"`
	TotalScanned         int                     `json:"total_scanned"`
	TotalInvalid         int                     `json:"total_invalid"`
	TotalDuplicateGroups int                     `json:"total_duplicate_groups"`
	Invalid              []InvalidFinding        `json:"invalid"`
	Duplicates           map[string][]ProductRef `json:"duplicates"`
	ReportURL            string                  `json:"report_url,omitempty"`
}

// FixSummary reports how many products were given a fresh SKU.
type FixSummary struct {
	FixedCount     int    `json:"fixed_count"`
	InvalidFixed   int    `json:"invalid_fixed"`
	DuplicateFixed int    `json:"duplicate_fixed"`
	Message        string `json:"message"`
}

// SKUCheck is the result of checking a single SKU against format and catalog.
type SKUCheck struct {
	SKU             string           `json:"sku"`
	Format          ValidationResult `json:"format"`
	Unique          bool             `json:"unique"`
	ExistingProduct int64            `json:"existing_product_id,omitempty"`
}

// Diagnostics is the operator-facing health report of the SKU tooling.
type Diagnostics struct {
	StoreKind     string           `json:"store_kind"`
	Statistics    Statistics       `json:"statistics"`
	TotalProducts int64            `json:"total_products"`
	Samples       []ProductSample  `json:"samples"`
	GTINUsage     map[string]int64 `json:"gtin_usage"`
	Options       Options          `json:"options"`
}
