package repository

import (
	"errors"
	"sort"
	"strings"

	"gorm.io/gorm"
)

// translateWriteErr maps unique-index violations to ErrDuplicateSKU.
// The postgres dialector translates 23505 into gorm.ErrDuplicatedKey when
// the connection is opened with TranslateError.
func translateWriteErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "SQLSTATE 23505") {
		return ErrDuplicateSKU
	}
	return err
}

func ids(rows []idRow) []int64 {
	out := make([]int64, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID)
	}
	return out
}

// groupOwners folds (sku, product) rows into sku -> ascending product ids.
func groupOwners(rows []skuOwnerRow) map[string][]int64 {
	out := make(map[string][]int64)
	for _, r := range rows {
		out[r.SKU] = append(out[r.SKU], r.ProductID)
	}
	for sku, owners := range out {
		if len(owners) < 2 {
			delete(out, sku)
			continue
		}
		sort.Slice(owners, func(i, j int) bool { return owners[i] < owners[j] })
	}
	return out
}

// sortedKeys returns the keys of m in lexical order so writes are deterministic.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// nullable turns a blank SKU into SQL NULL.
func nullable(s string) interface{} {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
