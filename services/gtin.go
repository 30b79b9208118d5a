package services

import (
	"sku-service/models"
	"sku-service/repository"
)

// MirrorGTIN writes value into the first GTIN key that already holds a value,
// or into the canonical key when none does. It returns the key used.
func MirrorGTIN(p *models.Product, value string) string {
	key := repository.GTINKeys[0]
	for _, k := range repository.GTINKeys {
		if p.GetMeta(k) != "" {
			key = k
			break
		}
	}
	p.SetMeta(key, value)
	return key
}

// ClearGTIN marks every populated GTIN key for deletion and reports whether
// any was set.
func ClearGTIN(p *models.Product) bool {
	had := false
	for _, k := range repository.GTINKeys {
		if p.GetMeta(k) != "" {
			p.SetMeta(k, "")
			had = true
		}
	}
	return had
}
