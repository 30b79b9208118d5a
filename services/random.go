package services

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"sku-service/models"
)

const (
	digits       = "0123456789"
	upperLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	alphanumeric = digits + upperLetters
)

func charset(p models.PatternType) string {
	switch p {
	case models.PatternNumeric:
		return digits
	case models.PatternAlphabetic:
		return upperLetters
	default:
		return alphanumeric
	}
}

// randomToken draws n characters uniformly from set.
func randomToken(src io.Reader, set string, n int) (string, error) {
	if src == nil {
		src = rand.Reader
	}
	max := big.NewInt(int64(len(set)))
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(src, max)
		if err != nil {
			return "", fmt.Errorf("random token: %w", err)
		}
		buf[i] = set[idx.Int64()]
	}
	return string(buf), nil
}
