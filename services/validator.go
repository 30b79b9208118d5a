package services

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"sku-service/models"
)

// Format bounds, counted in characters.
const (
	MaxSKULength = 100
	MinSKULength = 3
)

// Validation issue messages.
const (
	IssueEmpty          = "SKU is empty"
	IssueTooLong        = "SKU is longer than 100 characters"
	IssueWhitespace     = "SKU has leading or trailing whitespace"
	IssueSpaces         = "SKU contains spaces"
	IssueConsecutiveSep = "SKU contains consecutive separators"
	IssueEdgeSep        = "SKU starts or ends with separator"
	IssueOnlySep        = "SKU contains only separators"
	IssueTooShort       = "SKU is very short (less than 3 characters)"

	invalidCharsFormat = "SKU contains invalid characters: %s (only A-Z, a-z, 0-9, -, _ allowed)"
)

func isSeparator(r rune) bool { return r == '-' || r == '_' }

func isAllowed(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || isSeparator(r)
}

// ValidateSKU runs every format rule and aggregates all violations. Only the
// empty check short-circuits.
func ValidateSKU(sku string) models.ValidationResult {
	if sku == "" {
		return models.ValidationResult{Valid: false, Issues: []string{IssueEmpty}}
	}

	issues := []string{}
	length := utf8.RuneCountInString(sku)

	if length > MaxSKULength {
		issues = append(issues, IssueTooLong)
	}
	if strings.TrimSpace(sku) != sku {
		issues = append(issues, IssueWhitespace)
	}
	if strings.Contains(sku, " ") {
		issues = append(issues, IssueSpaces)
	}
	if bad := invalidCharacters(sku); len(bad) > 0 {
		issues = append(issues, fmt.Sprintf(invalidCharsFormat, strings.Join(bad, ", ")))
	}

	var (
		prev        rune
		consecutive bool
		onlySep     = true
	)
	for i, r := range []rune(sku) {
		if isSeparator(r) {
			if i > 0 && isSeparator(prev) {
				consecutive = true
			}
		} else {
			onlySep = false
		}
		prev = r
	}
	if consecutive {
		issues = append(issues, IssueConsecutiveSep)
	}

	first, _ := utf8.DecodeRuneInString(sku)
	last, _ := utf8.DecodeLastRuneInString(sku)
	if isSeparator(first) || isSeparator(last) {
		issues = append(issues, IssueEdgeSep)
	}
	if onlySep {
		issues = append(issues, IssueOnlySep)
	}
	if length < MinSKULength {
		issues = append(issues, IssueTooShort)
	}

	return models.ValidationResult{Valid: len(issues) == 0, Issues: issues}
}

// invalidCharacters returns the distinct disallowed characters, quoted and
// sorted, with a space rendered as [space].
func invalidCharacters(sku string) []string {
	seen := map[rune]bool{}
	var runes []rune
	for _, r := range sku {
		if isAllowed(r) || seen[r] {
			continue
		}
		seen[r] = true
		runes = append(runes, r)
	}
	sort.Slice(runes, func(i, j int) bool { return runes[i] < runes[j] })

	out := make([]string, 0, len(runes))
	for _, r := range runes {
		display := string(r)
		if r == ' ' {
			display = "[space]"
		}
		out = append(out, "'"+display+"'")
	}
	return out
}
