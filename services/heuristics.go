package services

import (
	"regexp"
	"strings"

	"sku-service/models"
)

var (
	hasLetter     = regexp.MustCompile(`[a-zA-Z]`)
	randomLooking = regexp.MustCompile(`^[A-Z0-9]{6,}$`)
)

// LooksGenerated guesses whether sku was produced with opts. It is only as
// good as the options still matching the ones used at generation time.
func LooksGenerated(sku string, opts models.Options) bool {
	opts = opts.Sanitize()
	prefix, suffix, sep := opts.Prefix, opts.Suffix, opts.Separator

	if prefix != "" && !strings.HasPrefix(sku, prefix) {
		return false
	}
	if suffix != "" && !strings.HasSuffix(sku, suffix) {
		return false
	}
	if (prefix != "" || suffix != "") && !strings.Contains(sku, sep) {
		return false
	}

	if opts.UsePermalink {
		main := sku
		if prefix != "" {
			main = cutPrefix(main, len(prefix+sep))
		}
		if suffix != "" {
			main = cutSuffix(main, len(sep+suffix))
		}
		if !hasLetter.MatchString(main) {
			return false
		}
		if randomLooking.MatchString(main) {
			return false
		}
	}
	return true
}

func cutPrefix(s string, n int) string {
	if n >= len(s) {
		return ""
	}
	return s[n:]
}

func cutSuffix(s string, n int) string {
	if n >= len(s) {
		return ""
	}
	return s[:len(s)-n]
}
