package services

import (
	"regexp"
	"strings"
	"unicode"

	"sku-service/models"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	minSlugPart = 3
	maxSlugPart = 50
)

var numericSlug = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// slugify turns a display name into a lowercase dash-separated slug with
// accents folded to their base letters.
func slugify(name string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_':
			b.WriteRune(r)
			dash = false
		case r == '-' || unicode.IsSpace(r):
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// permalinkPart derives the readable main part from the product slug, or from
// its name when the slug is empty or numeric. It returns "" when nothing
// usable remains.
func permalinkPart(p *models.Product) string {
	slug := p.Slug
	if slug == "" || numericSlug.MatchString(slug) {
		slug = slugify(p.Name)
	}
	clean := models.SanitizePart(slug)
	if len(clean) < minSlugPart {
		return ""
	}
	if len(clean) > maxSlugPart {
		clean = clean[:maxSlugPart]
	}
	return clean
}
