package models

import "regexp"

// PatternType selects the character family for random tokens.
type PatternType string

const (
	PatternNumeric      PatternType = "numeric"
	PatternAlphabetic   PatternType = "alphabetic"
	PatternAlphanumeric PatternType = "alphanumeric"
)

// Date formats accepted for the date stamp, keyed by their stored names.
const (
	DateYmd = "Ymd"
	Dateymd = "ymd"
	Dateym  = "ym"
	Datey   = "y"
)

var dateLayouts = map[string]string{
	DateYmd: "20060102",
	Dateymd: "060102",
	Dateym:  "0601",
	Datey:   "06",
}

// Bounds applied by Sanitize.
const (
	MaxAffixLength       = 20
	MinPatternLength     = 4
	MaxPatternLength     = 32
	DefaultPatternLength = 8
	MinCategoryChars     = 1
	MaxCategoryChars     = 5
	DefaultCategoryChars = 2
	DefaultSeparator     = "-"
)

// Options is the generation configuration. Values read from storage are not
// trusted; callers run Sanitize before use.
type Options struct {
	Prefix           string      `json:"prefix"`
	Suffix           string      `json:"suffix"`
	PatternType      PatternType `json:"pattern_type"`
	PatternLength    int         `json:"pattern_length"`
	Separator        string      `json:"separator"`
	IncludeProductID bool        `json:"include_product_id"`
	IncludeCategory  bool        `json:"include_category"`
	CategoryChars    int         `json:"category_chars"`
	IncludeDate      bool        `json:"include_date"`
	DateFormat       string      `json:"date_format"`
	CopyToGTIN       bool        `json:"copy_to_gtin"`
	UsePermalink     bool        `json:"use_permalink"`
}

// DefaultOptions returns the configuration used when nothing is stored.
func DefaultOptions() Options {
	return Options{
		PatternType:   PatternAlphanumeric,
		PatternLength: DefaultPatternLength,
		Separator:     DefaultSeparator,
		CategoryChars: DefaultCategoryChars,
		DateFormat:    DateYmd,
	}
}

var disallowedChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// SanitizePart strips every character outside [A-Za-z0-9_-].
func SanitizePart(s string) string {
	return disallowedChars.ReplaceAllString(s, "")
}

// Sanitize coerces every field into its allowed domain.
func (o Options) Sanitize() Options {
	o.Prefix = sanitizeAffix(o.Prefix)
	o.Suffix = sanitizeAffix(o.Suffix)

	if o.Separator != "-" && o.Separator != "_" {
		o.Separator = DefaultSeparator
	}

	switch o.PatternType {
	case PatternNumeric, PatternAlphabetic, PatternAlphanumeric:
	default:
		o.PatternType = PatternAlphanumeric
	}

	if o.PatternLength == 0 {
		o.PatternLength = DefaultPatternLength
	}
	o.PatternLength = clamp(o.PatternLength, MinPatternLength, MaxPatternLength)

	if o.CategoryChars == 0 {
		o.CategoryChars = DefaultCategoryChars
	}
	o.CategoryChars = clamp(o.CategoryChars, MinCategoryChars, MaxCategoryChars)

	if _, ok := dateLayouts[o.DateFormat]; !ok {
		o.DateFormat = DateYmd
	}
	return o
}

// DateLayout returns the Go time layout for the configured date format.
func (o Options) DateLayout() string {
	if layout, ok := dateLayouts[o.DateFormat]; ok {
		return layout
	}
	return dateLayouts[DateYmd]
}

func sanitizeAffix(s string) string {
	s = SanitizePart(s)
	if len(s) > MaxAffixLength {
		s = s[:MaxAffixLength]
	}
	return s
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
