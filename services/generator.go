package services

import (
	"context"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"
	"time"

	"sku-service/models"

	"go.uber.org/zap"
)

const (
	// MaxGenerationAttempts bounds the candidate loop before falling back.
	MaxGenerationAttempts = 100
	// FallbackTag starts every last-resort identifier.
	FallbackTag = "SKU"

	fallbackTokenLength = 4
)

// Generator builds unique, format-valid SKUs from Options.
type Generator struct {
	oracle Oracle
	log    *zap.Logger
	now    func() time.Time
	random io.Reader
}

// GeneratorOption customises a Generator.
type GeneratorOption func(*Generator)

// WithClock replaces time.Now for the date stamp and the fallback timestamp.
func WithClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) { g.now = now }
}

// WithRandom replaces crypto/rand as the token source.
func WithRandom(r io.Reader) GeneratorOption {
	return func(g *Generator) { g.random = r }
}

func NewGenerator(oracle Oracle, log *zap.Logger, opts ...GeneratorOption) *Generator {
	g := &Generator{oracle: oracle, log: log, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns a SKU for p, which may be nil. Candidates that fail
// validation or are already taken are discarded and rebuilt from scratch.
// After MaxGenerationAttempts the fallback identifier is returned with
// Fallback set; it has not been checked against the oracle.
//
// When CopyToGTIN is on and p is given, the value is mirrored onto p's GTIN
// meta. The caller persists p.
func (g *Generator) Generate(ctx context.Context, p *models.Product, opts models.Options) (models.GeneratedSKU, error) {
	opts = opts.Sanitize()

	attempts := 0
	for candidate, err := range g.candidates(p, opts) {
		if err != nil {
			return models.GeneratedSKU{}, err
		}
		attempts++
		if attempts > MaxGenerationAttempts {
			break
		}

		if res := ValidateSKU(candidate); !res.Valid {
			g.log.Debug("Discarding invalid SKU candidate",
				zap.String("sku", candidate),
				zap.Strings("issues", res.Issues))
			continue
		}
		taken, err := g.oracle.Exists(ctx, candidate)
		if err != nil {
			return models.GeneratedSKU{}, fmt.Errorf("check sku uniqueness: %w", err)
		}
		if taken {
			continue
		}
		return g.finish(p, opts, models.GeneratedSKU{Value: candidate, Attempts: attempts}), nil
	}

	token, err := randomToken(g.random, charset(opts.PatternType), fallbackTokenLength)
	if err != nil {
		return models.GeneratedSKU{}, err
	}
	value := fmt.Sprintf("%s-%d-%s", FallbackTag, g.now().Unix(), token)
	g.log.Warn("Falling back to last-resort SKU",
		zap.Int64("product_id", productID(p)),
		zap.Int("attempts", MaxGenerationAttempts),
		zap.String("sku", value),
		zap.Error(ErrGenerationExhausted))

	return g.finish(p, opts, models.GeneratedSKU{Value: value, Attempts: MaxGenerationAttempts, Fallback: true}), nil
}

func (g *Generator) finish(p *models.Product, opts models.Options, res models.GeneratedSKU) models.GeneratedSKU {
	if opts.CopyToGTIN && p != nil {
		res.GTINKey = MirrorGTIN(p, res.Value)
	}
	return res
}

// candidates yields freshly built candidates until the consumer stops.
func (g *Generator) candidates(p *models.Product, opts models.Options) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for {
			c, err := g.build(p, opts)
			if !yield(c, err) || err != nil {
				return
			}
		}
	}
}

// build assembles one candidate:
// prefix, category, date, product id, main part, suffix.
func (g *Generator) build(p *models.Product, opts models.Options) (string, error) {
	var parts []string
	add := func(s string) {
		if s != "" {
			parts = append(parts, s)
		}
	}

	add(models.SanitizePart(opts.Prefix))

	if opts.IncludeCategory && p != nil && len(p.Categories) > 0 {
		code := models.SanitizePart(strings.ToUpper(p.Categories[0]))
		if len(code) > opts.CategoryChars {
			code = code[:opts.CategoryChars]
		}
		add(code)
	}

	if opts.IncludeDate {
		add(g.now().Format(opts.DateLayout()))
	}

	if opts.IncludeProductID && p != nil {
		add(strconv.FormatInt(p.ID, 10))
	}

	switch {
	case opts.UsePermalink && p != nil:
		main := permalinkPart(p)
		if main == "" {
			g.log.Debug("Permalink not usable, using random token", zap.Int64("product_id", p.ID))
			token, err := randomToken(g.random, charset(opts.PatternType), opts.PatternLength)
			if err != nil {
				return "", err
			}
			main = token
		}
		add(main)
	case !(opts.IncludeProductID && p != nil):
		token, err := randomToken(g.random, charset(opts.PatternType), opts.PatternLength)
		if err != nil {
			return "", err
		}
		add(token)
	}

	add(models.SanitizePart(opts.Suffix))

	return strings.Join(parts, opts.Separator), nil
}

func productID(p *models.Product) int64 {
	if p == nil {
		return 0
	}
	return p.ID
}
