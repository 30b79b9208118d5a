package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"sku-service/models"
	"sku-service/repository"

	"go.uber.org/zap"
)

// Numberer derives variation SKUs from the parent SKU as parent+sep+N.
type Numberer struct {
	repo     repository.ProductRepo
	oracle   Oracle
	assigner *assigner
	log      *zap.Logger
}

// AssignVariationIdentifiers numbers the children of parent in child order.
// N starts at 1 and advances for every child visited, including children that
// already have a SKU. A taken value gets a further sep+attempt disambiguator.
// It returns the number of children assigned.
func (n *Numberer) AssignVariationIdentifiers(ctx context.Context, parent *models.Product, parentSKU string, opts models.Options) (int, error) {
	opts = opts.Sanitize()
	sep := opts.Separator

	assigned, number := 0, 1
	for _, childID := range parent.Children {
		child, err := n.repo.Load(ctx, childID)
		if err != nil {
			n.log.Warn("Skipping variation that failed to load",
				zap.Int64("variation_id", childID),
				zap.Int64("parent_id", parent.ID),
				zap.Error(err))
			continue
		}
		if child.HasSKU() {
			number++
			continue
		}

		base := parentSKU + sep + strconv.Itoa(number)
		_, ok, err := n.claim(ctx, child, opts, func(attempt int) string {
			if attempt == 0 {
				return base
			}
			return base + sep + strconv.Itoa(attempt)
		})
		if err != nil {
			return assigned, err
		}
		if ok {
			assigned++
		}
		number++
	}
	return assigned, nil
}

// NumberByParentID numbers the unidentified variations of a parent, giving
// the parent a SKU first when it has none.
func (n *Numberer) NumberByParentID(ctx context.Context, parentID int64, opts models.Options) (int, error) {
	parent, err := n.repo.Load(ctx, parentID)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, ErrProductNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("load parent %d: %w", parentID, err)
	}
	if !parent.IsVariable() {
		return 0, ErrNotVariable
	}
	return n.continueNumbering(ctx, parent, opts, nil)
}

// continueNumbering resumes after the highest numeric suffix already used by
// a child, so repeated runs never renumber or collide. When only is non-nil,
// just those children are assigned; the others still count towards the
// highest suffix.
func (n *Numberer) continueNumbering(ctx context.Context, parent *models.Product, opts models.Options, only map[int64]bool) (int, error) {
	opts = opts.Sanitize()

	if !parent.HasSKU() {
		gen, err := n.assigner.assign(ctx, parent, opts)
		if err != nil {
			return 0, fmt.Errorf("assign parent sku: %w", err)
		}
		n.log.Debug("Generated parent SKU", zap.Int64("parent_id", parent.ID), zap.String("sku", gen.Value))
	}

	children := make([]*models.Product, 0, len(parent.Children))
	for _, id := range parent.Children {
		child, err := n.repo.Load(ctx, id)
		if err != nil {
			n.log.Warn("Skipping variation that failed to load",
				zap.Int64("variation_id", id),
				zap.Int64("parent_id", parent.ID),
				zap.Error(err))
			continue
		}
		children = append(children, child)
	}

	prefix := parent.SKU + opts.Separator
	next := highestSuffix(children, prefix) + 1

	assigned := 0
	for _, child := range children {
		if child.HasSKU() || (only != nil && !only[child.ID]) {
			continue
		}
		used, ok, err := n.claim(ctx, child, opts, func(attempt int) string {
			return prefix + strconv.Itoa(next+attempt)
		})
		if err != nil {
			return assigned, err
		}
		if ok {
			assigned++
			next += used + 1
		}
	}
	return assigned, nil
}

// highestSuffix returns the largest N among children whose SKU is prefix+N.
func highestSuffix(children []*models.Product, prefix string) int {
	highest := 0
	for _, c := range children {
		rest, ok := strings.CutPrefix(c.SKU, prefix)
		if !ok || !allDigits(rest) {
			continue
		}
		if v, err := strconv.Atoi(rest); err == nil && v > highest {
			highest = v
		}
	}
	return highest
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// claim tries candidate(0), candidate(1), ... until one is free and saved.
// It returns the attempt number used. Exhaustion leaves the child untouched.
func (n *Numberer) claim(ctx context.Context, child *models.Product, opts models.Options, candidate func(attempt int) string) (int, bool, error) {
	for attempt := 0; attempt <= MaxGenerationAttempts; attempt++ {
		sku := candidate(attempt)
		taken, err := n.oracle.Exists(ctx, sku)
		if err != nil {
			return attempt, false, fmt.Errorf("check sku uniqueness: %w", err)
		}
		if taken {
			continue
		}

		child.SKU = sku
		if opts.CopyToGTIN {
			MirrorGTIN(child, sku)
		}
		err = n.repo.Save(ctx, child)
		if errors.Is(err, repository.ErrDuplicateSKU) {
			continue
		}
		if err != nil {
			return attempt, false, fmt.Errorf("save variation %d: %w", child.ID, err)
		}
		n.log.Debug("Assigned variation SKU",
			zap.Int64("variation_id", child.ID),
			zap.Int64("parent_id", child.ParentID),
			zap.String("sku", sku))
		return attempt, true, nil
	}

	child.SKU = ""
	n.log.Warn("No free variation SKU found",
		zap.Int64("variation_id", child.ID),
		zap.Int("attempts", MaxGenerationAttempts+1),
		zap.Error(ErrGenerationExhausted))
	return MaxGenerationAttempts, false, nil
}
