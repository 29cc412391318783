// Package variants owns the SIMPLE/VARIANT lifecycle of a product: applying
// edit submissions, deriving variant SKUs and repairing inconsistent rows.
package variants

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/angkor-storefront/internal/notifications"
	"github.com/angelmondragon/angkor-storefront/pkg/db/models"
	"github.com/angelmondragon/angkor-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/angkor-storefront/pkg/errors"
	"github.com/angelmondragon/angkor-storefront/pkg/logger"
)

// Strategy selects how a new variant list is synced onto existing rows.
type Strategy string

const (
	// StrategyReconcile matches rows by options, so ids, order references and
	// specifications survive edits. Variants are deactivated, not deleted, on
	// conversion back to simple.
	StrategyReconcile Strategy = "reconcile"
	// StrategyReplace deletes every existing row and recreates the list.
	StrategyReplace Strategy = "replace"
)

func ParseStrategy(value string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(value))) {
	case "", StrategyReconcile:
		return StrategyReconcile, nil
	case StrategyReplace:
		return StrategyReplace, nil
	default:
		return "", fmt.Errorf("unknown variant sync strategy %q", value)
	}
}

// Transition names what an Apply call did to the product mode.
type Transition string

const (
	TransitionNone            Transition = "none"
	TransitionSimpleToVariant Transition = "simple_to_variant"
	TransitionVariantUpdate   Transition = "variant_update"
	TransitionVariantToSimple Transition = "variant_to_simple"
	TransitionRejectedEmpty   Transition = "rejected_empty"
)

// Outcome reports an Apply call. Notices are meant to be delivered after the
// surrounding transaction commits.
type Outcome struct {
	From       enums.VariantMode       `json:"from"`
	To         enums.VariantMode       `json:"to"`
	Transition Transition              `json:"transition"`
	Rejected   bool                    `json:"rejected"`
	Created    []int64                 `json:"created,omitempty"`
	Updated    []int64                 `json:"updated,omitempty"`
	Deleted    []int64                 `json:"deleted,omitempty"`
	Fixes      []Fix                   `json:"fixes,omitempty"`
	Variants   []models.ProductVariant `json:"-"`
	Notices    []notifications.Notice  `json:"-"`
}

// Changed reports whether any variant row was written.
func (o *Outcome) Changed() bool {
	return len(o.Created)+len(o.Updated)+len(o.Deleted) > 0 || len(o.Fixes) > 0
}

// Mode classifies a product from its flag and its variant rows. Inactive rows
// do not count: a variant product needs something to sell.
func Mode(product models.Product, variants []models.ProductVariant) enums.VariantMode {
	switch {
	case !product.HasVariants:
		return enums.VariantModeSimple
	case activeCount(variants) == 0:
		return enums.VariantModeEmpty
	default:
		return enums.VariantModeVariant
	}
}

// Engine applies variant edits. It mutates the product in memory; persisting
// the product row is left to the caller, inside the same transaction.
type Engine struct {
	strategy Strategy
	logg     *logger.Logger
}

func NewEngine(strategy Strategy, logg *logger.Logger) (*Engine, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	switch strategy {
	case StrategyReconcile, StrategyReplace:
	default:
		return nil, fmt.Errorf("unknown variant sync strategy %q", strategy)
	}
	return &Engine{strategy: strategy, logg: logg}, nil
}

func (e *Engine) Strategy() Strategy {
	return e.strategy
}

func activeCount(variants []models.ProductVariant) int {
	n := 0
	for i := range variants {
		if variants[i].IsActive {
			n++
		}
	}
	return n
}

func anyActive(inputs []Input) bool {
	for _, in := range inputs {
		if in.IsActive {
			return true
		}
	}
	return false
}

// Apply moves product toward the mode requested by req. An empty variant list
// never turns a product into a variant product; it is rejected and the
// product stays simple. An empty list for a product that already has
// variants leaves them untouched. A list whose variants are all inactive is
// rejected the same way, except that an existing variant product keeps its
// current rows.
func (e *Engine) Apply(ctx context.Context, store Store, product *models.Product, req Request) (*Outcome, error) {
	if store == nil || product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "variant store and product are required")
	}
	ctx = e.logg.WithProductID(ctx, product.ID)

	existing, err := store.ListByProduct(ctx, product.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variants")
	}

	out := &Outcome{From: Mode(*product, existing), Transition: TransitionNone}

	switch {
	case !req.HasVariants:
		if product.HasVariants {
			if err := e.convertToSimple(ctx, store, product, existing, out); err != nil {
				return nil, err
			}
		}
	case len(req.Variants) == 0:
		if out.From != enums.VariantModeVariant {
			e.rejectEmpty(ctx, product, out)
		}
	case !anyActive(req.Variants):
		if out.From != enums.VariantModeVariant {
			e.rejectEmpty(ctx, product, out)
		} else {
			e.rejectInactive(ctx, product, out)
		}
	default:
		desired, err := BuildVariants(product, req.Variants)
		if err != nil {
			return nil, err
		}
		if e.strategy == StrategyReplace {
			err = e.replace(ctx, store, existing, desired, out)
		} else {
			err = e.reconcile(ctx, store, existing, desired, out)
		}
		if err != nil {
			return nil, err
		}
		if out.From == enums.VariantModeVariant {
			out.Transition = TransitionVariantUpdate
		} else {
			out.Transition = TransitionSimpleToVariant
		}
		product.HasVariants = true
		product.TrackInventory = false
		product.StockQuantity = 0
	}

	final, err := store.ListByProduct(ctx, product.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload variants")
	}
	if product.HasVariants {
		if err := e.ensureDefault(ctx, store, final, out); err != nil {
			return nil, err
		}
	}

	fixes, err := e.repair(ctx, store, product, final)
	if err != nil {
		return nil, err
	}
	if len(fixes) > 0 {
		out.Fixes = fixes
		out.Notices = append(out.Notices, conflictsNotice(product, fixes))
	}

	out.Variants = final
	out.To = Mode(*product, final)

	if out.Transition != TransitionNone {
		e.logg.Info(e.logg.WithFields(ctx, map[string]any{
			"transition": string(out.Transition),
			"from_mode":  string(out.From),
			"to_mode":    string(out.To),
			"created":    len(out.Created),
			"updated":    len(out.Updated),
			"deleted":    len(out.Deleted),
		}), "product variant mode applied")
	}
	return out, nil
}

func (e *Engine) rejectEmpty(ctx context.Context, product *models.Product, out *Outcome) {
	if out.From == enums.VariantModeEmpty {
		product.TrackInventory = true
	}
	product.HasVariants = false
	out.Rejected = true
	out.Transition = TransitionRejectedEmpty
	out.Notices = append(out.Notices, notifications.New(
		notifications.KindVariantsRequired,
		notifications.LevelWarning,
		"Add at least one variant before enabling variants. The product was kept as a simple product.",
		map[string]any{"product_id": product.ID, "sku": product.SKU},
	))
	e.logg.Warn(ctx, "variant product without variants rejected")
}

func (e *Engine) rejectInactive(ctx context.Context, product *models.Product, out *Outcome) {
	out.Rejected = true
	out.Transition = TransitionRejectedEmpty
	out.Notices = append(out.Notices, notifications.New(
		notifications.KindVariantsRequired,
		notifications.LevelWarning,
		"At least one variant must stay active. The existing variants were left unchanged.",
		map[string]any{"product_id": product.ID, "sku": product.SKU},
	))
	e.logg.Warn(ctx, "variant list without active variants rejected")
}

// convertToSimple carries the default variant's stock onto the product and
// retires the variant rows.
func (e *Engine) convertToSimple(ctx context.Context, store Store, product *models.Product, existing []models.ProductVariant, out *Outcome) error {
	stock := 0
	if def := defaultVariant(existing); def != nil {
		stock = def.StockQuantity
	}
	if stock < 0 {
		stock = 0
	}

	product.HasVariants = false
	product.TrackInventory = true
	product.StockQuantity = stock
	out.Transition = TransitionVariantToSimple

	if e.strategy == StrategyReplace {
		ids := variantIDs(existing)
		if err := store.Delete(ctx, ids); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete variants")
		}
		out.Deleted = ids
		return nil
	}

	for i := range existing {
		if !existing[i].IsActive {
			continue
		}
		existing[i].IsActive = false
		if err := store.Update(ctx, &existing[i]); err != nil {
			return err
		}
		out.Updated = append(out.Updated, existing[i].ID)
	}
	return nil
}

func (e *Engine) replace(ctx context.Context, store Store, existing, desired []models.ProductVariant, out *Outcome) error {
	if ids := variantIDs(existing); len(ids) > 0 {
		if err := store.Delete(ctx, ids); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete variants")
		}
		out.Deleted = ids
	}

	explicit := hasExplicitDefault(desired)
	for i := range desired {
		if !explicit {
			desired[i].IsDefault = i == 0
		}
		if err := store.Create(ctx, &desired[i]); err != nil {
			return err
		}
		out.Created = append(out.Created, desired[i].ID)
	}
	return nil
}

// reconcile matches desired rows to existing ones by options tuple. Deletes
// run first so a removed variant's SKU can be reused in the same edit.
type match struct{ existing, desired int }

// parkMovedSKUs moves a matched row off its SKU when another matched row is
// about to take it, so edits that swap SKUs do not trip the unique index
// halfway through. The parked value is overwritten by the regular update.
func parkMovedSKUs(ctx context.Context, store Store, existing, desired []models.ProductVariant, matches []match) error {
	owner := make(map[string]int, len(matches))
	for _, m := range matches {
		owner[existing[m.existing].SKU] = m.existing
	}
	for _, m := range matches {
		target := desired[m.desired].SKU
		holder, taken := owner[target]
		if !taken || holder == m.existing {
			continue
		}
		parked := existing[holder]
		parked.SKU = fmt.Sprintf("%s~%d", parked.SKU, parked.ID)
		if err := store.Update(ctx, &parked); err != nil {
			return err
		}
		existing[holder].SKU = parked.SKU
		delete(owner, target)
	}
	return nil
}

func (e *Engine) reconcile(ctx context.Context, store Store, existing, desired []models.ProductVariant, out *Outcome) error {
	byKey := make(map[string]int, len(existing))
	for i, v := range existing {
		key := matchKey(v)
		if _, dup := byKey[key]; !dup {
			byKey[key] = i
		}
	}

	var matches []match
	var creates []int
	matched := make(map[int]bool, len(existing))
	for j, d := range desired {
		if i, ok := byKey[matchKey(d)]; ok && !matched[i] {
			matched[i] = true
			matches = append(matches, match{existing: i, desired: j})
			continue
		}
		creates = append(creates, j)
	}

	var stale []int64
	for i, v := range existing {
		if !matched[i] {
			stale = append(stale, v.ID)
		}
	}
	if len(stale) > 0 {
		if err := store.Delete(ctx, stale); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete variants")
		}
		out.Deleted = stale
	}

	if err := parkMovedSKUs(ctx, store, existing, desired, matches); err != nil {
		return err
	}

	explicit := hasExplicitDefault(desired)
	for _, m := range matches {
		cur := existing[m.existing]
		next := desired[m.desired]
		changed := cur.SKU != next.SKU ||
			!sameOptions(cur.Options, next.Options) ||
			!samePrice(cur.OverridePriceCents, next.OverridePriceCents) ||
			cur.StockQuantity != next.StockQuantity ||
			cur.IsActive != next.IsActive ||
			(explicit && cur.IsDefault != next.IsDefault)
		if !changed {
			continue
		}
		cur.SKU = next.SKU
		cur.Options = next.Options
		cur.OverridePriceCents = next.OverridePriceCents
		cur.StockQuantity = next.StockQuantity
		cur.IsActive = next.IsActive
		if explicit {
			cur.IsDefault = next.IsDefault
		}
		if err := store.Update(ctx, &cur); err != nil {
			return err
		}
		out.Updated = append(out.Updated, cur.ID)
	}

	for _, j := range creates {
		v := desired[j]
		if !explicit {
			v.IsDefault = false
		}
		if err := store.Create(ctx, &v); err != nil {
			return err
		}
		out.Created = append(out.Created, v.ID)
	}
	return nil
}

// ensureDefault assigns a default when the edit left none. The lowest-id
// active variant wins, which on a fresh list is the first one created.
func (e *Engine) ensureDefault(ctx context.Context, store Store, variants []models.ProductVariant, out *Outcome) error {
	for _, v := range variants {
		if v.IsDefault {
			return nil
		}
	}
	idx := pickDefault(variants)
	if idx < 0 {
		return nil
	}
	variants[idx].IsDefault = true
	if err := store.Update(ctx, &variants[idx]); err != nil {
		return err
	}

	if out.From == enums.VariantModeVariant {
		out.Notices = append(out.Notices, notifications.New(
			notifications.KindDefaultVariantReassigned,
			notifications.LevelWarning,
			fmt.Sprintf("The default variant was removed. %s is now the default.", variants[idx].SKU),
			map[string]any{"variant_id": variants[idx].ID, "sku": variants[idx].SKU},
		))
		e.logg.Warn(e.logg.WithField(ctx, "variant_id", variants[idx].ID), "default variant reassigned")
	}
	return nil
}

// defaultVariant returns the flagged default, else the lowest-id active
// variant, else the lowest-id variant.
func defaultVariant(variants []models.ProductVariant) *models.ProductVariant {
	for i := range variants {
		if variants[i].IsDefault {
			return &variants[i]
		}
	}
	if idx := pickDefault(variants); idx >= 0 {
		return &variants[idx]
	}
	return nil
}

func pickDefault(variants []models.ProductVariant) int {
	best := -1
	for i, v := range variants {
		if !v.IsActive {
			continue
		}
		if best < 0 || v.ID < variants[best].ID {
			best = i
		}
	}
	if best >= 0 {
		return best
	}
	for i, v := range variants {
		if best < 0 || v.ID < variants[best].ID {
			best = i
		}
	}
	return best
}

func hasExplicitDefault(variants []models.ProductVariant) bool {
	for _, v := range variants {
		if v.IsDefault {
			return true
		}
	}
	return false
}

func variantIDs(variants []models.ProductVariant) []int64 {
	ids := make([]int64, 0, len(variants))
	for _, v := range variants {
		ids = append(ids, v.ID)
	}
	return ids
}
