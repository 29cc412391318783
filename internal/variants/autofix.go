package variants

import (
	"context"
	"fmt"
	"strconv"

	"github.com/angelmondragon/angkor-storefront/internal/notifications"
	"github.com/angelmondragon/angkor-storefront/pkg/db/models"
	pkgerrors "github.com/angelmondragon/angkor-storefront/pkg/errors"
)

// Fix records one correction made by AutoFixConflicts.
type Fix struct {
	Scope string `json:"scope"`
	ID    int64  `json:"id"`
	Field string `json:"field"`
	From  string `json:"from"`
	To    string `json:"to"`
}

const (
	scopeProduct = "product"
	scopeVariant = "variant"
)

// AutoFixConflicts repairs a product and its variants in place. Running it
// twice in a row yields no fixes the second time. The product row is mutated
// in memory only; variant rows are written through store.
func (e *Engine) AutoFixConflicts(ctx context.Context, store Store, product *models.Product) ([]Fix, []notifications.Notice, error) {
	if store == nil || product == nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeInternal, "variant store and product are required")
	}
	ctx = e.logg.WithProductID(ctx, product.ID)

	variants, err := store.ListByProduct(ctx, product.ID)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variants")
	}
	fixes, err := e.repair(ctx, store, product, variants)
	if err != nil {
		return nil, nil, err
	}
	if len(fixes) == 0 {
		return nil, nil, nil
	}
	return fixes, []notifications.Notice{conflictsNotice(product, fixes)}, nil
}

func (e *Engine) repair(ctx context.Context, store Store, product *models.Product, variants []models.ProductVariant) ([]Fix, error) {
	fixes, changed := PlanFixes(product, variants)
	for _, idx := range changed {
		if err := store.Update(ctx, &variants[idx]); err != nil {
			return nil, err
		}
	}
	if len(fixes) > 0 {
		e.logg.Warn(e.logg.WithField(ctx, "fixes", len(fixes)), "product variant conflicts fixed")
	}
	return fixes, nil
}

// PlanFixes corrects product and variants in memory and returns the fixes
// plus the indexes of variants that need saving.
func PlanFixes(product *models.Product, variants []models.ProductVariant) ([]Fix, []int) {
	var fixes []Fix
	changed := make([]bool, len(variants))

	productFix := func(field, from, to string) {
		fixes = append(fixes, Fix{Scope: scopeProduct, ID: product.ID, Field: field, From: from, To: to})
	}
	variantFix := func(i int, field, from, to string) {
		fixes = append(fixes, Fix{Scope: scopeVariant, ID: variants[i].ID, Field: field, From: from, To: to})
		changed[i] = true
	}

	switch {
	case !product.HasVariants:
		if product.StockQuantity < 0 {
			productFix("stock_quantity", strconv.Itoa(product.StockQuantity), "0")
			product.StockQuantity = 0
		}
		for i := range variants {
			if variants[i].IsActive {
				variants[i].IsActive = false
				variantFix(i, "is_active", "true", "false")
			}
		}

	case activeCount(variants) == 0:
		productFix("has_variants", "true", "false")
		product.HasVariants = false
		if !product.TrackInventory {
			productFix("track_inventory", "false", "true")
			product.TrackInventory = true
		}
		if product.StockQuantity < 0 {
			productFix("stock_quantity", strconv.Itoa(product.StockQuantity), "0")
			product.StockQuantity = 0
		}

	default:
		if product.TrackInventory {
			productFix("track_inventory", "true", "false")
			product.TrackInventory = false
		}
		if product.StockQuantity != 0 {
			productFix("stock_quantity", strconv.Itoa(product.StockQuantity), "0")
			product.StockQuantity = 0
		}

		for i := range variants {
			sku, ok := DeriveSKU(product.SKU, variants[i].Option(OptionColor), variants[i].Option(OptionStorage))
			if ok && variants[i].SKU != sku {
				variantFix(i, "sku", variants[i].SKU, sku)
				variants[i].SKU = sku
			}
			if variants[i].StockQuantity < 0 {
				variantFix(i, "stock_quantity", strconv.Itoa(variants[i].StockQuantity), "0")
				variants[i].StockQuantity = 0
			}
		}

		var defaults []int
		for i := range variants {
			if variants[i].IsDefault {
				defaults = append(defaults, i)
			}
		}
		switch len(defaults) {
		case 0:
			idx := pickDefault(variants)
			variants[idx].IsDefault = true
			variantFix(idx, "is_default", "false", "true")
		case 1:
		default:
			keep := defaults[0]
			for _, idx := range defaults[1:] {
				if variants[idx].ID < variants[keep].ID {
					keep = idx
				}
			}
			for _, idx := range defaults {
				if idx == keep {
					continue
				}
				variants[idx].IsDefault = false
				variantFix(idx, "is_default", "true", "false")
			}
		}
	}

	var indexes []int
	for i, c := range changed {
		if c {
			indexes = append(indexes, i)
		}
	}
	return fixes, indexes
}

func conflictsNotice(product *models.Product, fixes []Fix) notifications.Notice {
	return notifications.New(
		notifications.KindConflictsFixed,
		notifications.LevelWarning,
		fmt.Sprintf("%d inconsistent value(s) on %s were corrected.", len(fixes), product.SKU),
		map[string]any{"product_id": product.ID, "fixes": fixes},
	)
}
