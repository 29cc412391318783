package variants

import (
	"fmt"
	"sort"
	"strings"

	"gorm.io/datatypes"

	"github.com/angelmondragon/angkor-storefront/pkg/db/models"
	pkgerrors "github.com/angelmondragon/angkor-storefront/pkg/errors"
)

// Input is one normalized variant payload. Prices are already in minor units.
type Input struct {
	SKU                string
	Options            []models.VariantOption
	OverridePriceCents *int64
	StockQuantity      int
	IsActive           bool
	IsDefault          bool
}

// Request is an edit submission: the requested mode plus variant payloads.
type Request struct {
	HasVariants bool
	Variants    []Input
}

// BuildVariants validates inputs and turns them into unsaved variant rows for
// product. SKUs are derived whenever color and storage are both present;
// otherwise the submitted SKU is kept and must not be empty.
func BuildVariants(product *models.Product, inputs []Input) ([]models.ProductVariant, error) {
	details := map[string]string{}
	conflicts := map[string]string{}
	seenKey := map[string]int{}
	seenSKU := map[string]int{}
	defaults := 0

	out := make([]models.ProductVariant, 0, len(inputs))
	for i, in := range inputs {
		field := fmt.Sprintf("variants[%d]", i)
		v := models.ProductVariant{
			ProductID:          product.ID,
			Options:            datatypes.NewJSONSlice(cleanOptions(in.Options)),
			OverridePriceCents: in.OverridePriceCents,
			StockQuantity:      in.StockQuantity,
			IsActive:           in.IsActive,
			IsDefault:          in.IsDefault,
		}

		sku, derived := DeriveSKU(product.SKU, v.Option(OptionColor), v.Option(OptionStorage))
		if !derived {
			sku = strings.TrimSpace(in.SKU)
		}
		v.SKU = sku

		if sku == "" {
			details[field+".sku"] = "required when color and storage are not both set"
		}
		if in.StockQuantity < 0 {
			details[field+".stock_quantity"] = "must not be negative"
		}
		if in.OverridePriceCents != nil && *in.OverridePriceCents < 0 {
			details[field+".override_price"] = "must not be negative"
		}
		if in.IsDefault {
			defaults++
		}

		if len(v.Options) > 0 {
			key := matchKey(v)
			if prev, ok := seenKey[key]; ok {
				details[field+".options"] = fmt.Sprintf("same options as variants[%d]", prev)
			} else {
				seenKey[key] = i
			}
		}
		if sku != "" {
			if prev, ok := seenSKU[sku]; ok {
				conflicts[field+".sku"] = fmt.Sprintf("%s is also used by variants[%d]", sku, prev)
			} else {
				seenSKU[sku] = i
			}
		}

		out = append(out, v)
	}

	if defaults > 1 {
		details["variants"] = "only one variant can be the default"
	}
	if len(details) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid variant payload").WithDetails(details)
	}
	if len(conflicts) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "duplicate variant sku").WithDetails(conflicts)
	}
	return out, nil
}

func cleanOptions(in []models.VariantOption) []models.VariantOption {
	out := make([]models.VariantOption, 0, len(in))
	for _, opt := range in {
		name := strings.TrimSpace(opt.Name)
		value := strings.TrimSpace(opt.Value)
		if name == "" || value == "" {
			continue
		}
		out = append(out, models.VariantOption{Name: name, Value: value})
	}
	return out
}

// matchKey identifies a variant by its options tuple, ignoring order and case.
// Variants without options fall back to their SKU.
func matchKey(v models.ProductVariant) string {
	if len(v.Options) == 0 {
		return "sku:" + strings.TrimSpace(v.SKU)
	}
	parts := make([]string, 0, len(v.Options))
	for _, opt := range v.Options {
		parts = append(parts, strings.ToLower(strings.TrimSpace(opt.Name))+"="+strings.ToLower(strings.TrimSpace(opt.Value)))
	}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}

func sameOptions(a, b []models.VariantOption) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func samePrice(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
