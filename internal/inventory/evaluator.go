// Package inventory answers stock questions for a product, whether its stock
// is tracked on the product itself or on its variants.
package inventory

import (
	"fmt"

	"github.com/angelmondragon/angkor-storefront/pkg/db/models"
	"github.com/angelmondragon/angkor-storefront/pkg/enums"
)

// QuantityCheck is the outcome of ValidateQuantity. Message is shopper-facing.
type QuantityCheck struct {
	Valid     bool   `json:"valid"`
	Message   string `json:"message,omitempty"`
	Available int    `json:"available"`
}

// TotalStock sums active variants for variant products, or returns the
// product's own quantity.
func TotalStock(product models.Product, variants []models.ProductVariant) int {
	if !product.HasVariants {
		return product.StockQuantity
	}
	total := 0
	for _, v := range variants {
		if v.IsActive && v.ProductID == product.ID {
			total += v.StockQuantity
		}
	}
	return total
}

// StockStatus rolls variant stock up to a single level. A variant product is
// out of stock only when every active variant is at zero.
func StockStatus(product models.Product, variants []models.ProductVariant) enums.StockLevel {
	if !product.HasVariants {
		return simpleStatus(product)
	}

	active := 0
	empty := 0
	low := false
	for _, v := range variants {
		if !v.IsActive || v.ProductID != product.ID {
			continue
		}
		active++
		if v.StockQuantity <= 0 {
			empty++
		}
		if v.StockQuantity <= product.LowStockThreshold {
			low = true
		}
	}
	switch {
	case active == 0 || empty == active:
		return enums.StockLevelOutOfStock
	case low:
		return enums.StockLevelLowStock
	default:
		return enums.StockLevelInStock
	}
}

func simpleStatus(product models.Product) enums.StockLevel {
	switch product.StockStatus {
	case enums.StockStatusOutOfStock:
		return enums.StockLevelOutOfStock
	case enums.StockStatusBackOrder:
		return enums.StockLevelInStock
	}
	if !product.TrackInventory {
		return enums.StockLevelInStock
	}
	if product.StockQuantity <= 0 {
		return enums.StockLevelOutOfStock
	}
	if product.StockQuantity <= product.LowStockThreshold {
		return enums.StockLevelLowStock
	}
	return enums.StockLevelInStock
}

// ValidateQuantity checks whether qty can be bought. For variant products a
// variant must be named, since stock is tracked per variant.
func ValidateQuantity(product models.Product, variants []models.ProductVariant, qty int, variantID *int64) QuantityCheck {
	if qty <= 0 {
		return QuantityCheck{Message: "Quantity must be at least 1."}
	}
	if !product.IsActive {
		return QuantityCheck{Message: "This product is no longer available."}
	}

	if product.HasVariants {
		if variantID == nil {
			return QuantityCheck{Message: "Please select an option; stock for this product is tracked per variant."}
		}
		variant := findVariant(product.ID, variants, *variantID)
		if variant == nil || !variant.IsActive {
			return QuantityCheck{Message: "The selected option is not available."}
		}
		return checkAvailable(variant.StockQuantity, qty)
	}

	if product.StockStatus == enums.StockStatusOutOfStock {
		return QuantityCheck{Message: "This product is out of stock."}
	}
	if !product.TrackInventory || product.StockStatus == enums.StockStatusBackOrder {
		return QuantityCheck{Valid: true, Available: product.StockQuantity}
	}
	return checkAvailable(product.StockQuantity, qty)
}

func checkAvailable(available, qty int) QuantityCheck {
	if available <= 0 {
		return QuantityCheck{Message: "This item is out of stock."}
	}
	if qty > available {
		return QuantityCheck{
			Message:   fmt.Sprintf("Only %d item(s) available.", available),
			Available: available,
		}
	}
	return QuantityCheck{Valid: true, Available: available}
}

func findVariant(productID int64, variants []models.ProductVariant, id int64) *models.ProductVariant {
	for i := range variants {
		if variants[i].ID == id && variants[i].ProductID == productID {
			return &variants[i]
		}
	}
	return nil
}
