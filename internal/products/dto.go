package product

import (
	"time"

	"github.com/angelmondragon/angkor-storefront/internal/inventory"
	"github.com/angelmondragon/angkor-storefront/internal/notifications"
	"github.com/angelmondragon/angkor-storefront/internal/variants"
	"github.com/angelmondragon/angkor-storefront/pkg/db/models"
	"github.com/angelmondragon/angkor-storefront/pkg/money"
)

// ProductDTO represents the product payload returned to clients. Prices are
// decimal strings in major units.
type ProductDTO struct {
	ID                int64        `json:"id"`
	SKU               string       `json:"sku"`
	Name              string       `json:"name"`
	Slug              string       `json:"slug"`
	Description       *string      `json:"description,omitempty"`
	Price             string       `json:"price"`
	CompareAtPrice    *string      `json:"compare_at_price,omitempty"`
	CostPrice         *string      `json:"cost_price,omitempty"`
	HasVariants       bool         `json:"has_variants"`
	VariantMode       string       `json:"variant_mode"`
	TrackInventory    bool         `json:"track_inventory"`
	StockQuantity     int          `json:"stock_quantity"`
	StockStatus       string       `json:"stock_status"`
	StockLevel        string       `json:"stock_level"`
	TotalStock        int          `json:"total_stock"`
	LowStockThreshold int          `json:"low_stock_threshold"`
	IsActive          bool         `json:"is_active"`
	Variants          []VariantDTO `json:"variants,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// VariantDTO exposes one variant with its effective price.
type VariantDTO struct {
	ID            int64                  `json:"id"`
	SKU           string                 `json:"sku"`
	Options       []models.VariantOption `json:"options"`
	Price         string                 `json:"price"`
	OverridePrice *string                `json:"override_price,omitempty"`
	StockQuantity int                    `json:"stock_quantity"`
	IsActive      bool                   `json:"is_active"`
	IsDefault     bool                   `json:"is_default"`
}

// EditResult is returned by create, update and fix operations so the admin UI
// can surface what the variant engine did.
type EditResult struct {
	Product    *ProductDTO            `json:"product"`
	Transition string                 `json:"transition,omitempty"`
	Rejected   bool                   `json:"rejected"`
	Fixes      []variants.Fix         `json:"fixes,omitempty"`
	Notices    []notifications.Notice `json:"notices,omitempty"`
}

// NewProductDTO builds a DTO from the persisted product and its variants.
func NewProductDTO(product *models.Product, rows []models.ProductVariant) *ProductDTO {
	dto := &ProductDTO{
		ID:                product.ID,
		SKU:               product.SKU,
		Name:              product.Name,
		Slug:              product.Slug,
		Description:       product.Description,
		Price:             money.Format(product.PriceCents),
		CompareAtPrice:    money.FormatPtr(product.CompareAtPriceCents),
		CostPrice:         money.FormatPtr(product.CostPriceCents),
		HasVariants:       product.HasVariants,
		VariantMode:       string(variants.Mode(*product, rows)),
		TrackInventory:    product.TrackInventory,
		StockQuantity:     product.StockQuantity,
		StockStatus:       string(product.StockStatus),
		StockLevel:        string(inventory.StockStatus(*product, rows)),
		TotalStock:        inventory.TotalStock(*product, rows),
		LowStockThreshold: product.LowStockThreshold,
		IsActive:          product.IsActive,
		CreatedAt:         product.CreatedAt,
		UpdatedAt:         product.UpdatedAt,
	}

	if product.HasVariants && len(rows) > 0 {
		dto.Variants = make([]VariantDTO, len(rows))
		for i, v := range rows {
			dto.Variants[i] = VariantDTO{
				ID:            v.ID,
				SKU:           v.SKU,
				Options:       append([]models.VariantOption{}, v.Options...),
				Price:         money.Format(v.PriceCents(product.PriceCents)),
				OverridePrice: money.FormatPtr(v.OverridePriceCents),
				StockQuantity: v.StockQuantity,
				IsActive:      v.IsActive,
				IsDefault:     v.IsDefault,
			}
		}
	}
	return dto
}
