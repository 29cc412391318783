package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// VariantOption is one name/value pair of a variant, e.g. Color=Space Gray.
type VariantOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ProductVariant is a purchasable sub-record owned by exactly one product.
type ProductVariant struct {
	ID                 int64                              `gorm:"column:id;primaryKey;autoIncrement"`
	ProductID          int64                              `gorm:"column:product_id;not null;index"`
	SKU                string                             `gorm:"column:sku;not null;uniqueIndex"`
	Options            datatypes.JSONSlice[VariantOption] `gorm:"column:options;type:jsonb;not null"`
	OverridePriceCents *int64                             `gorm:"column:override_price_cents"`
	StockQuantity      int                                `gorm:"column:stock_quantity;not null"`
	IsActive           bool                               `gorm:"column:is_active;not null"`
	IsDefault          bool                               `gorm:"column:is_default;not null"`
	CreatedAt          time.Time                          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                          `gorm:"column:updated_at;autoUpdateTime"`
}

func (ProductVariant) TableName() string { return "product_variants" }

// Option returns the value for name, matched case-insensitively.
func (v ProductVariant) Option(name string) string {
	for _, opt := range v.Options {
		if strings.EqualFold(strings.TrimSpace(opt.Name), name) {
			return strings.TrimSpace(opt.Value)
		}
	}
	return ""
}

// PriceCents returns the override price or the inherited product price.
func (v ProductVariant) PriceCents(productPriceCents int64) int64 {
	if v.OverridePriceCents != nil {
		return *v.OverridePriceCents
	}
	return productPriceCents
}
