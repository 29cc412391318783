package models

import (
	"time"

	"github.com/angelmondragon/angkor-storefront/pkg/enums"
)

// Product is a catalog listing. When HasVariants is set, inventory lives on
// its variants and the product-level stock fields stay zeroed.
type Product struct {
	ID                  int64             `gorm:"column:id;primaryKey;autoIncrement"`
	SKU                 string            `gorm:"column:sku;not null;uniqueIndex"`
	Name                string            `gorm:"column:name;not null"`
	Slug                string            `gorm:"column:slug;not null;uniqueIndex"`
	Description         *string           `gorm:"column:description"`
	PriceCents          int64             `gorm:"column:price_cents;not null"`
	CompareAtPriceCents *int64            `gorm:"column:compare_at_price_cents"`
	CostPriceCents      *int64            `gorm:"column:cost_price_cents"`
	HasVariants         bool              `gorm:"column:has_variants;not null"`
	TrackInventory      bool              `gorm:"column:track_inventory;not null"`
	StockQuantity       int               `gorm:"column:stock_quantity;not null"`
	StockStatus         enums.StockStatus `gorm:"column:stock_status;not null"`
	LowStockThreshold   int               `gorm:"column:low_stock_threshold;not null"`
	IsActive            bool              `gorm:"column:is_active;not null"`
	CreatedAt           time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }
