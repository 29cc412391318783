package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/angelmondragon/angkor-storefront/pkg/enums"
)

type Order struct {
	ID                int64               `gorm:"column:id;primaryKey;autoIncrement"`
	UserID            int64               `gorm:"column:user_id;not null;index"`
	Status            enums.OrderStatus   `gorm:"column:status;not null"`
	PaymentStatus     enums.PaymentStatus `gorm:"column:payment_status;not null"`
	PaymentMethod     string              `gorm:"column:payment_method;not null"`
	Currency          enums.Currency      `gorm:"column:currency;not null"`
	SubtotalCents     int64               `gorm:"column:subtotal_cents;not null"`
	ShippingCents     int64               `gorm:"column:shipping_cents;not null"`
	GrandTotalCents   int64               `gorm:"column:grand_total_cents;not null"`
	ShippingAddressID *int64              `gorm:"column:shipping_address_id"`
	PaymentData       datatypes.JSON      `gorm:"column:payment_data;type:jsonb"`
	PaidAt            *time.Time          `gorm:"column:paid_at"`
	StockCommittedAt  *time.Time          `gorm:"column:stock_committed_at"`
	Items             []OrderItem         `gorm:"foreignKey:OrderID"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }

type OrderItem struct {
	ID             int64     `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID        int64     `gorm:"column:order_id;not null;index"`
	ProductID      int64     `gorm:"column:product_id;not null"`
	VariantID      *int64    `gorm:"column:variant_id"`
	Name           string    `gorm:"column:name;not null"`
	SKU            string    `gorm:"column:sku;not null"`
	Quantity       int       `gorm:"column:quantity;not null"`
	UnitPriceCents int64     `gorm:"column:unit_price_cents;not null"`
	TotalCents     int64     `gorm:"column:total_cents;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (OrderItem) TableName() string { return "order_items" }
