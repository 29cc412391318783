package payloads

import (
	"time"

	"github.com/angelmondragon/angkor-storefront/pkg/enums"
)

// OrderPaidEvent is emitted exactly once, when an order first becomes paid.
type OrderPaidEvent struct {
	OrderID       int64     `json:"order_id"`
	UserID        int64     `json:"user_id"`
	TransactionID string    `json:"transaction_id"`
	AmountCents   int64     `json:"amount_cents"`
	Currency      string    `json:"currency"`
	PaidAt        time.Time `json:"paid_at"`
}

// PaymentStatusEvent reports a failed or cancelled payment attempt.
type PaymentStatusEvent struct {
	OrderID       int64               `json:"order_id"`
	TransactionID string              `json:"transaction_id"`
	Status        enums.PaymentStatus `json:"status"`
	GatewayStatus string              `json:"gateway_status,omitempty"`
}

// ProductVariantsChangedEvent tells downstream caches a product's variant
// rows or mode changed.
type ProductVariantsChangedEvent struct {
	ProductID  int64   `json:"product_id"`
	SKU        string  `json:"sku"`
	Mode       string  `json:"mode"`
	Transition string  `json:"transition"`
	Created    []int64 `json:"created,omitempty"`
	Updated    []int64 `json:"updated,omitempty"`
	Deleted    []int64 `json:"deleted,omitempty"`
	Fixes      int     `json:"fixes"`
}
