package orders

import (
	"time"

	"github.com/angelmondragon/angkor-storefront/pkg/db/models"
	"github.com/angelmondragon/angkor-storefront/pkg/money"
)

// OrderDTO is the customer-facing order. Amounts are decimal strings.
type OrderDTO struct {
	ID                int64          `json:"id"`
	Status            string         `json:"status"`
	PaymentStatus     string         `json:"payment_status"`
	PaymentMethod     string         `json:"payment_method"`
	Currency          string         `json:"currency"`
	Subtotal          string         `json:"subtotal"`
	Shipping          string         `json:"shipping"`
	GrandTotal        string         `json:"grand_total"`
	ShippingAddressID *int64         `json:"shipping_address_id,omitempty"`
	PaidAt            *time.Time     `json:"paid_at,omitempty"`
	Items             []OrderItemDTO `json:"items"`
	CreatedAt         time.Time      `json:"created_at"`
}

type OrderItemDTO struct {
	ProductID int64  `json:"product_id"`
	VariantID *int64 `json:"variant_id,omitempty"`
	Name      string `json:"name"`
	SKU       string `json:"sku"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Total     string `json:"total"`
}

// OrderList is one page of orders.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

func NewOrderDTO(order *models.Order) OrderDTO {
	dto := OrderDTO{
		ID:                order.ID,
		Status:            string(order.Status),
		PaymentStatus:     string(order.PaymentStatus),
		PaymentMethod:     order.PaymentMethod,
		Currency:          string(order.Currency),
		Subtotal:          money.Format(order.SubtotalCents),
		Shipping:          money.Format(order.ShippingCents),
		GrandTotal:        money.Format(order.GrandTotalCents),
		ShippingAddressID: order.ShippingAddressID,
		PaidAt:            order.PaidAt,
		Items:             make([]OrderItemDTO, 0, len(order.Items)),
		CreatedAt:         order.CreatedAt,
	}
	for _, item := range order.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Name:      item.Name,
			SKU:       item.SKU,
			Quantity:  item.Quantity,
			UnitPrice: money.Format(item.UnitPriceCents),
			Total:     money.Format(item.TotalCents),
		})
	}
	return dto
}
