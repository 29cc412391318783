package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/angelmondragon/angkor-storefront/pkg/enums"
)

// PaymentTransaction records one gateway attempt for an order. An order can
// have several; the gateway-facing TransactionID is unique.
type PaymentTransaction struct {
	ID            int64               `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID       int64               `gorm:"column:order_id;not null;index"`
	TransactionID string              `gorm:"column:transaction_id;not null;uniqueIndex"`
	Gateway       string              `gorm:"column:gateway;not null"`
	AmountCents   int64               `gorm:"column:amount_cents;not null"`
	Currency      enums.Currency      `gorm:"column:currency;not null"`
	GatewayStatus *string             `gorm:"column:gateway_status"`
	Status        enums.PaymentStatus `gorm:"column:status;not null"`
	RawResponse   datatypes.JSON      `gorm:"column:raw_response;type:jsonb"`
	ReceivedAt    *time.Time          `gorm:"column:received_at"`
	ProcessedAt   *time.Time          `gorm:"column:processed_at"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (PaymentTransaction) TableName() string { return "payment_transactions" }
