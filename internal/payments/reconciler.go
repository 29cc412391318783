package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/angkor-storefront/internal/notifications"
	"github.com/angelmondragon/angkor-storefront/internal/orders"
	"github.com/angelmondragon/angkor-storefront/pkg/db"
	"github.com/angelmondragon/angkor-storefront/pkg/db/models"
	"github.com/angelmondragon/angkor-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/angkor-storefront/pkg/errors"
	"github.com/angelmondragon/angkor-storefront/pkg/logger"
	"github.com/angelmondragon/angkor-storefront/pkg/metrics"
	"github.com/angelmondragon/angkor-storefront/pkg/outbox"
	"github.com/angelmondragon/angkor-storefront/pkg/outbox/payloads"
	"github.com/angelmondragon/angkor-storefront/pkg/payway"
)

const gatewayName = "payway"

// Source names where a gateway snapshot came from.
type Source string

const (
	SourceWebhook Source = "webhook"
	SourceReturn  Source = "return"
)

// ReconcileInput is one gateway snapshot for a transaction.
type ReconcileInput struct {
	TransactionID string
	StatusCode    string
	Payload       json.RawMessage
	Source        Source
}

// ReconcileResult describes what a reconcile call did. Dropped results carry
// no order changes.
type ReconcileResult struct {
	Dropped     bool
	DropReason  string
	OrderID     int64
	Previous    enums.PaymentStatus
	Status      enums.PaymentStatus
	BecamePaid  bool
	UnknownCode bool
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ReconcilerParams bundles the reconciler's collaborators.
type ReconcilerParams struct {
	Orders       orders.Repository
	Transactions *TransactionRepository
	TxRunner     txRunner
	Outbox       outbox.Emitter
	Sink         notifications.Sink
	Metrics      *metrics.PaymentMetrics
	Logger       *logger.Logger
	Now          func() time.Time
}

// Reconciler applies gateway snapshots to orders. It is safe to call
// repeatedly and concurrently for the same transaction id.
type Reconciler struct {
	orders       orders.Repository
	transactions *TransactionRepository
	txRunner     txRunner
	outbox       outbox.Emitter
	sink         notifications.Sink
	metrics      *metrics.PaymentMetrics
	logg         *logger.Logger
	now          func() time.Time
}

func NewReconciler(params ReconcilerParams) (*Reconciler, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Transactions == nil {
		return nil, fmt.Errorf("transaction repository required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Sink == nil {
		return nil, fmt.Errorf("notification sink required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Reconciler{
		orders:       params.Orders,
		transactions: params.Transactions,
		txRunner:     params.TxRunner,
		outbox:       params.Outbox,
		sink:         params.Sink,
		metrics:      params.Metrics,
		logg:         params.Logger,
		now:          now,
	}, nil
}

// Reconcile stores the snapshot on the order and its transaction record and
// emits order_paid the first time the order becomes paid. Paid is sticky:
// payment_status is not overwritten once it is paid, so a late or replayed
// pending/failed callback refreshes the stored snapshot only and the order
// stays paid.
func (r *Reconciler) Reconcile(ctx context.Context, input ReconcileInput) (*ReconcileResult, error) {
	ctx = r.logg.WithTransactionID(ctx, input.TransactionID)
	ctx = r.logg.WithFields(ctx, map[string]any{"status_code": input.StatusCode, "source": string(input.Source)})

	orderID, ok := payway.ExtractOrderID(input.TransactionID)
	if !ok {
		r.logg.Warn(ctx, "gateway snapshot dropped: transaction id does not identify an order")
		return &ReconcileResult{Dropped: true, DropReason: "unattributable transaction id"}, nil
	}
	ctx = r.logg.WithOrderID(ctx, orderID)

	mapped := MapGatewayStatus(input.StatusCode)
	result := &ReconcileResult{OrderID: orderID, Status: mapped, UnknownCode: !IsKnownStatusCode(input.StatusCode)}
	snapshot := snapshotJSON(input.Payload)

	var (
		paidOrder *models.Order
		paidTx    *models.PaymentTransaction
	)
	err := r.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		orderRepo := r.orders.WithTx(tx)
		txRepo := r.transactions.WithTx(tx)

		order, err := orderRepo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			if db.IsNotFound(err) {
				result.Dropped = true
				result.DropReason = "order not found"
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
		}

		record, err := txRepo.FindByTransactionIDForUpdate(ctx, input.TransactionID)
		switch {
		case err == nil:
			if record.OrderID != order.ID {
				result.Dropped = true
				result.DropReason = "transaction belongs to another order"
				return nil
			}
		case db.IsNotFound(err):
			record = &models.PaymentTransaction{
				OrderID:       order.ID,
				TransactionID: input.TransactionID,
				Gateway:       gatewayName,
				AmountCents:   order.GrandTotalCents,
				Currency:      order.Currency,
				Status:        enums.PaymentStatusPending,
			}
		default:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock payment transaction")
		}

		now := r.now().UTC()
		result.Previous = order.PaymentStatus
		next := mapped
		if order.PaymentStatus == enums.PaymentStatusPaid {
			next = enums.PaymentStatusPaid
		}
		result.Status = next
		result.BecamePaid = order.PaymentStatus != enums.PaymentStatusPaid && next == enums.PaymentStatusPaid

		updates := map[string]any{
			"payment_status": next,
			"payment_data":   snapshot,
		}
		if result.BecamePaid {
			updates["paid_at"] = now
			order.PaidAt = &now
			if order.Status == enums.OrderStatusNew {
				updates["status"] = enums.OrderStatusProcessing
				order.Status = enums.OrderStatusProcessing
			}
		}
		if err := orderRepo.UpdatePayment(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order payment")
		}
		order.PaymentStatus = next

		applySnapshot(record, input.StatusCode, mapped, snapshot, now)
		if record.ID == 0 {
			err = txRepo.Create(ctx, record)
		} else {
			err = txRepo.Save(ctx, record)
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist payment transaction")
		}

		if result.BecamePaid {
			paidOrder, paidTx = order, record
			return r.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderPaid,
				AggregateType: enums.AggregateOrder,
				AggregateID:   strconv.FormatInt(order.ID, 10),
				Data: payloads.OrderPaidEvent{
					OrderID:       order.ID,
					UserID:        order.UserID,
					TransactionID: record.TransactionID,
					AmountCents:   record.AmountCents,
					Currency:      string(record.Currency),
					PaidAt:        now,
				},
			})
		}
		if next != result.Previous && (next == enums.PaymentStatusFailed || next == enums.PaymentStatusCancelled) {
			eventType := enums.EventPaymentFailed
			if next == enums.PaymentStatusCancelled {
				eventType = enums.EventPaymentCancelled
			}
			return r.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     eventType,
				AggregateType: enums.AggregateOrder,
				AggregateID:   strconv.FormatInt(order.ID, 10),
				Data: payloads.PaymentStatusEvent{
					OrderID:       order.ID,
					TransactionID: record.TransactionID,
					Status:        next,
					GatewayStatus: input.StatusCode,
				},
			})
		}
		return nil
	})
	if err != nil {
		r.logg.Error(ctx, "reconcile payment failed", err)
		return nil, err
	}

	if result.Dropped {
		r.logg.Warn(r.logg.WithField(ctx, "reason", result.DropReason), "gateway snapshot dropped")
		return result, nil
	}
	if result.UnknownCode {
		r.metrics.IncUnknownStatusCode(input.StatusCode)
		r.logg.Warn(ctx, "unknown gateway status code mapped to pending")
		r.sink.Notify(ctx, notifications.New(
			notifications.KindUnknownGatewayStatus,
			notifications.LevelWarning,
			fmt.Sprintf("PayWay sent unknown status code %q for %s", input.StatusCode, input.TransactionID),
			map[string]any{"order_id": orderID, "transaction_id": input.TransactionID, "status_code": input.StatusCode},
		))
	}
	if result.BecamePaid {
		r.metrics.IncPaid()
		r.sink.Notify(ctx, notifications.New(
			notifications.KindOrderPaid,
			notifications.LevelInfo,
			fmt.Sprintf("Order #%d was paid", paidOrder.ID),
			map[string]any{"order_id": paidOrder.ID, "transaction_id": paidTx.TransactionID, "amount_cents": paidTx.AmountCents},
		))
	}
	r.logg.Info(r.logg.WithFields(ctx, map[string]any{
		"previous_status": string(result.Previous),
		"payment_status":  string(result.Status),
	}), "payment reconciled")
	return result, nil
}

// applySnapshot copies the gateway view onto the attempt record. A paid
// attempt stays paid, and the timestamps are only set the first time.
func applySnapshot(record *models.PaymentTransaction, code string, mapped enums.PaymentStatus, snapshot datatypes.JSON, now time.Time) {
	if record.Status != enums.PaymentStatusPaid {
		record.Status = mapped
	}
	gatewayStatus := code
	record.GatewayStatus = &gatewayStatus
	record.RawResponse = snapshot
	if record.ReceivedAt == nil {
		record.ReceivedAt = &now
	}
	if record.ProcessedAt == nil && record.Status.IsTerminal() {
		record.ProcessedAt = &now
	}
}

func snapshotJSON(raw json.RawMessage) datatypes.JSON {
	if len(raw) == 0 || !json.Valid(raw) {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(raw)
}
