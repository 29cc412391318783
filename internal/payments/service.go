package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/angkor-storefront/internal/orders"
	"github.com/angelmondragon/angkor-storefront/internal/users"
	"github.com/angelmondragon/angkor-storefront/pkg/db"
	"github.com/angelmondragon/angkor-storefront/pkg/db/models"
	"github.com/angelmondragon/angkor-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/angkor-storefront/pkg/errors"
	"github.com/angelmondragon/angkor-storefront/pkg/logger"
	"github.com/angelmondragon/angkor-storefront/pkg/metrics"
	"github.com/angelmondragon/angkor-storefront/pkg/payway"
)

// Gateway is the subset of the PayWay client the service needs.
type Gateway interface {
	BuildPurchaseRequest(order payway.PurchaseOrder, customer payway.Customer) (*payway.PurchaseRequest, error)
	GetTransactionDetails(ctx context.Context, tranID string) payway.TransactionResult
}

type userFinder interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
}

// Service starts hosted checkouts and syncs transactions on return.
type Service interface {
	InitiatePayment(ctx context.Context, userID, orderID int64) (*CheckoutSession, error)
	SyncTransaction(ctx context.Context, tranID string) (*SyncResult, error)
}

// CheckoutSession is what the browser needs to post to the gateway.
type CheckoutSession struct {
	ActionURL     string         `json:"action_url"`
	TransactionID string         `json:"tran_id"`
	Fields        []payway.Field `json:"fields"`
}

// SyncResult reports the outcome of a return-path status query. OrderID is
// zero when the transaction id cannot be attributed.
type SyncResult struct {
	OrderID int64               `json:"order_id"`
	Synced  bool                `json:"synced"`
	Status  enums.PaymentStatus `json:"status,omitempty"`
	Error   string              `json:"error,omitempty"`
}

type ServiceParams struct {
	Orders       orders.Repository
	Users        userFinder
	Transactions *TransactionRepository
	Gateway      Gateway
	Reconciler   *Reconciler
	Metrics      *metrics.PaymentMetrics
	Logger       *logger.Logger
}

type service struct {
	orders       orders.Repository
	users        userFinder
	transactions *TransactionRepository
	gateway      Gateway
	reconciler   *Reconciler
	metrics      *metrics.PaymentMetrics
	logg         *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if params.Transactions == nil {
		return nil, fmt.Errorf("transaction repository required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payway gateway required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		orders:       params.Orders,
		users:        params.Users,
		transactions: params.Transactions,
		gateway:      params.Gateway,
		reconciler:   params.Reconciler,
		metrics:      params.Metrics,
		logg:         params.Logger,
	}, nil
}

// InitiatePayment builds a signed purchase request for the order and records
// a pending attempt. It is never retried.
func (s *service) InitiatePayment(ctx context.Context, userID, orderID int64) (*CheckoutSession, error) {
	ctx = s.logg.WithOrderID(ctx, orderID)

	order, err := s.orders.FindForUser(ctx, userID, orderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.PaymentStatus == enums.PaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid")
	}
	if order.Status == enums.OrderStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is cancelled")
	}

	customer, err := s.users.FindByID(ctx, order.UserID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order customer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}

	purchase, err := s.gateway.BuildPurchaseRequest(toPurchaseOrder(order), toCustomer(customer))
	if err != nil {
		return nil, err
	}

	record := &models.PaymentTransaction{
		OrderID:       order.ID,
		TransactionID: purchase.TransactionID,
		Gateway:       gatewayName,
		AmountCents:   order.GrandTotalCents,
		Currency:      order.Currency,
		Status:        enums.PaymentStatusPending,
	}
	if err := s.transactions.Create(ctx, record); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "a checkout for this order was just started; retry")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment attempt")
	}

	s.logg.Info(s.logg.WithTransactionID(ctx, purchase.TransactionID), "payway checkout initiated")
	return &CheckoutSession{
		ActionURL:     purchase.ActionURL,
		TransactionID: purchase.TransactionID,
		Fields:        purchase.Params.Fields(),
	}, nil
}

// SyncTransaction asks the gateway for the transaction's status and
// reconciles it. The query runs before any database transaction opens.
// Gateway failures are reported in the result, not as errors, because the
// pushback remains authoritative.
func (s *service) SyncTransaction(ctx context.Context, tranID string) (*SyncResult, error) {
	tranID = strings.TrimSpace(tranID)
	ctx = s.logg.WithTransactionID(ctx, tranID)

	orderID, ok := payway.ExtractOrderID(tranID)
	if !ok {
		s.logg.Warn(ctx, "return redirect carries an unattributable transaction id")
		return &SyncResult{Error: "unknown transaction"}, nil
	}

	started := time.Now()
	details := s.gateway.GetTransactionDetails(ctx, tranID)
	s.metrics.ObserveStatusQuery(details.Success, details.Attempts, time.Since(started))
	if !details.Success || details.Data == nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", details.Error), "payway status query failed")
		return &SyncResult{OrderID: orderID, Error: details.Error}, nil
	}

	result, err := s.reconciler.Reconcile(ctx, ReconcileInput{
		TransactionID: tranID,
		StatusCode:    details.Data.StatusCode,
		Payload:       details.Data.Raw,
		Source:        SourceReturn,
	})
	if err != nil {
		return nil, err
	}
	if result.Dropped {
		return &SyncResult{OrderID: orderID, Error: result.DropReason}, nil
	}
	return &SyncResult{OrderID: orderID, Synced: true, Status: result.Status}, nil
}

func toPurchaseOrder(order *models.Order) payway.PurchaseOrder {
	items := make([]payway.Item, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, payway.Item{Name: it.Name, Quantity: it.Quantity, PriceCents: it.UnitPriceCents})
	}
	return payway.PurchaseOrder{
		OrderID:       order.ID,
		AmountCents:   order.GrandTotalCents,
		ShippingCents: order.ShippingCents,
		Currency:      string(order.Currency),
		Items:         items,
	}
}

func toCustomer(user *models.User) payway.Customer {
	dto := users.FromModel(user)
	customer := payway.Customer{
		FirstName: dto.FirstName,
		LastName:  dto.LastName,
		Email:     dto.Email,
	}
	if dto.Phone != nil {
		customer.Phone = *dto.Phone
	}
	return customer
}
