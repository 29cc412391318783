package payments

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/angkor-storefront/internal/notifications"
	"github.com/angelmondragon/angkor-storefront/internal/orders"
	"github.com/angelmondragon/angkor-storefront/internal/users"
	"github.com/angelmondragon/angkor-storefront/pkg/config"
	"github.com/angelmondragon/angkor-storefront/pkg/db/dbtest"
	"github.com/angelmondragon/angkor-storefront/pkg/db/models"
	"github.com/angelmondragon/angkor-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/angkor-storefront/pkg/errors"
	"github.com/angelmondragon/angkor-storefront/pkg/logger"
	"github.com/angelmondragon/angkor-storefront/pkg/metrics"
	"github.com/angelmondragon/angkor-storefront/pkg/outbox"
	"github.com/angelmondragon/angkor-storefront/pkg/payway"
)

var fixedNow = time.Date(2024, 1, 2, 15, 30, 0, 0, time.UTC)

type fakeGateway struct {
	client  *payway.Client
	details payway.TransactionResult
	queries int
}

func (f *fakeGateway) BuildPurchaseRequest(order payway.PurchaseOrder, customer payway.Customer) (*payway.PurchaseRequest, error) {
	return f.client.BuildPurchaseRequest(order, customer)
}

func (f *fakeGateway) GetTransactionDetails(_ context.Context, _ string) payway.TransactionResult {
	f.queries++
	return f.details
}

type env struct {
	conn       *gorm.DB
	reconciler *Reconciler
	svc        Service
	gateway    *fakeGateway
	recorder   *notifications.Recorder
	registry   *prometheus.Registry
	user       *models.User
}

func newEnv(t *testing.T) *env {
	t.Helper()
	client, conn := dbtest.OpenClient(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	registry := prometheus.NewRegistry()
	paymentMetrics := metrics.NewPaymentMetrics(registry)
	recorder := &notifications.Recorder{}
	orderRepo := orders.NewRepository(conn)
	txRepo := NewTransactionRepository(conn)

	reconciler, err := NewReconciler(ReconcilerParams{
		Orders:       orderRepo,
		Transactions: txRepo,
		TxRunner:     client,
		Outbox:       outbox.NewService(outbox.NewRepository(conn), logg),
		Sink:         recorder,
		Metrics:      paymentMetrics,
		Logger:       logg,
		Now:          func() time.Time { return fixedNow },
	})
	require.NoError(t, err)

	pw, err := payway.NewClient(config.PayWayConfig{
		MerchantID:    "ec000001",
		SecretKey:     "top-secret",
		Currency:      "USD",
		Sandbox:       true,
		HashAlgorithm: "sha512",
		RetryAttempts: 1,
		ReturnURL:     "https://api.example.com/api/v1/webhooks/payway",
	}, payway.WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	gateway := &fakeGateway{client: pw}

	userRepo := users.NewRepository(conn)
	svc, err := NewService(ServiceParams{
		Orders:       orderRepo,
		Users:        userRepo,
		Transactions: txRepo,
		Gateway:      gateway,
		Reconciler:   reconciler,
		Metrics:      paymentMetrics,
		Logger:       logg,
	})
	require.NoError(t, err)

	phone := "012345678"
	user, err := userRepo.Create(context.Background(), users.CreateUserDTO{Email: "sokha@example.com", FirstName: "Sokha", LastName: "Chan", Phone: &phone})
	require.NoError(t, err)

	return &env{conn: conn, reconciler: reconciler, svc: svc, gateway: gateway, recorder: recorder, registry: registry, user: user}
}

func (e *env) seedOrder(t *testing.T) *models.Order {
	t.Helper()
	order := &models.Order{
		UserID:          e.user.ID,
		Status:          enums.OrderStatusNew,
		PaymentStatus:   enums.PaymentStatusPending,
		PaymentMethod:   "payway",
		Currency:        enums.CurrencyUSD,
		SubtotalCents:   129700,
		ShippingCents:   250,
		GrandTotalCents: 129950,
		Items: []models.OrderItem{
			{ProductID: 1, Name: "iPhone 15 Pro", SKU: "IP15-BLA-256", Quantity: 1, UnitPriceCents: 129700, TotalCents: 129700},
		},
	}
	require.NoError(t, orders.NewRepository(e.conn).Create(context.Background(), order))
	return order
}

func (e *env) order(t *testing.T, id int64) *models.Order {
	t.Helper()
	order, err := orders.NewRepository(e.conn).FindByID(context.Background(), id)
	require.NoError(t, err)
	return order
}

func (e *env) countEvents(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&count).Error)
	return count
}

func (e *env) countNotices(kind notifications.Kind) int {
	n := 0
	for _, notice := range e.recorder.Notices() {
		if notice.Kind == kind {
			n++
		}
	}
	return n
}

func (e *env) counterValue(t *testing.T, name string) float64 {
	t.Helper()
	families, err := e.registry.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func callback(tranID, code string) ReconcileInput {
	raw, _ := json.Marshal(map[string]any{"tran_id": tranID, "status": map[string]string{"code": code}})
	return ReconcileInput{TransactionID: tranID, StatusCode: code, Payload: raw, Source: SourceWebhook}
}

func TestMapGatewayStatus(t *testing.T) {
	cases := map[string]enums.PaymentStatus{
		"00":  enums.PaymentStatusPaid,
		"01":  enums.PaymentStatusPending,
		"02":  enums.PaymentStatusFailed,
		"03":  enums.PaymentStatusCancelled,
		" 00": enums.PaymentStatusPaid,
		"99":  enums.PaymentStatusPending,
		"":    enums.PaymentStatusPending,
	}
	for code, want := range cases {
		assert.Equal(t, want, MapGatewayStatus(code), "code %q", code)
	}
	assert.True(t, IsKnownStatusCode("03"))
	assert.False(t, IsKnownStatusCode("99"))
}

func TestReconcileDoubleDeliveryEmitsOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	order := e.seedOrder(t)
	tranID := payway.FormatTransactionID(order.ID, fixedNow)

	first, err := e.reconciler.Reconcile(ctx, callback(tranID, "00"))
	require.NoError(t, err)
	assert.True(t, first.BecamePaid)
	assert.Equal(t, enums.PaymentStatusPending, first.Previous)

	afterFirst := e.order(t, order.ID)

	second, err := e.reconciler.Reconcile(ctx, callback(tranID, "00"))
	require.NoError(t, err)
	assert.False(t, second.BecamePaid)
	assert.Equal(t, enums.PaymentStatusPaid, second.Status)

	afterSecond := e.order(t, order.ID)
	assert.Equal(t, enums.PaymentStatusPaid, afterSecond.PaymentStatus)
	assert.Equal(t, enums.OrderStatusProcessing, afterSecond.Status)
	require.NotNil(t, afterSecond.PaidAt)
	assert.True(t, afterFirst.PaidAt.Equal(*afterSecond.PaidAt))
	assert.JSONEq(t, string(afterFirst.PaymentData), string(afterSecond.PaymentData))

	assert.EqualValues(t, 1, e.countEvents(t, enums.EventOrderPaid))
	assert.Equal(t, 1, e.countNotices(notifications.KindOrderPaid))
	assert.Equal(t, 1.0, e.counterValue(t, "angkor_orders_paid_total"))

	var records []models.PaymentTransaction
	require.NoError(t, e.conn.Find(&records).Error)
	require.Len(t, records, 1)
	assert.Equal(t, enums.PaymentStatusPaid, records[0].Status)
	assert.Equal(t, int64(129950), records[0].AmountCents)
	require.NotNil(t, records[0].ProcessedAt)
}

func TestReconcileConcurrentDeliveries(t *testing.T) {
	e := newEnv(t)
	order := e.seedOrder(t)
	tranID := payway.FormatTransactionID(order.ID, fixedNow)

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.reconciler.Reconcile(context.Background(), callback(tranID, "00"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.EqualValues(t, 1, e.countEvents(t, enums.EventOrderPaid))
	assert.Equal(t, 1, e.countNotices(notifications.KindOrderPaid))
}

func TestReconcilePaidIsSticky(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	order := e.seedOrder(t)
	tranID := payway.FormatTransactionID(order.ID, fixedNow)

	_, err := e.reconciler.Reconcile(ctx, callback(tranID, "00"))
	require.NoError(t, err)
	result, err := e.reconciler.Reconcile(ctx, callback(tranID, "02"))
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPaid, result.Status)

	reloaded := e.order(t, order.ID)
	assert.Equal(t, enums.PaymentStatusPaid, reloaded.PaymentStatus)
	assert.Contains(t, string(reloaded.PaymentData), `"02"`, "latest snapshot is still stored")
	assert.Zero(t, e.countEvents(t, enums.EventPaymentFailed))

	var record models.PaymentTransaction
	require.NoError(t, e.conn.First(&record, "transaction_id = ?", tranID).Error)
	assert.Equal(t, enums.PaymentStatusPaid, record.Status)
	require.NotNil(t, record.GatewayStatus)
	assert.Equal(t, "02", *record.GatewayStatus)
}

func TestReconcileFailureAndLaterSuccess(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	order := e.seedOrder(t)
	failedAttempt := payway.FormatTransactionID(order.ID, fixedNow)
	retryAttempt := payway.FormatTransactionID(order.ID, fixedNow.Add(time.Minute))

	_, err := e.reconciler.Reconcile(ctx, callback(failedAttempt, "02"))
	require.NoError(t, err)
	_, err = e.reconciler.Reconcile(ctx, callback(failedAttempt, "02"))
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusFailed, e.order(t, order.ID).PaymentStatus)
	assert.EqualValues(t, 1, e.countEvents(t, enums.EventPaymentFailed))

	result, err := e.reconciler.Reconcile(ctx, callback(retryAttempt, "00"))
	require.NoError(t, err)
	assert.True(t, result.BecamePaid)
	assert.Equal(t, enums.PaymentStatusFailed, result.Previous)

	records, err := NewTransactionRepository(e.conn).ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, enums.PaymentStatusFailed, records[0].Status)
	assert.Equal(t, enums.PaymentStatusPaid, records[1].Status)
}

func TestReconcileCancelledEmitsEvent(t *testing.T) {
	e := newEnv(t)
	order := e.seedOrder(t)
	_, err := e.reconciler.Reconcile(context.Background(), callback(payway.FormatTransactionID(order.ID, fixedNow), "03"))
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCancelled, e.order(t, order.ID).PaymentStatus)
	assert.EqualValues(t, 1, e.countEvents(t, enums.EventPaymentCancelled))
}

func TestReconcileUnknownCodeStaysPending(t *testing.T) {
	e := newEnv(t)
	order := e.seedOrder(t)

	result, err := e.reconciler.Reconcile(context.Background(), callback(payway.FormatTransactionID(order.ID, fixedNow), "99"))
	require.NoError(t, err)
	assert.True(t, result.UnknownCode)
	assert.Equal(t, enums.PaymentStatusPending, result.Status)
	assert.Equal(t, enums.PaymentStatusPending, e.order(t, order.ID).PaymentStatus)
	assert.Equal(t, 1, e.countNotices(notifications.KindUnknownGatewayStatus))
	assert.Equal(t, 1.0, e.counterValue(t, "angkor_payway_unknown_status_codes_total"))
}

func TestReconcileDropsUnattributable(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	result, err := e.reconciler.Reconcile(ctx, callback("INV-12-1704209400", "00"))
	require.NoError(t, err)
	assert.True(t, result.Dropped)

	result, err = e.reconciler.Reconcile(ctx, callback("ORD-999-1704209400", "00"))
	require.NoError(t, err)
	assert.True(t, result.Dropped)
	assert.Equal(t, "order not found", result.DropReason)

	var count int64
	require.NoError(t, e.conn.Model(&models.PaymentTransaction{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Zero(t, e.countEvents(t, enums.EventOrderPaid))
}

func TestInitiatePayment(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	order := e.seedOrder(t)

	session, err := e.svc.InitiatePayment(ctx, e.user.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, payway.FormatTransactionID(order.ID, fixedNow), session.TransactionID)
	assert.Contains(t, session.ActionURL, "/api/payment-gateway/v1/payments/purchase")

	fields := map[string]string{}
	for _, f := range session.Fields {
		fields[f.Name] = f.Value
	}
	assert.Equal(t, "1299.50", fields["amount"])
	assert.Equal(t, "2.50", fields["shipping"])
	assert.Equal(t, "Sokha", fields["firstname"])
	assert.NotEmpty(t, fields["hash"])

	record, err := NewTransactionRepository(e.conn).FindByTransactionID(ctx, session.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPending, record.Status)
	assert.Equal(t, order.ID, record.OrderID)

	_, err = e.svc.InitiatePayment(ctx, e.user.ID+1, order.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestInitiatePaymentRejectsPaidOrder(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	order := e.seedOrder(t)
	_, err := e.reconciler.Reconcile(ctx, callback(payway.FormatTransactionID(order.ID, fixedNow.Add(-time.Hour)), "00"))
	require.NoError(t, err)

	_, err = e.svc.InitiatePayment(ctx, e.user.ID, order.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestSyncTransaction(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	order := e.seedOrder(t)
	tranID := payway.FormatTransactionID(order.ID, fixedNow)

	e.gateway.details = payway.TransactionResult{Error: "attempt 1: gateway returned 503", Attempts: 1}
	result, err := e.svc.SyncTransaction(ctx, tranID)
	require.NoError(t, err)
	assert.False(t, result.Synced)
	assert.Equal(t, order.ID, result.OrderID)
	assert.Equal(t, enums.PaymentStatusPending, e.order(t, order.ID).PaymentStatus)

	e.gateway.details = payway.TransactionResult{
		Success:  true,
		Attempts: 1,
		Data: &payway.TransactionDetails{
			TransactionID: tranID,
			StatusCode:    "00",
			Raw:           json.RawMessage(`{"data":{"payment_status_code":0}}`),
		},
	}
	result, err = e.svc.SyncTransaction(ctx, tranID)
	require.NoError(t, err)
	assert.True(t, result.Synced)
	assert.Equal(t, enums.PaymentStatusPaid, result.Status)
	assert.Equal(t, enums.PaymentStatusPaid, e.order(t, order.ID).PaymentStatus)

	result, err = e.svc.SyncTransaction(ctx, "garbage")
	require.NoError(t, err)
	assert.Zero(t, result.OrderID)
	assert.Equal(t, 2, e.gateway.queries, "unattributable ids never reach the gateway")
}

func TestListStalePending(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	order := e.seedOrder(t)
	repo := NewTransactionRepository(e.conn)

	rows := []models.PaymentTransaction{
		{TransactionID: "stale-pending", Status: enums.PaymentStatusPending, CreatedAt: fixedNow.Add(-2 * time.Hour)},
		{TransactionID: "fresh-pending", Status: enums.PaymentStatusPending, CreatedAt: fixedNow.Add(-time.Minute)},
		{TransactionID: "stale-paid", Status: enums.PaymentStatusPaid, CreatedAt: fixedNow.Add(-3 * time.Hour)},
	}
	for i := range rows {
		rows[i].OrderID = order.ID
		rows[i].Gateway = gatewayName
		rows[i].AmountCents = order.GrandTotalCents
		rows[i].Currency = order.Currency
		require.NoError(t, repo.Create(ctx, &rows[i]))
	}

	stale, err := repo.ListStalePending(ctx, fixedNow.Add(-30*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "stale-pending", stale[0].TransactionID)
}
