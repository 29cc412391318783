package stock

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/angkor-storefront/internal/notifications"
	"github.com/angelmondragon/angkor-storefront/pkg/db/dbtest"
	"github.com/angelmondragon/angkor-storefront/pkg/db/models"
	"github.com/angelmondragon/angkor-storefront/pkg/enums"
	"github.com/angelmondragon/angkor-storefront/pkg/logger"
	"github.com/angelmondragon/angkor-storefront/pkg/outbox"
	"github.com/angelmondragon/angkor-storefront/pkg/outbox/payloads"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "stock-test", Output: io.Discard})
}

type fixture struct {
	conn      *gorm.DB
	committer *Committer
	recorder  *notifications.Recorder
	simple    models.Product
	phone     models.Product
	variant   models.ProductVariant
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client, conn := dbtest.OpenClient(t)
	recorder := &notifications.Recorder{}
	committer, err := NewCommitter(client, recorder, testLogger())
	require.NoError(t, err)

	simple := models.Product{
		SKU: "KRAMA-RED", Name: "Silk Krama", Slug: "silk-krama", PriceCents: 1500,
		TrackInventory: true, StockQuantity: 10, StockStatus: enums.StockStatusInStock,
		LowStockThreshold: 3, IsActive: true,
	}
	require.NoError(t, conn.Create(&simple).Error)
	phone := models.Product{
		SKU: "IP15", Name: "iPhone 15 Pro", Slug: "iphone-15-pro", PriceCents: 129700,
		HasVariants: true, StockStatus: enums.StockStatusInStock, LowStockThreshold: 2, IsActive: true,
	}
	require.NoError(t, conn.Create(&phone).Error)
	variant := models.ProductVariant{
		ProductID: phone.ID, SKU: "IP15-BLA-256", StockQuantity: 4, IsActive: true, IsDefault: true,
		Options: []models.VariantOption{{Name: "Color", Value: "Black"}, {Name: "Storage", Value: "256GB"}},
	}
	require.NoError(t, conn.Create(&variant).Error)

	return &fixture{conn: conn, committer: committer, recorder: recorder, simple: simple, phone: phone, variant: variant}
}

func (f *fixture) seedOrder(t *testing.T, status enums.PaymentStatus, items ...models.OrderItem) int64 {
	t.Helper()
	order := models.Order{
		UserID: 1, Status: enums.OrderStatusProcessing, PaymentStatus: status, PaymentMethod: "payway",
		Currency: enums.CurrencyUSD, SubtotalCents: 1, GrandTotalCents: 1, Items: items,
	}
	require.NoError(t, f.conn.Create(&order).Error)
	return order.ID
}

func (f *fixture) stockOf(t *testing.T, model any, id int64) int {
	t.Helper()
	var qty []int
	require.NoError(t, f.conn.Model(model).Where("id = ?", id).Pluck("stock_quantity", &qty).Error)
	require.Len(t, qty, 1)
	return qty[0]
}

func line(productID int64, variantID *int64, sku string, qty int) models.OrderItem {
	return models.OrderItem{ProductID: productID, VariantID: variantID, Name: sku, SKU: sku, Quantity: qty, UnitPriceCents: 1, TotalCents: int64(qty)}
}

func TestCommitOrderDecrementsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orderID := f.seedOrder(t, enums.PaymentStatusPaid,
		line(f.simple.ID, nil, f.simple.SKU, 2),
		line(f.phone.ID, &f.variant.ID, f.variant.SKU, 3),
	)

	result, err := f.committer.CommitOrder(ctx, orderID)
	require.NoError(t, err)
	assert.True(t, result.Committed)
	assert.Equal(t, []int64{f.simple.ID, f.phone.ID}, result.Products)
	assert.Equal(t, 8, f.stockOf(t, &models.Product{}, f.simple.ID))
	assert.Equal(t, 1, f.stockOf(t, &models.ProductVariant{}, f.variant.ID))
	assert.True(t, f.recorder.Has(notifications.KindLowStock), "variant at 1 is below threshold 2")

	again, err := f.committer.CommitOrder(ctx, orderID)
	require.NoError(t, err)
	assert.False(t, again.Committed)
	assert.Equal(t, 8, f.stockOf(t, &models.Product{}, f.simple.ID))
}

func TestCommitOrderFloorsAtZero(t *testing.T) {
	f := newFixture(t)
	orderID := f.seedOrder(t, enums.PaymentStatusPaid, line(f.simple.ID, nil, f.simple.SKU, 25))

	_, err := f.committer.CommitOrder(context.Background(), orderID)
	require.NoError(t, err)
	assert.Zero(t, f.stockOf(t, &models.Product{}, f.simple.ID))
}

func TestCommitOrderSkipsUnpaidAndUntracked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pending := f.seedOrder(t, enums.PaymentStatusPending, line(f.simple.ID, nil, f.simple.SKU, 1))

	result, err := f.committer.CommitOrder(ctx, pending)
	require.NoError(t, err)
	assert.False(t, result.Committed)
	assert.Equal(t, 10, f.stockOf(t, &models.Product{}, f.simple.ID))

	require.NoError(t, f.conn.Model(&models.Product{}).Where("id = ?", f.simple.ID).Update("track_inventory", false).Error)
	paid := f.seedOrder(t, enums.PaymentStatusPaid, line(f.simple.ID, nil, f.simple.SKU, 1))
	result, err = f.committer.CommitOrder(ctx, paid)
	require.NoError(t, err)
	assert.True(t, result.Committed)
	assert.Empty(t, result.Products)
	assert.Equal(t, 10, f.stockOf(t, &models.Product{}, f.simple.ID))
}

type fakeCommitter struct {
	calls []int64
	err   error
}

func (f *fakeCommitter) CommitOrder(_ context.Context, orderID int64) (*CommitResult, error) {
	f.calls = append(f.calls, orderID)
	if f.err != nil {
		return nil, f.err
	}
	return &CommitResult{Committed: true}, nil
}

type fakeClaims struct {
	claimed  map[uuid.UUID]bool
	released []uuid.UUID
	err      error
}

func (f *fakeClaims) MarkProcessed(_ context.Context, id uuid.UUID) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.claimed[id] {
		return true, nil
	}
	f.claimed[id] = true
	return false, nil
}

func (f *fakeClaims) Release(_ context.Context, id uuid.UUID) error {
	delete(f.claimed, id)
	f.released = append(f.released, id)
	return nil
}

type idleReceiver struct{}

func (idleReceiver) Receive(ctx context.Context, _ func(context.Context, *pubsub.Message)) error {
	<-ctx.Done()
	return ctx.Err()
}

func paidMessage(t *testing.T, eventID uuid.UUID, orderID int64) *pubsub.Message {
	t.Helper()
	data, err := json.Marshal(payloads.OrderPaidEvent{OrderID: orderID, TransactionID: "ORD-1-1700000000", PaidAt: time.Now()})
	require.NoError(t, err)
	body, err := json.Marshal(outbox.PayloadEnvelope{Version: 1, EventID: eventID.String(), OccurredAt: time.Now(), Data: data})
	require.NoError(t, err)
	return &pubsub.Message{
		ID:         "m-1",
		Data:       body,
		Attributes: map[string]string{"event_type": string(enums.EventOrderPaid), "event_id": eventID.String()},
	}
}

func newTestConsumer(t *testing.T, committer *fakeCommitter, claims *fakeClaims) *Consumer {
	t.Helper()
	c, err := NewConsumer(committer, claims, idleReceiver{}, testLogger())
	require.NoError(t, err)
	return c
}

func TestConsumerCommitsOncePerEvent(t *testing.T) {
	committer := &fakeCommitter{}
	claims := &fakeClaims{claimed: map[uuid.UUID]bool{}}
	c := newTestConsumer(t, committer, claims)
	eventID := uuid.New()

	assert.True(t, c.process(context.Background(), paidMessage(t, eventID, 42)))
	assert.True(t, c.process(context.Background(), paidMessage(t, eventID, 42)))
	assert.Equal(t, []int64{42}, committer.calls)
}

func TestConsumerRetriesFailedCommit(t *testing.T) {
	committer := &fakeCommitter{err: errors.New("db down")}
	claims := &fakeClaims{claimed: map[uuid.UUID]bool{}}
	c := newTestConsumer(t, committer, claims)
	eventID := uuid.New()

	assert.False(t, c.process(context.Background(), paidMessage(t, eventID, 7)))
	assert.Equal(t, []uuid.UUID{eventID}, claims.released)

	committer.err = nil
	assert.True(t, c.process(context.Background(), paidMessage(t, eventID, 7)))
	assert.Equal(t, []int64{7, 7}, committer.calls)
}

func TestConsumerAcksIrrelevantAndMalformed(t *testing.T) {
	committer := &fakeCommitter{}
	claims := &fakeClaims{claimed: map[uuid.UUID]bool{}}
	c := newTestConsumer(t, committer, claims)

	other := &pubsub.Message{Attributes: map[string]string{"event_type": string(enums.EventPaymentFailed)}, Data: []byte(`{}`)}
	assert.True(t, c.process(context.Background(), other))

	broken := &pubsub.Message{Attributes: map[string]string{"event_type": string(enums.EventOrderPaid)}, Data: []byte(`not json`)}
	assert.True(t, c.process(context.Background(), broken))
	assert.Empty(t, committer.calls)
}

func TestConsumerNacksWhenRedisFails(t *testing.T) {
	committer := &fakeCommitter{}
	claims := &fakeClaims{claimed: map[uuid.UUID]bool{}, err: errors.New("redis down")}
	c := newTestConsumer(t, committer, claims)

	assert.False(t, c.process(context.Background(), paidMessage(t, uuid.New(), 3)))
	assert.Empty(t, committer.calls)
}

func TestRunStopsWithContext(t *testing.T) {
	c := newTestConsumer(t, &fakeCommitter{}, &fakeClaims{claimed: map[uuid.UUID]bool{}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Run(ctx), context.Canceled)
}
