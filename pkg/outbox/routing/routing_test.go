package routing

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/angkor-storefront/pkg/config"
	"github.com/angelmondragon/angkor-storefront/pkg/db/models"
	"github.com/angelmondragon/angkor-storefront/pkg/enums"
	"github.com/angelmondragon/angkor-storefront/pkg/outbox"
	"github.com/angelmondragon/angkor-storefront/pkg/outbox/payloads"
)

func table(t *testing.T) *Table {
	t.Helper()
	tbl, err := NewTable(config.PubSubConfig{OrdersTopic: "orders-topic", CatalogTopic: "catalog-topic"})
	require.NoError(t, err)
	return tbl
}

func envelope(t *testing.T, id uuid.UUID, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	body, err := json.Marshal(outbox.PayloadEnvelope{Version: 1, EventID: id.String(), OccurredAt: time.Now().UTC(), Data: raw})
	require.NoError(t, err)
	return body
}

func TestPrepareOrderPaid(t *testing.T) {
	id := uuid.New()
	row := models.OutboxEvent{
		ID:            id,
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateOrder,
		AggregateID:   "42",
		Payload:       envelope(t, id, payloads.OrderPaidEvent{OrderID: 42, TransactionID: "ORD-42-1704209400", AmountCents: 1250, Currency: "USD"}),
	}

	d, err := table(t).Prepare(row)
	require.NoError(t, err)
	assert.Equal(t, "orders-topic", d.Topic)
	assert.Equal(t, "order:42", d.OrderingKey)
	assert.Equal(t, id, d.EventID)
	assert.Equal(t, []byte(row.Payload), d.Body)
	assert.Equal(t, map[string]string{
		AttrEventID:       id.String(),
		AttrEventType:     "order_paid",
		AttrAggregateType: "order",
		AttrAggregateID:   "42",
		AttrVersion:       "1",
	}, d.Attributes)
}

func TestPrepareRoutesCatalogEvents(t *testing.T) {
	id := uuid.New()
	d, err := table(t).Prepare(models.OutboxEvent{
		EventType:     enums.EventProductVariantsChanged,
		AggregateType: enums.AggregateProduct,
		AggregateID:   "7",
		Payload:       envelope(t, id, payloads.ProductVariantsChangedEvent{ProductID: 7, Mode: "VARIANT"}),
	})
	require.NoError(t, err)
	assert.Equal(t, "catalog-topic", d.Topic)
	assert.Equal(t, "product:7", d.OrderingKey)
	assert.Equal(t, []string{"catalog-topic", "orders-topic"}, table(t).Topics())
}

func TestPrepareRejectsPermanently(t *testing.T) {
	id := uuid.New()
	cases := map[string]models.OutboxEvent{
		"unknown event": {
			EventType: "order_shipped", AggregateType: enums.AggregateOrder, AggregateID: "1",
			Payload: envelope(t, id, map[string]any{}),
		},
		"aggregate mismatch": {
			EventType: enums.EventOrderPaid, AggregateType: enums.AggregateProduct, AggregateID: "1",
			Payload: envelope(t, id, map[string]any{"order_id": 1}),
		},
		"missing aggregate id": {
			EventType: enums.EventOrderPaid, AggregateType: enums.AggregateOrder,
			Payload: envelope(t, id, map[string]any{"order_id": 1}),
		},
		"null data": {
			EventType: enums.EventPaymentFailed, AggregateType: enums.AggregateOrder, AggregateID: "1",
			Payload: envelope(t, id, nil),
		},
		"wrong data shape": {
			EventType: enums.EventOrderPaid, AggregateType: enums.AggregateOrder, AggregateID: "1",
			Payload: envelope(t, id, map[string]any{"order_id": "one"}),
		},
		"broken envelope": {
			EventType: enums.EventPaymentCancelled, AggregateType: enums.AggregateOrder, AggregateID: "1",
			Payload: json.RawMessage(`{"data":`),
		},
	}
	for name, row := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := table(t).Prepare(row)
			require.Error(t, err)
			assert.True(t, IsPermanent(err))
		})
	}
}

func TestPermanentWrapping(t *testing.T) {
	cause := errors.New("bad")
	err := Permanent(cause)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsPermanent(err))
	assert.False(t, IsPermanent(cause))
	assert.NoError(t, Permanent(nil))
}

func TestNewTableRequiresTopics(t *testing.T) {
	_, err := NewTable(config.PubSubConfig{OrdersTopic: "orders"})
	assert.Error(t, err)
}
