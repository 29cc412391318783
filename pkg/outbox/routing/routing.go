// Package routing decides where each outbox row is published and turns the
// stored row into the message the relay sends.
package routing

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/google/uuid"

	"github.com/angelmondragon/angkor-storefront/pkg/config"
	"github.com/angelmondragon/angkor-storefront/pkg/db/models"
	"github.com/angelmondragon/angkor-storefront/pkg/enums"
	"github.com/angelmondragon/angkor-storefront/pkg/outbox"
	"github.com/angelmondragon/angkor-storefront/pkg/outbox/payloads"
)

// ErrPermanent marks failures that retrying cannot fix. The relay parks
// such rows in the dead letter table straight away.
var ErrPermanent = errors.New("permanent delivery failure")

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

func IsPermanent(err error) bool { return errors.Is(err, ErrPermanent) }

// Message attribute names set on every published event.
const (
	AttrEventID       = "event_id"
	AttrEventType     = "event_type"
	AttrAggregateType = "aggregate_type"
	AttrAggregateID   = "aggregate_id"
	AttrVersion       = "version"
)

type Route struct {
	EventType enums.OutboxEventType
	Aggregate enums.OutboxAggregateType
	Topic     string
	check     func(json.RawMessage) error
}

// Delivery is one row ready to publish. Events of the same aggregate share
// an OrderingKey so subscribers see them in commit order.
type Delivery struct {
	EventID     uuid.UUID
	EventType   enums.OutboxEventType
	Topic       string
	OrderingKey string
	Body        []byte
	Attributes  map[string]string
}

type Table struct {
	routes map[enums.OutboxEventType]Route
}

func NewTable(cfg config.PubSubConfig) (*Table, error) {
	if cfg.OrdersTopic == "" || cfg.CatalogTopic == "" {
		return nil, errors.New("orders and catalog topics are required")
	}
	t := &Table{routes: map[enums.OutboxEventType]Route{}}
	t.add(Route{EventType: enums.EventOrderPaid, Aggregate: enums.AggregateOrder, Topic: cfg.OrdersTopic, check: decodes[payloads.OrderPaidEvent]})
	t.add(Route{EventType: enums.EventPaymentFailed, Aggregate: enums.AggregateOrder, Topic: cfg.OrdersTopic, check: decodes[payloads.PaymentStatusEvent]})
	t.add(Route{EventType: enums.EventPaymentCancelled, Aggregate: enums.AggregateOrder, Topic: cfg.OrdersTopic, check: decodes[payloads.PaymentStatusEvent]})
	t.add(Route{EventType: enums.EventProductVariantsChanged, Aggregate: enums.AggregateProduct, Topic: cfg.CatalogTopic, check: decodes[payloads.ProductVariantsChangedEvent]})
	return t, nil
}

func (t *Table) add(r Route) { t.routes[r.EventType] = r }

// Lookup returns the route for an event type.
func (t *Table) Lookup(eventType enums.OutboxEventType) (Route, bool) {
	r, ok := t.routes[eventType]
	return r, ok
}

// Topics lists each routed topic once, sorted.
func (t *Table) Topics() []string {
	var out []string
	for _, r := range t.routes {
		if !slices.Contains(out, r.Topic) {
			out = append(out, r.Topic)
		}
	}
	slices.Sort(out)
	return out
}

// Prepare validates the row against its route. Every error it returns is
// permanent: the row will not get better by waiting.
func (t *Table) Prepare(row models.OutboxEvent) (Delivery, error) {
	route, ok := t.routes[row.EventType]
	if !ok {
		return Delivery{}, Permanent(fmt.Errorf("no route for event type %q", row.EventType))
	}
	if route.Aggregate != row.AggregateType {
		return Delivery{}, Permanent(fmt.Errorf("%s belongs to %s aggregates, row has %s", row.EventType, route.Aggregate, row.AggregateType))
	}
	if row.AggregateID == "" {
		return Delivery{}, Permanent(errors.New("row has no aggregate id"))
	}

	env, eventID, err := outbox.DecodeEnvelope(row.Payload)
	if err != nil {
		return Delivery{}, Permanent(err)
	}
	if err := route.check(env.Data); err != nil {
		return Delivery{}, Permanent(fmt.Errorf("%s data: %w", row.EventType, err))
	}

	return Delivery{
		EventID:     eventID,
		EventType:   row.EventType,
		Topic:       route.Topic,
		OrderingKey: string(row.AggregateType) + ":" + row.AggregateID,
		Body:        row.Payload,
		Attributes: map[string]string{
			AttrEventID:       eventID.String(),
			AttrEventType:     string(row.EventType),
			AttrAggregateType: string(row.AggregateType),
			AttrAggregateID:   row.AggregateID,
			AttrVersion:       strconv.Itoa(env.Version),
		},
	}, nil
}

func decodes[T any](raw json.RawMessage) error {
	var v T
	return json.Unmarshal(raw, &v)
}
