// Package stock consumes order_paid events and takes the sold quantities out
// of inventory.
package stock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/angkor-storefront/pkg/enums"
	"github.com/angelmondragon/angkor-storefront/pkg/logger"
	"github.com/angelmondragon/angkor-storefront/pkg/outbox"
	"github.com/angelmondragon/angkor-storefront/pkg/outbox/payloads"
	"github.com/angelmondragon/angkor-storefront/pkg/outbox/routing"
)

// ConsumerName scopes this consumer's idempotency keys.
const ConsumerName = "stock-commit"

type orderCommitter interface {
	CommitOrder(ctx context.Context, orderID int64) (*CommitResult, error)
}

type eventClaims interface {
	MarkProcessed(ctx context.Context, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, eventID uuid.UUID) error
}

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

type Consumer struct {
	committer    orderCommitter
	claims       eventClaims
	subscription receiver
	logg         *logger.Logger
}

func NewConsumer(committer orderCommitter, claims eventClaims, subscription receiver, logg *logger.Logger) (*Consumer, error) {
	if committer == nil {
		return nil, errors.New("stock committer is required")
	}
	if claims == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if subscription == nil {
		return nil, errors.New("subscription is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Consumer{committer: committer, claims: claims, subscription: subscription, logg: logg}, nil
}

// Run receives until ctx is canceled or the subscription fails.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// process reports whether the message should be acked. Malformed messages are
// acked so they do not loop forever; commit failures are retried.
func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) bool {
	eventType := enums.OutboxEventType(msg.Attributes[routing.AttrEventType])
	ctx = c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": string(eventType),
		"event_id":   msg.Attributes[routing.AttrEventID],
	})
	if eventType != enums.EventOrderPaid {
		return true
	}

	event, eventID, err := decodeOrderPaid(msg.Data)
	if err != nil {
		c.logg.Error(ctx, "dropping malformed order_paid message", err)
		return true
	}
	ctx = c.logg.WithOrderID(ctx, event.OrderID)

	already, err := c.claims.MarkProcessed(ctx, eventID)
	if err != nil {
		c.logg.Error(ctx, "idempotency check failed", err)
		return false
	}
	if already {
		c.logg.Info(ctx, "order_paid already handled")
		return true
	}

	result, err := c.committer.CommitOrder(ctx, event.OrderID)
	if err != nil {
		c.logg.Error(ctx, "stock commit failed", err)
		if relErr := c.claims.Release(ctx, eventID); relErr != nil {
			c.logg.Error(ctx, "failed to release event claim", relErr)
		}
		return false
	}
	if !result.Committed {
		c.logg.Info(ctx, "order stock already committed or order not paid")
	}
	return true
}

func decodeOrderPaid(data []byte) (payloads.OrderPaidEvent, uuid.UUID, error) {
	var event payloads.OrderPaidEvent
	envelope, eventID, err := outbox.DecodeEnvelope(data)
	if err != nil {
		return event, uuid.Nil, err
	}
	if err := json.Unmarshal(envelope.Data, &event); err != nil {
		return event, uuid.Nil, fmt.Errorf("decode order_paid: %w", err)
	}
	if event.OrderID <= 0 {
		return event, uuid.Nil, errors.New("order_paid without order id")
	}
	return event, eventID, nil
}
