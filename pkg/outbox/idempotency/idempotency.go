package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/angkor-storefront/pkg/redis"
)

// Manager remembers which outbox event ids one consumer already handled.
// Pub/Sub delivers at least once; keys are
// angkor:idempotency:evt:processed:<consumer>:<event_id>.
type Manager struct {
	store    redis.Store
	consumer string
	ttl      time.Duration
}

func NewManager(store redis.Store, consumer string, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if consumer == "" {
		return nil, errors.New("consumer name is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{store: store, consumer: consumer, ttl: ttl}, nil
}

// MarkProcessed claims the event. It returns true when another delivery
// already claimed it.
func (m *Manager) MarkProcessed(ctx context.Context, eventID uuid.UUID) (bool, error) {
	key, err := m.key(eventID)
	if err != nil {
		return false, err
	}
	set, err := m.store.SetNX(ctx, key, "1", m.ttl)
	if err != nil {
		return false, fmt.Errorf("mark event %s: %w", eventID, err)
	}
	return !set, nil
}

// Release drops the claim so a redelivery is handled again.
func (m *Manager) Release(ctx context.Context, eventID uuid.UUID) error {
	key, err := m.key(eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) key(eventID uuid.UUID) (string, error) {
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return m.store.Key("idempotency", "evt", "processed", m.consumer, eventID.String()), nil
}
