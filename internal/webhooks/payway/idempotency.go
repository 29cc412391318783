package paywaywebhook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/angkor-storefront/pkg/payway"
	"github.com/angelmondragon/angkor-storefront/pkg/redis"
)

// IdempotencyGuard short-circuits exact pushback re-deliveries. The database
// gate in the reconciler stays authoritative; this only saves the work.
type IdempotencyGuard struct {
	store redis.Store
	ttl   time.Duration
	scope string
}

func NewIdempotencyGuard(store redis.Store, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	switch {
	case store == nil:
		return nil, errors.New("idempotency store is required")
	case ttl < 0:
		return nil, fmt.Errorf("ttl must be non-negative, got %s", ttl)
	case strings.TrimSpace(scope) == "":
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{store: store, ttl: ttl, scope: scope}, nil
}

// DeliveryKey identifies one pushback as tran_id:status:hash.
func DeliveryKey(payload payway.CallbackPayload) string {
	return strings.Join([]string{payload.TranID, payload.StatusCode, payload.Hash}, ":")
}

func (g *IdempotencyGuard) key(delivery string) (string, error) {
	if delivery == "" {
		return "", errors.New("delivery key is required")
	}
	return g.store.Key("idempotency", g.scope, delivery), nil
}

// CheckAndMark reports true when the delivery was already marked.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, delivery string) (bool, error) {
	key, err := g.key(delivery)
	if err != nil {
		return false, err
	}
	fresh, err := g.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), g.ttl)
	if err != nil {
		return false, fmt.Errorf("mark pushback delivery: %w", err)
	}
	return !fresh, nil
}

// Delete releases the mark so the gateway's retry is processed again.
func (g *IdempotencyGuard) Delete(ctx context.Context, delivery string) error {
	key, err := g.key(delivery)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}
