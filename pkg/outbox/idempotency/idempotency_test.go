package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/angkor-storefront/pkg/redis/redistest"
)

func TestMarkProcessedClaimsOnce(t *testing.T) {
	store := redistest.New()
	manager, err := NewManager(store, "stock-commit", 24*time.Hour)
	require.NoError(t, err)
	ctx := context.Background()
	eventID := uuid.New()

	already, err := manager.MarkProcessed(ctx, eventID)
	require.NoError(t, err)
	assert.False(t, already)
	key := "angkor:idempotency:evt:processed:stock-commit:" + eventID.String()
	assert.Equal(t, []string{key}, store.Keys("angkor:idempotency:evt"))
	assert.Equal(t, 24*time.Hour, store.TTL(key))

	already, err = manager.MarkProcessed(ctx, eventID)
	require.NoError(t, err)
	assert.True(t, already)
}

func TestReleaseAllowsRedelivery(t *testing.T) {
	store := redistest.New()
	manager, err := NewManager(store, "stock-commit", time.Hour)
	require.NoError(t, err)
	ctx := context.Background()
	eventID := uuid.New()

	_, err = manager.MarkProcessed(ctx, eventID)
	require.NoError(t, err)
	require.NoError(t, manager.Release(ctx, eventID))

	already, err := manager.MarkProcessed(ctx, eventID)
	require.NoError(t, err)
	assert.False(t, already)
}

func TestConsumersAreIsolated(t *testing.T) {
	store := redistest.New()
	a, err := NewManager(store, "stock-commit", time.Hour)
	require.NoError(t, err)
	b, err := NewManager(store, "receipts", time.Hour)
	require.NoError(t, err)
	eventID := uuid.New()

	_, err = a.MarkProcessed(context.Background(), eventID)
	require.NoError(t, err)
	already, err := b.MarkProcessed(context.Background(), eventID)
	require.NoError(t, err)
	assert.False(t, already)
}

func TestMarkProcessedErrors(t *testing.T) {
	store := redistest.New()
	store.Err = errors.New("boom")
	manager, err := NewManager(store, "stock-commit", time.Hour)
	require.NoError(t, err)

	_, err = manager.MarkProcessed(context.Background(), uuid.New())
	assert.Error(t, err)
	_, err = manager.MarkProcessed(context.Background(), uuid.Nil)
	assert.Error(t, err)
}

func TestNewManagerValidates(t *testing.T) {
	_, err := NewManager(nil, "x", time.Hour)
	assert.Error(t, err)
	_, err = NewManager(redistest.New(), "", time.Hour)
	assert.Error(t, err)
	_, err = NewManager(redistest.New(), "x", -time.Second)
	assert.Error(t, err)
}
