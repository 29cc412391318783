package paywaywebhook

import (
	"context"
	"errors"
	"io"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/angkor-storefront/internal/payments"
	"github.com/angelmondragon/angkor-storefront/pkg/config"
	"github.com/angelmondragon/angkor-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/angkor-storefront/pkg/errors"
	"github.com/angelmondragon/angkor-storefront/pkg/logger"
	"github.com/angelmondragon/angkor-storefront/pkg/payway"
	"github.com/angelmondragon/angkor-storefront/pkg/redis/redistest"
)

type stubReconciler struct {
	calls  []payments.ReconcileInput
	result *payments.ReconcileResult
	err    error
}

func (s *stubReconciler) Reconcile(_ context.Context, input payments.ReconcileInput) (*payments.ReconcileResult, error) {
	s.calls = append(s.calls, input)
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return &payments.ReconcileResult{OrderID: 482, Status: payments.MapGatewayStatus(input.StatusCode)}, nil
}

func newClient(t *testing.T, verify bool) *payway.Client {
	t.Helper()
	client, err := payway.NewClient(config.PayWayConfig{
		MerchantID:    "ec000001",
		SecretKey:     "top-secret",
		HashAlgorithm: "sha512",
		VerifyWebhook: verify,
		RetryAttempts: 1,
	})
	require.NoError(t, err)
	return client
}

func signedPushback(client *payway.Client, tranID, code string) payway.CallbackPayload {
	values := url.Values{}
	values.Set("tran_id", tranID)
	values.Set("apv", "123456")
	values.Set("status[code]", code)
	values.Set("extra", "kept")
	values.Set("hash", client.SignCallback(tranID, "123456", code))
	return payway.ParseCallbackForm(values)
}

func newService(t *testing.T, client *payway.Client, rec *stubReconciler) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Verifier:   client,
		Reconciler: rec,
		Logger:     logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Timeout:    time.Second,
	})
	require.NoError(t, err)
	return svc
}

func TestHandleCallbackReconcilesVerifiedPushback(t *testing.T) {
	client := newClient(t, true)
	rec := &stubReconciler{}
	svc := newService(t, client, rec)

	result, err := svc.HandleCallback(context.Background(), signedPushback(client, "ORD-482-1704209400", "00"))
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPaid, result.Status)
	require.Len(t, rec.calls, 1)
	assert.Equal(t, payments.SourceWebhook, rec.calls[0].Source)
	assert.Contains(t, string(rec.calls[0].Payload), `"extra":"kept"`)
}

func TestHandleCallbackRejectsTamperedHash(t *testing.T) {
	client := newClient(t, true)
	rec := &stubReconciler{}
	svc := newService(t, client, rec)

	payload := signedPushback(client, "ORD-482-1704209400", "00")
	payload.StatusCode = "02"
	_, err := svc.HandleCallback(context.Background(), payload)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeSignature))
	assert.Empty(t, rec.calls)
}

func TestHandleCallbackSkipsVerificationWhenDisabled(t *testing.T) {
	client := newClient(t, false)
	rec := &stubReconciler{}
	svc := newService(t, client, rec)

	payload := signedPushback(client, "ORD-482-1704209400", "00")
	payload.Hash = "nope"
	_, err := svc.HandleCallback(context.Background(), payload)
	require.NoError(t, err)
	assert.Len(t, rec.calls, 1)
}

func TestHandleCallbackMalformed(t *testing.T) {
	client := newClient(t, true)
	svc := newService(t, client, &stubReconciler{})
	_, err := svc.HandleCallback(context.Background(), payway.CallbackPayload{TranID: "ORD-1-1"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestHandleCallbackPropagatesReconcileError(t *testing.T) {
	client := newClient(t, true)
	rec := &stubReconciler{err: pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("db down"), "lock order")}
	svc := newService(t, client, rec)
	_, err := svc.HandleCallback(context.Background(), signedPushback(client, "ORD-482-1704209400", "00"))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestIdempotencyGuard(t *testing.T) {
	store := redistest.New()
	guard, err := NewIdempotencyGuard(store, time.Hour, "payway")
	require.NoError(t, err)
	ctx := context.Background()

	key := DeliveryKey(payway.CallbackPayload{TranID: "ORD-1-1", StatusCode: "00", Hash: "abc"})
	assert.Equal(t, "ORD-1-1:00:abc", key)

	seen, err := guard.CheckAndMark(ctx, key)
	require.NoError(t, err)
	assert.False(t, seen)
	seen, err = guard.CheckAndMark(ctx, key)
	require.NoError(t, err)
	assert.True(t, seen)
	assert.Equal(t, time.Hour, store.TTL("angkor:idempotency:payway:ORD-1-1:00:abc"))

	require.NoError(t, guard.Delete(ctx, key))
	seen, err = guard.CheckAndMark(ctx, key)
	require.NoError(t, err)
	assert.False(t, seen)

	_, err = guard.CheckAndMark(ctx, "")
	assert.Error(t, err)
	_, err = NewIdempotencyGuard(nil, time.Hour, "payway")
	assert.Error(t, err)
}
