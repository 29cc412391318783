// Package paywaywebhook handles PayWay pushbacks: signature verification,
// re-delivery suppression and hand-off to the payment reconciler.
package paywaywebhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/angelmondragon/angkor-storefront/internal/payments"
	pkgerrors "github.com/angelmondragon/angkor-storefront/pkg/errors"
	"github.com/angelmondragon/angkor-storefront/pkg/logger"
	"github.com/angelmondragon/angkor-storefront/pkg/metrics"
	"github.com/angelmondragon/angkor-storefront/pkg/payway"
)

type verifier interface {
	VerificationEnabled() bool
	VerifyCallback(payload payway.CallbackPayload) bool
}

type reconciler interface {
	Reconcile(ctx context.Context, input payments.ReconcileInput) (*payments.ReconcileResult, error)
}

type ServiceParams struct {
	Verifier   verifier
	Reconciler reconciler
	Metrics    *metrics.PaymentMetrics
	Logger     *logger.Logger
	Timeout    time.Duration
}

type Service struct {
	verifier   verifier
	reconciler reconciler
	metrics    *metrics.PaymentMetrics
	logg       *logger.Logger
	timeout    time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Verifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payway verifier required")
	}
	if params.Reconciler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment reconciler required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		verifier:   params.Verifier,
		reconciler: params.Reconciler,
		metrics:    params.Metrics,
		logg:       params.Logger,
		timeout:    params.Timeout,
	}, nil
}

// HandleCallback verifies and reconciles one pushback. Unattributable
// pushbacks are accepted and dropped so the gateway stops retrying them.
func (s *Service) HandleCallback(ctx context.Context, payload payway.CallbackPayload) (*payments.ReconcileResult, error) {
	ctx = s.logg.WithTransactionID(ctx, payload.TranID)

	if payload.TranID == "" || payload.StatusCode == "" {
		s.metrics.IncWebhook(metrics.WebhookMalformed)
		s.logg.Warn(s.logg.WithField(ctx, "payload", payload.Fields), "payway pushback missing tran_id or status")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tran_id and status are required")
	}

	if s.verifier.VerificationEnabled() && !s.verifier.VerifyCallback(payload) {
		s.metrics.IncWebhook(metrics.WebhookInvalidSignature)
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"payload":     payload.Fields,
			"status_code": payload.StatusCode,
			"hash":        payload.Hash,
		}), "payway pushback signature mismatch")
		return nil, pkgerrors.New(pkgerrors.CodeSignature, "invalid callback signature")
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	raw, err := json.Marshal(payload.Fields)
	if err != nil {
		s.metrics.IncWebhook(metrics.WebhookError)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode pushback snapshot")
	}

	result, err := s.reconciler.Reconcile(ctx, payments.ReconcileInput{
		TransactionID: payload.TranID,
		StatusCode:    payload.StatusCode,
		Payload:       raw,
		Source:        payments.SourceWebhook,
	})
	if err != nil {
		s.metrics.IncWebhook(metrics.WebhookError)
		return nil, err
	}
	if result.Dropped {
		s.metrics.IncWebhook(metrics.WebhookUnattributable)
		return result, nil
	}
	s.metrics.IncWebhook(metrics.WebhookAccepted)
	s.logg.Info(ctx, fmt.Sprintf("payway pushback processed as %s", result.Status))
	return result, nil
}

// RecordDuplicate counts a pushback suppressed by the idempotency guard.
func (s *Service) RecordDuplicate() {
	s.metrics.IncWebhook(metrics.WebhookDuplicate)
}
