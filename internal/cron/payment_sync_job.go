package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/angkor-storefront/internal/payments"
	"github.com/angelmondragon/angkor-storefront/pkg/db/models"
	"github.com/angelmondragon/angkor-storefront/pkg/logger"
	"github.com/angelmondragon/angkor-storefront/pkg/metrics"
)

const (
	paymentSyncJobName      = "payment-sync"
	defaultPaymentSyncAfter = 15 * time.Minute
	defaultPaymentSyncBatch = 50
)

type stalePaymentLister interface {
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.PaymentTransaction, error)
}

type transactionSyncer interface {
	SyncTransaction(ctx context.Context, tranID string) (*payments.SyncResult, error)
}

type PaymentSyncJobParams struct {
	Logger       *logger.Logger
	Transactions stalePaymentLister
	Payments     transactionSyncer
	Metrics      *metrics.CronJobMetrics
	// After is how long a checkout may stay pending before it is queried.
	After     time.Duration
	BatchSize int
}

// NewPaymentSyncJob queries the gateway for checkouts whose pushback never
// arrived. It goes through the same reconcile path as the return redirect.
func NewPaymentSyncJob(params PaymentSyncJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Transactions == nil {
		return nil, fmt.Errorf("transaction repository required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments service required")
	}
	after := params.After
	if after <= 0 {
		after = defaultPaymentSyncAfter
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultPaymentSyncBatch
	}
	return &paymentSyncJob{
		logg:     params.Logger,
		txs:      params.Transactions,
		payments: params.Payments,
		metrics:  params.Metrics,
		after:    after,
		batch:    batch,
		now:      time.Now,
	}, nil
}

type paymentSyncJob struct {
	logg     *logger.Logger
	txs      stalePaymentLister
	payments transactionSyncer
	metrics  *metrics.CronJobMetrics
	after    time.Duration
	batch    int
	now      func() time.Time
}

func (j *paymentSyncJob) Name() string { return paymentSyncJobName }

func (j *paymentSyncJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.after)
	rows, err := j.txs.ListStalePending(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("list stale payments: %w", err)
	}

	var synced, failed int64
	for _, row := range rows {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rowCtx := j.logg.WithTransactionID(ctx, row.TransactionID)
		result, err := j.payments.SyncTransaction(rowCtx, row.TransactionID)
		if err != nil {
			// one bad row must not starve the rest of the batch
			failed++
			j.logg.Error(rowCtx, "stale payment sync failed", err)
			continue
		}
		if !result.Synced {
			failed++
			j.logg.Warn(j.logg.WithField(rowCtx, "reason", result.Error), "stale payment not synced")
			continue
		}
		synced++
	}

	j.metrics.AddRows(paymentSyncJobName, synced)
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"candidates": len(rows),
		"synced":     synced,
		"failed":     failed,
	}), "stale payment sync complete")
	return nil
}
