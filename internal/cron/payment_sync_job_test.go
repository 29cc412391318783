package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/angkor-storefront/internal/payments"
	"github.com/angelmondragon/angkor-storefront/pkg/db/models"
	"github.com/angelmondragon/angkor-storefront/pkg/enums"
)

type fakeStaleLister struct {
	rows   []models.PaymentTransaction
	cutoff time.Time
	limit  int
	err    error
}

func (f *fakeStaleLister) ListStalePending(_ context.Context, cutoff time.Time, limit int) ([]models.PaymentTransaction, error) {
	f.cutoff = cutoff
	f.limit = limit
	return f.rows, f.err
}

type fakeSyncer struct {
	results map[string]*payments.SyncResult
	errs    map[string]error
	calls   []string
}

func (f *fakeSyncer) SyncTransaction(_ context.Context, tranID string) (*payments.SyncResult, error) {
	f.calls = append(f.calls, tranID)
	if err := f.errs[tranID]; err != nil {
		return nil, err
	}
	if res, ok := f.results[tranID]; ok {
		return res, nil
	}
	return &payments.SyncResult{Error: "gateway unavailable"}, nil
}

func TestPaymentSyncJobSyncsEveryStaleRow(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	lister := &fakeStaleLister{rows: []models.PaymentTransaction{
		{TransactionID: "a"}, {TransactionID: "b"}, {TransactionID: "c"},
	}}
	syncer := &fakeSyncer{
		results: map[string]*payments.SyncResult{
			"a": {OrderID: 1, Synced: true, Status: enums.PaymentStatusPaid},
		},
		errs: map[string]error{"b": errors.New("db down")},
	}
	job, err := NewPaymentSyncJob(PaymentSyncJobParams{
		Logger:       testLogger(),
		Transactions: lister,
		Payments:     syncer,
		After:        10 * time.Minute,
		BatchSize:    5,
	})
	require.NoError(t, err)
	job.(*paymentSyncJob).now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []string{"a", "b", "c"}, syncer.calls)
	assert.Equal(t, now.Add(-10*time.Minute), lister.cutoff)
	assert.Equal(t, 5, lister.limit)
}

func TestPaymentSyncJobFailsWhenListingFails(t *testing.T) {
	job, err := NewPaymentSyncJob(PaymentSyncJobParams{
		Logger:       testLogger(),
		Transactions: &fakeStaleLister{err: errors.New("boom")},
		Payments:     &fakeSyncer{},
	})
	require.NoError(t, err)
	assert.Error(t, job.Run(context.Background()))
}

func TestNewPaymentSyncJobRequiresDeps(t *testing.T) {
	_, err := NewPaymentSyncJob(PaymentSyncJobParams{Logger: testLogger(), Payments: &fakeSyncer{}})
	assert.Error(t, err)
	_, err = NewPaymentSyncJob(PaymentSyncJobParams{Logger: testLogger(), Transactions: &fakeStaleLister{}})
	assert.Error(t, err)
}
