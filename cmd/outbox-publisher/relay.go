package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/angkor-storefront/pkg/config"
	"github.com/angelmondragon/angkor-storefront/pkg/db/models"
	"github.com/angelmondragon/angkor-storefront/pkg/enums"
	"github.com/angelmondragon/angkor-storefront/pkg/logger"
	"github.com/angelmondragon/angkor-storefront/pkg/metrics"
	"github.com/angelmondragon/angkor-storefront/pkg/outbox/routing"
)

const maxBackoff = 30 * time.Second

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type claimStore interface {
	ClaimBatch(tx *gorm.DB, limit, budget int) ([]models.OutboxEvent, error)
	MarkPublished(tx *gorm.DB, id uuid.UUID, at time.Time) error
	RecordFailure(tx *gorm.DB, id uuid.UUID, cause error) error
	DeadLetter(tx *gorm.DB, row models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, budget int, at time.Time) error
}

type router interface {
	Prepare(row models.OutboxEvent) (routing.Delivery, error)
}

// RelayParams wires a Relay. Ready checks run once before the first batch.
type RelayParams struct {
	Logger  *logger.Logger
	DB      txRunner
	Store   claimStore
	Routes  router
	Sink    sink
	Metrics *metrics.PublisherMetrics
	Outbox  config.OutboxConfig
	Ready   []func(context.Context) error
	Now     func() time.Time
}

// Relay moves committed outbox rows onto Pub/Sub. A row is published at
// least once; consumers dedupe on the event id attribute.
type Relay struct {
	logg    *logger.Logger
	db      txRunner
	store   claimStore
	routes  router
	sink    sink
	metrics *metrics.PublisherMetrics
	cfg     config.OutboxConfig
	ready   []func(context.Context) error
	now     func() time.Time
}

func NewRelay(p RelayParams) (*Relay, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	case p.DB == nil || p.Store == nil:
		return nil, errors.New("database and outbox store are required")
	case p.Routes == nil || p.Sink == nil:
		return nil, errors.New("routing table and sink are required")
	case p.Outbox.BatchSize <= 0 || p.Outbox.MaxAttempts <= 0:
		return nil, fmt.Errorf("batch size and max attempts must be positive, got %d and %d", p.Outbox.BatchSize, p.Outbox.MaxAttempts)
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	return &Relay{
		logg:    p.Logger,
		db:      p.DB,
		store:   p.Store,
		routes:  p.Routes,
		sink:    p.Sink,
		metrics: p.Metrics,
		cfg:     p.Outbox,
		ready:   p.Ready,
		now:     now,
	}, nil
}

// Run relays until ctx is cancelled. A full batch is followed immediately by
// the next one; a failed batch backs off exponentially.
func (r *Relay) Run(ctx context.Context) error {
	for _, check := range r.ready {
		if err := check(ctx); err != nil {
			return fmt.Errorf("relay not ready: %w", err)
		}
	}

	failures := 0
	for {
		n, err := r.relayBatch(ctx)
		var wait time.Duration
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failures++
			wait = backoff(r.cfg.PollInterval, failures)
			r.logg.Error(r.logg.WithField(ctx, "retry_in", wait.String()), "outbox batch failed", err)
		case n >= r.cfg.BatchSize:
			failures = 0
		default:
			failures = 0
			wait = r.cfg.PollInterval
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

type attempt struct {
	delivery routing.Delivery
	err      error
}

// relayBatch claims, publishes and settles one batch inside a single
// transaction so claimed rows stay locked until their outcome is written.
func (r *Relay) relayBatch(ctx context.Context) (int, error) {
	started := time.Now()
	claimed := 0
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.store.ClaimBatch(tx, r.cfg.BatchSize, r.cfg.MaxAttempts)
		if err != nil {
			return fmt.Errorf("claim outbox rows: %w", err)
		}
		claimed = len(rows)
		if claimed == 0 {
			return nil
		}

		attempts := r.publish(ctx, rows)
		for i, row := range rows {
			if err := r.settle(ctx, tx, row, attempts[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if claimed > 0 || err != nil {
		r.metrics.ObserveBatch(claimed, err, time.Since(started))
	}
	return claimed, err
}

// publish hands every routable row to the sink, then waits for all acks.
func (r *Relay) publish(ctx context.Context, rows []models.OutboxEvent) []attempt {
	out := make([]attempt, len(rows))
	inflight := make([]pending, len(rows))
	for i, row := range rows {
		d, err := r.routes.Prepare(row)
		out[i] = attempt{delivery: d, err: err}
		if err == nil {
			inflight[i] = r.sink.Publish(ctx, d)
		}
	}

	waitCtx := ctx
	if r.cfg.PublishTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, r.cfg.PublishTimeout)
		defer cancel()
	}
	for i, p := range inflight {
		if p == nil {
			continue
		}
		if _, err := p.Get(waitCtx); err != nil {
			out[i].err = err
			// Publishing for the key stays paused after a failure.
			r.sink.Resume(out[i].delivery.Topic, out[i].delivery.OrderingKey)
		}
	}
	return out
}

func (r *Relay) settle(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, a attempt) error {
	at := r.now().UTC()
	outcome, reason := verdict(a.err, row.AttemptCount+1, r.cfg.MaxAttempts)
	ctx = r.logg.WithFields(ctx, map[string]any{
		"event_id":     row.ID.String(),
		"event_type":   string(row.EventType),
		"aggregate_id": row.AggregateID,
		"attempt":      row.AttemptCount + 1,
		"outcome":      outcome,
	})

	var err error
	switch outcome {
	case metrics.OutboxDelivered:
		err = r.store.MarkPublished(tx, row.ID, at)
		r.logg.Debug(ctx, "outbox event delivered")
	case metrics.OutboxRetry:
		err = r.store.RecordFailure(tx, row.ID, a.err)
		r.logg.Warn(r.logg.WithField(ctx, "error", a.err.Error()), "outbox delivery failed, will retry")
	case metrics.OutboxParked:
		row.AttemptCount++
		err = r.store.DeadLetter(tx, row, reason, a.err, r.cfg.MaxAttempts, at)
		r.logg.Error(r.logg.WithField(ctx, "reason", string(reason)), "outbox event dead-lettered", a.err)
	}
	if err != nil {
		return fmt.Errorf("settle outbox event %s: %w", row.ID, err)
	}
	r.metrics.IncDelivery(string(row.EventType), outcome)
	return nil
}

// verdict maps a publish error to an outcome. Permanent errors park the row
// at once; transient ones retry until the attempt budget is spent.
func verdict(err error, tries, budget int) (string, enums.OutboxDLQErrorReason) {
	switch {
	case err == nil:
		return metrics.OutboxDelivered, ""
	case routing.IsPermanent(err):
		return metrics.OutboxParked, enums.OutboxDLQReasonNonRetryable
	case tries >= budget:
		return metrics.OutboxParked, enums.OutboxDLQReasonMaxAttempts
	default:
		return metrics.OutboxRetry, ""
	}
}

// backoff doubles base per consecutive failure, capped, plus up to 25% jitter.
func backoff(base time.Duration, failures int) time.Duration {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	d := base
	for i := 1; i < failures && d < maxBackoff; i++ {
		d *= 2
	}
	d = min(d, maxBackoff)
	return d + rand.N(d/4+1)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
