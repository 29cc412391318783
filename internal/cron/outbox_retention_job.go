package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/angkor-storefront/pkg/logger"
	"github.com/angelmondragon/angkor-storefront/pkg/metrics"
)

const (
	defaultOutboxRetention = 30 * 24 * time.Hour
	outboxRetentionJobName = "outbox-retention"
)

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository outboxRetentionRepo
	Metrics    *metrics.CronJobMetrics
	Retention  time.Duration
	// TerminalAttempts is the publisher's retry budget; rows at or past it
	// are already dead-lettered.
	TerminalAttempts int
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, terminalAttempts int) (int64, error)
}

func NewOutboxRetentionJob(p OutboxRetentionJobParams) (Job, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("outbox retention: logger required")
	case p.DB == nil:
		return nil, errors.New("outbox retention: db runner required")
	case p.Repository == nil:
		return nil, errors.New("outbox retention: repository required")
	case p.TerminalAttempts <= 0:
		return nil, errors.New("outbox retention: terminal attempts must be positive")
	}
	if p.Retention <= 0 {
		p.Retention = defaultOutboxRetention
	}
	return &outboxRetentionJob{p: p, now: time.Now}, nil
}

// outboxRetentionJob deletes delivered rows older than the retention window.
// Dead-lettered rows are kept for inspection regardless of age.
type outboxRetentionJob struct {
	p   OutboxRetentionJobParams
	now func() time.Time
}

func (*outboxRetentionJob) Name() string         { return outboxRetentionJobName }
func (*outboxRetentionJob) Every() time.Duration { return 24 * time.Hour }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.p.Retention)
	var deleted int64
	if err := j.p.DB.WithTx(ctx, func(tx *gorm.DB) (err error) {
		deleted, err = j.p.Repository.DeletePublishedBefore(ctx, tx, cutoff, j.p.TerminalAttempts)
		return err
	}); err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}
	j.p.Metrics.AddRows(outboxRetentionJobName, deleted)
	j.p.Logger.Info(j.p.Logger.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	}), "outbox retention cleanup complete")
	return nil
}
