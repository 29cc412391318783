package cron

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/angkor-storefront/pkg/logger"
	"github.com/angelmondragon/angkor-storefront/pkg/metrics"
)

const defaultInterval = 5 * time.Minute

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	// Interval is the wake-up tick. A job that implements Scheduled is
	// skipped on ticks that come before its own cadence is due.
	Interval time.Duration
	Now      func() time.Time
}

// Service wakes on every tick, takes the cluster lock and runs whatever jobs
// are due. One failing or panicking job does not stop the others.
type Service struct {
	ServiceParams
	nextDue map[string]time.Time
}

func NewService(p ServiceParams) (*Service, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("cron: logger required")
	case p.Lock == nil:
		return nil, errors.New("cron: lock required")
	}
	if p.Registry == nil {
		p.Registry = NewRegistry()
	}
	p.Interval = cmp.Or(max(p.Interval, 0), defaultInterval)
	if p.Now == nil {
		p.Now = time.Now
	}
	return &Service{ServiceParams: p, nextDue: make(map[string]time.Time)}, nil
}

// Run ticks once immediately and then every interval until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		if err := s.tick(ctx); err != nil {
			s.Logger.Error(ctx, "cron tick failed", err)
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			s.Logger.Info(ctx, "cron loop stopped")
			return ctx.Err()
		}
	}
}

func (s *Service) tick(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}
	due := s.due(s.Now())
	if len(due) == 0 {
		return nil
	}

	held, err := s.Lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("cron lock: %w", err)
	}
	if !held {
		s.Logger.Info(ctx, "cron lock held elsewhere; skipping tick")
		return nil
	}
	defer func() {
		if err := s.Lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.Logger.Error(ctx, "cron lock release failed", err)
		}
	}()

	for _, job := range due {
		s.run(ctx, job)
	}
	return nil
}

// due keeps registration order. A job never run before is always due.
func (s *Service) due(now time.Time) []Job {
	jobs := s.Registry.Jobs()
	out := jobs[:0:0]
	for _, job := range jobs {
		if next := s.nextDue[job.Name()]; next.IsZero() || !now.Before(next) {
			out = append(out, job)
		}
	}
	return out
}

func (s *Service) run(ctx context.Context, job Job) {
	ctx = s.Logger.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	started := s.Now()
	s.nextDue[job.Name()] = started.Add(jobInterval(job))

	err := guard(ctx, job)
	took := time.Since(started)
	s.Metrics.ObserveRun(job.Name(), err, took)

	ctx = s.Logger.WithField(ctx, "duration_ms", took.Milliseconds())
	if err != nil {
		s.Logger.Error(ctx, "cron job failed", err)
		return
	}
	s.Logger.Info(ctx, "cron job finished")
}

// guard converts a panic in job into an error.
func guard(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", job.Name(), r)
		}
	}()
	return job.Run(ctx)
}
