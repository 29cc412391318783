package main

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/angkor-storefront/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type runner interface {
	Run(ctx context.Context) error
}

type ServiceParams struct {
	Logger   *logger.Logger
	DB       pinger
	Redis    pinger
	PubSub   pinger
	Consumer runner
	// Subscription checks that the consumer's subscription is provisioned.
	Subscription func(ctx context.Context) error
}

// Service runs the stock consumer once every dependency answers a ping.
type Service struct {
	logg     *logger.Logger
	checks   map[string]func(context.Context) error
	consumer runner
}

func NewService(p ServiceParams) (*Service, error) {
	if p.Logger == nil || p.Consumer == nil {
		return nil, errors.New("worker: logger and consumer are required")
	}
	checks := map[string]func(context.Context) error{}
	for name, dep := range map[string]pinger{"database": p.DB, "redis": p.Redis, "pubsub": p.PubSub} {
		if dep == nil {
			return nil, fmt.Errorf("worker: %s client is required", name)
		}
		checks[name] = dep.Ping
	}
	if p.Subscription != nil {
		checks["subscription"] = p.Subscription
	}
	return &Service{logg: p.Logger, checks: checks, consumer: p.Consumer}, nil
}

// ready pings all dependencies concurrently and fails on the first error.
func (s *Service) ready(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for name, check := range s.checks {
		g.Go(func() error {
			if err := check(gctx); err != nil {
				return fmt.Errorf("%s ping failed: %w", name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logg.Error(ctx, "worker dependency not ready", err)
		return err
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

// Run blocks until ctx is canceled or the consumer stops.
func (s *Service) Run(ctx context.Context) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if err := s.consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logg.Error(ctx, "consumer stopped unexpectedly", err)
		return err
	}
	s.logg.Info(ctx, "worker context canceled")
	return ctx.Err()
}
