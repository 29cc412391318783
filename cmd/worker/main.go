package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/angelmondragon/angkor-storefront/internal/app"
	"github.com/angelmondragon/angkor-storefront/internal/consumers/stock"
	"github.com/angelmondragon/angkor-storefront/internal/notifications"
	"github.com/angelmondragon/angkor-storefront/pkg/config"
	"github.com/angelmondragon/angkor-storefront/pkg/db"
	"github.com/angelmondragon/angkor-storefront/pkg/logger"
	"github.com/angelmondragon/angkor-storefront/pkg/migrate"
	"github.com/angelmondragon/angkor-storefront/pkg/outbox/idempotency"
	"github.com/angelmondragon/angkor-storefront/pkg/pubsub"
	"github.com/angelmondragon/angkor-storefront/pkg/redis"
)

const serviceName = "worker"

// Pub/Sub keeps unacked messages for 7 days; claims must outlive that.
const eventClaimTTL = 8 * 24 * time.Hour

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, logg, err := app.Boot(ctx, serviceName)
	if err != nil {
		return err
	}
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "subscription": cfg.PubSub.StockSubscription})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		return err
	}
	defer app.CloseLogged(ctx, logg, "database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		return err
	}
	defer app.CloseLogged(ctx, logg, "redis", redisClient.Close)

	psClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap pubsub", err)
		return err
	}
	defer app.CloseLogged(ctx, logg, "pubsub", psClient.Close)

	service, err := buildService(cfg, logg, dbClient, redisClient, psClient)
	if err != nil {
		logg.Error(ctx, "failed to wire stock worker", err)
		return err
	}

	logg.Info(ctx, "stock worker started")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "stock worker stopped", err)
		return err
	}
	logg.Info(context.WithoutCancel(ctx), "stock worker drained")
	return nil
}

func buildService(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, pubsubClient *pubsub.Client) (*Service, error) {
	committer, err := stock.NewCommitter(dbClient, notifications.NewLogSink(logg), logg)
	if err != nil {
		return nil, err
	}
	claims, err := idempotency.NewManager(redisClient, stock.ConsumerName, eventClaimTTL)
	if err != nil {
		return nil, err
	}
	subscriber := pubsubClient.Subscriber(cfg.PubSub.StockSubscription)
	if subscriber == nil {
		return nil, errors.New("stock subscription not configured")
	}
	consumer, err := stock.NewConsumer(committer, claims, subscriber, logg)
	if err != nil {
		return nil, err
	}
	return NewService(ServiceParams{
		Logger:   logg,
		DB:       dbClient,
		Redis:    redisClient,
		PubSub:   pubsubClient,
		Consumer: consumer,
		Subscription: func(ctx context.Context) error {
			return pubsubClient.EnsureSubscription(ctx, cfg.PubSub.StockSubscription)
		},
	})
}
