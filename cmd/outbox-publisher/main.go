package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/angkor-storefront/internal/app"
	"github.com/angelmondragon/angkor-storefront/pkg/db"
	"github.com/angelmondragon/angkor-storefront/pkg/metrics"
	"github.com/angelmondragon/angkor-storefront/pkg/migrate"
	"github.com/angelmondragon/angkor-storefront/pkg/outbox"
	"github.com/angelmondragon/angkor-storefront/pkg/outbox/routing"
	"github.com/angelmondragon/angkor-storefront/pkg/pubsub"
)

const serviceName = "outbox-publisher"

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
	ctx = logg.WithField(ctx, "env", cfg.App.Env)

	routes, err := routing.NewTable(cfg.PubSub)
	if err != nil {
		logg.Error(ctx, "invalid outbox routing", err)
		return err
	}

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

	psClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap pubsub", err)
		return err
	}
	defer app.CloseLogged(ctx, logg, "pubsub", psClient.Close)

	sink := newTopicSink(psClient)
	defer sink.Stop()

	relay, err := NewRelay(RelayParams{
		Logger:  logg,
		DB:      dbClient,
		Store:   outbox.NewRepository(dbClient.DB()),
		Routes:  routes,
		Sink:    sink,
		Metrics: metrics.NewPublisherMetrics(prometheus.DefaultRegisterer),
		Outbox:  cfg.Outbox,
		Ready:   []func(context.Context) error{dbClient.Ping, psClient.Ping},
	})
	if err != nil {
		logg.Error(ctx, "failed to build outbox relay", err)
		return err
	}

	logg.Info(logg.WithField(ctx, "topics", routes.Topics()), "outbox relay started")
	err = relay.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox relay stopped", err)
		return err
	}
	logg.Info(context.WithoutCancel(ctx), "outbox relay drained")
	return nil
}
