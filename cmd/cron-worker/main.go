package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/angkor-storefront/internal/app"
	"github.com/angelmondragon/angkor-storefront/internal/cron"
	"github.com/angelmondragon/angkor-storefront/internal/notifications"
	"github.com/angelmondragon/angkor-storefront/internal/orders"
	"github.com/angelmondragon/angkor-storefront/internal/payments"
	"github.com/angelmondragon/angkor-storefront/internal/users"
	"github.com/angelmondragon/angkor-storefront/pkg/config"
	"github.com/angelmondragon/angkor-storefront/pkg/db"
	"github.com/angelmondragon/angkor-storefront/pkg/logger"
	"github.com/angelmondragon/angkor-storefront/pkg/metrics"
	"github.com/angelmondragon/angkor-storefront/pkg/migrate"
	"github.com/angelmondragon/angkor-storefront/pkg/outbox"
	"github.com/angelmondragon/angkor-storefront/pkg/payway"
	"github.com/angelmondragon/angkor-storefront/pkg/redis"
)

const serviceName = "cron-worker"

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
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "interval": cfg.Cron.Interval.String()})

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

	paywayClient, err := payway.NewClient(cfg.PayWay)
	if err != nil {
		logg.Error(ctx, "failed to create payway client", err)
		return err
	}

	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	registry, err := buildRegistry(cfg, logg, dbClient, paywayClient, cronMetrics)
	if err != nil {
		logg.Error(ctx, "failed to register cron jobs", err)
		return err
	}

	env := cfg.App.Env
	if env == "" {
		env = "local"
	}
	lock, err := cron.NewRedisLock(redisClient, redisClient.Key("cron-worker", "lock", env), 0)
	if err != nil {
		logg.Error(ctx, "failed to create cron lock", err)
		return err
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cron service", err)
		return err
	}

	logg.Info(ctx, "cron worker started")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped", err)
		return err
	}
	logg.Info(context.WithoutCancel(ctx), "cron worker drained")
	return nil
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, paywayClient *payway.Client, cronMetrics *metrics.CronJobMetrics) (*cron.Registry, error) {
	sink := notifications.NewLogSink(logg)
	paymentMetrics := metrics.NewPaymentMetrics(prometheus.DefaultRegisterer)
	ordersRepo := orders.NewRepository(dbClient.DB())
	transactions := payments.NewTransactionRepository(dbClient.DB())

	reconciler, err := payments.NewReconciler(payments.ReconcilerParams{
		Orders:       ordersRepo,
		Transactions: transactions,
		TxRunner:     dbClient,
		Outbox:       outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
		Sink:         sink,
		Metrics:      paymentMetrics,
		Logger:       logg,
	})
	if err != nil {
		return nil, err
	}
	paymentService, err := payments.NewService(payments.ServiceParams{
		Orders:       ordersRepo,
		Users:        users.NewRepository(dbClient.DB()),
		Transactions: transactions,
		Gateway:      paywayClient,
		Reconciler:   reconciler,
		Metrics:      paymentMetrics,
		Logger:       logg,
	})
	if err != nil {
		return nil, err
	}

	paymentSync, err := cron.NewPaymentSyncJob(cron.PaymentSyncJobParams{
		Logger:       logg,
		Transactions: transactions,
		Payments:     paymentService,
		Metrics:      cronMetrics,
		After:        cfg.Cron.PaymentSyncAfter,
		BatchSize:    cfg.Cron.PaymentSyncBatch,
	})
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:           logg,
		DB:               dbClient,
		Repository:       outbox.NewRepository(dbClient.DB()),
		Metrics:          cronMetrics,
		Retention:        cfg.Cron.OutboxRetention,
		TerminalAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return nil, err
	}
	return cron.NewRegistry(paymentSync, retention), nil
}
