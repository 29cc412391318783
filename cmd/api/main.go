package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/angkor-storefront/api/routes"
	"github.com/angelmondragon/angkor-storefront/internal/address"
	"github.com/angelmondragon/angkor-storefront/internal/app"
	"github.com/angelmondragon/angkor-storefront/internal/notifications"
	"github.com/angelmondragon/angkor-storefront/internal/orders"
	"github.com/angelmondragon/angkor-storefront/internal/payments"
	productsvc "github.com/angelmondragon/angkor-storefront/internal/products"
	"github.com/angelmondragon/angkor-storefront/internal/specifications"
	"github.com/angelmondragon/angkor-storefront/internal/users"
	"github.com/angelmondragon/angkor-storefront/internal/variants"
	paywaywebhook "github.com/angelmondragon/angkor-storefront/internal/webhooks/payway"
	pkgauth "github.com/angelmondragon/angkor-storefront/pkg/auth"
	"github.com/angelmondragon/angkor-storefront/pkg/config"
	"github.com/angelmondragon/angkor-storefront/pkg/db"
	"github.com/angelmondragon/angkor-storefront/pkg/logger"
	"github.com/angelmondragon/angkor-storefront/pkg/metrics"
	"github.com/angelmondragon/angkor-storefront/pkg/migrate"
	"github.com/angelmondragon/angkor-storefront/pkg/outbox"
	"github.com/angelmondragon/angkor-storefront/pkg/payway"
	"github.com/angelmondragon/angkor-storefront/pkg/redis"
)

const (
	serviceName        = "api"
	shutdownTimeout    = 15 * time.Second
	webhookDeliveryTTL = 24 * time.Hour
	webhookGuardScope  = "payway-webhook"
	readHeaderTimeout  = 10 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, logg, err := app.Boot(ctx, serviceName)
	if err != nil {
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

	handler, err := buildRouter(cfg, logg, dbClient, redisClient, paywayClient)
	if err != nil {
		logg.Error(ctx, "failed to wire api", err)
		return err
	}

	server := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "addr": server.Addr})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logg.Info(ctx, "api server listening")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logg.Error(ctx, "api server stopped", err)
		return err
	}
	logg.Info(context.WithoutCancel(ctx), "api server shut down")
	return nil
}

func buildRouter(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, paywayClient *payway.Client) (http.Handler, error) {
	sink := notifications.NewLogSink(logg)
	emitter := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	paymentMetrics := metrics.NewPaymentMetrics(prometheus.DefaultRegisterer)

	strategy, err := variants.ParseStrategy(cfg.Catalog.VariantSync)
	if err != nil {
		return nil, err
	}
	engine, err := variants.NewEngine(strategy, logg)
	if err != nil {
		return nil, err
	}
	productService, err := productsvc.NewService(productsvc.ServiceParams{
		Products: productsvc.NewRepository(dbClient.DB()),
		Variants: variants.NewRepository(dbClient.DB()),
		DB:       dbClient,
		Engine:   engine,
		Outbox:   emitter,
		Sink:     sink,
		Logger:   logg,
	})
	if err != nil {
		return nil, err
	}

	specService, err := specifications.NewService(specifications.NewRepository(dbClient.DB()), dbClient, logg)
	if err != nil {
		return nil, err
	}
	addressService, err := address.NewService(address.NewRepository(dbClient.DB()), dbClient, logg)
	if err != nil {
		return nil, err
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	ordersService, err := orders.NewService(ordersRepo)
	if err != nil {
		return nil, err
	}

	transactions := payments.NewTransactionRepository(dbClient.DB())
	reconciler, err := payments.NewReconciler(payments.ReconcilerParams{
		Orders:       ordersRepo,
		Transactions: transactions,
		TxRunner:     dbClient,
		Outbox:       emitter,
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

	webhookService, err := paywaywebhook.NewService(paywaywebhook.ServiceParams{
		Verifier:   paywayClient,
		Reconciler: reconciler,
		Metrics:    paymentMetrics,
		Logger:     logg,
		Timeout:    cfg.PayWay.WebhookTimeout,
	})
	if err != nil {
		return nil, err
	}
	webhookGuard, err := paywaywebhook.NewIdempotencyGuard(redisClient, webhookDeliveryTTL, webhookGuardScope)
	if err != nil {
		return nil, err
	}

	return routes.NewRouter(routes.RouterParams{
		Config:         cfg,
		Logger:         logg,
		Gatherer:       prometheus.DefaultGatherer,
		DB:             dbClient,
		Redis:          redisClient,
		Idempotency:    redisClient,
		Authorizer:     pkgauth.NewClaimsAuthorizer(),
		Products:       productService,
		Specifications: specService,
		Addresses:      addressService,
		Orders:         ordersService,
		Payments:       paymentService,
		PayWayWebhook:  webhookService,
		WebhookGuard:   webhookGuard,
	}), nil
}
