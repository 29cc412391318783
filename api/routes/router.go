package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/angkor-storefront/api/controllers"
	webhookcontrollers "github.com/angelmondragon/angkor-storefront/api/controllers/webhooks"
	"github.com/angelmondragon/angkor-storefront/api/middleware"
	"github.com/angelmondragon/angkor-storefront/internal/address"
	"github.com/angelmondragon/angkor-storefront/internal/orders"
	"github.com/angelmondragon/angkor-storefront/internal/payments"
	productsvc "github.com/angelmondragon/angkor-storefront/internal/products"
	"github.com/angelmondragon/angkor-storefront/internal/specifications"
	pkgauth "github.com/angelmondragon/angkor-storefront/pkg/auth"
	"github.com/angelmondragon/angkor-storefront/pkg/config"
	"github.com/angelmondragon/angkor-storefront/pkg/logger"
	pkgredis "github.com/angelmondragon/angkor-storefront/pkg/redis"
)

const requestTimeout = 30 * time.Second

// RouterParams carries everything the HTTP surface dispatches to.
type RouterParams struct {
	Config         *config.Config
	Logger         *logger.Logger
	Gatherer       prometheus.Gatherer
	DB             controllers.Pinger
	Redis          controllers.Pinger
	Idempotency    pkgredis.Store
	Authorizer     pkgauth.Authorizer
	Products       productsvc.Service
	Specifications specifications.Service
	Addresses      address.Service
	Orders         orders.Service
	Payments       payments.Service
	PayWayWebhook  webhookcontrollers.PayWayWebhookService
	WebhookGuard   webhookcontrollers.PayWayWebhookGuard
}

func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger
	authz := p.Authorizer
	if authz == nil {
		authz = pkgauth.NewClaimsAuthorizer()
	}
	gatherer := p.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.Storefront.BaseURL),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, map[string]controllers.Pinger{"db": p.DB, "redis": p.Redis}, logg))
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	idempotent := middleware.Idempotency(p.Idempotency, logg)
	requireCap := func(c pkgauth.Capability) func(http.Handler) http.Handler {
		return middleware.RequireCapability(authz, c, logg)
	}

	r.Route("/payments/payway", func(r chi.Router) {
		r.Get("/return", controllers.PayWayReturn(p.Payments, cfg.Storefront.BaseURL, logg))
		r.Get("/cancel", controllers.PayWayCancel(cfg.Storefront.BaseURL, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimw.Timeout(requestTimeout))

		r.Post("/webhooks/payway", webhookcontrollers.PayWayWebhook(p.PayWayWebhook, p.WebhookGuard, logg))

		r.Get("/products", controllers.ListProducts(p.Products, true, logg))
		r.Get("/products/{productId}", controllers.GetProduct(p.Products, logg))
		r.Post("/products/{productId}/availability", controllers.CheckAvailability(p.Products, logg))
		r.Get("/products/{productId}/specifications", controllers.ProductSpecifications(p.Specifications, logg))
		r.Get("/specification-attributes", controllers.ListSpecificationAttributes(p.Specifications, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))

			r.Get("/addresses", controllers.ListAddresses(p.Addresses, logg))
			r.With(idempotent).Post("/addresses", controllers.CreateAddress(p.Addresses, logg))
			r.Post("/addresses/{addressId}/default", controllers.SetDefaultAddress(p.Addresses, logg))
			r.Delete("/addresses/{addressId}", controllers.DeleteAddress(p.Addresses, logg))

			r.Get("/orders", controllers.ListOrders(p.Orders, logg))
			r.Get("/orders/{orderId}", controllers.GetOrder(p.Orders, logg))
			r.With(requireCap(pkgauth.CapabilityOrdersPay), idempotent).
				Post("/orders/{orderId}/payway/checkout", controllers.PayWayCheckout(p.Payments, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(chimw.Timeout(requestTimeout))
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Group(func(r chi.Router) {
			r.Use(requireCap(pkgauth.CapabilityProductsManage))
			r.Get("/products", controllers.ListProducts(p.Products, false, logg))
			r.With(idempotent).Post("/products", controllers.AdminCreateProduct(p.Products, logg))
			r.Get("/products/{productId}", controllers.GetProduct(p.Products, logg))
			r.Patch("/products/{productId}", controllers.AdminUpdateProduct(p.Products, logg))
			r.Delete("/products/{productId}", controllers.AdminDeleteProduct(p.Products, logg))
			r.Post("/products/{productId}/fix-conflicts", controllers.AdminFixConflicts(p.Products, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(requireCap(pkgauth.CapabilitySpecificationsManage))
			r.Post("/specification-attributes", controllers.AdminCreateSpecificationAttribute(p.Specifications, logg))
			r.Put("/products/{productId}/specifications/{attributeId}", controllers.AdminUpsertSpecification(p.Specifications, logg))
			r.Delete("/products/{productId}/specifications/{attributeId}", controllers.AdminDeleteSpecification(p.Specifications, logg))
		})
	})

	return r
}
