package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/juspay/hyperswitch-sub035/api/controllers"
	"github.com/juspay/hyperswitch-sub035/api/controllers/payments"
	webhookcontrollers "github.com/juspay/hyperswitch-sub035/api/controllers/webhooks"
	"github.com/juspay/hyperswitch-sub035/api/middleware"
	"github.com/juspay/hyperswitch-sub035/pkg/config"
	"github.com/juspay/hyperswitch-sub035/pkg/logger"
	pkgredis "github.com/juspay/hyperswitch-sub035/pkg/redis"
)

// RateLimitStore counts requests per merchant window.
type RateLimitStore interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(scope string) string
}

// Dependencies carries everything the HTTP surface needs from the process.
type Dependencies struct {
	Payments    payments.Service
	Idempotency pkgredis.IdempotencyStore
	RateLimit   RateLimitStore
	// Webhooks and WebhookGuard enable the connector webhook endpoints.
	Webhooks     webhookcontrollers.Service
	WebhookGuard webhookcontrollers.Guard
	// Pingers are checked by /health/ready, keyed by dependency name.
	Pingers map[string]controllers.Pinger
	Metrics prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.HTTP.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Pingers))
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	if deps.Webhooks != nil {
		r.Route("/api/v1/webhooks", func(r chi.Router) {
			r.Post("/square", webhookcontrollers.SquareWebhook(deps.Webhooks, deps.WebhookGuard, cfg.Square, logg))
			r.Post("/mercadopago", webhookcontrollers.MercadoPagoWebhook(deps.Webhooks, deps.WebhookGuard, cfg.MercadoPago, logg))
		})
	}

	r.Route("/api/v1/payments", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		if deps.RateLimit != nil {
			r.Use(middleware.MerchantRateLimit(cfg.HTTP.RateLimitWindow, cfg.HTTP.RateLimit, deps.RateLimit, logg))
		}
		if deps.Idempotency != nil {
			r.Use(middleware.Idempotency(deps.Idempotency, logg))
		}

		r.Post("/", payments.Create(deps.Payments, logg))
		r.Route("/{paymentId}", func(r chi.Router) {
			r.Get("/", payments.Retrieve(deps.Payments, logg))
			r.Post("/confirm", payments.Confirm(deps.Payments, logg))
			r.Post("/capture", payments.Capture(deps.Payments, logg))
			r.Post("/cancel", payments.Cancel(deps.Payments, logg))
			r.Post("/approve", payments.Approve(deps.Payments, logg))
			r.Post("/attempts/record", payments.RecordAttempt(deps.Payments, logg))
		})
	})

	return r
}
