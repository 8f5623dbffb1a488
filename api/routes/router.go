package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stripe/stripe-go/v84"

	"github.com/benchlot/benchlot-backend/api/controllers"
	cartcontrollers "github.com/benchlot/benchlot-backend/api/controllers/cart"
	connectcontrollers "github.com/benchlot/benchlot-backend/api/controllers/connect"
	ordercontrollers "github.com/benchlot/benchlot-backend/api/controllers/orders"
	paymentcontrollers "github.com/benchlot/benchlot-backend/api/controllers/payments"
	webhookcontrollers "github.com/benchlot/benchlot-backend/api/controllers/webhooks"
	"github.com/benchlot/benchlot-backend/api/middleware"
	"github.com/benchlot/benchlot-backend/internal/cart"
	"github.com/benchlot/benchlot-backend/internal/connect"
	"github.com/benchlot/benchlot-backend/internal/orders"
	"github.com/benchlot/benchlot-backend/internal/payments"
	"github.com/benchlot/benchlot-backend/pkg/config"
	"github.com/benchlot/benchlot-backend/pkg/logger"
	"github.com/benchlot/benchlot-backend/pkg/metrics"
	"github.com/benchlot/benchlot-backend/pkg/redis"
)

const (
	redeemWindow = time.Minute
	redeemLimit  = 10

	idempotencyTTL = 24 * time.Hour
	// confirmations stay replayable for the full retry horizon of the storefront
	confirmIdempotencyTTL = 7 * 24 * time.Hour
)

type cacheStore interface {
	Ping(context.Context) error
	Get(context.Context, string) (string, error)
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	Del(context.Context, ...string) error
	IdempotencyKey(scope, id string) string
	CountWindow(context.Context, string, time.Duration) (redis.Window, error)
	RateLimitKey(scope string) string
}

type webhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type webhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type signingClient interface {
	SigningSecret() string
}

// Dependencies carries everything the HTTP surface needs.
type Dependencies struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             controllers.Pinger
	Cache          cacheStore
	MetricsHandler http.Handler
	PaymentMetrics *metrics.PaymentMetrics
	HTTPMetrics    *metrics.HTTPMetrics

	Connect  connect.Service
	Payments payments.Service
	Cart     cart.Service
	Orders   orders.Service

	StripeClient   signingClient
	WebhookService webhookService
	WebhookGuard   webhookGuard
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.AccessLog(logg, deps.HTTPMetrics),
		middleware.CORS(middleware.CORSOrigins(cfg.Frontend.BaseURL, cfg.App.IsProd())),
	)

	cache := deps.Cache
	idempotent := middleware.Idempotency(cache, idempotencyTTL, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.DB, cache, logg))
	})

	metricsHandler := deps.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Handle("/metrics", metricsHandler)

	// raw body, verified by signature rather than bearer auth
	r.Post("/webhooks", webhookcontrollers.StripeWebhook(deps.WebhookService, deps.StripeClient, deps.WebhookGuard, deps.PaymentMetrics, logg))

	redeemPolicy := middleware.NewRateLimitPolicy("onboarding_redeem", redeemWindow, redeemLimit)
	r.Route("/connect", func(r chi.Router) {
		r.With(middleware.RateLimit(redeemPolicy, cache, logg)).
			Get("/onboard/{token}", connectcontrollers.RedeemOnboardingToken(deps.Connect, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Get("/onboard", connectcontrollers.Onboard(deps.Connect, logg))
			r.Get("/status", connectcontrollers.Status(deps.Connect, logg))
			r.Get("/dashboard", connectcontrollers.Dashboard(deps.Connect, logg))
			r.Get("/requirements", connectcontrollers.Requirements(deps.Connect, logg))
			r.With(idempotent).Post("/onboarding-tokens", connectcontrollers.IssueOnboardingToken(deps.Connect, logg))
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.OptionalAuth(cfg.JWT, logg))

		r.Route("/payments", func(r chi.Router) {
			r.With(idempotent).Post("/create-payment-intent", paymentcontrollers.CreatePaymentIntent(deps.Payments, logg))
			r.With(middleware.Idempotency(cache, confirmIdempotencyTTL, logg)).Post("/confirm-payment", paymentcontrollers.ConfirmPayment(deps.Payments, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartcontrollers.Fetch(deps.Cart, logg))
			r.Post("/items", cartcontrollers.AddItem(deps.Cart, logg))
			r.Delete("/items/{toolId}", cartcontrollers.RemoveItem(deps.Cart, logg))
		})

		r.Get("/orders/{orderId}", ordercontrollers.Detail(deps.Orders, logg))
	})

	return r
}
