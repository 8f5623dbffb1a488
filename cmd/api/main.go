package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/benchlot/benchlot-backend/api/routes"
	"github.com/benchlot/benchlot-backend/internal/cart"
	"github.com/benchlot/benchlot-backend/internal/connect"
	"github.com/benchlot/benchlot-backend/internal/orders"
	"github.com/benchlot/benchlot-backend/internal/payments"
	"github.com/benchlot/benchlot-backend/internal/payouts"
	"github.com/benchlot/benchlot-backend/internal/tools"
	"github.com/benchlot/benchlot-backend/internal/users"
	stripewebhook "github.com/benchlot/benchlot-backend/internal/webhooks/stripe"
	"github.com/benchlot/benchlot-backend/pkg/config"
	"github.com/benchlot/benchlot-backend/pkg/db"
	"github.com/benchlot/benchlot-backend/pkg/logger"
	"github.com/benchlot/benchlot-backend/pkg/metrics"
	"github.com/benchlot/benchlot-backend/pkg/migrate"
	"github.com/benchlot/benchlot-backend/pkg/outbox"
	"github.com/benchlot/benchlot-backend/pkg/redis"
	"github.com/benchlot/benchlot-backend/pkg/stripe"
)

const (
	webhookGuardScope = "stripe_webhook"
	shutdownTimeout   = 15 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Console:     cfg.App.ConsoleLogs(),
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	paymentMetrics := metrics.NewPaymentMetrics(registry)

	gormDB := dbClient.DB()
	userRepo := users.NewRepository(gormDB)
	toolRepo := tools.NewRepository(gormDB)
	orderRepo := orders.NewRepository(gormDB)
	payoutRepo := payouts.NewRepository(gormDB)
	cartRepo := cart.NewRepository(gormDB)
	emitter := outbox.NewService(outbox.NewRepository(gormDB), logg)

	reconciler, err := connect.NewReconciler(connect.ReconcilerParams{
		DB:       dbClient,
		Users:    userRepo,
		Accounts: stripeClient,
		Outbox:   emitter,
		Logger:   logg,
	})
	if err != nil {
		fatal(logg, "failed to create account reconciler", err)
	}

	connectService, err := connect.NewService(connect.ServiceParams{
		Users:             userRepo,
		Tokens:            connect.NewTokenRepository(gormDB),
		Gateway:           stripeClient,
		Reconciler:        reconciler,
		Logger:            logg,
		Frontend:          cfg.Frontend,
		AllowMockAccounts: cfg.Stripe.AllowMockConnect,
		TokenTTL:          cfg.Payments.OnboardingTokenTTL,
	})
	if err != nil {
		fatal(logg, "failed to create connect service", err)
	}

	aggregator, err := cart.NewAggregator(toolRepo)
	if err != nil {
		fatal(logg, "failed to create cart aggregator", err)
	}
	cartService, err := cart.NewService(cartRepo, toolRepo)
	if err != nil {
		fatal(logg, "failed to create cart service", err)
	}

	splitter, err := payouts.NewSplitter(payouts.SplitterParams{
		DB:        dbClient,
		Repo:      payoutRepo,
		Transfers: stripeClient,
		Intents:   stripeClient,
		Sellers:   userRepo,
		Orders:    orderRepo,
		Outbox:    emitter,
		Metrics:   paymentMetrics,
		Logger:    logg,
		FeeBps:    cfg.Payments.PlatformFeeBps,
		Currency:  cfg.Payments.Currency,

		PendingLease: cfg.Payments.PayoutPendingLease,
	})
	if err != nil {
		fatal(logg, "failed to create payout splitter", err)
	}
	settler, err := payouts.NewSettler(payouts.SettlerParams{
		DB:       dbClient,
		Orders:   orderRepo,
		Splitter: splitter,
		Outbox:   emitter,
		Logger:   logg,
	})
	if err != nil {
		fatal(logg, "failed to create order settler", err)
	}

	paymentService, err := payments.NewService(payments.ServiceParams{
		DB:                   dbClient,
		Gateway:              stripeClient,
		Pricer:               aggregator,
		Orders:               orderRepo,
		Carts:                cartRepo,
		Settler:              settler,
		Outbox:               emitter,
		Logger:               logg,
		Currency:             cfg.Payments.Currency,
		PlatformFeeBps:       cfg.Payments.PlatformFeeBps,
		ProcessingReserveBps: cfg.Payments.ProcessingReserveBps,
	})
	if err != nil {
		fatal(logg, "failed to create payments service", err)
	}

	orderService, err := orders.NewService(orderRepo, payoutRepo)
	if err != nil {
		fatal(logg, "failed to create orders service", err)
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		DB:         dbClient,
		Orders:     orderRepo,
		Users:      userRepo,
		Settler:    settler,
		Reconciler: reconciler,
		Outbox:     emitter,
		Logger:     logg,
	})
	if err != nil {
		fatal(logg, "failed to create stripe webhook service", err)
	}
	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Eventing.WebhookIdempotencyTTL, webhookGuardScope)
	if err != nil {
		fatal(logg, "failed to create stripe webhook guard", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"stripe_env": stripeClient.Environment(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Dependencies{
			Config:         cfg,
			Logger:         logg,
			DB:             dbClient,
			Cache:          redisClient,
			MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			PaymentMetrics: paymentMetrics,
			HTTPMetrics:    metrics.NewHTTPMetrics(registry),
			Connect:        connectService,
			Payments:       paymentService,
			Cart:           cartService,
			Orders:         orderService,
			StripeClient:   stripeClient,
			WebhookService: webhookService,
			WebhookGuard:   webhookGuard,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server shut down gracefully")
	}
}

func fatal(logg *logger.Logger, msg string, err error) {
	logg.Error(context.Background(), msg, err)
	os.Exit(1)
}
