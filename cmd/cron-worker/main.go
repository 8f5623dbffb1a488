package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/benchlot/benchlot-backend/internal/connect"
	"github.com/benchlot/benchlot-backend/internal/cron"
	"github.com/benchlot/benchlot-backend/internal/orders"
	"github.com/benchlot/benchlot-backend/internal/payouts"
	"github.com/benchlot/benchlot-backend/internal/users"
	"github.com/benchlot/benchlot-backend/pkg/config"
	"github.com/benchlot/benchlot-backend/pkg/db"
	"github.com/benchlot/benchlot-backend/pkg/logger"
	"github.com/benchlot/benchlot-backend/pkg/metrics"
	"github.com/benchlot/benchlot-backend/pkg/migrate"
	"github.com/benchlot/benchlot-backend/pkg/outbox"
	"github.com/benchlot/benchlot-backend/pkg/redis"
	"github.com/benchlot/benchlot-backend/pkg/stripe"
)

const lockNameFormat = "cron-worker:%s"

func main() {
	only := flag.String("jobs", "", "comma separated job names to run (default all)")
	once := flag.Bool("once", false, "run a single cycle and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	jobs, err := buildJobs(cfg, logg, dbClient, stripeClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build cron jobs", err)
		os.Exit(1)
	}
	registry := cron.NewRegistry()
	for _, job := range jobs {
		if err := registry.Register(job); err != nil {
			logg.Error(context.Background(), "failed to register cron job", err)
			os.Exit(1)
		}
	}
	registry, err = registry.Only(strings.Split(*only, ",")...)
	if err != nil {
		logg.Error(context.Background(), "invalid -jobs selection", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, lockName(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"jobs":        len(registry.Jobs()),
		"once":        *once,
	})
	logg.Info(ctx, "starting cron worker")

	if *once {
		if err := service.RunOnce(ctx); err != nil {
			logg.Error(ctx, "cron cycle failed", err)
			os.Exit(1)
		}
		return
	}

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildJobs(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, stripeClient *stripe.Client) ([]cron.Job, error) {
	gormDB := dbClient.DB()
	userRepo := users.NewRepository(gormDB)
	payoutRepo := payouts.NewRepository(gormDB)
	outboxRepo := outbox.NewRepository(gormDB)
	emitter := outbox.NewService(outboxRepo, logg)

	reconciler, err := connect.NewReconciler(connect.ReconcilerParams{
		DB:       dbClient,
		Users:    userRepo,
		Accounts: stripeClient,
		Outbox:   emitter,
		Logger:   logg,
	})
	if err != nil {
		return nil, fmt.Errorf("account reconciler: %w", err)
	}

	splitter, err := payouts.NewSplitter(payouts.SplitterParams{
		DB:        dbClient,
		Repo:      payoutRepo,
		Transfers: stripeClient,
		Intents:   stripeClient,
		Sellers:   userRepo,
		Orders:    orders.NewRepository(gormDB),
		Outbox:    emitter,
		Metrics:   metrics.NewPaymentMetrics(prometheus.DefaultRegisterer),
		Logger:    logg,
		FeeBps:    cfg.Payments.PlatformFeeBps,
		Currency:  cfg.Payments.Currency,

		PendingLease: cfg.Payments.PayoutPendingLease,
	})
	if err != nil {
		return nil, fmt.Errorf("payout splitter: %w", err)
	}

	statusJob, err := cron.NewSellerStatusReconcileJob(cron.SellerStatusReconcileJobParams{
		Logger:     logg,
		Sellers:    userRepo,
		Reconciler: reconciler,
		StaleAfter: cfg.Cron.StatusStaleAfter,
		Limit:      cfg.Cron.StatusReconcileSize,
	})
	if err != nil {
		return nil, err
	}
	retryJob, err := cron.NewPayoutRetryJob(cron.PayoutRetryJobParams{
		Logger:      logg,
		Payouts:     splitter,
		Splitter:    splitter,
		MaxAttempts: cfg.Payments.PayoutRetryMaxAttempt,
		Limit:       cfg.Cron.PayoutRetryBatch,
	})
	if err != nil {
		return nil, err
	}
	outboxJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          dbClient,
		Repository:  outboxRepo,
		Retention:   cfg.Cron.OutboxRetention,
		MaxAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return nil, err
	}
	tokenJob, err := cron.NewOnboardingTokenCleanupJob(logg, connect.NewTokenRepository(gormDB))
	if err != nil {
		return nil, err
	}
	return []cron.Job{statusJob, retryJob, outboxJob, tokenJob}, nil
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockNameFormat, env)
}
