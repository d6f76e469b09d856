package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"leadbroker_backend/internal/adplatform"
	"leadbroker_backend/internal/assignments"
	assignsrepo "leadbroker_backend/internal/assignments/repository"
	"leadbroker_backend/internal/billing"
	"leadbroker_backend/internal/brokers"
	"leadbroker_backend/internal/contracts"
	"leadbroker_backend/internal/email"
	"leadbroker_backend/internal/events"
	"leadbroker_backend/internal/leads"
	"leadbroker_backend/internal/notification"
	"leadbroker_backend/internal/packages"
	"leadbroker_backend/internal/scheduler"
	"leadbroker_backend/platform/config"
	"leadbroker_backend/platform/db"
	"leadbroker_backend/platform/logger"
	"leadbroker_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)

	sender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}

	notificationModule := notification.New(pool, sender, log)
	notificationModule.RegisterHandlers(eventBus)

	val := validator.New()

	// Worker-side module wiring (no HTTP handlers required).
	brokersModule := brokers.NewModule(pool, val)
	leadsModule := leads.NewModule(pool, eventBus, log, val)
	adPlatformModule := adplatform.NewModule(cfg, leadsModule.Service(), log)
	contractsModule := contracts.NewModule(pool, brokersModule.Service(), leadsModule.Service(), eventBus, cfg.GetAppBaseURL(), log, val)
	assignmentsModule := assignments.NewModule(pool, leadsModule.Service(), brokersModule.Service(), contractsModule.Service(), eventBus, cfg.GetAppBaseURL(), log, val)

	assignmentStore := assignsrepo.New(pool)
	billingModule := billing.NewModule(pool, cfg, brokersModule.Service(), assignmentsModule.Service(), assignmentStore, eventBus, log, val)
	packagesModule := packages.NewModule(pool, leadsModule.Service(), brokersModule.Service(), assignmentStore, billingModule.Service(), eventBus, log, val)

	assignmentsModule.Service().SetInvoiceIssuer(billingModule.Service())
	billingModule.Service().SetPackageActivator(packagesModule.Service())

	outboxDispatcher, err := scheduler.NewNotificationOutboxDispatcher(cfg, pool, log)
	if err != nil {
		log.Error("failed to initialize outbox dispatcher", "error", err)
		panic("failed to initialize outbox dispatcher: " + err.Error())
	}
	defer func() { _ = outboxDispatcher.Close() }()
	go outboxDispatcher.Run(ctx)

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	followupInterval := getDurationEnv("FOLLOWUP_DISPATCH_INTERVAL", 10*time.Minute)
	sweepInterval := getDurationEnv("PACKAGE_SWEEP_INTERVAL", time.Hour)
	periodic := scheduler.NewPeriodicDispatcher(client, log,
		followupInterval, sweepInterval, cfg.GetAdPlatformSyncInterval(), adPlatformModule.Enabled())
	go periodic.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, eventBus, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}
	worker.SetFollowupDispatcher(assignmentsModule.Service())
	worker.SetPackageSweeper(packagesModule.Service())
	worker.SetCommissionRunner(billingModule.Service())
	if adPlatformModule.Enabled() {
		worker.SetAdPlatformSyncer(adPlatformModule.Service())
	}

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}

	return parsed
}
