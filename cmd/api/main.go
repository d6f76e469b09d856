package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
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
	apphttp "leadbroker_backend/internal/http"
	"leadbroker_backend/internal/http/router"
	"leadbroker_backend/internal/leads"
	"leadbroker_backend/internal/notification"
	"leadbroker_backend/internal/packages"
	"leadbroker_backend/internal/webhook"
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
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

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
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	sender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	// Notification module subscribes to domain events (outbox + email)
	notificationModule := notification.New(pool, sender, log)
	notificationModule.RegisterHandlers(eventBus)

	brokersModule := brokers.NewModule(pool, val)
	leadsModule := leads.NewModule(pool, eventBus, log, val)
	webhookModule := webhook.NewModule(pool, leadsModule.Service(), log, val)
	adPlatformModule := adplatform.NewModule(cfg, leadsModule.Service(), log)
	contractsModule := contracts.NewModule(pool, brokersModule.Service(), leadsModule.Service(), eventBus, cfg.GetAppBaseURL(), log, val)
	assignmentsModule := assignments.NewModule(pool, leadsModule.Service(), brokersModule.Service(), contractsModule.Service(), eventBus, cfg.GetAppBaseURL(), log, val)

	// Billing draws closed revenue-share commissions straight from the
	// assignment store for the monthly collective run; packages use the
	// same store to write delivery batches.
	assignmentStore := assignsrepo.New(pool)
	billingModule := billing.NewModule(pool, cfg, brokersModule.Service(), assignmentsModule.Service(), assignmentStore, eventBus, log, val)
	packagesModule := packages.NewModule(pool, leadsModule.Service(), brokersModule.Service(), assignmentStore, billingModule.Service(), eventBus, log, val)

	// Close the two cycles: assignments need billing for payment-gated
	// invoices, billing needs packages for paid package activation.
	assignmentsModule.Service().SetInvoiceIssuer(billingModule.Service())
	billingModule.Service().SetPackageActivator(packagesModule.Service())

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			brokersModule,
			leadsModule,
			webhookModule,
			adPlatformModule,
			contractsModule,
			assignmentsModule,
			billingModule,
			packagesModule,
			notificationModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = shutdownCtx
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
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
