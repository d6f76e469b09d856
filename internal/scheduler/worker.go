package scheduler

import (
	"context"
	"fmt"
	"time"

	"leadbroker_backend/internal/adplatform"
	assignsvc "leadbroker_backend/internal/assignments/service"
	billingsvc "leadbroker_backend/internal/billing/service"
	"leadbroker_backend/internal/events"
	pkgtransport "leadbroker_backend/internal/packages/transport"
	"leadbroker_backend/platform/config"
	"leadbroker_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const followupDispatchBatch = 200

// FollowupDispatcher sends due revenue-share feedback requests.
type FollowupDispatcher interface {
	DispatchDueFollowups(ctx context.Context, limit int) (assignsvc.DispatchResult, error)
}

// PackageSweeper delivers due distributed lead packages.
type PackageSweeper interface {
	RunDistributionSweep(ctx context.Context) (pkgtransport.SweepResult, error)
}

// AdPlatformSyncer pulls new leads from the ad-platform graph API.
type AdPlatformSyncer interface {
	Sync(ctx context.Context) (adplatform.SyncResult, error)
}

// CommissionRunner issues collective commission invoices for a period.
type CommissionRunner interface {
	RunCommissionInvoicing(ctx context.Context, from, to time.Time) (billingsvc.CommissionRunResult, error)
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	bus    events.Bus
	log    *logger.Logger

	followups   FollowupDispatcher
	packages    PackageSweeper
	adPlatform  AdPlatformSyncer
	commissions CommissionRunner
}

func NewWorker(cfg config.SchedulerConfig, bus events.Bus, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		bus:    bus,
		log:    log,
	}

	mux.HandleFunc(TaskNotificationOutboxDue, w.handleNotificationOutboxDue)
	mux.HandleFunc(TaskFollowupDispatch, w.handleFollowupDispatch)
	mux.HandleFunc(TaskPackageDistributionSweep, w.handlePackageDistributionSweep)
	mux.HandleFunc(TaskAdPlatformSync, w.handleAdPlatformSync)
	mux.HandleFunc(TaskCommissionRun, w.handleCommissionRun)

	return w, nil
}

func (w *Worker) SetFollowupDispatcher(d FollowupDispatcher) { w.followups = d }

func (w *Worker) SetPackageSweeper(s PackageSweeper) { w.packages = s }

func (w *Worker) SetAdPlatformSyncer(s AdPlatformSyncer) { w.adPlatform = s }

func (w *Worker) SetCommissionRunner(r CommissionRunner) { w.commissions = r }

func (w *Worker) handleNotificationOutboxDue(ctx context.Context, task *asynq.Task) error {
	if w.bus == nil {
		return nil
	}

	payload, err := ParseNotificationOutboxDuePayload(task)
	if err != nil {
		return err
	}

	outboxID, err := uuid.Parse(payload.OutboxID)
	if err != nil {
		return err
	}

	return w.bus.PublishSync(ctx, events.NotificationOutboxDue{
		BaseEvent: events.NewBaseEvent(),
		OutboxID:  outboxID,
	})
}

func (w *Worker) handleFollowupDispatch(ctx context.Context, _ *asynq.Task) error {
	if w.followups == nil {
		return nil
	}

	result, err := w.followups.DispatchDueFollowups(ctx, followupDispatchBatch)
	if err != nil {
		return err
	}

	if result.Due > 0 {
		w.log.Info("followup dispatch completed", "due", result.Due, "sent", result.Sent, "failed", result.Failed)
	}
	return nil
}

func (w *Worker) handlePackageDistributionSweep(ctx context.Context, _ *asynq.Task) error {
	if w.packages == nil {
		return nil
	}

	result, err := w.packages.RunDistributionSweep(ctx)
	if err != nil {
		return err
	}

	if result.Due > 0 {
		w.log.Info("package distribution sweep completed",
			"due", result.Due, "delivered", result.Delivered, "noLeads", result.NoLeads, "failed", result.Failed)
	}
	return nil
}

func (w *Worker) handleAdPlatformSync(ctx context.Context, _ *asynq.Task) error {
	if w.adPlatform == nil {
		return nil
	}

	result, err := w.adPlatform.Sync(ctx)
	if err != nil {
		return err
	}

	w.log.Info("ad platform sync completed",
		"fetched", result.Fetched, "imported", result.Imported, "duplicates", result.Duplicates, "skipped", result.Skipped)
	return nil
}

func (w *Worker) handleCommissionRun(ctx context.Context, task *asynq.Task) error {
	if w.commissions == nil {
		return nil
	}

	payload, err := ParseCommissionRunPayload(task)
	if err != nil {
		return err
	}

	from, err := time.Parse(time.RFC3339, payload.From)
	if err != nil {
		return err
	}
	to, err := time.Parse(time.RFC3339, payload.To)
	if err != nil {
		return err
	}

	result, err := w.commissions.RunCommissionInvoicing(ctx, from, to)
	if err != nil {
		return err
	}

	w.log.Info("commission run completed",
		"brokers", result.Brokers, "invoices", result.Invoices, "failed", result.Failed)
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
