package scheduler

import (
	"context"
	"time"

	"leadbroker_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// PeriodicDispatcher enqueues the recurring maintenance tasks: follow-up
// dispatch, distributed package delivery, ad-platform sync and the monthly
// commission run.
type PeriodicDispatcher struct {
	client *Client
	log    *logger.Logger

	followupInterval time.Duration
	sweepInterval    time.Duration
	syncInterval     time.Duration
	syncEnabled      bool

	lastCommissionMonth string
}

func NewPeriodicDispatcher(client *Client, log *logger.Logger, followupInterval, sweepInterval, syncInterval time.Duration, syncEnabled bool) *PeriodicDispatcher {
	if followupInterval <= 0 {
		followupInterval = 10 * time.Minute
	}
	if sweepInterval <= 0 {
		sweepInterval = time.Hour
	}
	if syncInterval <= 0 {
		syncInterval = 15 * time.Minute
	}

	return &PeriodicDispatcher{
		client:           client,
		log:              log,
		followupInterval: followupInterval,
		sweepInterval:    sweepInterval,
		syncInterval:     syncInterval,
		syncEnabled:      syncEnabled,
	}
}

func (d *PeriodicDispatcher) Run(ctx context.Context) {
	if d == nil || d.client == nil || d.client.client == nil {
		return
	}

	followup := time.NewTicker(d.followupInterval)
	defer followup.Stop()
	sweep := time.NewTicker(d.sweepInterval)
	defer sweep.Stop()
	sync := time.NewTicker(d.syncInterval)
	defer sync.Stop()
	commission := time.NewTicker(time.Hour)
	defer commission.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-followup.C:
			d.enqueue(ctx, NewFollowupDispatchTask())
		case <-sweep.C:
			d.enqueue(ctx, NewPackageDistributionSweepTask())
		case <-sync.C:
			if d.syncEnabled {
				d.enqueue(ctx, NewAdPlatformSyncTask())
			}
		case <-commission.C:
			d.maybeEnqueueCommissionRun(ctx, time.Now())
		}
	}
}

func (d *PeriodicDispatcher) enqueue(ctx context.Context, task *asynq.Task) {
	_, err := d.client.client.EnqueueContext(ctx, task, asynq.Queue(d.client.queue))
	if err != nil {
		d.log.Warn("failed to enqueue scheduled task", "task", task.Type(), "error", err)
	}
}

// maybeEnqueueCommissionRun fires once on the first day of each month and
// covers the full previous calendar month.
func (d *PeriodicDispatcher) maybeEnqueueCommissionRun(ctx context.Context, now time.Time) {
	if now.Day() != 1 {
		return
	}

	month := now.Format("2006-01")
	if d.lastCommissionMonth == month {
		return
	}

	to := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	from := to.AddDate(0, -1, 0)

	task, err := NewCommissionRunTask(CommissionRunPayload{
		From: from.Format(time.RFC3339),
		To:   to.Format(time.RFC3339),
	})
	if err != nil {
		d.log.Warn("failed to build commission run task", "error", err)
		return
	}

	d.enqueue(ctx, task)
	d.lastCommissionMonth = month
}
