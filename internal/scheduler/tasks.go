package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskNotificationOutboxDue = "notification.outbox.due"

const TaskFollowupDispatch = "assignments.followup.dispatch"

const TaskPackageDistributionSweep = "packages.distribution.sweep"

const TaskAdPlatformSync = "adplatform.sync"

const TaskCommissionRun = "billing.commission.run"

type NotificationOutboxDuePayload struct {
	OutboxID string `json:"outboxId"`
}

type CommissionRunPayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func NewNotificationOutboxDueTask(payload NotificationOutboxDuePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotificationOutboxDue, data), nil
}

func ParseNotificationOutboxDuePayload(task *asynq.Task) (NotificationOutboxDuePayload, error) {
	var payload NotificationOutboxDuePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return NotificationOutboxDuePayload{}, err
	}
	return payload, nil
}

func NewFollowupDispatchTask() *asynq.Task {
	return asynq.NewTask(TaskFollowupDispatch, nil)
}

func NewPackageDistributionSweepTask() *asynq.Task {
	return asynq.NewTask(TaskPackageDistributionSweep, nil)
}

func NewAdPlatformSyncTask() *asynq.Task {
	return asynq.NewTask(TaskAdPlatformSync, nil)
}

func NewCommissionRunTask(payload CommissionRunPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCommissionRun, data), nil
}

func ParseCommissionRunPayload(task *asynq.Task) (CommissionRunPayload, error) {
	var payload CommissionRunPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return CommissionRunPayload{}, err
	}
	return payload, nil
}
