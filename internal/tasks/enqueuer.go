package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

var ErrQueueUnavailable = errors.New("task queue not configured")

const (
	provisionMaxRetry = 10
	provisionDelay    = 5 * time.Second
)

// Enqueuer schedules background provisioning retries.
type Enqueuer struct {
	client *asynq.Client
}

func NewEnqueuer(client *asynq.Client) *Enqueuer {
	return &Enqueuer{client: client}
}

// ScheduleProvision queues a provisioning attempt for userID. At most one
// attempt per user is pending at a time.
func (e *Enqueuer) ScheduleProvision(ctx context.Context, userID uuid.UUID) error {
	if e == nil || e.client == nil {
		return ErrQueueUnavailable
	}

	task, err := NewTenantProvisionTask(TenantProvisionPayload{UserID: userID})
	if err != nil {
		return err
	}

	_, err = e.client.EnqueueContext(ctx, task,
		asynq.TaskID(provisionTaskID(userID)),
		asynq.MaxRetry(provisionMaxRetry),
		asynq.ProcessIn(provisionDelay),
		asynq.Queue("critical"),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

func provisionTaskID(userID uuid.UUID) string {
	return TypeTenantProvision + ":" + userID.String()
}
