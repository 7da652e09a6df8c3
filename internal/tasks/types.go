package tasks

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type names
const (
	TypeTenantProvision = "tenant:provision"
	TypeTenantReconcile = "tenant:reconcile"
)

// TenantProvisionPayload identifies the user whose tenant should be created
type TenantProvisionPayload struct {
	UserID uuid.UUID `json:"user_id"`
}

func NewTenantProvisionTask(payload TenantProvisionPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeTenantProvision, data), nil
}

// TenantReconcilePayload is empty - the sweep looks at every tenant-less user
type TenantReconcilePayload struct{}

func NewTenantReconcileTask() *asynq.Task {
	return asynq.NewTask(TypeTenantReconcile, nil)
}
