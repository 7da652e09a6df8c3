package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/go-taskboard/internal/store"
	"github.com/hugh/go-taskboard/internal/tenancy"
	"gorm.io/gorm"
)

// ReconcileOptions bounds one reconcile sweep. MinAge skips users whose
// registration may still be provisioning inline.
type ReconcileOptions struct {
	BatchSize int
	MinAge    time.Duration
}

func DefaultReconcileOptions() ReconcileOptions {
	return ReconcileOptions{BatchSize: 100, MinAge: time.Minute}
}

type Handler struct {
	logger      *slog.Logger
	users       *store.Users
	provisioner *tenancy.Service
	reconcile   ReconcileOptions
}

func NewHandler(db *gorm.DB, logger *slog.Logger, provisioner *tenancy.Service, opts ReconcileOptions) *Handler {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultReconcileOptions().BatchSize
	}
	return &Handler{
		logger:      logger,
		users:       store.NewUsers(db),
		provisioner: provisioner,
		reconcile:   opts,
	}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeTenantProvision, h.HandleTenantProvision)
	mux.HandleFunc(TypeTenantReconcile, h.HandleTenantReconcile)
}

func (h *Handler) HandleTenantProvision(ctx context.Context, t *asynq.Task) error {
	var payload TenantProvisionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", asynq.SkipRetry)
	}

	res, err := h.provisioner.Ensure(ctx, payload.UserID)
	if err != nil {
		if errors.Is(err, tenancy.ErrUserNotFound) {
			h.logger.Warn("provisioning skipped, user gone", "user_id", payload.UserID)
			return fmt.Errorf("user %s: %w", payload.UserID, asynq.SkipRetry)
		}
		h.logger.Error("provisioning retry failed", "user_id", payload.UserID, "error", err)
		return err
	}

	h.logger.Info("provisioning retry completed",
		"user_id", payload.UserID,
		"tenant_id", res.Tenant.ID,
		"created", res.Created,
	)
	return nil
}

// HandleTenantReconcile provisions users that are still without a tenant,
// oldest first. Individual failures are logged and left for the next sweep.
func (h *Handler) HandleTenantReconcile(ctx context.Context, t *asynq.Task) error {
	cutoff := time.Now().Add(-h.reconcile.MinAge)

	users, err := h.users.FindWithoutTenant(ctx, cutoff, h.reconcile.BatchSize)
	if err != nil {
		return fmt.Errorf("listing tenant-less users: %w", err)
	}
	if len(users) == 0 {
		return nil
	}

	var provisioned, failed int
	for i := range users {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := h.provisioner.Provision(ctx, &users[i]); err != nil {
			failed++
			h.logger.Warn("reconcile provisioning failed", "user_id", users[i].ID, "error", err)
			continue
		}
		provisioned++
	}

	h.logger.Info("tenant reconcile finished",
		"candidates", len(users),
		"provisioned", provisioned,
		"failed", failed,
	)
	return nil
}
