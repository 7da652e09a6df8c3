// Package tenancy creates the tenant a user works in and links the user to
// it. Provisioning is idempotent and safe to run concurrently for the same
// user: the link is a conditional write, so at most one tenant ever ends up
// referenced by the user.
package tenancy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/google/uuid"
	"github.com/hugh/go-taskboard/internal/database/models"
	"github.com/hugh/go-taskboard/internal/metrics"
	"github.com/hugh/go-taskboard/internal/store"
	"gorm.io/gorm"
)

var (
	// ErrSlugConflict means the chosen slug was taken between the existence
	// check and the insert. The caller may retry.
	ErrSlugConflict = errors.New("tenant slug already taken")
	ErrUserNotFound = errors.New("user not found")
)

const (
	MessageExists  = "Tenant already exists"
	MessageCreated = "Tenant created"

	slugSuffixRange = 1000
)

type Result struct {
	Tenant  *models.Tenant `json:"tenant"`
	User    *models.User   `json:"user"`
	Created bool           `json:"created"`
	Message string         `json:"message"`
}

type Service struct {
	users   *store.Users
	tenants *store.Tenants
	logger  *slog.Logger
	metrics *metrics.Metrics

	intn       func(int) int
	beforeLink func()
}

func NewService(db *gorm.DB, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		users:   store.NewUsers(db),
		tenants: store.NewTenants(db),
		logger:  logger,
		metrics: m,
		intn:    rand.Intn,
	}
}

// Ensure provisions a tenant for the user with the given id, or returns the
// one it already has.
func (s *Service) Ensure(ctx context.Context, userID uuid.UUID) (*Result, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.Provision(ctx, user)
}

// Provision gives user a tenant. The user row is re-read first, so a stale
// in-memory copy never causes a second tenant to be created.
func (s *Service) Provision(ctx context.Context, user *models.User) (*Result, error) {
	if user == nil {
		return nil, ErrUserNotFound
	}

	current, err := s.users.Get(ctx, user.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("loading user: %w", err)
	}

	var stale *uuid.UUID
	if current.TenantID != nil {
		tenant, err := s.tenants.FindByID(ctx, *current.TenantID)
		switch {
		case err == nil:
			s.metrics.ObserveProvision(metrics.ProvisionExisting)
			return &Result{Tenant: tenant, User: current, Message: MessageExists}, nil
		case !errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("loading tenant: %w", err)
		}

		// The referenced tenant is gone; replace the dangling reference.
		id := *current.TenantID
		stale = &id
		s.logger.Warn("user references missing tenant", "user_id", current.ID, "tenant_id", id)
	}

	tenant, err := s.createTenant(ctx, current)
	if err != nil {
		return nil, err
	}

	if s.beforeLink != nil {
		s.beforeLink()
	}

	linked, err := s.users.LinkTenant(ctx, current.ID, tenant.ID, stale)
	if errors.Is(err, store.ErrAlreadyLinked) {
		return s.yield(ctx, current.ID, tenant)
	}
	if err != nil {
		s.discard(ctx, tenant)
		s.metrics.ObserveProvision(metrics.ProvisionFailed)
		return nil, fmt.Errorf("linking tenant: %w", err)
	}

	s.metrics.ObserveProvision(metrics.ProvisionCreated)
	s.logger.Info("tenant provisioned",
		"user_id", linked.ID,
		"tenant_id", tenant.ID,
		"slug", tenant.Slug,
	)
	return &Result{Tenant: tenant, User: linked, Created: true, Message: MessageCreated}, nil
}

func (s *Service) createTenant(ctx context.Context, user *models.User) (*models.Tenant, error) {
	name := user.Name
	if name == "" {
		name = DefaultName(user.Email)
	}

	slug, err := s.pickSlug(ctx, baseSlug(user.Name, user.Email))
	if err != nil {
		s.metrics.ObserveProvision(metrics.ProvisionFailed)
		return nil, err
	}

	tenant := &models.Tenant{
		Name:     name,
		Slug:     slug,
		OwnerID:  user.ID,
		IsActive: true,
	}
	if err := s.tenants.Create(ctx, tenant); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			s.metrics.ObserveProvision(metrics.ProvisionConflict)
			return nil, fmt.Errorf("%w: %s", ErrSlugConflict, slug)
		}
		s.metrics.ObserveProvision(metrics.ProvisionFailed)
		return nil, fmt.Errorf("creating tenant: %w", err)
	}
	return tenant, nil
}

// pickSlug returns base, or base with a random numeric suffix when base is
// already taken. The suffixed slug is not re-checked; a collision surfaces
// as ErrSlugConflict on insert.
func (s *Service) pickSlug(ctx context.Context, base string) (string, error) {
	taken, err := s.tenants.SlugExists(ctx, base)
	if err != nil {
		return "", fmt.Errorf("checking slug: %w", err)
	}
	if !taken {
		return base, nil
	}
	return fmt.Sprintf("%s-%d", base, s.intn(slugSuffixRange)), nil
}

// yield is called when another provisioner linked the user first. The
// tenant created here is dropped and the winner's tenant is returned.
func (s *Service) yield(ctx context.Context, userID uuid.UUID, orphan *models.Tenant) (*Result, error) {
	s.discard(ctx, orphan)
	s.metrics.ObserveProvision(metrics.ProvisionRaced)

	winner, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("reloading user: %w", err)
	}
	if winner.TenantID == nil {
		return nil, fmt.Errorf("linking tenant: %w", store.ErrAlreadyLinked)
	}

	tenant, err := s.tenants.FindByID(ctx, *winner.TenantID)
	if err != nil {
		return nil, fmt.Errorf("loading tenant: %w", err)
	}

	s.logger.Info("tenant provisioning lost race",
		"user_id", userID,
		"tenant_id", tenant.ID,
		"discarded_tenant_id", orphan.ID,
	)
	return &Result{Tenant: tenant, User: winner, Message: MessageExists}, nil
}

func (s *Service) discard(ctx context.Context, tenant *models.Tenant) {
	if err := s.tenants.Delete(ctx, tenant.ID); err != nil {
		s.logger.Error("failed to remove unlinked tenant", "tenant_id", tenant.ID, "error", err)
	}
}
