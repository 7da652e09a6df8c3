package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/hugh/go-taskboard/internal/database/models"
	"github.com/hugh/go-taskboard/internal/tenancy"
)

// Authenticator defines the interface for user authentication operations.
type Authenticator interface {
	Register(ctx context.Context, input RegisterInput) (*AuthResponse, error)
	Login(ctx context.Context, input LoginInput) (*AuthResponse, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// TokenService defines the interface for JWT token operations.
type TokenService interface {
	GenerateToken(userID uuid.UUID, tenantID *uuid.UUID, email string, roles []models.Role) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
}

// Provisioner gives a user a tenant.
type Provisioner interface {
	Provision(ctx context.Context, user *models.User) (*tenancy.Result, error)
}

// RetryScheduler queues a background provisioning attempt for a user.
type RetryScheduler interface {
	ScheduleProvision(ctx context.Context, userID uuid.UUID) error
}

// Compile-time interface satisfaction checks
var (
	_ Authenticator = (*Service)(nil)
	_ TokenService  = (*JWTService)(nil)
	_ Provisioner   = (*tenancy.Service)(nil)
)
