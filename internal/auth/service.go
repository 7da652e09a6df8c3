package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-taskboard/internal/database/models"
	"github.com/hugh/go-taskboard/internal/metrics"
	"github.com/hugh/go-taskboard/internal/store"
	"github.com/hugh/go-taskboard/internal/tenancy"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account is locked")
)

type Service struct {
	users       *store.Users
	jwt         *JWTService
	provisioner Provisioner
	retry       RetryScheduler
	logger      *slog.Logger
	metrics     *metrics.Metrics

	maxAttempts int
	lockFor     time.Duration
	now         func() time.Time
}

func NewService(db *gorm.DB, jwt *JWTService, provisioner Provisioner, logger *slog.Logger) *Service {
	return &Service{
		users:       store.NewUsers(db),
		jwt:         jwt,
		provisioner: provisioner,
		logger:      logger,
		maxAttempts: 5,
		lockFor:     10 * time.Minute,
		now:         time.Now,
	}
}

// SetLockout configures how many failed logins lock an account and for how
// long. maxAttempts <= 0 disables locking.
func (s *Service) SetLockout(maxAttempts int, lockFor time.Duration) {
	s.maxAttempts = maxAttempts
	s.lockFor = lockFor
}

// SetRetryScheduler enables background retries for failed provisioning.
func (s *Service) SetRetryScheduler(r RetryScheduler) {
	s.retry = r
}

func (s *Service) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Roles    []models.Role
	TenantID *uuid.UUID // set only by admins; skips provisioning
}

type LoginInput struct {
	Email    string
	Password string
}

type AuthResponse struct {
	Token string       `json:"token"`
	Exp   int64        `json:"exp"`
	User  *models.User `json:"user"`
}

func (s *Service) Register(ctx context.Context, input RegisterInput) (*AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	// Check if user exists
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = tenancy.DefaultName(email)
	}

	roles := input.Roles
	if len(roles) == 0 {
		roles = []models.Role{models.RoleUser}
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Roles:        roles,
		TenantID:     input.TenantID,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, err
	}

	s.logger.Info("user registered", "user_id", user.ID, "email", user.Email)

	if user.TenantID == nil {
		user = s.provision(ctx, user)
	}

	return s.respond(user)
}

func (s *Service) Login(ctx context.Context, input LoginInput) (*AuthResponse, error) {
	user, err := s.users.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.metrics.ObserveLogin("unknown_user")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	now := s.now()
	if user.IsLocked(now) {
		s.metrics.ObserveLogin("locked")
		return nil, ErrAccountLocked
	}

	if !CheckPassword(input.Password, user.PasswordHash) {
		s.metrics.ObserveLogin("bad_password")
		if err := s.users.RecordLoginFailure(ctx, user, s.maxAttempts, s.lockFor, now); err != nil {
			s.logger.Error("failed to record login failure", "user_id", user.ID, "error", err)
		}
		return nil, ErrInvalidCredentials
	}

	if err := s.users.ResetLoginAttempts(ctx, user); err != nil {
		s.logger.Error("failed to reset login attempts", "user_id", user.ID, "error", err)
	}
	s.metrics.ObserveLogin("success")

	if user.TenantID == nil {
		user = s.provision(ctx, user)
	}

	return s.respond(user)
}

func (s *Service) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.users.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// RefreshToken issues a new token for an existing user.
func (s *Service) RefreshToken(ctx context.Context, id uuid.UUID) (*AuthResponse, error) {
	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.respond(user)
}

// provision is best effort: a failure is logged and handed to the retry
// scheduler, and the user is returned unchanged.
func (s *Service) provision(ctx context.Context, user *models.User) *models.User {
	if s.provisioner == nil {
		return user
	}

	res, err := s.provisioner.Provision(ctx, user)
	if err != nil {
		s.logger.Error("tenant provisioning failed", "user_id", user.ID, "error", err)
		if s.retry != nil {
			if err := s.retry.ScheduleProvision(ctx, user.ID); err != nil {
				s.logger.Error("failed to schedule provisioning retry", "user_id", user.ID, "error", err)
			}
		}
		return user
	}
	return res.User
}

func (s *Service) respond(user *models.User) (*AuthResponse, error) {
	token, err := s.jwt.GenerateToken(user.ID, user.TenantID, user.Email, user.Roles)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{
		Token: token,
		Exp:   s.now().Add(s.jwt.Expiry()).Unix(),
		User:  user,
	}, nil
}
