// Package todos applies access policy, validation and server-side stamping
// to todo writes before they reach the store.
package todos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hugh/go-taskboard/internal/database/models"
	"github.com/hugh/go-taskboard/internal/policy"
	"github.com/hugh/go-taskboard/internal/store"
	"gorm.io/gorm"
)

var (
	ErrNoTenant = errors.New("caller has no tenant")
	ErrDenied   = errors.New("access denied")
	ErrNotFound = errors.New("todo not found")
)

const MaxTitleLength = 255

// ValidationError carries per-field messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "invalid todo: " + strings.Join(keys, ", ")
}

type CreateInput struct {
	Title       string
	Description string
	Status      models.TodoStatus
	Priority    models.TodoPriority
	DueDate     *time.Time
	AssignedTo  *uuid.UUID
	TenantID    *uuid.UUID // honoured for admins only
}

// UpdateInput is a partial update; nil fields are left alone.
type UpdateInput struct {
	Title        *string
	Description  *string
	Status       *models.TodoStatus
	Priority     *models.TodoPriority
	DueDate      *time.Time
	ClearDueDate bool
	AssignedTo   *uuid.UUID
	TenantID     *uuid.UUID // honoured for admins only
}

type Service struct {
	todos   *store.Todos
	users   *store.Users
	tenants *store.Tenants
	logger  *slog.Logger
}

func NewService(db *gorm.DB, logger *slog.Logger) *Service {
	return &Service{
		todos:   store.NewTodos(db),
		users:   store.NewUsers(db),
		tenants: store.NewTenants(db),
		logger:  logger,
	}
}

func (s *Service) List(ctx context.Context, caller *policy.Caller, q store.TodoQuery) ([]models.Todo, int64, error) {
	d := policy.Evaluate(caller, policy.CollectionTodos, policy.OpRead)
	if !d.Allowed() {
		return nil, 0, denial(caller)
	}
	return s.todos.Find(ctx, d, q)
}

func (s *Service) Get(ctx context.Context, caller *policy.Caller, id uuid.UUID) (*models.Todo, error) {
	d := policy.Evaluate(caller, policy.CollectionTodos, policy.OpRead)
	if !d.Allowed() {
		return nil, denial(caller)
	}
	todo, err := s.todos.Get(ctx, d, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	return todo, err
}

func (s *Service) Create(ctx context.Context, caller *policy.Caller, in CreateInput) (*models.Todo, error) {
	d := policy.Evaluate(caller, policy.CollectionTodos, policy.OpCreate)
	if !d.Allowed() {
		return nil, ErrDenied
	}

	in.Title = strings.TrimSpace(in.Title)
	if in.Status == "" {
		in.Status = models.TodoStatusTodo
	}
	if in.Priority == "" {
		in.Priority = models.TodoPriorityMedium
	}
	if errs := validate(&in.Title, &in.Status, &in.Priority); len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}

	tenantID, err := s.targetTenant(ctx, caller, in.TenantID)
	if err != nil {
		return nil, err
	}

	assignee, err := s.resolveAssignee(ctx, caller, tenantID, in.AssignedTo, caller.ID)
	if err != nil {
		return nil, err
	}

	todo := &models.Todo{
		Title:        in.Title,
		Description:  in.Description,
		Status:       in.Status,
		Priority:     in.Priority,
		DueDate:      in.DueDate,
		AssignedToID: &assignee,
		TenantID:     tenantID,
		CreatedByID:  caller.ID,
	}
	if err := s.todos.Create(ctx, todo); err != nil {
		return nil, fmt.Errorf("creating todo: %w", err)
	}

	s.logger.Debug("todo created", "todo_id", todo.ID, "tenant_id", tenantID, "created_by", caller.ID)
	return s.reload(ctx, todo)
}

func (s *Service) Update(ctx context.Context, caller *policy.Caller, id uuid.UUID, in UpdateInput) (*models.Todo, error) {
	d := policy.Evaluate(caller, policy.CollectionTodos, policy.OpUpdate)
	if !d.Allowed() {
		return nil, denial(caller)
	}

	if in.Title != nil {
		trimmed := strings.TrimSpace(*in.Title)
		in.Title = &trimmed
	}
	if errs := validate(in.Title, in.Status, in.Priority); len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}

	todo, err := s.todos.Get(ctx, d, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var columns []string
	if in.Title != nil {
		todo.Title = *in.Title
		columns = append(columns, "Title")
	}
	if in.Description != nil {
		todo.Description = *in.Description
		columns = append(columns, "Description")
	}
	if in.Status != nil {
		todo.Status = *in.Status
		columns = append(columns, "Status")
	}
	if in.Priority != nil {
		todo.Priority = *in.Priority
		columns = append(columns, "Priority")
	}
	if in.ClearDueDate {
		todo.DueDate = nil
		columns = append(columns, "DueDate")
	} else if in.DueDate != nil {
		todo.DueDate = in.DueDate
		columns = append(columns, "DueDate")
	}
	if in.TenantID != nil && caller.IsAdmin() && *in.TenantID != todo.TenantID {
		if _, err := s.tenants.FindByID(ctx, *in.TenantID); err != nil {
			return nil, tenantLookupError(err)
		}
		todo.TenantID = *in.TenantID
		columns = append(columns, "TenantID")
	}
	if in.AssignedTo != nil {
		assignee, err := s.resolveAssignee(ctx, caller, todo.TenantID, in.AssignedTo, todo.CreatedByID)
		if err != nil {
			return nil, err
		}
		todo.AssignedToID = &assignee
		todo.AssignedTo = nil
		columns = append(columns, "AssignedToID")
	}

	if err := s.todos.Update(ctx, d, todo, columns...); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("updating todo: %w", err)
	}
	return s.reload(ctx, todo)
}

func (s *Service) Delete(ctx context.Context, caller *policy.Caller, id uuid.UUID) error {
	d := policy.Evaluate(caller, policy.CollectionTodos, policy.OpDelete)
	if !d.Allowed() {
		return denial(caller)
	}
	if err := s.todos.Delete(ctx, d, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// targetTenant decides which tenant a new todo belongs to. Only admins may
// pick one; everyone else gets their own regardless of what they sent.
func (s *Service) targetTenant(ctx context.Context, caller *policy.Caller, requested *uuid.UUID) (uuid.UUID, error) {
	if caller.IsAdmin() && requested != nil && *requested != uuid.Nil {
		if _, err := s.tenants.FindByID(ctx, *requested); err != nil {
			return uuid.Nil, tenantLookupError(err)
		}
		return *requested, nil
	}
	if !caller.HasTenant() {
		return uuid.Nil, ErrNoTenant
	}
	return *caller.TenantID, nil
}

// resolveAssignee returns the user a todo in tenantID should be assigned
// to. A missing or out-of-tenant assignee falls back to fallback, except
// that an admin naming a user that does not exist gets a validation error.
func (s *Service) resolveAssignee(ctx context.Context, caller *policy.Caller, tenantID uuid.UUID, requested *uuid.UUID, fallback uuid.UUID) (uuid.UUID, error) {
	if requested == nil || *requested == uuid.Nil {
		return fallback, nil
	}
	if *requested == caller.ID && !caller.IsAdmin() {
		return caller.ID, nil
	}

	user, err := s.users.Get(ctx, *requested)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if caller.IsAdmin() {
			return uuid.Nil, &ValidationError{Fields: map[string]string{"assigned_to": "User not found"}}
		}
		return fallback, nil
	case err != nil:
		return uuid.Nil, err
	}

	if caller.IsAdmin() {
		return user.ID, nil
	}
	if user.TenantID == nil || *user.TenantID != tenantID {
		s.logger.Debug("ignoring cross-tenant assignee", "requested", user.ID, "tenant_id", tenantID)
		return fallback, nil
	}
	return user.ID, nil
}

func (s *Service) reload(ctx context.Context, todo *models.Todo) (*models.Todo, error) {
	fresh, err := s.todos.Get(ctx, policy.Decision{Effect: policy.AllowAll}, todo.ID)
	if err != nil {
		return nil, err
	}
	return fresh, nil
}

func validate(title *string, status *models.TodoStatus, priority *models.TodoPriority) map[string]string {
	errs := make(map[string]string)

	if title != nil {
		switch {
		case *title == "":
			errs["title"] = "Title is required"
		case utf8.RuneCountInString(*title) > MaxTitleLength:
			errs["title"] = fmt.Sprintf("Title must be at most %d characters", MaxTitleLength)
		}
	}
	if status != nil && !ValidStatus(*status) {
		errs["status"] = "Status must be one of todo, in-progress, done"
	}
	if priority != nil && !ValidPriority(*priority) {
		errs["priority"] = "Priority must be one of high, medium, low"
	}

	return errs
}

func ValidStatus(s models.TodoStatus) bool {
	switch s {
	case models.TodoStatusTodo, models.TodoStatusInProgress, models.TodoStatusDone:
		return true
	}
	return false
}

func ValidPriority(p models.TodoPriority) bool {
	switch p {
	case models.TodoPriorityHigh, models.TodoPriorityMedium, models.TodoPriorityLow:
		return true
	}
	return false
}

// denial maps a Deny decision to the error the caller should see.
func denial(caller *policy.Caller) error {
	if caller != nil && !caller.IsAdmin() && !caller.HasTenant() {
		return ErrNoTenant
	}
	return ErrDenied
}

func tenantLookupError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return &ValidationError{Fields: map[string]string{"tenant": "Tenant not found"}}
	}
	return err
}
