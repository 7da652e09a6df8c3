package dto

import (
	"github.com/hugh/go-taskboard/internal/api/validation"
	"github.com/hugh/go-taskboard/internal/database/models"
)

type TodoDTO struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      string       `json:"status"`
	Priority    string       `json:"priority"`
	DueDate     *string      `json:"due_date"`
	AssignedTo  *UserSummary `json:"assigned_to"`
	CreatedBy   *UserSummary `json:"created_by"`
	TenantID    string       `json:"tenant_id"`
	CreatedAt   string       `json:"created_at"`
	UpdatedAt   string       `json:"updated_at"`
}

func NewTodoDTO(t *models.Todo) TodoDTO {
	resp := TodoDTO{
		ID:          t.ID.String(),
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		AssignedTo:  NewUserSummary(t.AssignedTo),
		CreatedBy:   NewUserSummary(t.CreatedBy),
		TenantID:    t.TenantID.String(),
		CreatedAt:   formatTime(t.CreatedAt),
		UpdatedAt:   formatTime(t.UpdatedAt),
	}
	if t.DueDate != nil {
		due := formatTime(*t.DueDate)
		resp.DueDate = &due
	}
	return resp
}

func NewTodoDTOs(todos []models.Todo) []TodoDTO {
	resp := make([]TodoDTO, len(todos))
	for i := range todos {
		resp[i] = NewTodoDTO(&todos[i])
	}
	return resp
}

// CreateTodoRequest carries a new todo. Tenant is only honoured for admins;
// createdBy is never read from the client.
type CreateTodoRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Status      string  `json:"status,omitempty"`
	Priority    string  `json:"priority,omitempty"`
	DueDate     *string `json:"due_date,omitempty"`
	AssignedTo  *string `json:"assigned_to,omitempty"`
	Tenant      *string `json:"tenant,omitempty"`
}

// Validate checks formats only. Field rules such as allowed statuses live
// with the todo service.
func (r CreateTodoRequest) Validate() map[string]string {
	errors := make(map[string]string)
	validateRefs(errors, r.DueDate, r.AssignedTo, r.Tenant)
	return errors
}

// UpdateTodoRequest is a partial update. An empty DueDate clears it.
type UpdateTodoRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	DueDate     *string `json:"due_date,omitempty"`
	AssignedTo  *string `json:"assigned_to,omitempty"`
	Tenant      *string `json:"tenant,omitempty"`
}

func (r UpdateTodoRequest) Validate() map[string]string {
	errors := make(map[string]string)
	validateRefs(errors, r.DueDate, r.AssignedTo, r.Tenant)
	return errors
}

func validateRefs(errors map[string]string, dueDate, assignedTo, tenant *string) {
	if dueDate != nil && *dueDate != "" {
		if _, ok := validation.ParseDate(*dueDate); !ok {
			errors["due_date"] = "Due date must be a date or RFC 3339 timestamp"
		}
	}
	if assignedTo != nil && *assignedTo != "" && !validation.IsValidUUID(*assignedTo) {
		errors["assigned_to"] = "Assignee must be a valid ID"
	}
	if tenant != nil && *tenant != "" && !validation.IsValidUUID(*tenant) {
		errors["tenant"] = "Tenant must be a valid ID"
	}
}
