package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hugh/go-taskboard/internal/api/dto"
	"github.com/hugh/go-taskboard/internal/api/middleware"
	"github.com/hugh/go-taskboard/internal/api/validation"
	"github.com/hugh/go-taskboard/internal/database/models"
	"github.com/hugh/go-taskboard/internal/store"
	"github.com/hugh/go-taskboard/internal/todos"
)

type TodoHandler struct {
	todos  *todos.Service
	logger *slog.Logger
}

func NewTodoHandler(todoService *todos.Service, logger *slog.Logger) *TodoHandler {
	return &TodoHandler{todos: todoService, logger: logger}
}

// List handles GET /api/todos
func (h *TodoHandler) List(w http.ResponseWriter, r *http.Request) {
	p := pagination(r)
	query := r.URL.Query()

	q := store.TodoQuery{
		Status:   models.TodoStatus(query.Get("status")),
		Priority: models.TodoPriority(query.Get("priority")),
		Search:   strings.TrimSpace(query.Get("search")),
		Page:     store.Page{Limit: p.PerPage, Offset: p.Offset()},
	}
	if assignee := query.Get("assigned_to"); assignee != "" {
		if !validation.IsValidUUID(assignee) {
			writeValidation(w, map[string]string{"assigned_to": "Assignee must be a valid ID"})
			return
		}
		q.AssignedTo = optionalUUID(&assignee)
	}

	list, total, err := h.todos.List(r.Context(), middleware.GetCaller(r.Context()), q)
	if err != nil {
		h.writeServiceError(w, err, "list")
		return
	}

	writeJSON(w, http.StatusOK, dto.NewPaginatedResponse(dto.NewTodoDTOs(list), total, p))
}

// Get handles GET /api/todos/{id}
func (h *TodoHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "todo")
	if !ok {
		return
	}

	todo, err := h.todos.Get(r.Context(), middleware.GetCaller(r.Context()), id)
	if err != nil {
		h.writeServiceError(w, err, "get")
		return
	}

	writeJSON(w, http.StatusOK, dto.NewTodoDTO(todo))
}

// Create handles POST /api/todos. Tenant and creator are taken from the
// session, not the body.
func (h *TodoHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateTodoRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	input := todos.CreateInput{
		Title:       validation.SanitizeString(req.Title),
		Description: validation.SanitizeString(req.Description),
		Status:      models.TodoStatus(req.Status),
		Priority:    models.TodoPriority(req.Priority),
		AssignedTo:  optionalUUID(req.AssignedTo),
		TenantID:    optionalUUID(req.Tenant),
	}
	if req.DueDate != nil && *req.DueDate != "" {
		due, _ := validation.ParseDate(*req.DueDate)
		input.DueDate = &due
	}

	todo, err := h.todos.Create(r.Context(), middleware.GetCaller(r.Context()), input)
	if err != nil {
		h.writeServiceError(w, err, "create")
		return
	}

	writeJSON(w, http.StatusCreated, dto.NewTodoDTO(todo))
}

// Update handles PATCH /api/todos/{id}
func (h *TodoHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "todo")
	if !ok {
		return
	}

	var req dto.UpdateTodoRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	input := todos.UpdateInput{
		AssignedTo: optionalUUID(req.AssignedTo),
		TenantID:   optionalUUID(req.Tenant),
	}
	if req.Title != nil {
		title := validation.SanitizeString(*req.Title)
		input.Title = &title
	}
	if req.Description != nil {
		description := validation.SanitizeString(*req.Description)
		input.Description = &description
	}
	if req.Status != nil {
		status := models.TodoStatus(*req.Status)
		input.Status = &status
	}
	if req.Priority != nil {
		priority := models.TodoPriority(*req.Priority)
		input.Priority = &priority
	}
	if req.DueDate != nil {
		if *req.DueDate == "" {
			input.ClearDueDate = true
		} else {
			due, _ := validation.ParseDate(*req.DueDate)
			input.DueDate = &due
		}
	}

	todo, err := h.todos.Update(r.Context(), middleware.GetCaller(r.Context()), id, input)
	if err != nil {
		h.writeServiceError(w, err, "update")
		return
	}

	writeJSON(w, http.StatusOK, dto.NewTodoDTO(todo))
}

// Delete handles DELETE /api/todos/{id}
func (h *TodoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "todo")
	if !ok {
		return
	}

	if err := h.todos.Delete(r.Context(), middleware.GetCaller(r.Context()), id); err != nil {
		h.writeServiceError(w, err, "delete")
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Todo deleted"})
}

func (h *TodoHandler) writeServiceError(w http.ResponseWriter, err error, op string) {
	var verr *todos.ValidationError
	switch {
	case errors.As(err, &verr):
		writeValidation(w, verr.Fields)
	case errors.Is(err, todos.ErrNoTenant):
		writeError(w, http.StatusForbidden, "You need a tenant before working with todos")
	case errors.Is(err, todos.ErrDenied):
		writeError(w, http.StatusForbidden, "You are not allowed to perform this action")
	case errors.Is(err, todos.ErrNotFound):
		writeError(w, http.StatusNotFound, "Todo not found")
	default:
		h.logger.Error("todo "+op+" failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to "+op+" todo")
	}
}
