package store

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/go-taskboard/internal/database/models"
	"github.com/hugh/go-taskboard/internal/policy"
	"gorm.io/gorm"
)

type Todos struct {
	db *gorm.DB
}

func NewTodos(db *gorm.DB) *Todos {
	return &Todos{db: db}
}

// TodoQuery holds the caller-supplied filters for listing todos. They are
// ANDed with the policy filter, never substituted for it.
type TodoQuery struct {
	Status     models.TodoStatus
	Priority   models.TodoPriority
	AssignedTo *uuid.UUID
	Search     string
	Page       Page
}

func (s *Todos) Find(ctx context.Context, d policy.Decision, q TodoQuery) ([]models.Todo, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Todo{}).Scopes(Scope(d))

	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if q.Priority != "" {
		query = query.Where("priority = ?", q.Priority)
	}
	if q.AssignedTo != nil {
		query = query.Where("assigned_to_id = ?", *q.AssignedTo)
	}
	if q.Search != "" {
		like := "%" + strings.ToLower(q.Search) + "%"
		query = query.Where("(LOWER(title) LIKE ? OR LOWER(description) LIKE ?)", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var todos []models.Todo
	if err := q.Page.apply(query).
		Preload("AssignedTo").
		Preload("CreatedBy").
		Order("created_at DESC").
		Find(&todos).Error; err != nil {
		return nil, 0, err
	}
	return todos, total, nil
}

func (s *Todos) Get(ctx context.Context, d policy.Decision, id uuid.UUID) (*models.Todo, error) {
	var todo models.Todo
	if err := s.db.WithContext(ctx).
		Scopes(Scope(d)).
		Preload("AssignedTo").
		Preload("CreatedBy").
		First(&todo, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &todo, nil
}

// Create inserts a todo whose tenant and creator have already been stamped.
func (s *Todos) Create(ctx context.Context, todo *models.Todo) error {
	return translate(s.db.WithContext(ctx).Create(todo).Error)
}

// Update writes the named columns of todo, but only if the row still passes d.
func (s *Todos) Update(ctx context.Context, d policy.Decision, todo *models.Todo, columns ...string) error {
	if len(columns) == 0 {
		return nil
	}
	res := s.db.WithContext(ctx).
		Model(todo).
		Scopes(Scope(d)).
		Select(columns).
		Updates(todo)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Todos) Delete(ctx context.Context, d policy.Decision, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Scopes(Scope(d)).Where("id = ?", id).Delete(&models.Todo{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
