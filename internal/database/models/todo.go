package models

import (
	"time"

	"github.com/google/uuid"
)

type TodoStatus string

const (
	TodoStatusTodo       TodoStatus = "todo"
	TodoStatusInProgress TodoStatus = "in-progress"
	TodoStatusDone       TodoStatus = "done"
)

type TodoPriority string

const (
	TodoPriorityHigh   TodoPriority = "high"
	TodoPriorityMedium TodoPriority = "medium"
	TodoPriorityLow    TodoPriority = "low"
)

type Todo struct {
	Base
	Title       string       `gorm:"not null" json:"title"`
	Description string       `gorm:"type:text" json:"description,omitempty"`
	Status      TodoStatus   `gorm:"not null;index;default:'todo'" json:"status"`
	Priority    TodoPriority `gorm:"not null;index;default:'medium'" json:"priority"`
	DueDate     *time.Time   `json:"due_date,omitempty"`

	AssignedToID *uuid.UUID `gorm:"type:uuid;index" json:"assigned_to_id,omitempty"`
	TenantID     uuid.UUID  `gorm:"type:uuid;index;not null" json:"tenant_id"`
	CreatedByID  uuid.UUID  `gorm:"type:uuid;index;not null" json:"created_by_id"`

	// Relationships
	AssignedTo *User   `gorm:"foreignKey:AssignedToID" json:"assigned_to,omitempty"`
	CreatedBy  *User   `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`
	Tenant     *Tenant `gorm:"foreignKey:TenantID" json:"-"`
}

func (Todo) TableName() string {
	return "todos"
}
