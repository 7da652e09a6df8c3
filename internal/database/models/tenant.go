package models

import "github.com/google/uuid"

// Tenant is an isolated workspace. Every todo belongs to exactly one tenant.
type Tenant struct {
	Base
	Name     string    `gorm:"not null" json:"name"`
	Slug     string    `gorm:"uniqueIndex;not null" json:"slug"`
	OwnerID  uuid.UUID `gorm:"type:uuid;index;not null" json:"owner_id"`
	IsActive bool      `gorm:"default:true" json:"is_active"`

	// Relationships
	Owner *User  `gorm:"foreignKey:OwnerID" json:"-"`
	Users []User `gorm:"foreignKey:TenantID" json:"-"`
}

func (Tenant) TableName() string {
	return "tenants"
}
