package models

import (
	"time"

	"gorm.io/datatypes"
)

const DefaultWelcomeMessage = "Get stuff done!"

// Settings is a single-row global configuration record.
type Settings struct {
	ID                uint                        `gorm:"primaryKey" json:"-"`
	WelcomeMessage    string                      `json:"welcome_message"`
	DefaultCategories datatypes.JSONSlice[string] `json:"default_categories"`
	UpdatedAt         time.Time                   `json:"updated_at"`
}

func (Settings) TableName() string {
	return "settings"
}
