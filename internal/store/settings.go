package store

import (
	"context"
	"errors"

	"github.com/hugh/go-taskboard/internal/database/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const settingsRowID = 1

type Settings struct {
	db *gorm.DB
}

func NewSettings(db *gorm.DB) *Settings {
	return &Settings{db: db}
}

// Get returns the global settings row, or the defaults when none was saved.
func (s *Settings) Get(ctx context.Context) (*models.Settings, error) {
	var settings models.Settings
	err := s.db.WithContext(ctx).First(&settings, settingsRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.Settings{
			ID:                settingsRowID,
			WelcomeMessage:    models.DefaultWelcomeMessage,
			DefaultCategories: datatypes.JSONSlice[string]{},
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

func (s *Settings) Save(ctx context.Context, settings *models.Settings) error {
	settings.ID = settingsRowID
	if settings.DefaultCategories == nil {
		settings.DefaultCategories = datatypes.JSONSlice[string]{}
	}
	return s.db.WithContext(ctx).Save(settings).Error
}
