package dto

import "github.com/hugh/go-taskboard/internal/database/models"

type SettingsDTO struct {
	WelcomeMessage    string   `json:"welcome_message"`
	DefaultCategories []string `json:"default_categories"`
	UpdatedAt         string   `json:"updated_at,omitempty"`
}

func NewSettingsDTO(s *models.Settings) SettingsDTO {
	resp := SettingsDTO{
		WelcomeMessage:    s.WelcomeMessage,
		DefaultCategories: append([]string{}, s.DefaultCategories...),
	}
	if !s.UpdatedAt.IsZero() {
		resp.UpdatedAt = formatTime(s.UpdatedAt)
	}
	return resp
}

type UpdateSettingsRequest struct {
	WelcomeMessage    *string   `json:"welcome_message,omitempty"`
	DefaultCategories *[]string `json:"default_categories,omitempty"`
}

func (r UpdateSettingsRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.WelcomeMessage != nil && len(*r.WelcomeMessage) > 500 {
		errors["welcome_message"] = "Welcome message must be at most 500 characters"
	}
	if r.DefaultCategories != nil {
		for _, c := range *r.DefaultCategories {
			if c == "" {
				errors["default_categories"] = "Categories must not be empty"
				break
			}
		}
	}

	return errors
}
