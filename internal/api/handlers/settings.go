package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/hugh/go-taskboard/internal/api/dto"
	"github.com/hugh/go-taskboard/internal/store"
	"gorm.io/gorm"
)

type SettingsHandler struct {
	settings *store.Settings
	logger   *slog.Logger
}

func NewSettingsHandler(db *gorm.DB, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{settings: store.NewSettings(db), logger: logger}
}

// Get handles GET /api/globals/settings
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.Get(r.Context())
	if err != nil {
		h.logger.Error("loading settings failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}

	writeJSON(w, http.StatusOK, dto.NewSettingsDTO(settings))
}

// Update handles POST /api/globals/settings (admin only)
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateSettingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	settings, err := h.settings.Get(r.Context())
	if err != nil {
		h.logger.Error("loading settings failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}

	if req.WelcomeMessage != nil {
		settings.WelcomeMessage = strings.TrimSpace(*req.WelcomeMessage)
	}
	if req.DefaultCategories != nil {
		settings.DefaultCategories = append(settings.DefaultCategories[:0], *req.DefaultCategories...)
	}

	if err := h.settings.Save(r.Context(), settings); err != nil {
		h.logger.Error("saving settings failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to save settings")
		return
	}

	writeJSON(w, http.StatusOK, dto.NewSettingsDTO(settings))
}
