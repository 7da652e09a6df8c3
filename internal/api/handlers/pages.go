package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/hugh/go-taskboard/internal/api/middleware"
	"github.com/hugh/go-taskboard/internal/database/models"
	"github.com/hugh/go-taskboard/internal/store"
	"gorm.io/gorm"
)

// Renderer executes a named page template.
type Renderer interface {
	ExecuteTemplate(w io.Writer, name string, data interface{}) error
}

// PageHandler serves the browser shell for /login and /todos. The pages
// are thin; the app itself talks to /api.
type PageHandler struct {
	settings  *store.Settings
	templates Renderer
	logger    *slog.Logger
}

func NewPageHandler(db *gorm.DB, templates Renderer, logger *slog.Logger) *PageHandler {
	return &PageHandler{
		settings:  store.NewSettings(db),
		templates: templates,
		logger:    logger,
	}
}

type pageData struct {
	Title          string
	WelcomeMessage string
	User           *models.User
}

func (h *PageHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "login.html", "Log in")
}

func (h *PageHandler) Todos(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "todos.html", "Todos")
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, name, title string) {
	if h.templates == nil {
		http.Error(w, "Templates not loaded", http.StatusInternalServerError)
		return
	}

	data := pageData{
		Title:          title,
		WelcomeMessage: models.DefaultWelcomeMessage,
		User:           middleware.GetUser(r.Context()),
	}
	if settings, err := h.settings.Get(r.Context()); err == nil {
		data.WelcomeMessage = settings.WelcomeMessage
	} else {
		h.logger.Warn("loading settings for page failed", "error", err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, name, data); err != nil {
		h.logger.Error("rendering page failed", "page", name, "error", err)
	}
}
