package api

import (
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/hugh/go-taskboard/internal/api/handlers"
	"github.com/hugh/go-taskboard/internal/api/middleware"
	"github.com/hugh/go-taskboard/internal/auth"
	"github.com/hugh/go-taskboard/internal/database/models"
	"github.com/hugh/go-taskboard/internal/metrics"
	"github.com/hugh/go-taskboard/internal/tenancy"
	"github.com/hugh/go-taskboard/internal/todos"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Router struct {
	chi.Router
	limiter *middleware.RateLimiter
}

type RouterConfig struct {
	DB             *gorm.DB
	Redis          *redis.Client
	Logger         *slog.Logger
	JWTService     *auth.JWTService
	AuthService    *auth.Service
	TenancyService *tenancy.Service
	TodoService    *todos.Service
	Metrics        *metrics.Metrics // nil disables /metrics
	MetricsPath    string
	Templates      handlers.Renderer // nil disables the page routes
	StaticFS       fs.FS
	AllowedOrigins []string // CORS allowed origins
	RateLimitReqs  int      // Rate limit requests per window
	RateLimitSecs  int      // Rate limit window in seconds
	TrustedProxies []string // Peers whose X-Forwarded-For is believed
	SecureCookies  bool
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(cfg.Metrics.Middleware)

	// CORS - restrict to configured origins, or allow all in development
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		// Default to localhost for development - configure in production
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Auth-Token", middleware.RequestIDHeader},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Cookie-authenticated writes must come from a known origin
	r.Use(middleware.CSRF(allowedOrigins))

	// Identify the caller once; routes decide whether anonymous is allowed
	r.Use(middleware.Authenticate(cfg.JWTService, cfg.AuthService))

	// Rate limiting - per user when authenticated, per IP otherwise
	var limiter *middleware.RateLimiter
	if cfg.RateLimitReqs > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimitReqs, cfg.RateLimitSecs)
		if err := limiter.TrustProxies(cfg.TrustedProxies); err != nil {
			cfg.Logger.Warn("ignoring trusted proxies", "error", err)
		}
		limiter.StartSweeper(time.Minute)
		r.Use(limiter.Middleware)
	}

	r.Use(middleware.PageRedirects)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis)
	userHandler := handlers.NewUserHandler(cfg.DB, cfg.AuthService, cfg.TenancyService, cfg.Logger, cfg.SecureCookies)
	todoHandler := handlers.NewTodoHandler(cfg.TodoService, cfg.Logger)
	settingsHandler := handlers.NewSettingsHandler(cfg.DB, cfg.Logger)

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	if cfg.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, cfg.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			// Public endpoints
			r.Post("/", userHandler.Register)
			r.Post("/login", userHandler.Login)
			r.Post("/logout", userHandler.Logout)
			r.Get("/me", userHandler.Me)

			// Protected routes
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth)
				r.Post("/create-tenant", userHandler.CreateTenant)
				r.Post("/refresh-token", userHandler.RefreshToken)
				r.Get("/", userHandler.List)
				r.Get("/{id}", userHandler.Get)
				r.Patch("/{id}", userHandler.Update)
				r.Delete("/{id}", userHandler.Delete)
			})
		})

		r.Route("/todos", func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Get("/", todoHandler.List)
			r.Post("/", todoHandler.Create)
			r.Get("/{id}", todoHandler.Get)
			r.Patch("/{id}", todoHandler.Update)
			r.Delete("/{id}", todoHandler.Delete)
		})

		r.Route("/globals/settings", func(r chi.Router) {
			r.Get("/", settingsHandler.Get)
			r.With(middleware.RequireRole(models.RoleAdmin)).Post("/", settingsHandler.Update)
		})
	})

	// Web pages; PageRedirects has already sent the caller to the right one
	if cfg.Templates != nil {
		pageHandler := handlers.NewPageHandler(cfg.DB, cfg.Templates, cfg.Logger)
		r.Get("/login", pageHandler.Login)
		r.Get("/todos", pageHandler.Todos)
	}

	// Static files
	if cfg.StaticFS != nil {
		fileServer := http.FileServer(http.FS(cfg.StaticFS))
		r.Handle("/static/*", http.StripPrefix("/static/", fileServer))
	}

	return &Router{Router: r, limiter: limiter}
}

// Close stops background work started by NewRouter.
func (rt *Router) Close() {
	if rt.limiter != nil {
		rt.limiter.Stop()
	}
}
