package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hugh/go-taskboard/internal/api/handlers"
	"github.com/hugh/go-taskboard/internal/api/middleware"
	"github.com/hugh/go-taskboard/internal/auth"
	"github.com/hugh/go-taskboard/internal/database/models"
	"github.com/hugh/go-taskboard/internal/tenancy"
	"github.com/hugh/go-taskboard/internal/testutil"
	"github.com/hugh/go-taskboard/internal/todos"
)

// setupTestRouter mounts every API handler behind Authenticate, the way the
// production router does.
func setupTestRouter(t *testing.T) (*chi.Mux, *testutil.TestSetup) {
	tc := testutil.NewTestContext(t)
	logger := testutil.TestLogger()

	tenancyService := tenancy.NewService(tc.DB, logger, nil)
	authService := auth.NewService(tc.DB, tc.JWTService, tenancyService, logger)

	userHandler := handlers.NewUserHandler(tc.DB, authService, tenancyService, logger, false)
	todoHandler := handlers.NewTodoHandler(todos.NewService(tc.DB, logger), logger)
	settingsHandler := handlers.NewSettingsHandler(tc.DB, logger)
	healthHandler := handlers.NewHealthHandler(tc.DB, nil)

	r := chi.NewRouter()
	r.Use(middleware.Authenticate(tc.JWTService, authService))

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	r.Route("/api/users", func(r chi.Router) {
		r.Post("/", userHandler.Register)
		r.Post("/login", userHandler.Login)
		r.Post("/logout", userHandler.Logout)
		r.Get("/me", userHandler.Me)
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

	r.Route("/api/todos", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/", todoHandler.List)
		r.Post("/", todoHandler.Create)
		r.Get("/{id}", todoHandler.Get)
		r.Patch("/{id}", todoHandler.Update)
		r.Delete("/{id}", todoHandler.Delete)
	})

	r.Route("/api/globals/settings", func(r chi.Router) {
		r.Get("/", settingsHandler.Get)
		r.With(middleware.RequireRole(models.RoleAdmin)).Post("/", settingsHandler.Update)
	})

	return r, tc
}

// serve runs req through router and returns the recorded response
func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

// adminToken creates an admin with a tenant and returns the admin and a token
func adminToken(t *testing.T, tc *testutil.TestSetup) (*models.User, string) {
	t.Helper()
	admin := testutil.CreateTenantUser(t, tc.DB, models.RoleAdmin)
	return admin, testutil.GenerateTestToken(t, tc.JWTService, admin)
}
