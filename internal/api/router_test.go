package api_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hugh/go-taskboard/internal/api"
	"github.com/hugh/go-taskboard/internal/api/middleware"
	"github.com/hugh/go-taskboard/internal/auth"
	"github.com/hugh/go-taskboard/internal/metrics"
	"github.com/hugh/go-taskboard/internal/tenancy"
	"github.com/hugh/go-taskboard/internal/testutil"
	"github.com/hugh/go-taskboard/internal/todos"
	"github.com/hugh/go-taskboard/internal/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, opts ...func(*api.RouterConfig)) (*api.Router, *testutil.TestSetup) {
	t.Helper()
	tc := testutil.NewTestContext(t)
	logger := testutil.TestLogger()

	templates, err := web.LoadTemplates()
	require.NoError(t, err)
	staticFS, err := web.GetStaticFS()
	require.NoError(t, err)

	tenancyService := tenancy.NewService(tc.DB, logger, nil)
	cfg := api.RouterConfig{
		DB:             tc.DB,
		Logger:         logger,
		JWTService:     tc.JWTService,
		AuthService:    auth.NewService(tc.DB, tc.JWTService, tenancyService, logger),
		TenancyService: tenancyService,
		TodoService:    todos.NewService(tc.DB, logger),
		Metrics:        metrics.New(),
		Templates:      templates,
		StaticFS:       staticFS,
		AllowedOrigins: []string{"https://app.example.com"},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	router := api.NewRouter(cfg)
	t.Cleanup(router.Close)
	return router, tc
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func withCookie(req *http.Request, token string) *http.Request {
	req.AddCookie(&http.Cookie{Name: middleware.TokenCookieName, Value: token})
	return req
}

func TestRouter_PageRedirects(t *testing.T) {
	router, tc := newTestRouter(t)

	tests := []struct {
		name     string
		path     string
		token    string
		status   int
		location string
	}{
		{"anonymous root goes to login", "/", "", http.StatusFound, "/login"},
		{"anonymous todos goes to login", "/todos", "", http.StatusFound, "/login"},
		{"anonymous login page renders", "/login", "", http.StatusOK, ""},
		{"signed in login goes to todos", "/login", tc.Token, http.StatusFound, "/todos"},
		{"signed in root goes to todos", "/", tc.Token, http.StatusFound, "/todos"},
		{"signed in todos renders", "/todos", tc.Token, http.StatusOK, ""},
		{"health is never redirected", "/health", "", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.token != "" {
				withCookie(req, tt.token)
			}
			rr := serve(router, req)

			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.location, rr.Header().Get("Location"))
		})
	}
}

func TestRouter_TodosPageShowsUser(t *testing.T) {
	router, tc := newTestRouter(t)

	rr := serve(router, withCookie(httptest.NewRequest(http.MethodGet, "/todos", nil), tc.Token))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rr.Body.String(), tc.User.Email)
}

func TestRouter_APIIsNotRedirected(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := serve(router, testutil.UnauthenticatedRequest(t, http.MethodGet, "/api/todos", nil))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Empty(t, rr.Header().Get("Location"))
}

func TestRouter_RequestIDHeader(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := serve(router, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.NotEmpty(t, rr.Header().Get(middleware.RequestIDHeader))
}

func TestRouter_Metrics(t *testing.T) {
	router, _ := newTestRouter(t)

	serve(router, httptest.NewRequest(http.MethodGet, "/health", nil))
	rr := serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "http_requests_total")
	assert.True(t, strings.Contains(body, `route="/health"`), "health request should be recorded by route")
}

func TestRouter_CSRF(t *testing.T) {
	router, tc := newTestRouter(t)

	tests := []struct {
		name   string
		origin string
		status int
	}{
		{"foreign origin rejected", "https://evil.example.net", http.StatusForbidden},
		{"allowed origin passes", "https://app.example.com", http.StatusOK},
		{"same host passes", "http://example.com", http.StatusOK},
		{"no origin passes", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := withCookie(httptest.NewRequest(http.MethodPost, "/api/users/logout", nil), tc.Token)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rr := serve(router, req)
			assert.Equal(t, tt.status, rr.Code)
		})
	}

	t.Run("bearer token is not subject to origin checks", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, http.MethodPost, "/api/users/logout", nil, tc.Token)
		req.Header.Set("Origin", "https://evil.example.net")
		rr := serve(router, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestRouter_StaticFiles(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := serve(router, httptest.NewRequest(http.MethodGet, "/static/app.css", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouter_RateLimit(t *testing.T) {
	router, _ := newTestRouter(t, func(cfg *api.RouterConfig) {
		cfg.RateLimitReqs = 1
		cfg.RateLimitSecs = 60
		cfg.TrustedProxies = []string{"10.0.0.0/8"}
	})

	send := func(remote, xff string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = remote
		if xff != "" {
			req.Header.Set("X-Forwarded-For", xff)
		}
		return serve(router, req)
	}

	rr := send("10.0.0.1:80", "203.0.113.1")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("X-RateLimit-Limit"))

	// Same client behind the proxy is limited
	rr = send("10.0.0.2:80", "203.0.113.1")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	// A different forwarded client has its own bucket
	assert.Equal(t, http.StatusOK, send("10.0.0.1:80", "203.0.113.2").Code)

	// Direct callers can't choose their bucket with the header
	assert.Equal(t, http.StatusOK, send("198.51.100.1:80", "203.0.113.3").Code)
	assert.Equal(t, http.StatusTooManyRequests, send("198.51.100.1:80", "203.0.113.4").Code)

	router.Close()
}
