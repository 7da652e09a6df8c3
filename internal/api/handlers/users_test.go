package handlers_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/hugh/go-taskboard/internal/api/dto"
	"github.com/hugh/go-taskboard/internal/api/middleware"
	"github.com/hugh/go-taskboard/internal/database/models"
	"github.com/hugh/go-taskboard/internal/tenancy"
	"github.com/hugh/go-taskboard/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserHandler_Register(t *testing.T) {
	router, tc := setupTestRouter(t)
	defer tc.Cleanup()

	t.Run("self registration provisions a tenant", func(t *testing.T) {
		body := map[string]interface{}{
			"email":    "New.User@Example.com",
			"password": "securepassword123",
		}

		rr := serve(router, testutil.UnauthenticatedRequest(t, "POST", "/api/users", body))
		testutil.AssertStatus(t, rr, http.StatusCreated)

		var resp dto.AuthResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, "new.user@example.com", resp.User.Email)
		assert.Equal(t, "new.user", resp.User.Name)
		assert.Equal(t, []string{"user"}, resp.User.Roles)
		require.NotNil(t, resp.User.TenantID)
		require.NotNil(t, resp.User.Tenant)
		assert.Equal(t, "newuser", resp.User.Tenant.Slug)

		cookies := rr.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, middleware.TokenCookieName, cookies[0].Name)
		assert.True(t, cookies[0].HttpOnly)
		assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
	})

	t.Run("roles and tenant are ignored for anonymous callers", func(t *testing.T) {
		body := map[string]interface{}{
			"email":    "sneaky@example.com",
			"password": "securepassword123",
			"roles":    []string{"admin"},
			"tenant":   tc.Tenant.ID.String(),
		}

		rr := serve(router, testutil.UnauthenticatedRequest(t, "POST", "/api/users", body))
		testutil.AssertStatus(t, rr, http.StatusCreated)

		var resp dto.AuthResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, []string{"user"}, resp.User.Roles)
		require.NotNil(t, resp.User.TenantID)
		assert.NotEqual(t, tc.Tenant.ID.String(), *resp.User.TenantID)
	})

	t.Run("admin sets roles and tenant", func(t *testing.T) {
		_, token := adminToken(t, tc)
		body := map[string]interface{}{
			"email":    "staff@example.com",
			"password": "securepassword123",
			"name":     "Staff",
			"roles":    []string{"admin", "user"},
			"tenant":   tc.Tenant.ID.String(),
		}

		rr := serve(router, testutil.AuthenticatedRequest(t, "POST", "/api/users", body, token))
		testutil.AssertStatus(t, rr, http.StatusCreated)

		var resp dto.AuthResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Empty(t, resp.Token, "admin-created accounts get no session")
		assert.Empty(t, rr.Result().Cookies())
		assert.Equal(t, []string{"admin", "user"}, resp.User.Roles)
		require.NotNil(t, resp.User.TenantID)
		assert.Equal(t, tc.Tenant.ID.String(), *resp.User.TenantID)
	})

	t.Run("admin names unknown tenant", func(t *testing.T) {
		_, token := adminToken(t, tc)
		body := map[string]interface{}{
			"email":    "ghost@example.com",
			"password": "securepassword123",
			"tenant":   "00000000-0000-0000-0000-000000000001",
		}

		rr := serve(router, testutil.AuthenticatedRequest(t, "POST", "/api/users", body, token))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)

		var resp dto.ErrorResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Contains(t, resp.Details, "tenant")
	})

	t.Run("duplicate email", func(t *testing.T) {
		body := map[string]interface{}{
			"email":    tc.User.Email,
			"password": "securepassword123",
		}

		rr := serve(router, testutil.UnauthenticatedRequest(t, "POST", "/api/users", body))
		testutil.AssertStatus(t, rr, http.StatusConflict)
	})

	t.Run("validation errors", func(t *testing.T) {
		body := map[string]interface{}{
			"email":    "not-an-email",
			"password": "short",
			"roles":    []string{"root"},
		}

		rr := serve(router, testutil.UnauthenticatedRequest(t, "POST", "/api/users", body))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)

		var resp dto.ErrorResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Contains(t, resp.Details, "email")
		assert.Contains(t, resp.Details, "password")
		assert.Contains(t, resp.Details, "roles")
	})

	t.Run("password longer than bcrypt accepts", func(t *testing.T) {
		body := map[string]interface{}{
			"email":    "longpass@example.com",
			"password": strings.Repeat("a", 80),
		}

		rr := serve(router, testutil.UnauthenticatedRequest(t, "POST", "/api/users", body))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)

		var resp dto.ErrorResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Contains(t, resp.Details, "password")

		var count int64
		require.NoError(t, tc.DB.Model(&models.User{}).Where("email = ?", "longpass@example.com").Count(&count).Error)
		assert.Zero(t, count)
	})

	t.Run("invalid body", func(t *testing.T) {
		req := testutil.UnauthenticatedRequest(t, "POST", "/api/users", nil)
		rr := serve(router, req)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}

func TestUserHandler_Login(t *testing.T) {
	router, tc := setupTestRouter(t)
	defer tc.Cleanup()

	t.Run("successful login sets cookie", func(t *testing.T) {
		body := map[string]string{"email": tc.User.Email, "password": testutil.TestPassword}

		rr := serve(router, testutil.UnauthenticatedRequest(t, "POST", "/api/users/login", body))
		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp dto.AuthResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.NotEmpty(t, resp.Token)
		assert.NotZero(t, resp.Exp)
		assert.Equal(t, tc.User.ID.String(), resp.User.ID)

		cookies := rr.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, resp.Token, cookies[0].Value)
	})

	t.Run("wrong password", func(t *testing.T) {
		body := map[string]string{"email": tc.User.Email, "password": "wrongpassword"}

		rr := serve(router, testutil.UnauthenticatedRequest(t, "POST", "/api/users/login", body))
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
		assert.Empty(t, rr.Result().Cookies())
	})

	t.Run("missing fields", func(t *testing.T) {
		rr := serve(router, testutil.UnauthenticatedRequest(t, "POST", "/api/users/login", map[string]string{}))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("logout clears cookie", func(t *testing.T) {
		rr := serve(router, testutil.AuthenticatedRequest(t, "POST", "/api/users/logout", nil, tc.Token))
		testutil.AssertStatus(t, rr, http.StatusOK)

		cookies := rr.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, middleware.TokenCookieName, cookies[0].Name)
		assert.Less(t, cookies[0].MaxAge, 0)
	})
}

func TestUserHandler_Me(t *testing.T) {
	router, tc := setupTestRouter(t)
	defer tc.Cleanup()

	t.Run("anonymous", func(t *testing.T) {
		rr := serve(router, testutil.UnauthenticatedRequest(t, "GET", "/api/users/me", nil))
		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp dto.MeResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Nil(t, resp.User)
	})

	t.Run("authenticated", func(t *testing.T) {
		rr := serve(router, testutil.AuthenticatedRequest(t, "GET", "/api/users/me", nil, tc.Token))
		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp dto.MeResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		require.NotNil(t, resp.User)
		assert.Equal(t, tc.User.Email, resp.User.Email)
	})

	t.Run("cookie token", func(t *testing.T) {
		req := testutil.UnauthenticatedRequest(t, "GET", "/api/users/me", nil)
		req.AddCookie(&http.Cookie{Name: middleware.TokenCookieName, Value: tc.Token})

		var resp dto.MeResponse
		testutil.ParseJSONResponse(t, serve(router, req), &resp)
		require.NotNil(t, resp.User)
		assert.Equal(t, tc.User.ID.String(), resp.User.ID)
	})
}

func TestUserHandler_CreateTenant(t *testing.T) {
	router, tc := setupTestRouter(t)
	defer tc.Cleanup()

	user := testutil.CreateTestUser(t, tc.DB, nil)
	token := testutil.GenerateTestToken(t, tc.JWTService, user)

	rr := serve(router, testutil.AuthenticatedRequest(t, "POST", "/api/users/create-tenant", nil, token))
	testutil.AssertStatus(t, rr, http.StatusCreated)

	var created dto.TenantResponse
	testutil.ParseJSONResponse(t, rr, &created)
	assert.Equal(t, tenancy.MessageCreated, created.Message)
	assert.Equal(t, user.ID.String(), created.Tenant.OwnerID)
	assert.Equal(t, user.ID.String(), created.User.ID)
	require.NotNil(t, created.User.TenantID)
	assert.Equal(t, created.Tenant.ID, *created.User.TenantID)

	rr = serve(router, testutil.AuthenticatedRequest(t, "POST", "/api/users/create-tenant", nil, token))
	testutil.AssertStatus(t, rr, http.StatusOK)

	var again dto.TenantResponse
	testutil.ParseJSONResponse(t, rr, &again)
	assert.Equal(t, tenancy.MessageExists, again.Message)
	assert.Equal(t, created.Tenant.ID, again.Tenant.ID)
	assert.Equal(t, user.ID.String(), again.User.ID)

	rr = serve(router, testutil.UnauthenticatedRequest(t, "POST", "/api/users/create-tenant", nil))
	testutil.AssertStatus(t, rr, http.StatusUnauthorized)
}

func TestUserHandler_ListAndGet(t *testing.T) {
	router, tc := setupTestRouter(t)
	defer tc.Cleanup()

	other := testutil.CreateTenantUser(t, tc.DB)
	_, adminTok := adminToken(t, tc)

	t.Run("non-admin sees only self", func(t *testing.T) {
		rr := serve(router, testutil.AuthenticatedRequest(t, "GET", "/api/users", nil, tc.Token))
		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp dto.PaginatedResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, int64(1), resp.Total)
	})

	t.Run("admin sees everyone", func(t *testing.T) {
		rr := serve(router, testutil.AuthenticatedRequest(t, "GET", "/api/users?per_page=2", nil, adminTok))
		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp dto.PaginatedResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, int64(3), resp.Total)
		assert.Equal(t, 2, resp.TotalPages)
	})

	t.Run("other user is not found", func(t *testing.T) {
		rr := serve(router, testutil.AuthenticatedRequest(t, "GET", "/api/users/"+other.ID.String(), nil, tc.Token))
		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})

	t.Run("own record", func(t *testing.T) {
		rr := serve(router, testutil.AuthenticatedRequest(t, "GET", "/api/users/"+tc.User.ID.String(), nil, tc.Token))
		testutil.AssertStatus(t, rr, http.StatusOK)
	})

	t.Run("invalid id", func(t *testing.T) {
		rr := serve(router, testutil.AuthenticatedRequest(t, "GET", "/api/users/not-a-uuid", nil, tc.Token))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("anonymous", func(t *testing.T) {
		rr := serve(router, testutil.UnauthenticatedRequest(t, "GET", "/api/users", nil))
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})
}

func TestUserHandler_Update(t *testing.T) {
	router, tc := setupTestRouter(t)
	defer tc.Cleanup()

	other := testutil.CreateTenantUser(t, tc.DB)
	_, adminTok := adminToken(t, tc)

	t.Run("non-admin role and tenant writes are dropped", func(t *testing.T) {
		body := map[string]interface{}{
			"name":   "Renamed",
			"roles":  []string{"admin"},
			"tenant": other.TenantID.String(),
		}

		rr := serve(router, testutil.AuthenticatedRequest(t, "PATCH", "/api/users/"+tc.User.ID.String(), body, tc.Token))
		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp dto.UserDTO
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, "Renamed", resp.Name)
		assert.Equal(t, []string{"user"}, resp.Roles)
		require.NotNil(t, resp.TenantID)
		assert.Equal(t, tc.Tenant.ID.String(), *resp.TenantID)
	})

	t.Run("non-admin cannot touch another user", func(t *testing.T) {
		body := map[string]interface{}{"name": "Hacked"}
		rr := serve(router, testutil.AuthenticatedRequest(t, "PATCH", "/api/users/"+other.ID.String(), body, tc.Token))
		testutil.AssertStatus(t, rr, http.StatusNotFound)

		var stored models.User
		require.NoError(t, tc.DB.First(&stored, "id = ?", other.ID).Error)
		assert.Equal(t, "Test User", stored.Name)
	})

	t.Run("admin promotes and moves a user", func(t *testing.T) {
		body := map[string]interface{}{
			"roles":  []string{"admin"},
			"tenant": tc.Tenant.ID.String(),
		}

		rr := serve(router, testutil.AuthenticatedRequest(t, "PATCH", "/api/users/"+other.ID.String(), body, adminTok))
		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp dto.UserDTO
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, []string{"admin"}, resp.Roles)
		assert.Equal(t, tc.Tenant.ID.String(), *resp.TenantID)
	})

	t.Run("email already in use", func(t *testing.T) {
		body := map[string]interface{}{"email": other.Email}
		rr := serve(router, testutil.AuthenticatedRequest(t, "PATCH", "/api/users/"+tc.User.ID.String(), body, tc.Token))
		testutil.AssertStatus(t, rr, http.StatusConflict)
	})

	t.Run("password too long", func(t *testing.T) {
		body := map[string]interface{}{"password": strings.Repeat("b", 80)}
		rr := serve(router, testutil.AuthenticatedRequest(t, "PATCH", "/api/users/"+tc.User.ID.String(), body, tc.Token))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)

		var resp dto.ErrorResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Contains(t, resp.Details, "password")
	})

	t.Run("password change takes effect", func(t *testing.T) {
		body := map[string]interface{}{"password": "brandnewpassword"}
		rr := serve(router, testutil.AuthenticatedRequest(t, "PATCH", "/api/users/"+tc.User.ID.String(), body, tc.Token))
		testutil.AssertStatus(t, rr, http.StatusOK)

		login := map[string]string{"email": tc.User.Email, "password": "brandnewpassword"}
		rr = serve(router, testutil.UnauthenticatedRequest(t, "POST", "/api/users/login", login))
		testutil.AssertStatus(t, rr, http.StatusOK)
	})
}

func TestUserHandler_Delete(t *testing.T) {
	router, tc := setupTestRouter(t)
	defer tc.Cleanup()

	other := testutil.CreateTenantUser(t, tc.DB)
	_, adminTok := adminToken(t, tc)

	rr := serve(router, testutil.AuthenticatedRequest(t, "DELETE", "/api/users/"+other.ID.String(), nil, tc.Token))
	testutil.AssertStatus(t, rr, http.StatusForbidden)

	rr = serve(router, testutil.AuthenticatedRequest(t, "DELETE", "/api/users/"+other.ID.String(), nil, adminTok))
	testutil.AssertStatus(t, rr, http.StatusOK)

	rr = serve(router, testutil.AuthenticatedRequest(t, "DELETE", "/api/users/"+other.ID.String(), nil, adminTok))
	testutil.AssertStatus(t, rr, http.StatusNotFound)

	// The email is free again once the account is gone
	body := map[string]interface{}{"email": other.Email, "password": "securepassword123"}
	rr = serve(router, testutil.UnauthenticatedRequest(t, "POST", "/api/users", body))
	testutil.AssertStatus(t, rr, http.StatusCreated)
}

func TestUserHandler_RefreshToken(t *testing.T) {
	router, tc := setupTestRouter(t)
	defer tc.Cleanup()

	rr := serve(router, testutil.AuthenticatedRequest(t, "POST", "/api/users/refresh-token", nil, tc.Token))
	testutil.AssertStatus(t, rr, http.StatusOK)

	var resp dto.AuthResponse
	testutil.ParseJSONResponse(t, rr, &resp)
	assert.Equal(t, "Token refresh successful", resp.Message)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, tc.User.ID.String(), resp.User.ID)

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, resp.Token, cookies[0].Value)

	rr = serve(router, testutil.UnauthenticatedRequest(t, "POST", "/api/users/refresh-token", nil))
	testutil.AssertStatus(t, rr, http.StatusUnauthorized)
}
