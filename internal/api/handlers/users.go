package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-taskboard/internal/api/dto"
	"github.com/hugh/go-taskboard/internal/api/middleware"
	"github.com/hugh/go-taskboard/internal/api/validation"
	"github.com/hugh/go-taskboard/internal/auth"
	"github.com/hugh/go-taskboard/internal/policy"
	"github.com/hugh/go-taskboard/internal/store"
	"github.com/hugh/go-taskboard/internal/tenancy"
	"gorm.io/gorm"
)

type UserHandler struct {
	authService   *auth.Service
	tenancy       *tenancy.Service
	users         *store.Users
	tenants       *store.Tenants
	logger        *slog.Logger
	secureCookies bool
}

func NewUserHandler(db *gorm.DB, authService *auth.Service, tenancyService *tenancy.Service, logger *slog.Logger, secureCookies bool) *UserHandler {
	return &UserHandler{
		authService:   authService,
		tenancy:       tenancyService,
		users:         store.NewUsers(db),
		tenants:       store.NewTenants(db),
		logger:        logger,
		secureCookies: secureCookies,
	}
}

// Register handles POST /api/users. Anyone may register; roles and tenant
// are applied only when an admin is creating the account.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	caller := middleware.GetCaller(r.Context())
	if !policy.Evaluate(caller, policy.CollectionUsers, policy.OpCreate).Allowed() {
		writeError(w, http.StatusForbidden, "You are not allowed to perform this action")
		return
	}

	input := auth.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	}

	if len(req.Roles) > 0 {
		if policy.CanWriteField(caller, policy.CollectionUsers, policy.FieldRoles) {
			input.Roles, _ = validation.ParseRoles(req.Roles)
		} else {
			h.logger.Debug("ignoring roles on registration", "email", req.Email)
		}
	}

	if tenantID := optionalUUID(req.Tenant); tenantID != nil {
		if policy.CanWriteField(caller, policy.CollectionUsers, policy.FieldTenant) {
			if !h.tenantExists(w, r, *tenantID) {
				return
			}
			input.TenantID = tenantID
		} else {
			h.logger.Debug("ignoring tenant on registration", "email", req.Email)
		}
	}

	resp, err := h.authService.Register(r.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserExists):
			writeError(w, http.StatusConflict, "User already exists")
		case errors.Is(err, auth.ErrPasswordTooLong):
			writeValidation(w, map[string]string{"password": "Password is too long"})
		default:
			h.logger.Error("registration failed", "error", err)
			writeError(w, http.StatusInternalServerError, "Registration failed")
		}
		return
	}

	// Admin-created accounts do not take over the admin's session
	if caller != nil {
		writeJSON(w, http.StatusCreated, dto.AuthResponse{
			Message: "User created",
			User:    dto.NewUserDTO(resp.User),
		})
		return
	}

	h.setTokenCookie(w, resp.Token, resp.Exp)
	writeJSON(w, http.StatusCreated, dto.AuthResponse{
		Message: "Successfully registered",
		Token:   resp.Token,
		Exp:     resp.Exp,
		User:    dto.NewUserDTO(resp.User),
	})
}

// Login handles POST /api/users/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	resp, err := h.authService.Login(r.Context(), auth.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "The email or password provided is incorrect")
		case errors.Is(err, auth.ErrAccountLocked):
			writeError(w, http.StatusUnauthorized, "This user is locked due to having too many failed login attempts")
		default:
			h.logger.Error("login failed", "error", err)
			writeError(w, http.StatusInternalServerError, "Login failed")
		}
		return
	}

	h.setTokenCookie(w, resp.Token, resp.Exp)
	writeJSON(w, http.StatusOK, dto.AuthResponse{
		Message: "Auth passed",
		Token:   resp.Token,
		Exp:     resp.Exp,
		User:    dto.NewUserDTO(resp.User),
	})
}

// Logout handles POST /api/users/logout
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "You have been logged out successfully"})
}

// RefreshToken handles POST /api/users/refresh-token. The caller gets a new
// token with a fresh expiry carrying their current roles and tenant.
func (h *UserHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	resp, err := h.authService.RefreshToken(r.Context(), userID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		h.logger.Error("token refresh failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Token refresh failed")
		return
	}

	h.setTokenCookie(w, resp.Token, resp.Exp)
	writeJSON(w, http.StatusOK, dto.AuthResponse{
		Message: "Token refresh successful",
		Token:   resp.Token,
		Exp:     resp.Exp,
		User:    dto.NewUserDTO(resp.User),
	})
}

// Me handles GET /api/users/me. Anonymous requests get a null user.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeJSON(w, http.StatusOK, dto.MeResponse{})
		return
	}

	resp := dto.NewUserDTO(user)
	writeJSON(w, http.StatusOK, dto.MeResponse{User: &resp})
}

// CreateTenant handles POST /api/users/create-tenant. It is idempotent: a
// user that already has a tenant gets it back unchanged.
func (h *UserHandler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCaller(r.Context())

	res, err := h.tenancy.Ensure(r.Context(), caller.ID)
	if err != nil {
		switch {
		case errors.Is(err, tenancy.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "User not found")
		case errors.Is(err, tenancy.ErrSlugConflict):
			writeError(w, http.StatusConflict, "Could not allocate a tenant slug, try again")
		default:
			h.logger.Error("tenant creation failed", "user_id", caller.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to create tenant")
		}
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, dto.TenantResponse{
		Message: res.Message,
		Tenant:  dto.NewTenantDTO(res.Tenant),
		User:    dto.NewUserDTO(res.User),
	})
}

// List handles GET /api/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	d := policy.Evaluate(middleware.GetCaller(r.Context()), policy.CollectionUsers, policy.OpRead)
	if !d.Allowed() {
		writeError(w, http.StatusForbidden, "You are not allowed to perform this action")
		return
	}

	p := pagination(r)
	users, total, err := h.users.Find(r.Context(), d, store.UserQuery{
		Email: r.URL.Query().Get("email"),
		Page:  store.Page{Limit: p.PerPage, Offset: p.Offset()},
	})
	if err != nil {
		h.logger.Error("listing users failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list users")
		return
	}

	resp := make([]dto.UserDTO, len(users))
	for i := range users {
		resp[i] = dto.NewUserDTO(&users[i])
	}
	writeJSON(w, http.StatusOK, dto.NewPaginatedResponse(resp, total, p))
}

// Get handles GET /api/users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "user")
	if !ok {
		return
	}

	d := policy.Evaluate(middleware.GetCaller(r.Context()), policy.CollectionUsers, policy.OpRead)
	if !d.Allowed() {
		writeError(w, http.StatusForbidden, "You are not allowed to perform this action")
		return
	}

	user, err := h.users.GetScoped(r.Context(), d, id)
	if err != nil {
		h.writeStoreError(w, err, "get")
		return
	}

	writeJSON(w, http.StatusOK, dto.NewUserDTO(user))
}

// Update handles PATCH /api/users/{id}. Non-admins can only reach their own
// record, and their writes to roles or tenant are dropped.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "user")
	if !ok {
		return
	}

	var req dto.UpdateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	caller := middleware.GetCaller(r.Context())
	d := policy.Evaluate(caller, policy.CollectionUsers, policy.OpUpdate)
	if !d.Allowed() {
		writeError(w, http.StatusForbidden, "You are not allowed to perform this action")
		return
	}

	var patch store.UserPatch
	if req.Name != nil {
		if name := strings.TrimSpace(*req.Name); name != "" {
			patch.Name = &name
		}
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		patch.Email = &email
	}
	if req.Password != nil {
		hash, err := auth.HashPassword(*req.Password)
		if errors.Is(err, auth.ErrPasswordTooLong) {
			writeValidation(w, map[string]string{"password": "Password is too long"})
			return
		}
		if err != nil {
			h.logger.Error("hashing password failed", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to update user")
			return
		}
		patch.Password = &hash
	}

	if req.Roles != nil {
		if policy.CanWriteField(caller, policy.CollectionUsers, policy.FieldRoles) {
			roles, _ := validation.ParseRoles(*req.Roles)
			patch.Roles = &roles
		} else {
			h.logger.Debug("ignoring roles update", "user_id", id, "caller", caller.ID)
		}
	}

	if req.Tenant != nil {
		if policy.CanWriteField(caller, policy.CollectionUsers, policy.FieldTenant) {
			tenantID := optionalUUID(req.Tenant)
			if tenantID != nil && !h.tenantExists(w, r, *tenantID) {
				return
			}
			patch.TenantID = &tenantID
		} else {
			h.logger.Debug("ignoring tenant update", "user_id", id, "caller", caller.ID)
		}
	}

	user, err := h.users.Update(r.Context(), d, id, patch)
	if err != nil {
		h.writeStoreError(w, err, "update")
		return
	}

	writeJSON(w, http.StatusOK, dto.NewUserDTO(user))
}

// Delete handles DELETE /api/users/{id}
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "user")
	if !ok {
		return
	}

	d := policy.Evaluate(middleware.GetCaller(r.Context()), policy.CollectionUsers, policy.OpDelete)
	if !d.Allowed() {
		writeError(w, http.StatusForbidden, "You are not allowed to perform this action")
		return
	}

	if err := h.users.Delete(r.Context(), d, id); err != nil {
		h.writeStoreError(w, err, "delete")
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "User deleted"})
}

func (h *UserHandler) tenantExists(w http.ResponseWriter, r *http.Request, id uuid.UUID) bool {
	_, err := h.tenants.FindByID(r.Context(), id)
	switch {
	case err == nil:
		return true
	case errors.Is(err, store.ErrNotFound):
		writeValidation(w, map[string]string{"tenant": "Tenant not found"})
	default:
		h.logger.Error("tenant lookup failed", "tenant_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load tenant")
	}
	return false
}

func (h *UserHandler) writeStoreError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, store.ErrDuplicate):
		writeError(w, http.StatusConflict, "Email already in use")
	default:
		h.logger.Error("user "+op+" failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to "+op+" user")
	}
}

func (h *UserHandler) setTokenCookie(w http.ResponseWriter, token string, exp int64) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Unix(exp, 0),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
