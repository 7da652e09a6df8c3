package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/go-taskboard/internal/auth"
	"github.com/hugh/go-taskboard/internal/database/models"
	"github.com/hugh/go-taskboard/internal/policy"
)

// TokenCookieName is the cookie the session token is stored in.
const TokenCookieName = "payload-token"

type contextKey string

const (
	UserIDKey contextKey = "user_id"
	UserKey   contextKey = "user"
	CallerKey contextKey = "caller"
)

// UserLoader resolves the user a token was issued to.
type UserLoader interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Authenticate attaches the caller to the request context when a valid
// token is present. Requests without one continue anonymously; use
// RequireAuth to reject them. The user is re-read on every request so role
// and tenant changes apply immediately.
func Authenticate(tokens auth.TokenService, users UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := tokens.ValidateToken(token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			user, err := users.GetUserByID(r.Context(), claims.UserID)
			if err != nil {
				if errors.Is(err, auth.ErrUserNotFound) {
					next.ServeHTTP(w, r)
					return
				}
				writeError(w, http.StatusInternalServerError, "Failed to load user")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RequireAuth rejects requests that Authenticate left anonymous.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetCaller(r.Context()) == nil {
			handleUnauthorized(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// TokenFromRequest looks for a token in the Authorization header, then the
// session cookie, then X-Auth-Token.
func TokenFromRequest(r *http.Request) string {
	// 1. Authorization header (API clients)
	authHeader := r.Header.Get("Authorization")
	for _, scheme := range []string{"Bearer ", "JWT "} {
		if strings.HasPrefix(authHeader, scheme) {
			return strings.TrimPrefix(authHeader, scheme)
		}
	}

	// 2. Session cookie (browser)
	if cookie, err := r.Cookie(TokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	// 3. X-Auth-Token header (localStorage fallback for AJAX)
	return r.Header.Get("X-Auth-Token")
}

// handleUnauthorized returns appropriate response based on request type
func handleUnauthorized(w http.ResponseWriter, r *http.Request) {
	accept := r.Header.Get("Accept")
	isWebRequest := strings.Contains(accept, "text/html") && !strings.HasPrefix(r.URL.Path, "/api/")

	if isWebRequest {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	writeError(w, http.StatusUnauthorized, "Unauthorized")
}

// WithUser stores user and the matching policy caller in ctx.
func WithUser(ctx context.Context, user *models.User) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, user.ID)
	ctx = context.WithValue(ctx, UserKey, user)
	return context.WithValue(ctx, CallerKey, policy.CallerFromUser(user))
}

// Helper functions to extract values from context
func GetUserID(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(UserIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

func GetUser(ctx context.Context) *models.User {
	if user, ok := ctx.Value(UserKey).(*models.User); ok {
		return user
	}
	return nil
}

// GetCaller returns the policy caller, or nil for anonymous requests.
func GetCaller(ctx context.Context) *policy.Caller {
	if caller, ok := ctx.Value(CallerKey).(*policy.Caller); ok {
		return caller
	}
	return nil
}

// RequireRole middleware ensures user has one of the given roles
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUser(r.Context())
			if user == nil {
				handleUnauthorized(w, r)
				return
			}

			for _, role := range roles {
				if user.HasRole(role) {
					next.ServeHTTP(w, r)
					return
				}
			}

			writeError(w, http.StatusForbidden, "Forbidden")
		})
	}
}
