package dto

import (
	"strings"

	"github.com/hugh/go-taskboard/internal/api/validation"
)

// RegisterRequest creates a user. Roles and Tenant are only honoured when
// an admin makes the request.
type RegisterRequest struct {
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Name     string   `json:"name,omitempty"`
	Roles    []string `json:"roles,omitempty"`
	Tenant   *string  `json:"tenant,omitempty"`
}

func (r RegisterRequest) Validate() map[string]string {
	errors := make(map[string]string)

	email := strings.TrimSpace(r.Email)
	if email == "" {
		errors["email"] = "Email is required"
	} else if !validation.IsValidEmail(email) {
		errors["email"] = "Email is invalid"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	} else if ok, msg := validation.IsValidPassword(r.Password); !ok {
		errors["password"] = msg
	}
	if len(r.Name) > validation.MaxNameLength {
		errors["name"] = "Name is too long"
	}
	if _, ok := validation.ParseRoles(r.Roles); !ok {
		errors["roles"] = "Roles must be admin or user"
	}
	if r.Tenant != nil && *r.Tenant != "" && !validation.IsValidUUID(*r.Tenant) {
		errors["tenant"] = "Tenant must be a valid ID"
	}

	return errors
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Email == "" {
		errors["email"] = "Email is required"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	}

	return errors
}

type AuthResponse struct {
	Message string  `json:"message"`
	Token   string  `json:"token,omitempty"`
	Exp     int64   `json:"exp,omitempty"`
	User    UserDTO `json:"user"`
}

// MeResponse is returned for the current session. User is null when the
// request is anonymous.
type MeResponse struct {
	User *UserDTO `json:"user"`
	Exp  int64    `json:"exp,omitempty"`
}

type TenantResponse struct {
	Message string    `json:"message"`
	Tenant  TenantDTO `json:"tenant"`
	User    UserDTO   `json:"user"`
}
