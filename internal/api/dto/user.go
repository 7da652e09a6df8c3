package dto

import (
	"github.com/hugh/go-taskboard/internal/api/validation"
	"github.com/hugh/go-taskboard/internal/database/models"
)

type UserDTO struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Roles     []string   `json:"roles"`
	TenantID  *string    `json:"tenant_id"`
	Tenant    *TenantDTO `json:"tenant,omitempty"`
	CreatedAt string     `json:"created_at"`
	UpdatedAt string     `json:"updated_at"`
}

// UserSummary is the embedded form used inside todos.
type UserSummary struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type TenantDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	OwnerID  string `json:"owner_id"`
	IsActive bool   `json:"is_active"`
}

func NewUserDTO(u *models.User) UserDTO {
	resp := UserDTO{
		ID:        u.ID.String(),
		Email:     u.Email,
		Name:      u.Name,
		Roles:     make([]string, len(u.Roles)),
		CreatedAt: formatTime(u.CreatedAt),
		UpdatedAt: formatTime(u.UpdatedAt),
	}
	for i, r := range u.Roles {
		resp.Roles[i] = string(r)
	}
	if u.TenantID != nil {
		id := u.TenantID.String()
		resp.TenantID = &id
	}
	if u.Tenant != nil && u.TenantID != nil && u.Tenant.ID == *u.TenantID {
		t := NewTenantDTO(u.Tenant)
		resp.Tenant = &t
	}
	return resp
}

func NewUserSummary(u *models.User) *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{ID: u.ID.String(), Email: u.Email, Name: u.Name}
}

func NewTenantDTO(t *models.Tenant) TenantDTO {
	return TenantDTO{
		ID:       t.ID.String(),
		Name:     t.Name,
		Slug:     t.Slug,
		OwnerID:  t.OwnerID.String(),
		IsActive: t.IsActive,
	}
}

// UpdateUserRequest is a partial update. An empty Tenant clears it.
type UpdateUserRequest struct {
	Name     *string   `json:"name,omitempty"`
	Email    *string   `json:"email,omitempty"`
	Password *string   `json:"password,omitempty"`
	Roles    *[]string `json:"roles,omitempty"`
	Tenant   *string   `json:"tenant,omitempty"`
}

func (r UpdateUserRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Email != nil && !validation.IsValidEmail(*r.Email) {
		errors["email"] = "Email is invalid"
	}
	if r.Password != nil {
		if ok, msg := validation.IsValidPassword(*r.Password); !ok {
			errors["password"] = msg
		}
	}
	if r.Name != nil && len(*r.Name) > validation.MaxNameLength {
		errors["name"] = "Name is too long"
	}
	if r.Roles != nil {
		if roles, ok := validation.ParseRoles(*r.Roles); !ok || len(roles) == 0 {
			errors["roles"] = "Roles must be a non-empty list of admin or user"
		}
	}
	if r.Tenant != nil && *r.Tenant != "" && !validation.IsValidUUID(*r.Tenant) {
		errors["tenant"] = "Tenant must be a valid ID"
	}

	return errors
}
