package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-taskboard/internal/database/models"
	"github.com/hugh/go-taskboard/internal/policy"
	"gorm.io/gorm"
)

// ErrAlreadyLinked is returned by LinkTenant when the user's tenant was set
// by someone else between read and write.
var ErrAlreadyLinked = errors.New("user already linked to a tenant")

type Users struct {
	db *gorm.DB
}

func NewUsers(db *gorm.DB) *Users {
	return &Users{db: db}
}

// UserPatch lists the user fields an update may touch. Nil means unchanged.
type UserPatch struct {
	Name     *string
	Email    *string
	Password *string // already hashed
	Roles    *[]models.Role
	TenantID **uuid.UUID
}

func (p UserPatch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Password == nil && p.Roles == nil && p.TenantID == nil
}

type UserQuery struct {
	Email string
	Page  Page
}

func (s *Users) Create(ctx context.Context, user *models.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	return translate(s.db.WithContext(ctx).Create(user).Error)
}

// Get loads a user without any access filter. Callers are trusted code paths
// (authentication, provisioning).
func (s *Users) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Preload("Tenant").First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *Users) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).
		Preload("Tenant").
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// GetScoped loads a user only if d permits it.
func (s *Users) GetScoped(ctx context.Context, d policy.Decision, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).
		Scopes(Scope(d)).
		Preload("Tenant").
		First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *Users) Find(ctx context.Context, d policy.Decision, q UserQuery) ([]models.User, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.User{}).Scopes(Scope(d))
	if q.Email != "" {
		query = query.Where("email = ?", strings.ToLower(q.Email))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []models.User
	if err := q.Page.apply(query).Order("created_at ASC").Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// Update applies patch to the user identified by id, restricted by d.
func (s *Users) Update(ctx context.Context, d policy.Decision, id uuid.UUID, patch UserPatch) (*models.User, error) {
	user, err := s.GetScoped(ctx, d, id)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return user, nil
	}

	var columns []string
	if patch.Name != nil {
		user.Name = *patch.Name
		columns = append(columns, "Name")
	}
	if patch.Email != nil {
		user.Email = strings.ToLower(strings.TrimSpace(*patch.Email))
		columns = append(columns, "Email")
	}
	if patch.Password != nil {
		user.PasswordHash = *patch.Password
		columns = append(columns, "PasswordHash")
	}
	if patch.Roles != nil {
		user.Roles = *patch.Roles
		columns = append(columns, "Roles")
	}
	if patch.TenantID != nil {
		user.TenantID = *patch.TenantID
		user.Tenant = nil
		columns = append(columns, "TenantID")
	}

	if err := s.db.WithContext(ctx).Model(user).Select(columns).Updates(user).Error; err != nil {
		return nil, translate(err)
	}
	return s.Get(ctx, id)
}

// Delete removes the user if d permits it. The row is hard-deleted so the
// email is free to register again.
func (s *Users) Delete(ctx context.Context, d policy.Decision, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Unscoped().Scopes(Scope(d)).Where("id = ?", id).Delete(&models.User{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// LinkTenant sets the user's tenant with a single conditional write: it only
// succeeds while the user has no tenant, or still points at stale. Roles
// default to {user} when unset. Returns ErrAlreadyLinked when the condition
// no longer holds.
func (s *Users) LinkTenant(ctx context.Context, userID, tenantID uuid.UUID, stale *uuid.UUID) (*models.User, error) {
	var linked models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&models.User{}).Where("id = ?", userID)
		if stale != nil {
			q = q.Where("(tenant_id IS NULL OR tenant_id = ?)", *stale)
		} else {
			q = q.Where("tenant_id IS NULL")
		}

		res := q.Update("tenant_id", tenantID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyLinked
		}

		if err := tx.First(&linked, "id = ?", userID).Error; err != nil {
			return err
		}
		if len(linked.Roles) == 0 {
			linked.Roles = []models.Role{models.RoleUser}
			if err := tx.Model(&linked).Select("Roles").Updates(&linked).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return s.Get(ctx, userID)
}

// FindWithoutTenant returns users created before cutoff that still have no
// tenant, oldest first.
func (s *Users) FindWithoutTenant(ctx context.Context, cutoff time.Time, limit int) ([]models.User, error) {
	var users []models.User
	err := s.db.WithContext(ctx).
		Where("tenant_id IS NULL AND created_at < ?", cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&users).Error
	return users, err
}

// RecordLoginFailure increments the failed attempt counter and, once max is
// reached, locks the account until now+lock.
func (s *Users) RecordLoginFailure(ctx context.Context, user *models.User, max int, lock time.Duration, now time.Time) error {
	user.LoginAttempts++
	columns := []string{"LoginAttempts"}
	if max > 0 && user.LoginAttempts >= max {
		until := now.Add(lock)
		user.LockUntil = &until
		user.LoginAttempts = 0
		columns = append(columns, "LockUntil")
	}
	return s.db.WithContext(ctx).Model(user).Select(columns).Updates(user).Error
}

func (s *Users) ResetLoginAttempts(ctx context.Context, user *models.User) error {
	if user.LoginAttempts == 0 && user.LockUntil == nil {
		return nil
	}
	user.LoginAttempts = 0
	user.LockUntil = nil
	return s.db.WithContext(ctx).Model(user).Select("LoginAttempts", "LockUntil").Updates(user).Error
}
