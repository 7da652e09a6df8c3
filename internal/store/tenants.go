package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/hugh/go-taskboard/internal/database/models"
	"gorm.io/gorm"
)

type Tenants struct {
	db *gorm.DB
}

func NewTenants(db *gorm.DB) *Tenants {
	return &Tenants{db: db}
}

type TenantQuery struct {
	Slug    string
	OwnerID uuid.UUID
}

// Create inserts tenant. A slug collision is reported as ErrDuplicate and
// never overwrites the existing row.
func (s *Tenants) Create(ctx context.Context, tenant *models.Tenant) error {
	return translate(s.db.WithContext(ctx).Create(tenant).Error)
}

func (s *Tenants) FindByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := s.db.WithContext(ctx).First(&tenant, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &tenant, nil
}

func (s *Tenants) Find(ctx context.Context, q TenantQuery) ([]models.Tenant, error) {
	query := s.db.WithContext(ctx).Model(&models.Tenant{})
	if q.Slug != "" {
		query = query.Where("slug = ?", q.Slug)
	}
	if q.OwnerID != uuid.Nil {
		query = query.Where("owner_id = ?", q.OwnerID)
	}

	var tenants []models.Tenant
	if err := query.Order("created_at ASC").Find(&tenants).Error; err != nil {
		return nil, err
	}
	return tenants, nil
}

// SlugExists checks soft-deleted rows too, since they still hold the
// unique index.
func (s *Tenants) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Unscoped().Model(&models.Tenant{}).Where("slug = ?", slug).Count(&count).Error
	return count > 0, err
}

// Delete hard-deletes a tenant. Used to drop a tenant that lost a
// provisioning race and was never linked to anyone.
func (s *Tenants) Delete(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Unscoped().Delete(&models.Tenant{}, "id = ?", id).Error
}
