package tenancy_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/hugh/go-taskboard/internal/database/models"
	"github.com/hugh/go-taskboard/internal/metrics"
	"github.com/hugh/go-taskboard/internal/tenancy"
	"github.com/hugh/go-taskboard/internal/testutil"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newService(t *testing.T) (*tenancy.Service, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return tenancy.NewService(db, testutil.TestLogger(), nil), db
}

func createBareUser(t *testing.T, db *gorm.DB, name, email string) *models.User {
	t.Helper()
	user := &models.User{Email: email, Name: name, PasswordHash: "x"}
	require.NoError(t, db.Create(user).Error)
	return user
}

func tenantCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.Tenant{}).Count(&n).Error)
	return n
}

func TestProvision_CreatesAndLinksTenant(t *testing.T) {
	svc, db := newService(t)
	ctx := testutil.TestContext(t)

	user := createBareUser(t, db, "Alice Smith", "alice@example.com")

	res, err := svc.Provision(ctx, user)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, tenancy.MessageCreated, res.Message)
	assert.Equal(t, "alice-smith", res.Tenant.Slug)
	assert.Equal(t, "Alice Smith", res.Tenant.Name)
	assert.Equal(t, user.ID, res.Tenant.OwnerID)
	assert.True(t, res.Tenant.IsActive)

	var stored models.User
	require.NoError(t, db.First(&stored, "id = ?", user.ID).Error)
	require.NotNil(t, stored.TenantID)
	assert.Equal(t, res.Tenant.ID, *stored.TenantID)
	assert.Equal(t, []models.Role{models.RoleUser}, stored.Roles)
}

func TestProvision_Idempotent(t *testing.T) {
	svc, db := newService(t)
	ctx := testutil.TestContext(t)

	user := createBareUser(t, db, "Bob", "bob@example.com")

	first, err := svc.Provision(ctx, user)
	require.NoError(t, err)

	// Stale in-memory copy without a tenant must not produce a second tenant
	second, err := svc.Provision(ctx, user)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, tenancy.MessageExists, second.Message)
	assert.Equal(t, first.Tenant.ID, second.Tenant.ID)

	assert.Equal(t, int64(1), tenantCount(t, db))
}

func TestProvision_KeepsExistingRoles(t *testing.T) {
	svc, db := newService(t)
	ctx := testutil.TestContext(t)

	user := &models.User{Email: "root@example.com", PasswordHash: "x", Roles: []models.Role{models.RoleAdmin}}
	require.NoError(t, db.Create(user).Error)

	res, err := svc.Provision(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, []models.Role{models.RoleAdmin}, res.User.Roles)
}

func TestProvision_SlugFromEmailWhenNameEmpty(t *testing.T) {
	svc, db := newService(t)
	ctx := testutil.TestContext(t)

	user := createBareUser(t, db, "", "carol.danvers@example.com")

	res, err := svc.Provision(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "caroldanvers", res.Tenant.Slug)
	assert.Equal(t, "carol.danvers", res.Tenant.Name)
}

func TestProvision_SlugCollisionGetsSuffix(t *testing.T) {
	svc, db := newService(t)
	svc.SetSuffixSource(func(int) int { return 42 })
	ctx := testutil.TestContext(t)

	first := createBareUser(t, db, "Dana", "dana1@example.com")
	second := createBareUser(t, db, "Dana", "dana2@example.com")

	r1, err := svc.Provision(ctx, first)
	require.NoError(t, err)
	r2, err := svc.Provision(ctx, second)
	require.NoError(t, err)

	assert.Equal(t, "dana", r1.Tenant.Slug)
	assert.Equal(t, "dana-42", r2.Tenant.Slug)
	assert.NotEqual(t, r1.Tenant.ID, r2.Tenant.ID)
}

func TestProvision_SuffixCollisionIsConflict(t *testing.T) {
	svc, db := newService(t)
	svc.SetSuffixSource(func(int) int { return 7 })
	ctx := testutil.TestContext(t)

	users := []*models.User{
		createBareUser(t, db, "Eve", "eve1@example.com"),
		createBareUser(t, db, "Eve", "eve2@example.com"),
		createBareUser(t, db, "Eve", "eve3@example.com"),
	}

	_, err := svc.Provision(ctx, users[0])
	require.NoError(t, err)
	_, err = svc.Provision(ctx, users[1])
	require.NoError(t, err)

	// eve and eve-7 are both taken now
	_, err = svc.Provision(ctx, users[2])
	require.ErrorIs(t, err, tenancy.ErrSlugConflict)

	var stored models.User
	require.NoError(t, db.First(&stored, "id = ?", users[2].ID).Error)
	assert.Nil(t, stored.TenantID)
	assert.Equal(t, int64(2), tenantCount(t, db))

	// Retrying with a different suffix succeeds
	svc.SetSuffixSource(func(int) int { return 8 })
	res, err := svc.Provision(ctx, users[2])
	require.NoError(t, err)
	assert.Equal(t, "eve-8", res.Tenant.Slug)
}

func TestProvision_LostRaceReturnsWinner(t *testing.T) {
	svc, db := newService(t)
	ctx := testutil.TestContext(t)

	user := createBareUser(t, db, "Frank", "frank@example.com")
	winner := testutil.CreateTestTenant(t, db, user.ID)

	// Another provisioner links the user while this one is between create and link
	svc.SetBeforeLink(func() {
		require.NoError(t, db.Model(&models.User{}).Where("id = ?", user.ID).Update("tenant_id", winner.ID).Error)
	})

	res, err := svc.Provision(ctx, user)
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, winner.ID, res.Tenant.ID)

	// The losing tenant is gone and its slug is free again
	assert.Equal(t, int64(1), tenantCount(t, db))
	var unscoped int64
	require.NoError(t, db.Unscoped().Model(&models.Tenant{}).Where("slug = ?", "frank").Count(&unscoped).Error)
	assert.Zero(t, unscoped)
}

func TestProvision_ReplacesDanglingTenant(t *testing.T) {
	svc, db := newService(t)
	ctx := testutil.TestContext(t)

	missing := uuid.New()
	user := &models.User{Email: "gina@example.com", Name: "Gina", PasswordHash: "x", TenantID: &missing}
	require.NoError(t, db.Create(user).Error)

	res, err := svc.Provision(ctx, user)
	require.NoError(t, err)
	assert.True(t, res.Created)
	require.NotNil(t, res.User.TenantID)
	assert.NotEqual(t, missing, *res.User.TenantID)
	assert.Equal(t, res.Tenant.ID, *res.User.TenantID)
}

func TestEnsure(t *testing.T) {
	svc, db := newService(t)
	ctx := testutil.TestContext(t)

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.Ensure(ctx, uuid.New())
		assert.ErrorIs(t, err, tenancy.ErrUserNotFound)
	})

	t.Run("existing tenant is reported", func(t *testing.T) {
		user := testutil.CreateTenantUser(t, db)

		res, err := svc.Ensure(ctx, user.ID)
		require.NoError(t, err)
		assert.False(t, res.Created)
		assert.Equal(t, "Tenant already exists", res.Message)
		assert.Equal(t, *user.TenantID, res.Tenant.ID)
	})

	t.Run("provisions when missing", func(t *testing.T) {
		user := createBareUser(t, db, "Hank", "hank@example.com")

		res, err := svc.Ensure(ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, res.Created)
		assert.Equal(t, "hank", res.Tenant.Slug)
	})
}

func TestProvision_RecordsMetrics(t *testing.T) {
	db := testutil.SetupTestDB(t)
	m := metrics.New()
	svc := tenancy.NewService(db, testutil.TestLogger(), m)
	ctx := testutil.TestContext(t)

	user := createBareUser(t, db, "Ivy", "ivy@example.com")
	_, err := svc.Provision(ctx, user)
	require.NoError(t, err)
	_, err = svc.Provision(ctx, user)
	require.NoError(t, err)

	count, err := promtest.GatherAndCount(m.Registry(), "tenant_provision_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
