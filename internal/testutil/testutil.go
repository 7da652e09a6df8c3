package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-taskboard/internal/auth"
	"github.com/hugh/go-taskboard/internal/database"
	"github.com/hugh/go-taskboard/internal/database/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const TestPassword = "testpassword123"

// SetupTestDB creates an in-memory SQLite database for testing
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,

		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	// Every pooled connection to :memory: is a separate database
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() { CleanupTestDB(t, db) })
	return db
}

// CleanupTestDB closes the test database connection
func CleanupTestDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	if err != nil {
		t.Logf("warning: failed to get sql.DB: %v", err)
		return
	}
	sqlDB.Close()
}

// TestLogger returns a logger that discards everything
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// CreateTestTenant creates a tenant owned by ownerID
func CreateTestTenant(t *testing.T, db *gorm.DB, ownerID uuid.UUID) *models.Tenant {
	t.Helper()

	tenant := &models.Tenant{
		Name:     "Test Tenant",
		Slug:     "test-tenant-" + uuid.New().String()[:8],
		OwnerID:  ownerID,
		IsActive: true,
	}

	if err := db.Create(tenant).Error; err != nil {
		t.Fatalf("failed to create test tenant: %v", err)
	}

	return tenant
}

// CreateTestUser creates a user in tenant. A nil tenant leaves the user
// unprovisioned. Roles default to {user}.
func CreateTestUser(t *testing.T, db *gorm.DB, tenant *models.Tenant, roles ...models.Role) *models.User {
	t.Helper()

	hash, err := auth.HashPassword(TestPassword)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	if len(roles) == 0 {
		roles = []models.Role{models.RoleUser}
	}

	user := &models.User{
		Email:        "test-" + uuid.New().String()[:8] + "@example.com",
		PasswordHash: hash,
		Name:         "Test User",
		Roles:        roles,
	}
	if tenant != nil {
		id := tenant.ID
		user.TenantID = &id
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	user.Tenant = tenant
	return user
}

// CreateTenantUser creates a user together with a tenant the user owns
func CreateTenantUser(t *testing.T, db *gorm.DB, roles ...models.Role) *models.User {
	t.Helper()

	ownerID := uuid.New()
	tenant := CreateTestTenant(t, db, ownerID)

	user := CreateTestUser(t, db, nil, roles...)
	if err := db.Model(&models.User{}).Where("id = ?", user.ID).Update("tenant_id", tenant.ID).Error; err != nil {
		t.Fatalf("failed to link test user: %v", err)
	}
	if err := db.Model(&models.Tenant{}).Where("id = ?", tenant.ID).Update("owner_id", user.ID).Error; err != nil {
		t.Fatalf("failed to set tenant owner: %v", err)
	}

	tenant.OwnerID = user.ID
	user.TenantID = &tenant.ID
	user.Tenant = tenant
	return user
}

// CreateTestTodo creates a todo in tenantID created by creatorID
func CreateTestTodo(t *testing.T, db *gorm.DB, tenantID, creatorID uuid.UUID, title string) *models.Todo {
	t.Helper()

	assignee := creatorID
	todo := &models.Todo{
		Title:        title,
		Status:       models.TodoStatusTodo,
		Priority:     models.TodoPriorityMedium,
		TenantID:     tenantID,
		CreatedByID:  creatorID,
		AssignedToID: &assignee,
	}

	if err := db.Create(todo).Error; err != nil {
		t.Fatalf("failed to create test todo: %v", err)
	}

	return todo
}

// CreateTestJWTService creates a JWT service for testing
func CreateTestJWTService() *auth.JWTService {
	return auth.NewJWTService("test-secret-key-for-testing", 2*time.Hour)
}

// GenerateTestToken generates a valid JWT token for the given user
func GenerateTestToken(t *testing.T, jwtService *auth.JWTService, user *models.User) string {
	t.Helper()

	token, err := jwtService.GenerateToken(user.ID, user.TenantID, user.Email, user.Roles)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}

	return token
}

// AuthenticatedRequest creates an HTTP request with authentication
func AuthenticatedRequest(t *testing.T, method, path string, body interface{}, token string) *http.Request {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

// UnauthenticatedRequest creates an HTTP request without authentication
func UnauthenticatedRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	return AuthenticatedRequest(t, method, path, body, "")
}

// AssertStatus checks if the response has the expected status code
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rr.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, rr.Code, rr.Body.String())
	}
}

// ParseJSONResponse parses the response body into the given struct
func ParseJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response body: %v. Body: %s", err, rr.Body.String())
	}
}

// TestContext creates a context with a timeout for tests
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestSetup holds all the common test dependencies
type TestSetup struct {
	DB         *gorm.DB
	JWTService *auth.JWTService
	Tenant     *models.Tenant
	User       *models.User
	Token      string
}

// NewTestContext creates a complete test setup with DB, tenant, user, and token
func NewTestContext(t *testing.T) *TestSetup {
	t.Helper()

	db := SetupTestDB(t)
	jwtService := CreateTestJWTService()
	user := CreateTenantUser(t, db)
	token := GenerateTestToken(t, jwtService, user)

	return &TestSetup{
		DB:         db,
		JWTService: jwtService,
		Tenant:     user.Tenant,
		User:       user,
		Token:      token,
	}
}

// Cleanup closes the test database
func (ts *TestSetup) Cleanup() {
	if ts.DB != nil {
		sqlDB, err := ts.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}
