package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.True(t, cfg.Server.IsDevelopment())
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 2*time.Hour, cfg.JWT.Expiry())
	assert.Equal(t, 5, cfg.Auth.MaxLoginAttempts)
	assert.Equal(t, 10*time.Minute, cfg.Auth.LockDuration())
	assert.Equal(t, "*/5 * * * *", cfg.Provisioning.ReconcileCron)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Empty(t, cfg.CORS.AllowedOrigins)
	assert.Empty(t, cfg.RateLimit.TrustedProxies)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SERVER_ENV", "production")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("JWT_EXPIRY_SECONDS", "60")
	t.Setenv("AUTH_SECURE_COOKIES", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("RATE_LIMIT_TRUSTED_PROXIES", "10.0.0.0/8,192.0.2.50")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.False(t, cfg.Server.IsDevelopment())
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr())
	assert.Equal(t, time.Minute, cfg.JWT.Expiry())
	assert.True(t, cfg.Auth.SecureCookies)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORS.AllowedOrigins)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.50"}, cfg.RateLimit.TrustedProxies)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", d.DSN())
}
