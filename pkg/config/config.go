package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Auth         AuthConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Provisioning ProvisioningConfig
	Metrics      MetricsConfig
}

type ServerConfig struct {
	Host     string
	Port     int
	Env      string
	LogLevel string // overrides the env default when set
}

type DatabaseConfig struct {
	Driver   string // postgres or sqlite
	Path     string // sqlite file path
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
}

type JWTConfig struct {
	Secret        string
	ExpirySeconds int
}

type AuthConfig struct {
	MaxLoginAttempts int
	LockSeconds      int
	SecureCookies    bool
}

type RateLimitConfig struct {
	Requests       int
	WindowSeconds  int
	TrustedProxies []string // IPs or CIDRs allowed to set X-Forwarded-For
}

type CORSConfig struct {
	AllowedOrigins []string
}

type ProvisioningConfig struct {
	ReconcileCron string
	Concurrency   int
}

type MetricsConfig struct {
	Enabled bool
	Path    string
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func (j *JWTConfig) Expiry() time.Duration {
	return time.Duration(j.ExpirySeconds) * time.Second
}

func (a *AuthConfig) LockDuration() time.Duration {
	return time.Duration(a.LockSeconds) * time.Second
}

func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func (s *ServerConfig) IsDevelopment() bool {
	return s.Env == "development"
}

func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("DATABASE_DRIVER", "postgres")
	v.SetDefault("DATABASE_PATH", "taskboard.db")
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_USER", "taskboard")
	v.SetDefault("DATABASE_PASSWORD", "taskboard_secret")
	v.SetDefault("DATABASE_NAME", "taskboard")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("JWT_SECRET", "change-me-in-production")
	v.SetDefault("JWT_EXPIRY_SECONDS", 7200)
	v.SetDefault("AUTH_MAX_LOGIN_ATTEMPTS", 5)
	v.SetDefault("AUTH_LOCK_SECONDS", 600)
	v.SetDefault("AUTH_SECURE_COOKIES", false)
	v.SetDefault("RATE_LIMIT_REQUESTS", 100)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	v.SetDefault("RATE_LIMIT_TRUSTED_PROXIES", "")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
	v.SetDefault("PROVISIONING_RECONCILE_CRON", "*/5 * * * *")
	v.SetDefault("PROVISIONING_CONCURRENCY", 5)
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("METRICS_PATH", "/metrics")

	// Load from .env file if present
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// Override with environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		Server: ServerConfig{
			Host:     v.GetString("SERVER_HOST"),
			Port:     v.GetInt("SERVER_PORT"),
			Env:      v.GetString("SERVER_ENV"),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		Database: DatabaseConfig{
			Driver:   v.GetString("DATABASE_DRIVER"),
			Path:     v.GetString("DATABASE_PATH"),
			Host:     v.GetString("DATABASE_HOST"),
			Port:     v.GetInt("DATABASE_PORT"),
			User:     v.GetString("DATABASE_USER"),
			Password: v.GetString("DATABASE_PASSWORD"),
			Name:     v.GetString("DATABASE_NAME"),
			SSLMode:  v.GetString("DATABASE_SSLMODE"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
		},
		JWT: JWTConfig{
			Secret:        v.GetString("JWT_SECRET"),
			ExpirySeconds: v.GetInt("JWT_EXPIRY_SECONDS"),
		},
		Auth: AuthConfig{
			MaxLoginAttempts: v.GetInt("AUTH_MAX_LOGIN_ATTEMPTS"),
			LockSeconds:      v.GetInt("AUTH_LOCK_SECONDS"),
			SecureCookies:    v.GetBool("AUTH_SECURE_COOKIES"),
		},
		RateLimit: RateLimitConfig{
			Requests:       v.GetInt("RATE_LIMIT_REQUESTS"),
			WindowSeconds:  v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
			TrustedProxies: splitList(v.GetString("RATE_LIMIT_TRUSTED_PROXIES")),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Provisioning: ProvisioningConfig{
			ReconcileCron: v.GetString("PROVISIONING_RECONCILE_CRON"),
			Concurrency:   v.GetInt("PROVISIONING_CONCURRENCY"),
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool("METRICS_ENABLED"),
			Path:    v.GetString("METRICS_PATH"),
		},
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
