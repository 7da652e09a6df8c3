package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/go-taskboard/internal/api"
	"github.com/hugh/go-taskboard/internal/auth"
	"github.com/hugh/go-taskboard/internal/database"
	"github.com/hugh/go-taskboard/internal/metrics"
	"github.com/hugh/go-taskboard/internal/tasks"
	"github.com/hugh/go-taskboard/internal/tenancy"
	"github.com/hugh/go-taskboard/internal/todos"
	"github.com/hugh/go-taskboard/internal/web"
	"github.com/hugh/go-taskboard/pkg/config"
	"github.com/hugh/go-taskboard/pkg/queue"
	"github.com/hugh/go-taskboard/pkg/util"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load .env file
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := util.NewLogger(cfg.Server.Env, cfg.Server.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting taskboard server",
		"env", cfg.Server.Env,
		"addr", cfg.Server.Addr(),
		"db_driver", cfg.Database.Driver,
	)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.AutoMigrate(db); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	// Redis is optional: without it provisioning retries fall back to the
	// reconcile sweep and readiness reports degraded.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
	})
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Warn("failed to connect to Redis", "error", err)
		redisClient.Close()
		redisClient = nil
	}
	cancelPing()

	var asynqClient *asynq.Client
	if redisClient != nil {
		asynqClient = queue.NewClient(&cfg.Redis)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	tenancyService := tenancy.NewService(db, logger, m)

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	authService := auth.NewService(db, jwtService, tenancyService, logger)
	authService.SetLockout(cfg.Auth.MaxLoginAttempts, cfg.Auth.LockDuration())
	authService.SetMetrics(m)
	if asynqClient != nil {
		authService.SetRetryScheduler(tasks.NewEnqueuer(asynqClient))
	}

	todoService := todos.NewService(db, logger)

	routerCfg := api.RouterConfig{
		DB:             db,
		Redis:          redisClient,
		Logger:         logger,
		JWTService:     jwtService,
		AuthService:    authService,
		TenancyService: tenancyService,
		TodoService:    todoService,
		Metrics:        m,
		MetricsPath:    cfg.Metrics.Path,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		RateLimitReqs:  cfg.RateLimit.Requests,
		RateLimitSecs:  cfg.RateLimit.WindowSeconds,
		TrustedProxies: cfg.RateLimit.TrustedProxies,
		SecureCookies:  cfg.Auth.SecureCookies,
	}

	templates, err := web.LoadTemplates()
	if err != nil {
		logger.Error("failed to load templates", "error", err)
		os.Exit(1)
	}
	routerCfg.Templates = templates

	staticFS, err := web.GetStaticFS()
	if err != nil {
		logger.Error("failed to get static fs", "error", err)
		os.Exit(1)
	}
	routerCfg.StaticFS = staticFS

	if cfg.JWT.Secret == "change-me-in-production" && !cfg.Server.IsDevelopment() {
		logger.Warn("JWT_SECRET is the default value")
	}

	router := api.NewRouter(routerCfg)
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	router.Close()

	if asynqClient != nil {
		asynqClient.Close()
	}
	if redisClient != nil {
		redisClient.Close()
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}

	logger.Info("server stopped")
}
