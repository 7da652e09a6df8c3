package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/go-taskboard/internal/database"
	"github.com/hugh/go-taskboard/internal/metrics"
	"github.com/hugh/go-taskboard/internal/tasks"
	"github.com/hugh/go-taskboard/internal/tenancy"
	"github.com/hugh/go-taskboard/pkg/config"
	"github.com/hugh/go-taskboard/pkg/queue"
	"github.com/hugh/go-taskboard/pkg/util"
	"github.com/joho/godotenv"
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

	logger.Info("starting taskboard worker")

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	handler := tasks.NewHandler(db, logger, tenancy.NewService(db, logger, m), tasks.DefaultReconcileOptions())

	mux := asynq.NewServeMux()
	handler.RegisterHandlers(mux)

	srv := queue.NewServer(&cfg.Redis, cfg.Provisioning.Concurrency, logger)
	if err := srv.Start(mux); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	var scheduler *asynq.Scheduler
	if schedule := cfg.Provisioning.ReconcileCron; schedule != "" {
		if err := util.ValidateCronExpr(schedule); err != nil {
			logger.Error("invalid reconcile schedule", "cron", schedule, "error", err)
			srv.Shutdown()
			os.Exit(1)
		}

		scheduler = queue.NewScheduler(&cfg.Redis, logger)
		entryID, err := scheduler.Register(schedule, tasks.NewTenantReconcileTask(), asynq.Unique(time.Minute))
		if err != nil {
			logger.Error("failed to register reconcile task", "error", err)
			srv.Shutdown()
			os.Exit(1)
		}
		if err := scheduler.Start(); err != nil {
			logger.Error("failed to start scheduler", "error", err)
			srv.Shutdown()
			os.Exit(1)
		}

		upcoming, _ := util.UpcomingCronTimes(schedule, time.Now(), 3)
		logger.Info("tenant reconcile scheduled", "cron", schedule, "entry_id", entryID, "next_runs", upcoming)
	} else {
		logger.Info("tenant reconcile disabled")
	}

	logger.Info("worker started, waiting for tasks...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down worker...")

	if scheduler != nil {
		scheduler.Shutdown()
	}
	srv.Shutdown()

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}

	logger.Info("worker stopped")
}
