package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cmlabs-hris/attendance-backend-go/internal/config"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/email"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/events"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/logger"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/metrics"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/telemetry"
	"github.com/cmlabs-hris/attendance-backend-go/internal/repository/postgresql"
	"github.com/cmlabs-hris/attendance-backend-go/internal/worker"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Worker exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.New(cfg.App)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.Init(ctx, cfg.Telemetry, cfg.App.Version)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			slog.Warn("Failed to flush traces", "error", err)
		}
	}()

	backend, err := events.NewBackend(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init events backend: %w", err)
	}
	defer backend.Close()

	if backend.InProcess() || backend.Consumer == nil {
		return fmt.Errorf("EVENTS_BACKEND=%s has no shared queue to consume; use redis or sqs", backend.Name)
	}

	db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL())
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	transport, err := email.NewTransport(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init email transport: %w", err)
	}
	emailService, err := email.NewEmailService(transport)
	if err != nil {
		return err
	}

	processor := worker.NewEmailProcessor(
		postgresql.NewAttendanceRepository(db),
		postgresql.NewUserRepository(db),
		emailService,
	)

	slog.Info("Starting attendance worker", "events_backend", backend.Name, "email_provider", cfg.Email.Provider)
	return worker.NewWorker(backend.Consumer, processor, metrics.New()).Run(ctx)
}
