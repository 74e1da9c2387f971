package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cmlabs-hris/attendance-backend-go/internal/config"
	appHTTP "github.com/cmlabs-hris/attendance-backend-go/internal/handler/http"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/cron"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/email"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/events"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/logger"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/metrics"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/sse"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/storage"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/telemetry"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/timeutil"
	"github.com/cmlabs-hris/attendance-backend-go/internal/repository/postgresql"
	attendanceService "github.com/cmlabs-hris/attendance-backend-go/internal/service/attendance"
	serviceAuth "github.com/cmlabs-hris/attendance-backend-go/internal/service/auth"
	"github.com/cmlabs-hris/attendance-backend-go/internal/service/file"
	userService "github.com/cmlabs-hris/attendance-backend-go/internal/service/user"
	"github.com/cmlabs-hris/attendance-backend-go/internal/worker"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.App)

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

	db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL())
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		slog.Info("Database schema applied")
	}

	userRepo := postgresql.NewUserRepository(db)
	attendanceRepo := postgresql.NewAttendanceRepository(db)

	JWTService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)
	appMetrics := metrics.New()
	hub := sse.NewHub()
	clock := timeutil.SystemClock{}

	var fileStorage storage.FileStorage
	switch cfg.Storage.Type {
	case "local":
		fileStorage, err = storage.NewLocalStorage(cfg.Storage.BasePath, cfg.Storage.BaseURL)
		if err != nil {
			return fmt.Errorf("init local storage: %w", err)
		}
	default:
		return fmt.Errorf("unsupported storage type %q", cfg.Storage.Type)
	}
	fileService := file.NewFileService(fileStorage, cfg.Storage.MaxUploadSize)

	backend, err := events.NewBackend(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init events backend: %w", err)
	}
	defer backend.Close()

	queuePublisher := events.NewAsyncPublisher(
		events.NewBreakerPublisher("events-"+backend.Name, backend.Publisher),
		events.DefaultAsyncBuffer,
		events.DefaultAsyncTimeout,
	)
	defer queuePublisher.Close()

	// Live subscribers first; the queue leg only enqueues
	publisher := events.MultiPublisher{
		events.NewHubPublisher(hub),
		queuePublisher,
	}

	attendanceSvc := attendanceService.NewAttendanceService(attendanceRepo, userRepo, clock, publisher, appMetrics)
	authSvc := serviceAuth.NewAuthService(userRepo, JWTService)
	userSvc := userService.NewUserService(userRepo)

	var background sync.WaitGroup

	if backend.InProcess() {
		transport, err := email.NewTransport(ctx, cfg)
		if err != nil {
			return fmt.Errorf("init email transport: %w", err)
		}
		emailService, err := email.NewEmailService(transport)
		if err != nil {
			return err
		}
		w := worker.NewWorker(backend.Consumer, worker.NewEmailProcessor(attendanceRepo, userRepo, emailService), appMetrics)
		background.Add(1)
		go func() {
			defer background.Done()
			if err := w.Run(ctx); err != nil {
				slog.Error("In-process worker stopped", "error", err)
			}
		}()
	}

	scheduler := cron.NewScheduler()
	cron.NewAttendanceJobs(attendanceRepo, clock, appMetrics).RegisterJobs(scheduler, cfg.Cron.StaleOpenInterval)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	router := appHTTP.NewRouter(appHTTP.RouterConfig{
		Logger:            log,
		AllowedOrigins:    cfg.App.AllowedOrigins,
		PublicDir:         cfg.Storage.BasePath,
		JWTService:        JWTService,
		Metrics:           appMetrics,
		AuthHandler:       appHTTP.NewAuthHandler(authSvc),
		UserHandler:       appHTTP.NewUserHandler(userSvc),
		AttendanceHandler: appHTTP.NewAttendanceHandler(attendanceSvc, fileService, JWTService, hub, clock, cfg.Storage.MaxUploadSize),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Open SSE streams only return once the hub closes their channels
	srv.RegisterOnShutdown(hub.Close)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Server running", "addr", srv.Addr, "events_backend", backend.Name)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	shutdownErr := srv.Shutdown(shutdownCtx)
	if shutdownErr != nil {
		slog.Error("Server forced to shutdown", "error", shutdownErr)
		_ = srv.Close()
	}

	queuePublisher.Close()
	stop()
	background.Wait()

	if shutdownErr != nil {
		return fmt.Errorf("server forced to shutdown: %w", shutdownErr)
	}
	slog.Info("Server exiting")
	return nil
}
