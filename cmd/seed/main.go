package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/cmlabs-hris/attendance-backend-go/internal/config"
	"github.com/cmlabs-hris/attendance-backend-go/internal/fixtures"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/logger"
	"github.com/cmlabs-hris/attendance-backend-go/internal/repository/postgresql"
	userService "github.com/cmlabs-hris/attendance-backend-go/internal/service/user"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Error loading config", "error", err)
		os.Exit(1)
	}
	logger.New(cfg.App)

	ctx := context.Background()
	db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL())
	if err != nil {
		slog.Error("Error connecting to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		slog.Error("Error applying schema", "error", err)
		os.Exit(1)
	}

	created, skipped, err := fixtures.SeedUsers(ctx, userService.NewUserService(postgresql.NewUserRepository(db)))
	if err != nil {
		slog.Error("Seeding failed", "error", err)
		db.Close()
		os.Exit(1)
	}

	slog.Info("Seeding finished", "created", created, "skipped", skipped)
}
