// Package fixtures holds the default accounts loaded by cmd/seed.
package fixtures

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/user"
)

const (
	SeedCount        = 8
	AdminPassword    = "admin123"
	EmployeePassword = "employee123"
)

// DefaultUsers returns admin1..admin8 followed by employee1..employee8
func DefaultUsers() []user.CreateUserRequest {
	users := make([]user.CreateUserRequest, 0, SeedCount*2)
	for i := 1; i <= SeedCount; i++ {
		users = append(users, user.CreateUserRequest{
			Name:     fmt.Sprintf("Admin %d", i),
			Email:    fmt.Sprintf("admin%d@example.com", i),
			Password: AdminPassword,
			Role:     string(user.RoleAdmin),
		})
	}
	for i := 1; i <= SeedCount; i++ {
		users = append(users, user.CreateUserRequest{
			Name:     fmt.Sprintf("Employee %d", i),
			Email:    fmt.Sprintf("employee%d@example.com", i),
			Password: EmployeePassword,
			Role:     string(user.RoleEmployee),
		})
	}
	return users
}

// SeedUsers creates the default accounts. Existing emails are left untouched,
// so running it twice is safe.
func SeedUsers(ctx context.Context, svc user.UserService) (created int, skipped int, err error) {
	for _, req := range DefaultUsers() {
		_, err := svc.Create(ctx, req)
		switch {
		case err == nil:
			created++
			slog.Info("Seeded user", "email", req.Email, "role", req.Role)
		case errors.Is(err, user.ErrUserEmailExists):
			skipped++
		default:
			return created, skipped, fmt.Errorf("seed %s: %w", req.Email, err)
		}
	}
	return created, skipped, nil
}
