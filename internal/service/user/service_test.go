package user

import (
	"context"
	"testing"

	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/validator"
	"github.com/cmlabs-hris/attendance-backend-go/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func strPtr(s string) *string { return &s }

func TestUserService_Create(t *testing.T) {
	repo := memory.NewUserRepository()
	svc := NewUserService(repo)
	ctx := context.Background()

	resp, err := svc.Create(ctx, user.CreateUserRequest{
		Name:     "  Admin One ",
		Email:    "Admin1@Example.com",
		Password: "admin123",
		Role:     "ADMIN",
	})
	require.NoError(t, err)
	assert.Equal(t, "Admin One", resp.Name)
	assert.Equal(t, "admin1@example.com", resp.Email)
	assert.Equal(t, "ADMIN", resp.Role)

	stored, err := repo.GetByID(ctx, resp.ID)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("admin123")))

	// Role defaults to EMPLOYEE
	resp, err = svc.Create(ctx, user.CreateUserRequest{Name: "Employee", Email: "employee1@example.com", Password: "employee123"})
	require.NoError(t, err)
	assert.Equal(t, "EMPLOYEE", resp.Role)

	_, err = svc.Create(ctx, user.CreateUserRequest{Name: "Dup", Email: "ADMIN1@example.com", Password: "password1"})
	assert.ErrorIs(t, err, user.ErrUserEmailExists)

	_, err = svc.Create(ctx, user.CreateUserRequest{Name: "Short", Email: "short@example.com", Password: "abc"})
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "password", verrs[0].Field)
}

func TestUserService_UpdateAndDelete(t *testing.T) {
	svc := NewUserService(memory.NewUserRepository())
	ctx := context.Background()

	a, err := svc.Create(ctx, user.CreateUserRequest{Name: "A", Email: "a@example.com", Password: "password1"})
	require.NoError(t, err)
	b, err := svc.Create(ctx, user.CreateUserRequest{Name: "B", Email: "b@example.com", Password: "password1"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, a.ID, user.UpdateUserRequest{Name: strPtr("Alice"), Role: strPtr("ADMIN")})
	require.NoError(t, err)
	assert.Equal(t, "Alice", updated.Name)
	assert.Equal(t, "ADMIN", updated.Role)

	_, err = svc.Update(ctx, a.ID, user.UpdateUserRequest{Email: strPtr("B@example.com")})
	assert.ErrorIs(t, err, user.ErrUserEmailExists)

	_, err = svc.Update(ctx, a.ID, user.UpdateUserRequest{})
	var verrs validator.ValidationErrors
	assert.ErrorAs(t, err, &verrs)

	_, err = svc.Update(ctx, "missing", user.UpdateUserRequest{Name: strPtr("X")})
	assert.ErrorIs(t, err, user.ErrUserNotFound)

	require.NoError(t, svc.Delete(ctx, b.ID))
	_, err = svc.GetByID(ctx, b.ID)
	assert.ErrorIs(t, err, user.ErrUserNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, b.ID), user.ErrUserNotFound)
}

func TestUserService_ListEmployees(t *testing.T) {
	svc := NewUserService(memory.NewUserRepository())
	ctx := context.Background()

	for _, req := range []user.CreateUserRequest{
		{Name: "Zed", Email: "zed@example.com", Password: "password1"},
		{Name: "Boss", Email: "boss@example.com", Password: "password1", Role: "ADMIN"},
		{Name: "Amy", Email: "amy@example.com", Password: "password1"},
	} {
		_, err := svc.Create(ctx, req)
		require.NoError(t, err)
	}

	employees, err := svc.ListEmployees(ctx)
	require.NoError(t, err)
	require.Len(t, employees, 2)
	assert.Equal(t, "Amy", employees[0].Name)
	assert.Equal(t, "Zed", employees[1].Name)
}
