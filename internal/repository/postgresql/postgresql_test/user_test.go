package postgresql_test

import (
	"context"
	"testing"

	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/attendance-backend-go/internal/repository/postgresql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func createTestUser(t *testing.T, ctx context.Context, repo user.UserRepository, email string, role user.Role) user.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)

	created, err := repo.Create(ctx, user.User{
		Name:         "Test " + string(role),
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	})
	require.NoError(t, err)
	return created
}

func TestUserRepository_CreateAndGet(t *testing.T) {
	truncateTables(t)
	ctx := context.Background()
	repo := postgresql.NewUserRepository(testDB)

	created := createTestUser(t, ctx, repo, "employee1@example.com", user.RoleEmployee)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, user.RoleEmployee, created.Role)

	byID, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Email, byID.Email)

	byEmail, err := repo.GetByEmail(ctx, "employee1@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	exists, err := repo.ExistsByEmail(ctx, "employee1@example.com")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	truncateTables(t)
	ctx := context.Background()
	repo := postgresql.NewUserRepository(testDB)

	createTestUser(t, ctx, repo, "dup@example.com", user.RoleEmployee)
	_, err := repo.Create(ctx, user.User{Name: "Dup", Email: "dup@example.com", PasswordHash: "x", Role: user.RoleEmployee})
	assert.ErrorIs(t, err, user.ErrUserEmailExists)
}

func TestUserRepository_GetByEmail_NotFound(t *testing.T) {
	truncateTables(t)
	repo := postgresql.NewUserRepository(testDB)

	_, err := repo.GetByEmail(context.Background(), "missing@example.com")
	assert.ErrorIs(t, err, user.ErrUserNotFound)
}

func TestUserRepository_UpdateDeleteAndList(t *testing.T) {
	truncateTables(t)
	ctx := context.Background()
	repo := postgresql.NewUserRepository(testDB)

	emp := createTestUser(t, ctx, repo, "emp@example.com", user.RoleEmployee)
	createTestUser(t, ctx, repo, "admin@example.com", user.RoleAdmin)

	name := "Renamed"
	updated, err := repo.Update(ctx, emp.ID, user.UpdateUserRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)

	employees, err := repo.ListByRole(ctx, user.RoleEmployee)
	require.NoError(t, err)
	require.Len(t, employees, 1)
	assert.Equal(t, emp.ID, employees[0].ID)

	require.NoError(t, repo.Delete(ctx, emp.ID))
	assert.ErrorIs(t, repo.Delete(ctx, emp.ID), user.ErrUserNotFound)
}
