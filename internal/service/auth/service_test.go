package auth

import (
	"context"
	"testing"

	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/auth"
	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/validator"
	"github.com/cmlabs-hris/attendance-backend-go/internal/repository/memory"
	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-jwt"

func newTestAuthService() (auth.AuthService, jwt.Service) {
	jwtService := jwt.NewJWTService(testSecret, "1h")
	return NewAuthService(memory.NewUserRepository(), jwtService), jwtService
}

// authenticated returns ctx as jwtauth.Verifier would leave it for token
func authenticated(t *testing.T, jwtService jwt.Service, token string) context.Context {
	t.Helper()
	decoded, err := jwtauth.VerifyToken(jwtService.JWTAuth(), token)
	require.NoError(t, err)
	return jwtauth.NewContext(context.Background(), decoded, nil)
}

func TestRegister_ForcesEmployeeRole(t *testing.T) {
	svc, _ := newTestAuthService()

	resp, err := svc.Register(context.Background(), auth.RegisterRequest{
		Name:            "Employee One",
		Email:           "Employee1@Example.com",
		Password:        "employee123",
		ConfirmPassword: "employee123",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, "EMPLOYEE", resp.User.Role)
	assert.Equal(t, "employee1@example.com", resp.User.Email)

	_, err = svc.Register(context.Background(), auth.RegisterRequest{
		Name:            "Again",
		Email:           "employee1@example.com",
		Password:        "employee123",
		ConfirmPassword: "employee123",
	})
	assert.ErrorIs(t, err, user.ErrUserEmailExists)
}

func TestRegister_PasswordMismatch(t *testing.T) {
	svc, _ := newTestAuthService()

	_, err := svc.Register(context.Background(), auth.RegisterRequest{
		Name:            "Employee One",
		Email:           "employee1@example.com",
		Password:        "employee123",
		ConfirmPassword: "employee124",
	})
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "confirm_password", verrs[0].Field)
}

func TestLogin(t *testing.T) {
	svc, jwtService := newTestAuthService()
	ctx := context.Background()

	_, err := svc.Register(ctx, auth.RegisterRequest{
		Name:            "Employee One",
		Email:           "employee1@example.com",
		Password:        "employee123",
		ConfirmPassword: "employee123",
	})
	require.NoError(t, err)

	resp, err := svc.Login(ctx, auth.LoginRequest{Email: " EMPLOYEE1@example.com", Password: "employee123"})
	require.NoError(t, err)

	claims, err := jwt.ClaimsFromContext(authenticated(t, jwtService, resp.AccessToken))
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.Equal(t, user.RoleEmployee, claims.Role)

	_, err = svc.Login(ctx, auth.LoginRequest{Email: "employee1@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = svc.Login(ctx, auth.LoginRequest{Email: "nobody@example.com", Password: "employee123"})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestMeAndLogout(t *testing.T) {
	svc, jwtService := newTestAuthService()

	resp, err := svc.Register(context.Background(), auth.RegisterRequest{
		Name:            "Employee One",
		Email:           "employee1@example.com",
		Password:        "employee123",
		ConfirmPassword: "employee123",
	})
	require.NoError(t, err)

	ctx := authenticated(t, jwtService, resp.AccessToken)

	me, err := svc.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Employee One", me.Name)

	_, err = svc.Me(context.Background())
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	require.NoError(t, svc.Logout(ctx, resp.AccessToken))
	assert.True(t, jwtService.IsTokenRevoked(resp.AccessToken))

	assert.ErrorIs(t, svc.Logout(context.Background(), resp.AccessToken), auth.ErrInvalidToken)
}
