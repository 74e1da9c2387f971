package jwt

import (
	"context"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/user"
	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService_GenerateAccessToken_Claims(t *testing.T) {
	svc := NewJWTService("test-secret", "24h")

	token, expiresAt, err := svc.GenerateAccessToken("user-1", "employee1@example.com", "Employee One", user.RoleEmployee)
	require.NoError(t, err)
	assert.InDelta(t, time.Now().Add(24*time.Hour).Unix(), expiresAt, 5)

	decoded, err := jwtauth.VerifyToken(svc.JWTAuth(), token)
	require.NoError(t, err)
	claims, err := decoded.AsMap(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "user-1", claims["user_id"])
	assert.Equal(t, "Employee One", claims["name"])
	assert.Equal(t, "EMPLOYEE", claims["role"])
	assert.Equal(t, TokenTypeAccess, claims["type"])
}

func TestJWTService_GenerateAccessToken_InvalidDuration(t *testing.T) {
	svc := NewJWTService("test-secret", "tomorrow")

	_, _, err := svc.GenerateAccessToken("user-1", "a@example.com", "A", user.RoleAdmin)
	assert.Error(t, err)
}

func TestJWTService_RevokeToken(t *testing.T) {
	svc := NewJWTService("test-secret", "1h")

	assert.False(t, svc.IsTokenRevoked("abc"))
	svc.RevokeToken("abc", time.Now().Add(time.Hour).Unix())
	assert.True(t, svc.IsTokenRevoked("abc"))

	// expired entries are dropped on the next revocation
	svc.RevokeToken("old", time.Now().Add(-time.Hour).Unix())
	svc.RevokeToken("new", time.Now().Add(time.Hour).Unix())
	assert.False(t, svc.IsTokenRevoked("old"))
	assert.True(t, svc.IsTokenRevoked("new"))
}

func TestJWTService_SSEToken(t *testing.T) {
	svc := NewJWTService("test-secret", "1h")

	token, expiresIn, err := svc.GenerateSSEToken("user-9")
	require.NoError(t, err)
	assert.Equal(t, 300, expiresIn)

	userID, err := svc.ValidateSSEToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-9", userID)

	access, _, err := svc.GenerateAccessToken("user-9", "a@example.com", "A", user.RoleEmployee)
	require.NoError(t, err)
	_, err = svc.ValidateSSEToken(access)
	assert.Error(t, err, "access tokens must not open a stream")
}

func TestClaimsFromContext(t *testing.T) {
	svc := NewJWTService("test-secret", "1h")

	access, _, err := svc.GenerateAccessToken("admin-1", "admin1@example.com", "Admin One", user.RoleAdmin)
	require.NoError(t, err)
	decoded, err := jwtauth.VerifyToken(svc.JWTAuth(), access)
	require.NoError(t, err)

	claims, err := ClaimsFromContext(jwtauth.NewContext(context.Background(), decoded, nil))
	require.NoError(t, err)
	assert.Equal(t, "admin-1", claims.UserID)
	assert.Equal(t, "Admin One", claims.Name)
	assert.True(t, claims.IsAdmin())

	sse, _, err := svc.GenerateSSEToken("admin-1")
	require.NoError(t, err)
	decoded, err = jwtauth.VerifyToken(svc.JWTAuth(), sse)
	require.NoError(t, err)

	_, err = ClaimsFromContext(jwtauth.NewContext(context.Background(), decoded, nil))
	assert.Error(t, err)

	_, err = ClaimsFromContext(context.Background())
	assert.Error(t, err)
}
