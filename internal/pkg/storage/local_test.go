package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_UploadURLDelete(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir(), "http://localhost:8080/public/")
	require.NoError(t, err)

	stored, err := s.Upload(ctx, strings.NewReader("jpeg bytes"), "attendance/2025-03-03/u1-check_in-x.jpg", "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "attendance/2025-03-03/u1-check_in-x.jpg", stored)

	exists, err := s.Exists(ctx, stored)
	require.NoError(t, err)
	assert.True(t, exists)

	url, err := s.GetURL(ctx, stored)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/public/attendance/2025-03-03/u1-check_in-x.jpg", url)

	require.NoError(t, s.Delete(ctx, stored))
	require.NoError(t, s.Delete(ctx, stored), "deleting twice is fine")

	exists, err = s.Exists(ctx, stored)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalStorage_RejectsTraversal(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir(), "http://localhost/public")
	require.NoError(t, err)

	_, err = s.Upload(context.Background(), strings.NewReader("x"), "../../etc/passwd", "text/plain")
	assert.ErrorIs(t, err, ErrInvalidPath)

	_, err = s.GetURL(context.Background(), "../secret")
	assert.ErrorIs(t, err, ErrInvalidPath)
}
