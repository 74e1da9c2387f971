package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/auth"
	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleError_StatusCodes(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{attendance.ErrAttendanceNotFound, http.StatusNotFound, "NOT_FOUND"},
		{user.ErrUserNotFound, http.StatusNotFound, "NOT_FOUND"},
		{attendance.ErrAlreadyCheckedIn, http.StatusConflict, "CONFLICT"},
		{attendance.ErrAlreadyCheckedOut, http.StatusConflict, "CONFLICT"},
		{user.ErrUserEmailExists, http.StatusConflict, "CONFLICT"},
		{attendance.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{user.ErrAdminPrivilegeRequired, http.StatusForbidden, "FORBIDDEN"},
		{attendance.ErrOutsideCheckInWindow, http.StatusBadRequest, "BAD_REQUEST"},
		{attendance.ErrPhotoRequired, http.StatusBadRequest, "BAD_REQUEST"},
		{auth.ErrInvalidCredentials, http.StatusUnauthorized, "UNAUTHORIZED"},
		{validator.ValidationErrors{{Field: "email", Message: "email is required"}}, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{errors.New("database on fire"), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			HandleError(rec, fmt.Errorf("wrapped: %w", tt.err))

			assert.Equal(t, tt.status, rec.Code)

			var body Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.False(t, body.Success)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}
}

func TestHandleError_KeepsWrappedDurationMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleError(rec, fmt.Errorf("%w (current: 7h 55m)", attendance.ErrMinimumDurationNotMet))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "(current: 7h 55m)")
}

func TestSuccess_NullData(t *testing.T) {
	rec := httptest.NewRecorder()
	Success(rec, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"data":null}`, rec.Body.String())
}
