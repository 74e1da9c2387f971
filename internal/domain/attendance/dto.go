package attendance

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/validator"
)

// ========================================
// ATTENDANCE DTOs
// ========================================

// PhotoUploadRequest carries the proof photo of a check-in or check-out.
// ActingUserID is only honoured for admins acting on behalf of another user.
type PhotoUploadRequest struct {
	ActingUserID string                `json:"user_id,omitempty"`
	File         multipart.File        `json:"-"`
	FileHeader   *multipart.FileHeader `json:"-"`
	MaxSize      int64                 `json:"-"`
}

func (r *PhotoUploadRequest) Validate() error {
	if r.File == nil || r.FileHeader == nil {
		return ErrPhotoRequired
	}

	contentType := r.FileHeader.Header.Get("Content-Type")
	if contentType == "" {
		sniffed, err := sniffContentType(r.File)
		if err != nil {
			return ErrInvalidPhoto
		}
		contentType = sniffed
	}
	if !strings.HasPrefix(contentType, "image/") {
		return ErrInvalidPhoto
	}

	if r.MaxSize > 0 && r.FileHeader.Size > r.MaxSize {
		return ErrPhotoTooLarge
	}

	return nil
}

// sniffContentType detects the type from the first 512 bytes and rewinds f
func sniffContentType(f multipart.File) (string, error) {
	buf := make([]byte, 512)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(buf[:n]), nil
}

// ValidationResult is the verdict of a validate-check-in/out request.
type ValidationResult struct {
	Allowed bool   `json:"allowed"`
	Message string `json:"message"`
}

type AttendanceUserResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type AttendanceResponse struct {
	ID            string                  `json:"id"`
	UserID        string                  `json:"user_id"`
	Date          string                  `json:"date"`
	CheckInTime   string                  `json:"check_in_time"`
	CheckOutTime  *string                 `json:"check_out_time"`
	CheckInPhoto  string                  `json:"check_in_photo"`
	CheckOutPhoto *string                 `json:"check_out_photo"`
	Status        string                  `json:"status"`
	WorkedHours   *float64                `json:"worked_hours,omitempty"`
	WorkDuration  *string                 `json:"work_duration,omitempty"`
	User          *AttendanceUserResponse `json:"user,omitempty"`
	CreatedAt     string                  `json:"created_at"`
	UpdatedAt     string                  `json:"updated_at"`
}

type ListAttendanceResponse struct {
	TotalCount  int64                `json:"total_count"`
	Page        int                  `json:"page"`
	Limit       int                  `json:"limit"`
	TotalPages  int                  `json:"total_pages"`
	Showing     string               `json:"showing"`
	Attendances []AttendanceResponse `json:"attendances"`
}

type AttendanceFilter struct {
	// Search & Filter
	UserID    *string `json:"user_id,omitempty"`
	Date      *string `json:"date,omitempty"`       // YYYY-MM-DD
	StartDate *string `json:"start_date,omitempty"` // YYYY-MM-DD
	EndDate   *string `json:"end_date,omitempty"`   // YYYY-MM-DD
	Status    *string `json:"status,omitempty"`     // open, complete

	// Pagination
	Page  int `json:"page"`
	Limit int `json:"limit"`

	// Sorting by date
	SortOrder string `json:"sort_order"` // asc, desc
}

// Offset returns the row offset for the current page.
func (f AttendanceFilter) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

func (f *AttendanceFilter) Validate() error {
	var errs validator.ValidationErrors

	// Page validation
	if f.Page < 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "page",
			Message: "page must be a positive number",
		})
	}
	if f.Page == 0 {
		f.Page = 1 // Default page
	}

	// Limit validation
	if f.Limit < 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "limit",
			Message: "limit must be a positive number",
		})
	}
	if f.Limit == 0 {
		f.Limit = 20 // Default limit
	}
	if f.Limit > 100 {
		errs = append(errs, validator.ValidationError{
			Field:   "limit",
			Message: "limit must not exceed 100",
		})
	}

	// Status validation
	if f.Status != nil {
		validStatuses := []string{StatusOpen, StatusComplete}
		if !validator.IsInSlice(*f.Status, validStatuses) {
			errs = append(errs, validator.ValidationError{
				Field:   "status",
				Message: "status must be one of: open, complete",
			})
		}
	}

	// Date validation
	if f.Date != nil && *f.Date != "" {
		if _, valid := validator.IsValidDate(*f.Date); !valid {
			errs = append(errs, validator.ValidationError{
				Field:   "date",
				Message: "date must be in YYYY-MM-DD format",
			})
		}
	}

	if f.StartDate != nil && *f.StartDate != "" {
		if _, valid := validator.IsValidDate(*f.StartDate); !valid {
			errs = append(errs, validator.ValidationError{
				Field:   "start_date",
				Message: "start_date must be in YYYY-MM-DD format",
			})
		}
	}

	if f.EndDate != nil && *f.EndDate != "" {
		if _, valid := validator.IsValidDate(*f.EndDate); !valid {
			errs = append(errs, validator.ValidationError{
				Field:   "end_date",
				Message: "end_date must be in YYYY-MM-DD format",
			})
		}
	}

	// Sort validation
	if f.SortOrder == "" {
		f.SortOrder = "desc"
	}
	if f.SortOrder != "asc" && f.SortOrder != "desc" {
		errs = append(errs, validator.ValidationError{
			Field:   "sort_order",
			Message: "sort_order must be asc or desc",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}
