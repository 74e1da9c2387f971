package attendance

import (
	"context"
)

// AttendanceService is the eligibility engine. Validate* check the same rules
// Check* enforce, never write, and never return an error.
type AttendanceService interface {
	// CheckIn opens today's record for userID
	CheckIn(ctx context.Context, userID string, photo string) (AttendanceResponse, error)

	// ValidateCheckIn reports whether userID may check in right now
	ValidateCheckIn(ctx context.Context, userID string) ValidationResult

	// CheckOut completes record id on behalf of userID
	CheckOut(ctx context.Context, id string, userID string, photo string) (AttendanceResponse, error)

	// ValidateCheckOut reports whether userID may check out record id right now
	ValidateCheckOut(ctx context.Context, id string, userID string) ValidationResult

	// GetOpenRecord returns the user's open record, or nil
	GetOpenRecord(ctx context.Context, userID string) (*AttendanceResponse, error)

	// GetToday returns the user's record for the current region-local day, or nil
	GetToday(ctx context.Context, userID string) (*AttendanceResponse, error)

	// GetRecord returns a record or ErrAttendanceNotFound
	GetRecord(ctx context.Context, id string) (AttendanceResponse, error)

	// ListByUser lists a user's records
	ListByUser(ctx context.Context, userID string, filter AttendanceFilter) (ListAttendanceResponse, error)

	// ListAll lists every record (admin)
	ListAll(ctx context.Context, filter AttendanceFilter) (ListAttendanceResponse, error)

	// Delete removes a record (admin override)
	Delete(ctx context.Context, id string) error
}
