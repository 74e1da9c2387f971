package attendance

import (
	"context"
	"time"
)

// AttendanceRepository is the record store behind the eligibility rules.
// Find* methods return (nil, nil) when nothing matches. The store, not the
// service, is authoritative for the one-record-per-day and single-checkout rules.
type AttendanceRepository interface {
	// FindOpenByUser returns the user's most recent record without a check-out
	FindOpenByUser(ctx context.Context, userID string) (*Attendance, error)

	// FindByUserAndDate returns the record for a user on a region-local day
	FindByUserAndDate(ctx context.Context, userID string, day time.Time) (*Attendance, error)

	// FindByID returns a record by ID
	FindByID(ctx context.Context, id string) (*Attendance, error)

	// CreateCheckIn inserts a new open record. Returns ErrConflict when the
	// user already has a record for day
	CreateCheckIn(ctx context.Context, userID string, day time.Time, at time.Time, photo string) (Attendance, error)

	// CompleteCheckOut sets the check-out fields only if they are still empty.
	// Returns ErrAttendanceNotFound or ErrAlreadyComplete
	CompleteCheckOut(ctx context.Context, id string, at time.Time, photo string) (Attendance, error)

	// ListByUser returns a user's records, newest first
	ListByUser(ctx context.Context, userID string, filter AttendanceFilter) ([]Attendance, int64, error)

	// List returns all records matching filter, newest first
	List(ctx context.Context, filter AttendanceFilter) ([]Attendance, int64, error)

	// ListOpenBefore returns open records whose day is before day
	ListOpenBefore(ctx context.Context, day time.Time) ([]Attendance, error)

	// Delete removes a record. Administrative override only
	Delete(ctx context.Context, id string) error
}
