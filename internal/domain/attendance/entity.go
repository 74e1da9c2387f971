package attendance

import (
	"time"
)

// Attendance is one user's record for one region-local calendar day.
// CheckOutTime and CheckOutPhoto stay nil while the record is open.
type Attendance struct {
	ID            string
	UserID        string
	Date          time.Time
	CheckInTime   time.Time
	CheckOutTime  *time.Time
	CheckInPhoto  string
	CheckOutPhoto *string
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// DTO / Join
	User *AttendanceUser
}

// AttendanceUser is the owner summary joined in for admin listings.
type AttendanceUser struct {
	ID    string
	Name  string
	Email string
}

// IsOpen reports whether the record still waits for a check-out.
func (a *Attendance) IsOpen() bool {
	return a.CheckOutTime == nil
}

// IsComplete reports whether the record has been checked out.
func (a *Attendance) IsComplete() bool {
	return a.CheckOutTime != nil
}

// BelongsTo checks record ownership
func (a *Attendance) BelongsTo(userID string) bool {
	return a.UserID == userID
}

// WorkedHours returns the elapsed hours between check-in and check-out,
// or nil while the record is open.
func (a *Attendance) WorkedHours() *float64 {
	if a.CheckOutTime == nil {
		return nil
	}
	hours := a.CheckOutTime.Sub(a.CheckInTime).Hours()
	return &hours
}

const (
	StatusOpen     = "open"
	StatusComplete = "complete"
)

// Status returns StatusOpen or StatusComplete.
func (a *Attendance) Status() string {
	if a.IsComplete() {
		return StatusComplete
	}
	return StatusOpen
}
