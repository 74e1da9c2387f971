package attendance

import "errors"

// Attendance domain errors
var (
	// Check-in errors
	ErrAlreadyCheckedIn     = errors.New("you have already checked in today")
	ErrOutsideCheckInWindow = errors.New("check-in is only allowed between 8:00 AM and 10:00 AM (WIB)")
	ErrPhotoRequired        = errors.New("attendance photo is required")
	ErrInvalidPhoto         = errors.New("attendance photo must be a JPEG, PNG, GIF or WebP image")
	ErrPhotoTooLarge        = errors.New("attendance photo is too large")

	// Check-out errors
	ErrForbidden             = errors.New("this attendance record does not belong to you")
	ErrAlreadyCheckedOut     = errors.New("you have already checked out for this record")
	ErrOutsideCheckOutWindow = errors.New("check-out is only allowed after 4:00 PM (WIB)")
	ErrMinimumDurationNotMet = errors.New("you must work for at least 8 hours before checking out")

	// Store errors
	ErrAttendanceNotFound = errors.New("attendance record not found")
	ErrConflict           = errors.New("attendance record already exists for this user and date")
	ErrAlreadyComplete    = errors.New("attendance record is already complete")
)
