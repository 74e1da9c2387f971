package attendance

import (
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/timeutil"
)

// Attendance window in region-local hours. Check-in is allowed in
// [CheckInStartHour, CheckInEndHour); check-out from CheckOutStartHour on.
const (
	CheckInStartHour  = 8
	CheckInEndHour    = 10
	CheckOutStartHour = 16
	MinimumWorkHours  = 8.0
)

// ruleInput is everything a rule may look at. now is sampled once per operation.
type ruleInput struct {
	userID string
	now    time.Time
	record *attendance.Attendance
}

type rule struct {
	name  string
	check func(in ruleInput) error
}

// evaluate runs rules in order and returns the first failure
func evaluate(rules []rule, in ruleInput) error {
	for _, r := range rules {
		if err := r.check(in); err != nil {
			return err
		}
	}
	return nil
}

// checkInRules see in.record as the user's record for today, if any
var checkInRules = []rule{
	{
		name: "one_record_per_day",
		check: func(in ruleInput) error {
			if in.record != nil {
				return attendance.ErrAlreadyCheckedIn
			}
			return nil
		},
	},
	{
		name: "check_in_window",
		check: func(in ruleInput) error {
			hour := timeutil.HourOfDay(in.now)
			if hour < CheckInStartHour || hour >= CheckInEndHour {
				return attendance.ErrOutsideCheckInWindow
			}
			return nil
		},
	},
}

// checkOutRules see in.record as the record being checked out
var checkOutRules = []rule{
	{
		name: "record_exists",
		check: func(in ruleInput) error {
			if in.record == nil {
				return attendance.ErrAttendanceNotFound
			}
			return nil
		},
	},
	{
		name: "owner_only",
		check: func(in ruleInput) error {
			if !in.record.BelongsTo(in.userID) {
				return attendance.ErrForbidden
			}
			return nil
		},
	},
	{
		name: "not_checked_out",
		check: func(in ruleInput) error {
			if in.record.IsComplete() {
				return attendance.ErrAlreadyCheckedOut
			}
			return nil
		},
	},
	{
		name: "check_out_window",
		check: func(in ruleInput) error {
			if timeutil.HourOfDay(in.now) < CheckOutStartHour {
				return attendance.ErrOutsideCheckOutWindow
			}
			return nil
		},
	},
	{
		name: "minimum_duration",
		check: func(in ruleInput) error {
			worked := timeutil.HoursBetween(in.record.CheckInTime, in.now)
			if worked < MinimumWorkHours {
				return fmt.Errorf("%w (current: %s)", attendance.ErrMinimumDurationNotMet, timeutil.FormatDuration(worked))
			}
			return nil
		},
	},
}
