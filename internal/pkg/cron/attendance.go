package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/metrics"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/timeutil"
)

type AttendanceJobs struct {
	attendanceRepo attendance.AttendanceRepository
	clock          timeutil.Clock
	metrics        *metrics.Metrics
}

func NewAttendanceJobs(attendanceRepo attendance.AttendanceRepository, clock timeutil.Clock, m *metrics.Metrics) *AttendanceJobs {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &AttendanceJobs{
		attendanceRepo: attendanceRepo,
		clock:          clock,
		metrics:        m,
	}
}

func (j *AttendanceJobs) RegisterJobs(scheduler *Scheduler, interval time.Duration) {
	scheduler.AddJob("report_stale_open_records", interval, j.ReportStaleOpenRecords)
}

// ReportStaleOpenRecords counts records from previous days that were never
// checked out. They stay open: closing a record is only done by a check-out.
func (j *AttendanceJobs) ReportStaleOpenRecords(ctx context.Context) error {
	today := timeutil.DayStart(j.clock.Now())

	stale, err := j.attendanceRepo.ListOpenBefore(ctx, today)
	if err != nil {
		return fmt.Errorf("failed to list stale open records: %w", err)
	}

	j.metrics.SetStaleOpenRecords(len(stale))

	if len(stale) == 0 {
		slog.Debug("Cron: No stale open attendance records")
		return nil
	}

	oldest := stale[0]
	for _, rec := range stale[1:] {
		if rec.Date.Before(oldest.Date) {
			oldest = rec
		}
	}

	slog.Warn("Cron: Open attendance records from previous days",
		"count", len(stale),
		"oldest_date", timeutil.FormatDate(oldest.Date),
		"oldest_record_id", oldest.ID,
	)
	return nil
}
