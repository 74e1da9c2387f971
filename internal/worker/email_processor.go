package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/email"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/events"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/timeutil"
)

const clockLayout = "15:04"

// EmailProcessor mails the shift summary once a record is checked out.
// Other event types are acknowledged without side effects.
type EmailProcessor struct {
	attendanceRepo attendance.AttendanceRepository
	userRepo       user.UserRepository
	emailService   email.EmailService
}

func NewEmailProcessor(attendanceRepo attendance.AttendanceRepository, userRepo user.UserRepository, emailService email.EmailService) *EmailProcessor {
	return &EmailProcessor{
		attendanceRepo: attendanceRepo,
		userRepo:       userRepo,
		emailService:   emailService,
	}
}

func (p *EmailProcessor) Process(ctx context.Context, event events.Event) error {
	if event.Type != events.TypeCheckedOut {
		return nil
	}

	record, err := p.attendanceRepo.FindByID(ctx, event.RecordID)
	if err != nil {
		return fmt.Errorf("failed to load attendance record: %w", err)
	}
	if record == nil {
		// deleted by an admin before we got to it
		return Permanent(attendance.ErrAttendanceNotFound)
	}
	if record.CheckOutTime == nil {
		return Permanent(fmt.Errorf("record %s has no check-out", record.ID))
	}

	owner, err := p.userRepo.GetByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return Permanent(err)
		}
		return fmt.Errorf("failed to load user: %w", err)
	}

	summary := email.CheckOutSummary{
		Name:         owner.Name,
		Date:         timeutil.FormatDate(record.Date),
		CheckIn:      record.CheckInTime.In(timeutil.Region).Format(clockLayout),
		CheckOut:     record.CheckOutTime.In(timeutil.Region).Format(clockLayout),
		WorkDuration: timeutil.FormatDuration(*record.WorkedHours()),
	}
	if err := p.emailService.SendCheckOutSummary(ctx, owner.Email, summary); err != nil {
		return fmt.Errorf("failed to send check-out summary: %w", err)
	}

	slog.Info("Check-out summary sent", "record_id", record.ID, "user_id", owner.ID)
	return nil
}
