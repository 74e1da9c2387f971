package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/events"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/metrics"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/telemetry"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/timeutil"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	msgCheckInAllowed      = "You can check in now"
	msgCheckOutAllowed     = "You can check out now (worked: %s)"
	msgCheckInUnavailable  = "Unable to validate check-in right now"
	msgCheckOutUnavailable = "Unable to validate check-out right now"

	publishTimeout = 5 * time.Second
)

type AttendanceServiceImpl struct {
	attendance.AttendanceRepository
	users     user.UserRepository
	clock     timeutil.Clock
	publisher events.Publisher
	metrics   *metrics.Metrics
}

// CheckIn implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) CheckIn(ctx context.Context, userID string, photo string) (resp attendance.AttendanceResponse, err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "attendance.CheckIn", trace.WithAttributes(attribute.String("user.id", userID)))
	defer func() {
		endSpan(span, err)
		s.metrics.CheckIn(err)
	}()

	if err := s.requireUser(ctx, userID); err != nil {
		return attendance.AttendanceResponse{}, err
	}

	now := s.clock.Now()
	day := timeutil.DayStart(now)

	existing, err := s.AttendanceRepository.FindByUserAndDate(ctx, userID, day)
	if err != nil {
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to find today's attendance: %w", err)
	}
	if err := evaluate(checkInRules, ruleInput{userID: userID, now: now, record: existing}); err != nil {
		return attendance.AttendanceResponse{}, err
	}
	if photo == "" {
		return attendance.AttendanceResponse{}, attendance.ErrPhotoRequired
	}

	created, err := s.AttendanceRepository.CreateCheckIn(ctx, userID, day, now, photo)
	if err != nil {
		// Lost a race with a concurrent check-in for the same day
		if errors.Is(err, attendance.ErrConflict) {
			return attendance.AttendanceResponse{}, attendance.ErrAlreadyCheckedIn
		}
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to create attendance: %w", err)
	}

	span.SetAttributes(attribute.String("attendance.id", created.ID))
	s.publish(ctx, events.NewCheckedIn(created))

	return mapAttendanceToResponse(created), nil
}

// ValidateCheckIn implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) ValidateCheckIn(ctx context.Context, userID string) (result attendance.ValidationResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Recovered from panic while validating check-in", "panic", r, "user_id", userID)
			result = attendance.ValidationResult{Allowed: false, Message: msgCheckInUnavailable}
		}
		s.metrics.Validation("check_in", result.Allowed)
	}()

	now := s.clock.Now()

	existing, err := s.AttendanceRepository.FindByUserAndDate(ctx, userID, timeutil.DayStart(now))
	if err != nil {
		slog.Error("Failed to load attendance for check-in validation", "error", err, "user_id", userID)
		return attendance.ValidationResult{Allowed: false, Message: msgCheckInUnavailable}
	}

	if err := evaluate(checkInRules, ruleInput{userID: userID, now: now, record: existing}); err != nil {
		return attendance.ValidationResult{Allowed: false, Message: err.Error()}
	}

	return attendance.ValidationResult{Allowed: true, Message: msgCheckInAllowed}
}

// CheckOut implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) CheckOut(ctx context.Context, id string, userID string, photo string) (resp attendance.AttendanceResponse, err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "attendance.CheckOut", trace.WithAttributes(
		attribute.String("attendance.id", id),
		attribute.String("user.id", userID),
	))
	defer func() {
		endSpan(span, err)
		s.metrics.CheckOut(err)
	}()

	now := s.clock.Now()

	record, err := s.AttendanceRepository.FindByID(ctx, id)
	if err != nil {
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to find attendance: %w", err)
	}
	if err := evaluate(checkOutRules, ruleInput{userID: userID, now: now, record: record}); err != nil {
		return attendance.AttendanceResponse{}, err
	}
	if photo == "" {
		return attendance.AttendanceResponse{}, attendance.ErrPhotoRequired
	}

	completed, err := s.AttendanceRepository.CompleteCheckOut(ctx, id, now, photo)
	if err != nil {
		switch {
		case errors.Is(err, attendance.ErrAlreadyComplete):
			return attendance.AttendanceResponse{}, attendance.ErrAlreadyCheckedOut
		case errors.Is(err, attendance.ErrAttendanceNotFound):
			return attendance.AttendanceResponse{}, attendance.ErrAttendanceNotFound
		}
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to complete attendance: %w", err)
	}

	s.publish(ctx, events.NewCheckedOut(completed))

	return mapAttendanceToResponse(completed), nil
}

// ValidateCheckOut implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) ValidateCheckOut(ctx context.Context, id string, userID string) (result attendance.ValidationResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Recovered from panic while validating check-out", "panic", r, "attendance_id", id)
			result = attendance.ValidationResult{Allowed: false, Message: msgCheckOutUnavailable}
		}
		s.metrics.Validation("check_out", result.Allowed)
	}()

	now := s.clock.Now()

	record, err := s.AttendanceRepository.FindByID(ctx, id)
	if err != nil {
		slog.Error("Failed to load attendance for check-out validation", "error", err, "attendance_id", id)
		return attendance.ValidationResult{Allowed: false, Message: msgCheckOutUnavailable}
	}

	if err := evaluate(checkOutRules, ruleInput{userID: userID, now: now, record: record}); err != nil {
		return attendance.ValidationResult{Allowed: false, Message: err.Error()}
	}

	worked := timeutil.HoursBetween(record.CheckInTime, now)
	return attendance.ValidationResult{Allowed: true, Message: fmt.Sprintf(msgCheckOutAllowed, timeutil.FormatDuration(worked))}
}

// GetOpenRecord implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) GetOpenRecord(ctx context.Context, userID string) (*attendance.AttendanceResponse, error) {
	record, err := s.AttendanceRepository.FindOpenByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find open attendance: %w", err)
	}
	if record == nil {
		return nil, nil
	}
	resp := mapAttendanceToResponse(*record)
	return &resp, nil
}

// GetToday implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) GetToday(ctx context.Context, userID string) (*attendance.AttendanceResponse, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	record, err := s.AttendanceRepository.FindByUserAndDate(ctx, userID, timeutil.DayStart(s.clock.Now()))
	if err != nil {
		return nil, fmt.Errorf("failed to find today's attendance: %w", err)
	}
	if record == nil {
		return nil, nil
	}
	resp := mapAttendanceToResponse(*record)
	return &resp, nil
}

// GetRecord implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) GetRecord(ctx context.Context, id string) (attendance.AttendanceResponse, error) {
	record, err := s.AttendanceRepository.FindByID(ctx, id)
	if err != nil {
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to find attendance: %w", err)
	}
	if record == nil {
		return attendance.AttendanceResponse{}, attendance.ErrAttendanceNotFound
	}
	return mapAttendanceToResponse(*record), nil
}

// ListByUser implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) ListByUser(ctx context.Context, userID string, filter attendance.AttendanceFilter) (attendance.ListAttendanceResponse, error) {
	if err := filter.Validate(); err != nil {
		return attendance.ListAttendanceResponse{}, err
	}

	if err := s.requireUser(ctx, userID); err != nil {
		return attendance.ListAttendanceResponse{}, err
	}

	records, total, err := s.AttendanceRepository.ListByUser(ctx, userID, filter)
	if err != nil {
		return attendance.ListAttendanceResponse{}, fmt.Errorf("failed to list user attendance: %w", err)
	}

	return buildListResponse(records, total, filter), nil
}

// ListAll implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) ListAll(ctx context.Context, filter attendance.AttendanceFilter) (attendance.ListAttendanceResponse, error) {
	if err := filter.Validate(); err != nil {
		return attendance.ListAttendanceResponse{}, err
	}

	records, total, err := s.AttendanceRepository.List(ctx, filter)
	if err != nil {
		return attendance.ListAttendanceResponse{}, fmt.Errorf("failed to list attendances: %w", err)
	}

	return buildListResponse(records, total, filter), nil
}

// Delete implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) Delete(ctx context.Context, id string) error {
	if err := s.AttendanceRepository.Delete(ctx, id); err != nil {
		if errors.Is(err, attendance.ErrAttendanceNotFound) {
			return attendance.ErrAttendanceNotFound
		}
		return fmt.Errorf("failed to delete attendance: %w", err)
	}

	slog.Info("Attendance record deleted", "attendance_id", id)
	return nil
}

func (s *AttendanceServiceImpl) requireUser(ctx context.Context, userID string) error {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return user.ErrUserNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}
	return nil
}

// publish hands event to the pipeline after the write has committed. A
// failure is logged and never reaches the caller.
func (s *AttendanceServiceImpl) publish(ctx context.Context, event events.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	err := s.publisher.Publish(ctx, event)
	s.metrics.EventPublished(string(event.Type), err)
	if err != nil {
		slog.Warn("Failed to publish attendance event", "error", err, "type", event.Type, "attendance_id", event.RecordID)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func buildListResponse(records []attendance.Attendance, total int64, filter attendance.AttendanceFilter) attendance.ListAttendanceResponse {
	responses := make([]attendance.AttendanceResponse, 0, len(records))
	for _, att := range records {
		responses = append(responses, mapAttendanceToResponse(att))
	}

	totalPages := int(math.Ceil(float64(total) / float64(filter.Limit)))
	showing := fmt.Sprintf("%d-%d of %d", filter.Offset()+1, min(filter.Page*filter.Limit, int(total)), total)
	if total == 0 {
		showing = "0 of 0"
	}

	return attendance.ListAttendanceResponse{
		TotalCount:  total,
		Page:        filter.Page,
		Limit:       filter.Limit,
		TotalPages:  totalPages,
		Showing:     showing,
		Attendances: responses,
	}
}

// mapAttendanceToResponse converts an Attendance entity to AttendanceResponse
func mapAttendanceToResponse(att attendance.Attendance) attendance.AttendanceResponse {
	resp := attendance.AttendanceResponse{
		ID:            att.ID,
		UserID:        att.UserID,
		Date:          timeutil.FormatDate(att.Date),
		CheckInTime:   timeutil.FormatTimestamp(att.CheckInTime),
		CheckInPhoto:  att.CheckInPhoto,
		CheckOutPhoto: att.CheckOutPhoto,
		Status:        att.Status(),
		WorkedHours:   att.WorkedHours(),
		CreatedAt:     timeutil.FormatTimestamp(att.CreatedAt),
		UpdatedAt:     timeutil.FormatTimestamp(att.UpdatedAt),
	}

	if att.CheckOutTime != nil {
		out := timeutil.FormatTimestamp(*att.CheckOutTime)
		resp.CheckOutTime = &out
	}
	if resp.WorkedHours != nil {
		duration := timeutil.FormatDuration(*resp.WorkedHours)
		resp.WorkDuration = &duration
	}
	if att.User != nil {
		resp.User = &attendance.AttendanceUserResponse{
			ID:    att.User.ID,
			Name:  att.User.Name,
			Email: att.User.Email,
		}
	}

	return resp
}

func NewAttendanceService(
	attendanceRepo attendance.AttendanceRepository,
	userRepo user.UserRepository,
	clock timeutil.Clock,
	publisher events.Publisher,
	m *metrics.Metrics,
) attendance.AttendanceService {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &AttendanceServiceImpl{
		AttendanceRepository: attendanceRepo,
		users:                userRepo,
		clock:                clock,
		publisher:            publisher,
		metrics:              m,
	}
}
