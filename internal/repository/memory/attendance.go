// Package memory holds mutex-guarded map implementations of the domain
// repositories. They keep the same uniqueness and conditional-update rules as
// the PostgreSQL store and back the single-process mode and the tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/timeutil"
	"github.com/google/uuid"
)

type attendanceKey struct {
	userID string
	day    string
}

type attendanceRepository struct {
	mu      sync.RWMutex
	records map[string]attendance.Attendance
	byDay   map[attendanceKey]string
	users   user.UserRepository
	now     func() time.Time
}

// NewAttendanceRepository returns an empty store. When users is non-nil,
// read paths join the owner's name and email like the SQL store does.
func NewAttendanceRepository(users user.UserRepository) attendance.AttendanceRepository {
	return &attendanceRepository{
		records: make(map[string]attendance.Attendance),
		byDay:   make(map[attendanceKey]string),
		users:   users,
		now:     timeutil.Now,
	}
}

func (r *attendanceRepository) withUser(ctx context.Context, att attendance.Attendance) attendance.Attendance {
	if r.users == nil {
		return att
	}
	u, err := r.users.GetByID(ctx, att.UserID)
	if err != nil {
		return att
	}
	att.User = &attendance.AttendanceUser{ID: u.ID, Name: u.Name, Email: u.Email}
	return att
}

// FindOpenByUser implements attendance.AttendanceRepository.
func (r *attendanceRepository) FindOpenByUser(ctx context.Context, userID string) (*attendance.Attendance, error) {
	r.mu.RLock()
	var found *attendance.Attendance
	for _, rec := range r.records {
		if rec.UserID != userID || !rec.IsOpen() {
			continue
		}
		if found == nil || rec.CheckInTime.After(found.CheckInTime) {
			rec := rec
			found = &rec
		}
	}
	r.mu.RUnlock()

	if found == nil {
		return nil, nil
	}
	att := r.withUser(ctx, *found)
	return &att, nil
}

// FindByUserAndDate implements attendance.AttendanceRepository.
func (r *attendanceRepository) FindByUserAndDate(ctx context.Context, userID string, day time.Time) (*attendance.Attendance, error) {
	r.mu.RLock()
	id, ok := r.byDay[attendanceKey{userID: userID, day: timeutil.FormatDate(day)}]
	rec := r.records[id]
	r.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	att := r.withUser(ctx, rec)
	return &att, nil
}

// FindByID implements attendance.AttendanceRepository.
func (r *attendanceRepository) FindByID(ctx context.Context, id string) (*attendance.Attendance, error) {
	r.mu.RLock()
	rec, ok := r.records[id]
	r.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	att := r.withUser(ctx, rec)
	return &att, nil
}

// CreateCheckIn implements attendance.AttendanceRepository.
func (r *attendanceRepository) CreateCheckIn(ctx context.Context, userID string, day time.Time, at time.Time, photo string) (attendance.Attendance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := attendanceKey{userID: userID, day: timeutil.FormatDate(day)}
	if _, exists := r.byDay[key]; exists {
		return attendance.Attendance{}, attendance.ErrConflict
	}

	now := r.now()
	rec := attendance.Attendance{
		ID:           uuid.NewString(),
		UserID:       userID,
		Date:         timeutil.DayStart(day),
		CheckInTime:  at,
		CheckInPhoto: photo,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.records[rec.ID] = rec
	r.byDay[key] = rec.ID

	return rec, nil
}

// CompleteCheckOut implements attendance.AttendanceRepository.
func (r *attendanceRepository) CompleteCheckOut(ctx context.Context, id string, at time.Time, photo string) (attendance.Attendance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return attendance.Attendance{}, attendance.ErrAttendanceNotFound
	}
	if rec.IsComplete() {
		return attendance.Attendance{}, attendance.ErrAlreadyComplete
	}

	rec.CheckOutTime = &at
	rec.CheckOutPhoto = &photo
	rec.UpdatedAt = r.now()
	r.records[id] = rec

	return rec, nil
}

func matchesFilter(rec attendance.Attendance, filter attendance.AttendanceFilter) bool {
	day := timeutil.FormatDate(rec.Date)

	if filter.UserID != nil && *filter.UserID != "" && rec.UserID != *filter.UserID {
		return false
	}
	if filter.Date != nil && *filter.Date != "" && day != *filter.Date {
		return false
	}
	// YYYY-MM-DD strings compare in calendar order
	if filter.StartDate != nil && *filter.StartDate != "" && day < *filter.StartDate {
		return false
	}
	if filter.EndDate != nil && *filter.EndDate != "" && day > *filter.EndDate {
		return false
	}
	if filter.Status != nil && *filter.Status != "" && rec.Status() != *filter.Status {
		return false
	}
	return true
}

func (r *attendanceRepository) list(ctx context.Context, filter attendance.AttendanceFilter) ([]attendance.Attendance, int64, error) {
	r.mu.RLock()
	matched := make([]attendance.Attendance, 0)
	for _, rec := range r.records {
		if matchesFilter(rec, filter) {
			matched = append(matched, rec)
		}
	}
	r.mu.RUnlock()

	asc := filter.SortOrder == "asc"
	sort.Slice(matched, func(i, j int) bool {
		if asc {
			return matched[i].CheckInTime.Before(matched[j].CheckInTime)
		}
		return matched[i].CheckInTime.After(matched[j].CheckInTime)
	})

	total := int64(len(matched))
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	start := filter.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}

	page := make([]attendance.Attendance, 0, end-start)
	for _, rec := range matched[start:end] {
		page = append(page, r.withUser(ctx, rec))
	}
	return page, total, nil
}

// ListByUser implements attendance.AttendanceRepository.
func (r *attendanceRepository) ListByUser(ctx context.Context, userID string, filter attendance.AttendanceFilter) ([]attendance.Attendance, int64, error) {
	filter.UserID = &userID
	return r.list(ctx, filter)
}

// List implements attendance.AttendanceRepository.
func (r *attendanceRepository) List(ctx context.Context, filter attendance.AttendanceFilter) ([]attendance.Attendance, int64, error) {
	return r.list(ctx, filter)
}

// ListOpenBefore implements attendance.AttendanceRepository.
func (r *attendanceRepository) ListOpenBefore(ctx context.Context, day time.Time) ([]attendance.Attendance, error) {
	cutoff := timeutil.DayStart(day)

	r.mu.RLock()
	var open []attendance.Attendance
	for _, rec := range r.records {
		if rec.IsOpen() && rec.Date.Before(cutoff) {
			open = append(open, rec)
		}
	}
	r.mu.RUnlock()

	sort.Slice(open, func(i, j int) bool { return open[i].Date.Before(open[j].Date) })
	for i := range open {
		open[i] = r.withUser(ctx, open[i])
	}
	return open, nil
}

// Delete implements attendance.AttendanceRepository.
func (r *attendanceRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return attendance.ErrAttendanceNotFound
	}
	delete(r.records, id)
	delete(r.byDay, attendanceKey{userID: rec.UserID, day: timeutil.FormatDate(rec.Date)})
	return nil
}

// DeleteByUser drops every record owned by userID, mirroring ON DELETE CASCADE
func (r *attendanceRepository) DeleteByUser(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, rec := range r.records {
		if rec.UserID == userID {
			delete(r.records, id)
			delete(r.byDay, attendanceKey{userID: rec.UserID, day: timeutil.FormatDate(rec.Date)})
		}
	}
}
