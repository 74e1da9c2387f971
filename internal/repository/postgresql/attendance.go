package postgresql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/timeutil"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const attendanceColumns = `
	a.id, a.user_id, a.date, a.check_in_time, a.check_out_time,
	a.check_in_photo, a.check_out_photo, a.created_at, a.updated_at`

type attendanceRepository struct {
	db *database.DB
}

// scanAttendance reads attendanceColumns, optionally followed by the joined user name and email
func scanAttendance(row pgx.Row, withUser bool) (attendance.Attendance, error) {
	var att attendance.Attendance
	dest := []interface{}{
		&att.ID, &att.UserID, &att.Date, &att.CheckInTime, &att.CheckOutTime,
		&att.CheckInPhoto, &att.CheckOutPhoto, &att.CreatedAt, &att.UpdatedAt,
	}

	var name, email *string
	if withUser {
		dest = append(dest, &name, &email)
	}

	if err := row.Scan(dest...); err != nil {
		return attendance.Attendance{}, err
	}

	// DATE comes back as UTC midnight; records live on region-local days
	att.Date = time.Date(att.Date.Year(), att.Date.Month(), att.Date.Day(), 0, 0, 0, 0, timeutil.Region)
	att.CheckInTime = att.CheckInTime.In(timeutil.Region)
	if att.CheckOutTime != nil {
		out := att.CheckOutTime.In(timeutil.Region)
		att.CheckOutTime = &out
	}

	if withUser && name != nil {
		att.User = &attendance.AttendanceUser{ID: att.UserID, Name: *name}
		if email != nil {
			att.User.Email = *email
		}
	}

	return att, nil
}

// isMalformedID reports whether err came from comparing a uuid column against
// text that is not a uuid. Such an id cannot match any row.
func isMalformedID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == database.InvalidTextRepresentation
}

func (a *attendanceRepository) findOne(ctx context.Context, where string, args ...interface{}) (*attendance.Attendance, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		SELECT ` + attendanceColumns + `, u.name, u.email
		FROM attendances a
		LEFT JOIN users u ON u.id = a.user_id
		WHERE ` + where + `
		ORDER BY a.check_in_time DESC
		LIMIT 1
	`

	att, err := scanAttendance(q.QueryRow(ctx, query, args...), true)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isMalformedID(err) {
			return nil, nil
		}
		return nil, err
	}
	return &att, nil
}

// FindOpenByUser implements attendance.AttendanceRepository.
func (a *attendanceRepository) FindOpenByUser(ctx context.Context, userID string) (*attendance.Attendance, error) {
	att, err := a.findOne(ctx, "a.user_id = $1 AND a.check_out_time IS NULL", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find open attendance: %w", err)
	}
	return att, nil
}

// FindByUserAndDate implements attendance.AttendanceRepository.
func (a *attendanceRepository) FindByUserAndDate(ctx context.Context, userID string, day time.Time) (*attendance.Attendance, error) {
	att, err := a.findOne(ctx, "a.user_id = $1 AND a.date = $2", userID, timeutil.FormatDate(day))
	if err != nil {
		return nil, fmt.Errorf("failed to find attendance by user and date: %w", err)
	}
	return att, nil
}

// FindByID implements attendance.AttendanceRepository.
func (a *attendanceRepository) FindByID(ctx context.Context, id string) (*attendance.Attendance, error) {
	att, err := a.findOne(ctx, "a.id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("failed to find attendance by ID: %w", err)
	}
	return att, nil
}

// CreateCheckIn implements attendance.AttendanceRepository.
func (a *attendanceRepository) CreateCheckIn(ctx context.Context, userID string, day time.Time, at time.Time, photo string) (attendance.Attendance, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		INSERT INTO attendances AS a (user_id, date, check_in_time, check_in_photo)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + attendanceColumns

	att, err := scanAttendance(q.QueryRow(ctx, query, userID, timeutil.FormatDate(day), at, photo), false)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == database.UniqueViolation && pgErr.ConstraintName == database.AttendanceUserDateKey {
			return attendance.Attendance{}, attendance.ErrConflict
		}
		return attendance.Attendance{}, fmt.Errorf("failed to create attendance: %w", err)
	}

	return att, nil
}

// CompleteCheckOut implements attendance.AttendanceRepository.
func (a *attendanceRepository) CompleteCheckOut(ctx context.Context, id string, at time.Time, photo string) (attendance.Attendance, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		UPDATE attendances AS a
		SET check_out_time = $2, check_out_photo = $3, updated_at = NOW()
		WHERE a.id = $1 AND a.check_out_time IS NULL
		RETURNING ` + attendanceColumns

	att, err := scanAttendance(q.QueryRow(ctx, query, id, at, photo), false)
	if err == nil {
		return att, nil
	}
	if isMalformedID(err) {
		return attendance.Attendance{}, attendance.ErrAttendanceNotFound
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return attendance.Attendance{}, fmt.Errorf("failed to complete attendance: %w", err)
	}

	// No row updated: either the record is gone or someone else checked out first
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM attendances WHERE id = $1)`, id).Scan(&exists); err != nil {
		return attendance.Attendance{}, fmt.Errorf("failed to check attendance existence: %w", err)
	}
	if !exists {
		return attendance.Attendance{}, attendance.ErrAttendanceNotFound
	}
	return attendance.Attendance{}, attendance.ErrAlreadyComplete
}

// buildFilter appends filter conditions to where/args
func buildFilter(filter attendance.AttendanceFilter, where []string, args []interface{}) ([]string, []interface{}) {
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if filter.UserID != nil && *filter.UserID != "" {
		add("a.user_id = $%d", *filter.UserID)
	}
	if filter.Date != nil && *filter.Date != "" {
		add("a.date = $%d", *filter.Date)
	}
	if filter.StartDate != nil && *filter.StartDate != "" {
		add("a.date >= $%d", *filter.StartDate)
	}
	if filter.EndDate != nil && *filter.EndDate != "" {
		add("a.date <= $%d", *filter.EndDate)
	}
	if filter.Status != nil {
		switch *filter.Status {
		case attendance.StatusOpen:
			where = append(where, "a.check_out_time IS NULL")
		case attendance.StatusComplete:
			where = append(where, "a.check_out_time IS NOT NULL")
		}
	}

	return where, args
}

func (a *attendanceRepository) list(ctx context.Context, filter attendance.AttendanceFilter) ([]attendance.Attendance, int64, error) {
	q := GetQuerier(ctx, a.db)

	where, args := buildFilter(filter, []string{"TRUE"}, nil)
	whereClause := strings.Join(where, " AND ")

	// Count total
	countQuery := "SELECT COUNT(*) FROM attendances a WHERE " + whereClause
	var total int64
	if err := q.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count attendances: %w", err)
	}

	sortOrder := "DESC"
	if strings.ToLower(filter.SortOrder) == "asc" {
		sortOrder = "ASC"
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	selectQuery := fmt.Sprintf(`
		SELECT %s, u.name, u.email
		FROM attendances a
		LEFT JOIN users u ON u.id = a.user_id
		WHERE %s
		ORDER BY a.date %s, a.check_in_time %s
		LIMIT $%d OFFSET $%d
	`, attendanceColumns, whereClause, sortOrder, sortOrder, len(args)+1, len(args)+2)
	args = append(args, limit, filter.Offset())

	rows, err := q.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query attendances: %w", err)
	}
	defer rows.Close()

	attendances := make([]attendance.Attendance, 0)
	for rows.Next() {
		att, err := scanAttendance(rows, true)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan attendance: %w", err)
		}
		attendances = append(attendances, att)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate attendances: %w", err)
	}

	return attendances, total, nil
}

// ListByUser implements attendance.AttendanceRepository.
func (a *attendanceRepository) ListByUser(ctx context.Context, userID string, filter attendance.AttendanceFilter) ([]attendance.Attendance, int64, error) {
	filter.UserID = &userID
	return a.list(ctx, filter)
}

// List implements attendance.AttendanceRepository.
func (a *attendanceRepository) List(ctx context.Context, filter attendance.AttendanceFilter) ([]attendance.Attendance, int64, error) {
	return a.list(ctx, filter)
}

// ListOpenBefore implements attendance.AttendanceRepository.
func (a *attendanceRepository) ListOpenBefore(ctx context.Context, day time.Time) ([]attendance.Attendance, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		SELECT ` + attendanceColumns + `, u.name, u.email
		FROM attendances a
		LEFT JOIN users u ON u.id = a.user_id
		WHERE a.check_out_time IS NULL AND a.date < $1
		ORDER BY a.date ASC
	`

	rows, err := q.Query(ctx, query, timeutil.FormatDate(day))
	if err != nil {
		return nil, fmt.Errorf("failed to query open attendances: %w", err)
	}
	defer rows.Close()

	var open []attendance.Attendance
	for rows.Next() {
		att, err := scanAttendance(rows, true)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		open = append(open, att)
	}
	return open, rows.Err()
}

// Delete implements attendance.AttendanceRepository.
func (a *attendanceRepository) Delete(ctx context.Context, id string) error {
	q := GetQuerier(ctx, a.db)

	tag, err := q.Exec(ctx, `DELETE FROM attendances WHERE id = $1`, id)
	if err != nil {
		if isMalformedID(err) {
			return attendance.ErrAttendanceNotFound
		}
		return fmt.Errorf("failed to delete attendance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return attendance.ErrAttendanceNotFound
	}
	return nil
}

func NewAttendanceRepository(db *database.DB) attendance.AttendanceRepository {
	return &attendanceRepository{db: db}
}
