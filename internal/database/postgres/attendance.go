package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// AttendanceRepository provides PostgreSQL-backed attendance storage. The
// (student_id, shift, day) unique constraint is the final guard against
// concurrent duplicate check-ins.
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new PostgreSQL attendance repository.
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

const attendanceColumns = `id, student_id, ts, day, shift, status`

// Find returns the event of studentID in shift with a timestamp in [from, to).
func (r *AttendanceRepository) Find(
	ctx context.Context, studentID, shift string, from, to time.Time,
) (*database.AttendanceEvent, error) {
	query := `
		SELECT ` + attendanceColumns + `
		FROM attendance
		WHERE student_id = $1 AND shift = $2 AND ts >= $3 AND ts < $4
		ORDER BY ts
		LIMIT 1
	`

	event, err := scanEvent(r.pool.db.QueryRowContext(ctx, query, studentID, shift, from, to))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("find attendance", err)
	}
	return &event, nil
}

// ListAll returns every event, newest first.
func (r *AttendanceRepository) ListAll(ctx context.Context) ([]database.AttendanceEvent, error) {
	rows, err := r.pool.db.QueryContext(ctx, `SELECT `+attendanceColumns+` FROM attendance ORDER BY ts DESC, id`)
	if err != nil {
		return nil, wrapErr("query attendance", err)
	}
	defer rows.Close()

	var events []database.AttendanceEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate attendance", err)
	}
	return events, nil
}

// Count returns the number of recorded events.
func (r *AttendanceRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM attendance").Scan(&count); err != nil {
		return 0, wrapErr("count attendance", err)
	}
	return count, nil
}

// CountBetween returns the number of events with a timestamp in [from, to).
func (r *AttendanceRepository) CountBetween(ctx context.Context, from, to time.Time) (int, error) {
	var count int
	err := r.pool.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM attendance WHERE ts >= $1 AND ts < $2", from, to).Scan(&count)
	if err != nil {
		return 0, wrapErr("count attendance window", err)
	}
	return count, nil
}

// Append inserts an event. A conflicting (student, shift, day) row leaves the
// table untouched and yields database.ErrDuplicateCheckIn.
func (r *AttendanceRepository) Append(ctx context.Context, event database.AttendanceEvent) (string, error) {
	query := `
		INSERT INTO attendance (id, student_id, ts, day, shift, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (student_id, shift, day) DO NOTHING
		RETURNING id
	`

	var id string
	err := r.pool.db.QueryRowContext(ctx, query,
		event.ID, event.StudentID, event.Timestamp, event.Day, event.Shift, event.Status,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("student %s shift %s on %s: %w",
			event.StudentID, event.Shift, event.Day, database.ErrDuplicateCheckIn)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("attendance %s: %w", event.ID, database.ErrDuplicateCheckIn)
		}
		return "", wrapErr("insert attendance", err)
	}
	return id, nil
}

// Delete removes an event by ID.
func (r *AttendanceRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.pool.db.ExecContext(ctx, `DELETE FROM attendance WHERE id::text = $1`, id)
	if err != nil {
		return false, wrapErr("delete attendance", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func scanEvent(scanner interface{ Scan(...any) error }) (database.AttendanceEvent, error) {
	var event database.AttendanceEvent
	var day time.Time
	if err := scanner.Scan(&event.ID, &event.StudentID, &event.Timestamp, &day, &event.Shift, &event.Status); err != nil {
		return event, err //nolint:wrapcheck // callers distinguish sql.ErrNoRows
	}
	event.Day = day.Format(database.DayLayout)
	return event, nil
}
