package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// AttendanceRepository provides MariaDB-backed attendance storage.
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new MariaDB attendance repository.
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

const attendanceColumns = `id, student_id, ts, day, shift, status`

// Find returns the event of studentID in shift with a timestamp in [from, to).
func (r *AttendanceRepository) Find(
	ctx context.Context, studentID, shift string, from, to time.Time,
) (*database.AttendanceEvent, error) {
	row := r.pool.db.QueryRowContext(ctx, `
		SELECT `+attendanceColumns+`
		FROM attendance
		WHERE student_id = ? AND shift = ? AND ts >= ? AND ts < ?
		ORDER BY ts
		LIMIT 1
	`, studentID, shift, from.UTC(), to.UTC())

	event, err := scanEvent(row)
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
	row := r.pool.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM attendance WHERE ts >= ? AND ts < ?", from.UTC(), to.UTC())
	if err := row.Scan(&count); err != nil {
		return 0, wrapErr("count attendance window", err)
	}
	return count, nil
}

// Append inserts an event. The unique key turns a concurrent duplicate into
// database.ErrDuplicateCheckIn.
func (r *AttendanceRepository) Append(ctx context.Context, event database.AttendanceEvent) (string, error) {
	_, err := r.pool.db.ExecContext(ctx,
		`INSERT INTO attendance (`+attendanceColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		event.ID, event.StudentID, event.Timestamp.UTC(), event.Day, event.Shift, event.Status,
	)
	if err != nil {
		if isDuplicateEntry(err) {
			return "", fmt.Errorf("student %s shift %s on %s: %w",
				event.StudentID, event.Shift, event.Day, database.ErrDuplicateCheckIn)
		}
		return "", wrapErr("insert attendance", err)
	}
	return event.ID, nil
}

// Delete removes an event by ID.
func (r *AttendanceRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.pool.db.ExecContext(ctx, `DELETE FROM attendance WHERE id = ?`, id)
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
