package mariadb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// StudentRepository stores students with their embeddings serialized as a JSON
// list-of-lists ([[e1, ..., eN], ...]) in a MEDIUMBLOB column.
type StudentRepository struct {
	pool *Pool
}

// NewStudentRepository creates a new MariaDB student repository.
func NewStudentRepository(pool *Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

// Get retrieves a student by ID. Returns nil if not found.
func (r *StudentRepository) Get(ctx context.Context, studentID string) (*database.StudentProfile, error) {
	row := r.pool.db.QueryRowContext(ctx,
		`SELECT student_id, name, embeddings_json, created_at FROM students WHERE student_id = ?`, studentID)

	profile, err := scanStudent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("query student", err)
	}
	return &profile, nil
}

// ListAll returns every student in registration order.
func (r *StudentRepository) ListAll(ctx context.Context) ([]database.StudentProfile, error) {
	rows, err := r.pool.db.QueryContext(ctx,
		`SELECT student_id, name, embeddings_json, created_at FROM students ORDER BY seq`)
	if err != nil {
		return nil, wrapErr("query students", err)
	}
	defer rows.Close()

	var profiles []database.StudentProfile
	for rows.Next() {
		profile, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate students", err)
	}
	return profiles, nil
}

// Count returns the number of registered students.
func (r *StudentRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM students").Scan(&count); err != nil {
		return 0, wrapErr("count students", err)
	}
	return count, nil
}

// Put stores a new student.
func (r *StudentRepository) Put(ctx context.Context, profile database.StudentProfile) error {
	data, err := json.Marshal(profile.Embeddings)
	if err != nil {
		return fmt.Errorf("marshal embeddings: %w", err)
	}

	_, err = r.pool.db.ExecContext(ctx,
		`INSERT INTO students (student_id, name, embeddings_json, created_at) VALUES (?, ?, ?, ?)`,
		profile.StudentID, profile.Name, data, profile.CreatedAt.UTC(),
	)
	if err != nil {
		if isDuplicateEntry(err) {
			return fmt.Errorf("student %s: %w", profile.StudentID, database.ErrDuplicateStudent)
		}
		return wrapErr("insert student", err)
	}
	return nil
}

// Delete removes a student. Attendance rows are kept.
func (r *StudentRepository) Delete(ctx context.Context, studentID string) (bool, error) {
	result, err := r.pool.db.ExecContext(ctx, `DELETE FROM students WHERE student_id = ?`, studentID)
	if err != nil {
		return false, wrapErr("delete student", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func scanStudent(scanner interface{ Scan(...any) error }) (database.StudentProfile, error) {
	var profile database.StudentProfile
	var data []byte
	if err := scanner.Scan(&profile.StudentID, &profile.Name, &data, &profile.CreatedAt); err != nil {
		return profile, err //nolint:wrapcheck // callers distinguish sql.ErrNoRows
	}
	if err := json.Unmarshal(data, &profile.Embeddings); err != nil {
		return profile, fmt.Errorf("unmarshal embeddings of %s: %w", profile.StudentID, err)
	}
	return profile, nil
}
