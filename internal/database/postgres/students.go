package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/pgvector/pgvector-go"
)

// StudentRepository provides PostgreSQL-backed roster storage. Embeddings live
// in student_embeddings as pgvector values, one row per enrollment photo.
type StudentRepository struct {
	pool *Pool
}

// NewStudentRepository creates a new PostgreSQL student repository.
func NewStudentRepository(pool *Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

const studentColumns = `s.student_id, s.name, s.created_at, e.embedding`

// Get retrieves a student with its embeddings. Returns nil if not found.
func (r *StudentRepository) Get(ctx context.Context, studentID string) (*database.StudentProfile, error) {
	query := `
		SELECT ` + studentColumns + `
		FROM students s
		LEFT JOIN student_embeddings e ON e.student_id = s.student_id
		WHERE s.student_id = $1
		ORDER BY e.position
	`

	rows, err := r.pool.db.QueryContext(ctx, query, studentID)
	if err != nil {
		return nil, wrapErr("query student", err)
	}
	defer rows.Close()

	profiles, err := scanProfiles(rows)
	if err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, nil
	}
	return &profiles[0], nil
}

// ListAll returns every student in registration order.
func (r *StudentRepository) ListAll(ctx context.Context) ([]database.StudentProfile, error) {
	query := `
		SELECT ` + studentColumns + `
		FROM students s
		LEFT JOIN student_embeddings e ON e.student_id = s.student_id
		ORDER BY s.seq, e.position
	`

	rows, err := r.pool.db.QueryContext(ctx, query)
	if err != nil {
		return nil, wrapErr("query students", err)
	}
	defer rows.Close()

	return scanProfiles(rows)
}

// Count returns the number of registered students.
func (r *StudentRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM students").Scan(&count); err != nil {
		return 0, wrapErr("count students", err)
	}
	return count, nil
}

// Put stores a student and its embeddings in one transaction.
func (r *StudentRepository) Put(ctx context.Context, profile database.StudentProfile) error {
	tx, err := r.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr("begin transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx,
		`INSERT INTO students (student_id, name, created_at) VALUES ($1, $2, $3)`,
		profile.StudentID, profile.Name, profile.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("student %s: %w", profile.StudentID, database.ErrDuplicateStudent)
		}
		return wrapErr("insert student", err)
	}

	for i, emb := range profile.Embeddings {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO student_embeddings (student_id, position, embedding) VALUES ($1, $2, $3::vector)`,
			profile.StudentID, i, pgvector.NewVector(emb),
		)
		if err != nil {
			return wrapErr(fmt.Sprintf("insert embedding %d", i), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return wrapErr("commit transaction", err)
	}
	return nil
}

// Delete removes a student. Embeddings go with it (ON DELETE CASCADE), attendance stays.
func (r *StudentRepository) Delete(ctx context.Context, studentID string) (bool, error) {
	result, err := r.pool.db.ExecContext(ctx, `DELETE FROM students WHERE student_id = $1`, studentID)
	if err != nil {
		return false, wrapErr("delete student", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// scanProfiles folds joined student/embedding rows into profiles. Rows must be
// ordered so that all rows of one student are adjacent.
func scanProfiles(rows *sql.Rows) ([]database.StudentProfile, error) {
	var profiles []database.StudentProfile
	for rows.Next() {
		var p database.StudentProfile
		var vec sql.Null[pgvector.Vector]
		if err := rows.Scan(&p.StudentID, &p.Name, &p.CreatedAt, &vec); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}

		if n := len(profiles); n == 0 || profiles[n-1].StudentID != p.StudentID {
			profiles = append(profiles, p)
		}
		if vec.Valid {
			last := &profiles[len(profiles)-1]
			last.Embeddings = append(last.Embeddings, vec.V.Slice())
		}
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate students", err)
	}
	return profiles, nil
}
