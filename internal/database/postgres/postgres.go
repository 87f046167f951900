package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/lib/pq"
	log "github.com/sirupsen/logrus"
)

// BackendName is the name the backend registers under.
const BackendName = "postgres"

// Pool is a PostgreSQL connection pool shared by the repositories.
type Pool struct {
	db *sql.DB
}

// NewPool connects to cfg.URL through lib/pq.
func NewPool(cfg *config.DatabaseConfig) (*Pool, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, errors.New("PostgreSQL URL is required")
	}
	db, err := database.OpenSQL(context.Background(), "postgres", cfg.URL, cfg.MaxOpenConns, cfg.MaxIdleConns)
	if err != nil {
		return nil, err
	}
	return &Pool{db: db}, nil
}

// Ping reports whether the server still answers.
func (p *Pool) Ping(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return wrapErr("ping", err)
	}
	return nil
}

// Close releases every connection.
func (p *Pool) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	if err := p.db.Close(); err != nil {
		return fmt.Errorf("close PostgreSQL pool: %w", err)
	}
	return nil
}

// Initialize connects, applies pending migrations and registers PostgreSQL as
// the active storage backend.
func Initialize(cfg *config.DatabaseConfig) (*Pool, error) {
	pool, err := NewPool(cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Migrate(context.Background()); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("migrate PostgreSQL: %w", err)
	}
	Register(pool)
	return pool, nil
}

// Register makes pool the active storage backend.
func Register(pool *Pool) {
	database.RegisterBackend(BackendName,
		func() database.RosterWriter { return NewStudentRepository(pool) },
		func() database.AttendanceWriter { return NewAttendanceRepository(pool) },
	)
}

// SQLSTATE unique_violation.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// wrapErr annotates err with op. Server-side SQL errors and sql.ErrNoRows are
// kept as they are; anything else (refused or dropped connections, deadlines)
// is marked as database.ErrStoreUnavailable.
func wrapErr(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) || errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, err)
	}
	log.WithError(err).WithField("op", op).Warn("PostgreSQL unavailable")
	return fmt.Errorf("%s: %w: %w", op, database.ErrStoreUnavailable, err)
}
