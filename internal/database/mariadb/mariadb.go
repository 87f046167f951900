package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	log "github.com/sirupsen/logrus"
)

// URLPrefix marks a DATABASE_URL that selects this backend.
const URLPrefix = "mysql://"

// Pool manages a MariaDB connection pool.
type Pool struct {
	db *sql.DB
}

// IsMariaDBURL reports whether url selects the MariaDB backend.
func IsMariaDBURL(url string) bool {
	return strings.HasPrefix(url, URLPrefix)
}

// ParseDSN converts a mysql:// URL into a go-sql-driver DSN with time parsing enabled.
func ParseDSN(url string) (string, error) {
	cfg, err := mysql.ParseDSN(strings.TrimPrefix(url, URLPrefix))
	if err != nil {
		return "", fmt.Errorf("parse MariaDB DSN: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

// NewPool creates a new MariaDB connection pool.
func NewPool(cfg *config.DatabaseConfig) (*Pool, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, errors.New("MariaDB DSN is required")
	}

	dsn, err := ParseDSN(cfg.URL)
	if err != nil {
		return nil, err
	}

	db, err := database.OpenSQL(context.Background(), "mysql", dsn, cfg.MaxOpenConns, cfg.MaxIdleConns)
	if err != nil {
		return nil, err
	}
	return &Pool{db: db}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS students (
		seq BIGINT AUTO_INCREMENT UNIQUE,
		student_id VARCHAR(191) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		embeddings_json MEDIUMBLOB NOT NULL,
		created_at DATETIME(6) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS attendance (
		id CHAR(36) PRIMARY KEY,
		student_id VARCHAR(191) NOT NULL,
		ts DATETIME(6) NOT NULL,
		day DATE NOT NULL,
		shift VARCHAR(64) NOT NULL,
		status VARCHAR(32) NOT NULL DEFAULT 'Present',
		UNIQUE KEY attendance_student_shift_day (student_id, shift, day),
		KEY idx_attendance_ts (ts)
	)`,
}

// Ping verifies the connection is alive.
func (p *Pool) Ping(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return wrapErr("ping", err)
	}
	return nil
}

// Migrate creates the schema if it does not exist yet.
func (p *Pool) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	return nil
}

// Initialize connects, migrates and registers MariaDB as the active storage backend.
func Initialize(cfg *config.DatabaseConfig) (*Pool, error) {
	pool, err := NewPool(cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Migrate(context.Background()); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("failed to create MariaDB schema: %w", err)
	}
	Register(pool)
	return pool, nil
}

// Register makes pool the active storage backend.
func Register(pool *Pool) {
	database.RegisterBackend("mariadb",
		func() database.RosterWriter { return NewStudentRepository(pool) },
		func() database.AttendanceWriter { return NewAttendanceRepository(pool) },
	)
}

// duplicateEntry is the MySQL/MariaDB error number for ER_DUP_ENTRY.
const duplicateEntry = 1062

func isDuplicateEntry(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == duplicateEntry
}

// wrapErr annotates err with op and marks non-SQL failures as database.ErrStoreUnavailable.
func wrapErr(op string, err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) || errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, err)
	}
	log.WithError(err).WithField("op", op).Warn("MariaDB unavailable")
	return fmt.Errorf("%s: %w: %w", op, database.ErrStoreUnavailable, err)
}
