package database

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
)

// OpenSQL opens a database/sql handle for driver, applies the pool limits
// (zero selects the defaults) and waits up to ConnectTimeout for the server
// to answer. An unreachable server is reported as ErrStoreUnavailable.
func OpenSQL(ctx context.Context, driver, dsn string, maxOpen, maxIdle int) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	db.SetMaxOpenConns(cmp.Or(maxOpen, DefaultMaxOpenConns))
	db.SetMaxIdleConns(cmp.Or(maxIdle, DefaultMaxIdleConns))
	db.SetConnMaxLifetime(ConnMaxLifetime)
	db.SetConnMaxIdleTime(ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(ctx, ConnectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w: %w", driver, ErrStoreUnavailable, err)
	}
	return db, nil
}
