package cachestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/artpar/modelkit/ports"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
)

var _ ports.CacheStore = (*Postgres)(nil)

// Postgres keeps entries in a Postgres table, shared across hosts.
type Postgres struct {
	*sqlStore
}

// OpenPostgres connects to url and prepares the cache table.
func OpenPostgres(ctx context.Context, url string, c ports.Clock) (*Postgres, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	t := DefaultTable
	d := dialect{
		name: "postgres",
		create: `CREATE TABLE IF NOT EXISTS ` + t + ` (
			key TEXT PRIMARY KEY,
			value BYTEA NOT NULL,
			expires_at BIGINT NOT NULL DEFAULT 0
		)`,
		get: `SELECT value, expires_at FROM ` + t + ` WHERE key = $1`,
		put: `INSERT INTO ` + t + ` (key, value, expires_at) VALUES ($1, $2, $3)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
		forget:      `DELETE FROM ` + t + ` WHERE key = $1`,
		flush:       `DELETE FROM ` + t,
		flushPrefix: `DELETE FROM ` + t + ` WHERE left(key, char_length($1::text)) = $1::text`,
		purge:       `DELETE FROM ` + t + ` WHERE expires_at <> 0 AND expires_at <= $1`,
	}
	store := newSQLStore(db, d, c)
	if err := store.createTable(ctx); err != nil && !concurrentCreate(err) {
		_ = db.Close()
		return nil, err
	}
	return &Postgres{sqlStore: store}, nil
}

// concurrentCreate reports whether CREATE TABLE IF NOT EXISTS lost a race
// against another process creating the same table.
func concurrentCreate(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	// 42P07 duplicate_table, 23505 unique_violation on pg_type.
	return pgErr.Code == "42P07" || pgErr.Code == "23505"
}
