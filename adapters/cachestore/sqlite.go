package cachestore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/artpar/modelkit/ports"
	_ "github.com/mattn/go-sqlite3"
)

var _ ports.CacheStore = (*SQLite)(nil)

// SQLite keeps entries in a SQLite database file, shared by every process
// that opens the same path.
type SQLite struct {
	*sqlStore
}

// OpenSQLite opens (or creates) the cache database at path.
func OpenSQLite(ctx context.Context, path string, c ports.Clock) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	t := DefaultTable
	// Prefixes are compared with substr: LIKE ignores case in SQLite and
	// treats % and _ in a prefix as wildcards.
	store := newSQLStore(db, dialect{
		name: "sqlite",
		create: `CREATE TABLE IF NOT EXISTS ` + t + ` (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			expires_at INTEGER NOT NULL DEFAULT 0
		)`,
		get: `SELECT value, expires_at FROM ` + t + ` WHERE key = ?`,
		put: `INSERT INTO ` + t + ` (key, value, expires_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		forget:      `DELETE FROM ` + t + ` WHERE key = ?`,
		flush:       `DELETE FROM ` + t,
		flushPrefix: `DELETE FROM ` + t + ` WHERE substr(key, 1, length(?1)) = ?1`,
		purge:       `DELETE FROM ` + t + ` WHERE expires_at != 0 AND expires_at <= ?`,
	}, c)
	if err := store.createTable(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{sqlStore: store}, nil
}
