package cachestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/artpar/modelkit/ports"
)

// ErrUnknownDriver is returned by Open for an unsupported driver name.
var ErrUnknownDriver = errors.New("unknown cache driver")

// Drivers lists the names Open accepts.
var Drivers = []string{"memory", "sqlite", "postgres"}

// Open returns the store named by driver. dsn is a file path for sqlite and
// a connection URL for postgres; memory ignores it. An empty driver means
// memory.
func Open(ctx context.Context, driver, dsn string, c ports.Clock) (ports.CacheStore, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "memory":
		return NewMemory(c), nil
	case "sqlite", "sqlite3":
		if dsn == "" {
			return nil, fmt.Errorf("sqlite cache: dsn (database path) is required")
		}
		return OpenSQLite(ctx, dsn, c)
	case "postgres", "postgresql", "pgx":
		if dsn == "" {
			return nil, fmt.Errorf("postgres cache: dsn (connection url) is required")
		}
		return OpenPostgres(ctx, dsn, c)
	default:
		return nil, fmt.Errorf("%w: %q (want one of %s)", ErrUnknownDriver, driver, strings.Join(Drivers, ", "))
	}
}
