// Package ports defines interfaces (contracts) between layers.
// Implementations live in adapters/.
package ports

import (
	"context"
	"time"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// CacheStore persists opaque cache entries.
//
// A missing or expired key is reported as (nil, false, nil). Errors are
// reserved for a store that cannot be reached. All operations are
// idempotent: forgetting a missing key or flushing an empty store succeeds.
type CacheStore interface {
	// Name identifies the backend in logs ("memory", "sqlite", "postgres").
	Name() string

	// Get returns the stored value for key.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Put stores value under key. A ttl <= 0 never expires.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Forget removes key.
	Forget(ctx context.Context, key string) error

	// Flush removes every entry.
	Flush(ctx context.Context) error

	// FlushPrefix removes the entries whose key starts with prefix. The
	// comparison is exact and case-sensitive.
	FlushPrefix(ctx context.Context, prefix string) error

	// Close releases the backend.
	Close() error
}
