package cachestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/artpar/modelkit/adapters/clock"
	"github.com/artpar/modelkit/ports"
)

// DefaultTable holds cache entries in SQL stores.
const DefaultTable = "modelkit_cache"

// dialect holds the statements that differ between SQL backends.
// flushPrefix takes the prefix as its only parameter.
type dialect struct {
	name        string
	create      string
	get         string
	put         string
	forget      string
	flush       string
	flushPrefix string
	purge       string
}

// sqlStore is a CacheStore over database/sql. Expiry is stored as unix
// nanoseconds, 0 meaning never.
type sqlStore struct {
	db    *sql.DB
	d     dialect
	clock ports.Clock
}

func newSQLStore(db *sql.DB, d dialect, c ports.Clock) *sqlStore {
	if c == nil {
		c = clock.Real{}
	}
	return &sqlStore{db: db, d: d, clock: c}
}

func (s *sqlStore) createTable(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.d.create); err != nil {
		return fmt.Errorf("create cache table: %w", err)
	}
	return nil
}

func (s *sqlStore) Name() string { return s.d.name }

func (s *sqlStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	var expiresAt int64
	err := s.db.QueryRowContext(ctx, s.d.get, key).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cache entry: %w", err)
	}
	if expiresAt != 0 && s.clock.Now().UnixNano() >= expiresAt {
		return nil, false, nil
	}
	return value, true, nil
}

func (s *sqlStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt int64
	if ttl > 0 {
		expiresAt = s.clock.Now().Add(ttl).UnixNano()
	}
	if _, err := s.db.ExecContext(ctx, s.d.put, key, value, expiresAt); err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}

func (s *sqlStore) Forget(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.d.forget, key); err != nil {
		return fmt.Errorf("forget cache entry: %w", err)
	}
	return nil
}

func (s *sqlStore) Flush(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.d.flush); err != nil {
		return fmt.Errorf("flush cache: %w", err)
	}
	return nil
}

func (s *sqlStore) FlushPrefix(ctx context.Context, prefix string) error {
	if _, err := s.db.ExecContext(ctx, s.d.flushPrefix, prefix); err != nil {
		return fmt.Errorf("flush cache prefix %q: %w", prefix, err)
	}
	return nil
}

// Purge deletes expired entries and returns how many were removed.
func (s *sqlStore) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.d.purge, s.clock.Now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	return res.RowsAffected()
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
