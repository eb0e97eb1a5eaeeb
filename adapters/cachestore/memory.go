// Package cachestore provides ports.CacheStore implementations: an
// in-process map, SQLite and Postgres.
package cachestore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/artpar/modelkit/adapters/clock"
	"github.com/artpar/modelkit/ports"
)

var _ ports.CacheStore = (*Memory)(nil)

// Memory keeps entries in a map. Suitable for a single process; entries are
// lost on exit.
type Memory struct {
	mu    sync.RWMutex
	data  map[string]memoryEntry
	clock ports.Clock
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// NewMemory creates an empty store. A nil clock uses the system time.
func NewMemory(c ports.Clock) *Memory {
	if c == nil {
		c = clock.Real{}
	}
	return &Memory{data: make(map[string]memoryEntry), clock: c}
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	entry, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if entry.expired(m.clock.Now()) {
		m.mu.Lock()
		if cur, ok := m.data[key]; ok && cur.expired(m.clock.Now()) {
			delete(m.data, key)
		}
		m.mu.Unlock()
		return nil, false, nil
	}
	return append([]byte(nil), entry.value...), true, nil
}

func (m *Memory) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = m.clock.Now().Add(ttl)
	}
	m.mu.Lock()
	m.data[key] = entry
	m.mu.Unlock()
	return nil
}

func (m *Memory) Forget(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Flush(ctx context.Context) error {
	m.mu.Lock()
	m.data = make(map[string]memoryEntry)
	m.mu.Unlock()
	return nil
}

func (m *Memory) FlushPrefix(ctx context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.data {
		if strings.HasPrefix(key, prefix) {
			delete(m.data, key)
		}
	}
	return nil
}

// Len counts stored entries, expired ones included until they are read.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

func (m *Memory) Close() error { return nil }
