package cache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

const (
	DefaultSize = 128
	DefaultTTL  = 5 * time.Minute
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process LRU store. Entries expire after their TTL and the
// least recently used entry is evicted once the size bound is reached.
type Memory struct {
	entries *lru.Cache
	ttl     time.Duration
	now     func() time.Time
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithMemoryClock overrides the time source used for expiry.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory creates a Memory store holding at most size entries.
func NewMemory(size int, ttl time.Duration, opts ...MemoryOption) (*Memory, error) {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	entries, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	m := &Memory{entries: entries, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	raw, ok := m.entries.Get(key)
	if !ok {
		return nil, false, nil
	}
	entry := raw.(memoryEntry)
	if !m.now().Before(entry.expiresAt) {
		m.entries.Remove(key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Set implements Store.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.ttl
	}
	m.entries.Add(key, memoryEntry{value: value, expiresAt: m.now().Add(ttl)})
	return nil
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.entries.Remove(key)
	return nil
}

// Len returns the number of entries, including expired ones not yet evicted.
func (m *Memory) Len() int { return m.entries.Len() }

// Close implements Store.
func (m *Memory) Close() error {
	m.entries.Purge()
	return nil
}
