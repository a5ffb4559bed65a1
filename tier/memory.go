package tier

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Memory is the in-process tier: fastest, bounded by entry count with
// least-recently-used eviction, never unhealthy. Long TTLs are clamped to
// a cap so long-lived domains cannot pin memory indefinitely.
type Memory struct {
	lru    *lru.Cache[string, Entry]
	ttlCap time.Duration

	nowFunc func() time.Time // for testing; defaults to time.Now
}

// NewMemory creates a Memory tier holding at most maxEntries entries.
// ttlCap bounds how long any entry may live in this tier; zero disables
// the clamp.
func NewMemory(maxEntries int, ttlCap time.Duration) (*Memory, error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("memory tier: maxEntries must be positive, got %d", maxEntries)
	}
	if ttlCap < 0 {
		return nil, fmt.Errorf("memory tier: ttlCap cannot be negative")
	}
	c, err := lru.New[string, Entry](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("memory tier: %w", err)
	}
	return &Memory{lru: c, ttlCap: ttlCap, nowFunc: time.Now}, nil
}

// Name returns "memory".
func (m *Memory) Name() string { return "memory" }

// Get retrieves an entry. Expired entries are dropped lazily on read.
func (m *Memory) Get(_ context.Context, key string) (Entry, bool, error) {
	e, ok := m.lru.Get(key)
	if !ok {
		return Entry{}, false, nil
	}
	if e.Expired(m.now()) {
		m.lru.Remove(key)
		return Entry{}, false, nil
	}
	e.Value = bytes.Clone(e.Value)
	return e, true, nil
}

// Set stores an entry, clamping its expiry to the tier's TTL cap. The
// clamp only ever shortens a lifetime, never extends one. Entries already
// stale at write time are not stored.
func (m *Memory) Set(_ context.Context, key string, e Entry) error {
	now := m.now()
	if e.Expired(now) {
		return nil
	}
	if m.ttlCap > 0 {
		capAt := now.Add(m.ttlCap)
		if e.ExpiresAt.IsZero() || capAt.Before(e.ExpiresAt) {
			e.ExpiresAt = capAt
		}
	}
	e.Value = bytes.Clone(e.Value)
	m.lru.Add(key, e)
	return nil
}

// Delete removes an entry. Deleting a missing key is a no-op.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.lru.Remove(key)
	return nil
}

// ScanPrefix returns stored keys sharing the prefix. Recency order is not
// disturbed.
func (m *Memory) ScanPrefix(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	for _, k := range m.lru.Keys() {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Probe always succeeds: an in-process tier has no network failure mode.
func (m *Memory) Probe(context.Context) error { return nil }

// Close drops all entries.
func (m *Memory) Close() error {
	m.lru.Purge()
	return nil
}

// Len returns the number of stored entries, including any not yet lazily
// expired.
func (m *Memory) Len() int { return m.lru.Len() }

func (m *Memory) now() time.Time {
	if m.nowFunc != nil {
		return m.nowFunc()
	}
	return time.Now()
}
