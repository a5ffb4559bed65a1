// Package tier defines the storage tier contract shared by the memory,
// remote, and client-persisted cache tiers, together with the entry
// envelope they all store. Tiers only ever see fully namespaced keys;
// domain handling is the coordinator's job.
package tier

import (
	"context"
	"time"
)

// Entry is the unit of storage. ExpiresAt is authoritative for staleness:
// a tier may hold the bytes past that instant, but readers must treat the
// entry as absent.
type Entry struct {
	Value     []byte
	StoredAt  time.Time
	ExpiresAt time.Time // zero means no expiry
}

// Expired reports whether the entry is stale at t.
func (e Entry) Expired(t time.Time) bool {
	return !e.ExpiresAt.IsZero() && !t.Before(e.ExpiresAt)
}

// TTL returns the remaining lifetime at t, or zero when the entry never
// expires. A negative result means the entry is already stale.
func (e Entry) TTL(t time.Time) time.Duration {
	if e.ExpiresAt.IsZero() {
		return 0
	}
	return e.ExpiresAt.Sub(t)
}

// Tier is the uniform contract implemented by the Memory, Remote, and
// Local (client-persisted) variants. All implementations are safe for
// concurrent use.
//
// A miss is a valid result, never an error: Get returns found=false with a
// nil error. A non-nil error means the tier itself failed (timeout,
// connection refused); the coordinator treats it as a miss for that tier
// and carries on.
type Tier interface {
	// Name identifies the tier in logs and metrics ("memory", "remote",
	// "client").
	Name() string

	// Get retrieves an entry by namespaced key.
	Get(ctx context.Context, key string) (Entry, bool, error)

	// Set stores an entry. Best-effort: a tier may reject a write (too
	// large, unavailable) with an error the coordinator treats as
	// non-fatal.
	Set(ctx context.Context, key string, e Entry) error

	// Delete removes an entry. Idempotent: deleting a missing key is nil.
	Delete(ctx context.Context, key string) error

	// ScanPrefix returns the namespaced keys currently stored under the
	// given prefix. Not transactional: keys added or removed mid-scan may
	// or may not appear.
	ScanPrefix(ctx context.Context, prefix string) ([]string, error)

	// Probe is a lightweight liveness check used by the health monitor.
	// Callers bound it with a timeout shorter than normal op timeouts.
	Probe(ctx context.Context) error

	// Close releases the tier's resources.
	Close() error
}
