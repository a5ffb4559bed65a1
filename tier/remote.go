package tier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RemoteConfig holds the connection and timeout settings for the Remote
// tier. Every operation runs under its own bounded timeout so a hung
// backend can never block a caller past that budget.
type RemoteConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int

	// ReadTimeout bounds Get and each ScanPrefix page (default 250ms).
	ReadTimeout time.Duration
	// WriteTimeout bounds Set and Delete (default 500ms).
	WriteTimeout time.Duration
	// ProbeTimeout bounds Probe (default 1s). Probes run off the hot path,
	// so they get a wider budget than reads.
	ProbeTimeout time.Duration

	// ScanPageSize is the COUNT hint per SCAN page (default 100).
	ScanPageSize int64
	// ScanPagesPerSecond rate-limits SCAN paging so pattern invalidation
	// cannot monopolize the backend (default 50, burst 1 page).
	ScanPagesPerSecond float64
}

func (c *RemoteConfig) withDefaults() RemoteConfig {
	out := *c
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = 250 * time.Millisecond
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = 500 * time.Millisecond
	}
	if out.ProbeTimeout <= 0 {
		out.ProbeTimeout = time.Second
	}
	if out.ScanPageSize <= 0 {
		out.ScanPageSize = 100
	}
	if out.ScanPagesPerSecond <= 0 {
		out.ScanPagesPerSecond = 50
	}
	return out
}

// Remote is the distributed tier, backed by Redis. Misses and backend
// failures both surface as (Entry{}, false, err); the error exists for
// logging, metrics, and health tracking, not for the caller's control flow.
type Remote struct {
	rdb         *redis.Client
	cfg         RemoteConfig
	scanLimiter *rate.Limiter
}

// NewRemote connects to the backing store and verifies it with a PING.
// A failed PING is the one fatal error this tier produces; once
// constructed it only degrades, never crashes.
func NewRemote(cfg RemoteConfig) (*Remote, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("remote tier: address is required")
	}
	cfg = cfg.withDefaults()

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("remote tier: ping %s: %w", cfg.Addr, err)
	}

	return &Remote{
		rdb:         rdb,
		cfg:         cfg,
		scanLimiter: rate.NewLimiter(rate.Limit(cfg.ScanPagesPerSecond), 1),
	}, nil
}

// Name returns "remote".
func (r *Remote) Name() string { return "remote" }

// Get retrieves an entry. A redis miss and a decode failure are both
// misses; only backend errors are reported.
func (r *Remote) Get(ctx context.Context, key string) (Entry, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	b, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("remote get: %w", err)
	}
	e, err := decodeEntry(b)
	if err != nil {
		// Unreadable bytes are as good as absent. Drop them so the next
		// write starts clean.
		_ = r.rdb.Del(ctx, key).Err()
		return Entry{}, false, nil
	}
	return e, true, nil
}

// Set stores an entry, mirroring its remaining TTL as redis-native expiry.
// Entries already stale at write time are not stored.
func (r *Remote) Set(ctx context.Context, key string, e Entry) error {
	now := time.Now()
	if e.Expired(now) {
		return nil
	}
	var native time.Duration
	if !e.ExpiresAt.IsZero() {
		native = e.ExpiresAt.Sub(now)
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if err := r.rdb.Set(ctx, key, encodeEntry(e), native).Err(); err != nil {
		return fmt.Errorf("remote set: %w", err)
	}
	return nil
}

// Delete removes a key. Deleting a missing key is a no-op.
func (r *Remote) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("remote delete: %w", err)
	}
	return nil
}

// ScanPrefix enumerates keys under prefix with SCAN, rate-limiting page
// fetches. Each page runs under its own read timeout; the scan as a whole
// is bounded only by ctx.
func (r *Remote) ScanPrefix(ctx context.Context, prefix string) ([]string, error) {
	match := escapeMatch(prefix) + "*"
	var (
		keys   []string
		cursor uint64
	)
	for {
		if err := r.scanLimiter.Wait(ctx); err != nil {
			return keys, fmt.Errorf("remote scan: %w", err)
		}
		pageCtx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
		page, next, err := r.rdb.Scan(pageCtx, cursor, match, r.cfg.ScanPageSize).Result()
		cancel()
		if err != nil {
			return keys, fmt.Errorf("remote scan: %w", err)
		}
		keys = append(keys, page...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

// Probe checks backend liveness with a PING under the probe timeout.
func (r *Remote) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ProbeTimeout)
	defer cancel()
	return r.rdb.Ping(ctx).Err()
}

// Close releases the redis client.
func (r *Remote) Close() error { return r.rdb.Close() }

// escapeMatch escapes redis glob metacharacters so a literal prefix cannot
// be misread as a pattern.
func escapeMatch(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch c {
		case '*', '?', '[', ']', '^', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}
