package tiercache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/snapwords/tiercache/tier"
)

// Get walks the tiers in priority order and returns the first live entry.
// Unhealthy tiers are skipped outright, tier failures count as misses for
// that tier only, and entries past their expiry are treated as absent even
// when the tier still holds the bytes. A hit on a slower tier schedules a
// non-blocking write-back of every healthy faster tier with the remaining
// TTL.
//
// found=false means no tier has a live entry; recomputing from the origin
// and calling Set is the caller's job.
func (c *Coordinator) Get(ctx context.Context, domain, key string) (value []byte, found bool) {
	if c.closed.Load() {
		return nil, false
	}
	ctx, end := c.startSpan(ctx, "get", domain)
	defer end()

	nk := namespacedKey(domain, key)
	now := c.now()

	for i, t := range c.tiers {
		if c.skip(i) {
			continue
		}
		start := time.Now()
		e, ok, err := t.Get(ctx, nk)
		c.met.Observe(t.Name(), "get", time.Since(start))
		if err != nil {
			c.reportRemote(i, false)
			c.met.Miss(t.Name(), domain)
			c.log.Warn().Str("tier", t.Name()).Str("domain", domain).Str("key", key).
				Err(err).Msg("tier get failed")
			continue
		}
		c.reportRemote(i, true)
		if !ok {
			c.met.Miss(t.Name(), domain)
			continue
		}
		if e.Expired(now) {
			// Lazy expiry: the bytes are still there but the entry is gone.
			_ = t.Delete(ctx, nk)
			c.met.Miss(t.Name(), domain)
			continue
		}
		c.met.Hit(t.Name(), domain)
		if i > 0 {
			// Back-fill only the healthy faster tiers: an unhealthy remote
			// would make the write-back worker burn its write timeout per
			// task, starving memory back-fills for the whole outage.
			targets := make([]tier.Tier, 0, i)
			for j, ft := range c.tiers[:i] {
				if c.skip(j) {
					continue
				}
				targets = append(targets, ft)
			}
			if len(targets) > 0 {
				c.wb.enqueue(writebackTask{
					key:     nk,
					domain:  domain,
					entry:   e,
					targets: targets,
				})
			}
		}
		return e.Value, true
	}
	return nil, false
}

// Set writes the entry to every tier concurrently, skipping an unhealthy
// remote tier. A single tier failing is non-fatal — it is logged and
// metered — and only the aggregate "no tier took the write" case returns
// ErrSetFailed. A ttl of zero resolves through the domain's configured TTL.
func (c *Coordinator) Set(ctx context.Context, domain, key string, value []byte, ttl time.Duration) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if ttl < 0 {
		return ErrInvalidTTL
	}
	ctx, end := c.startSpan(ctx, "set", domain)
	defer end()

	nk := namespacedKey(domain, key)
	now := c.now()
	e := tier.Entry{
		Value:     bytes.Clone(value),
		StoredAt:  now,
		ExpiresAt: now.Add(c.resolveTTL(domain, ttl)),
	}

	errs := make([]error, len(c.tiers))
	attempted := 0
	var wg sync.WaitGroup
	for i, t := range c.tiers {
		if c.skip(i) {
			errs[i] = errTierSkipped
			continue
		}
		attempted++
		wg.Add(1)
		go func(i int, t tier.Tier) {
			defer wg.Done()
			start := time.Now()
			err := t.Set(ctx, nk, e)
			c.met.Observe(t.Name(), "set", time.Since(start))
			errs[i] = err
			c.reportRemote(i, err == nil)
			if err != nil {
				c.met.WriteFailure(t.Name(), domain)
				c.log.Warn().Str("tier", t.Name()).Str("domain", domain).Str("key", key).
					Err(err).Msg("tier set failed")
			}
		}(i, t)
	}
	wg.Wait()

	if attempted == 0 {
		return fmt.Errorf("%w: domain %q key %q (no healthy tier)", ErrSetFailed, domain, key)
	}
	for _, err := range errs {
		if err == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: domain %q key %q", ErrSetFailed, domain, key)
}

// errTierSkipped marks a tier bypassed for health, distinguishing it from
// a write that was attempted and failed.
var errTierSkipped = errors.New("tiercache: tier skipped")

// Delete removes the key from every tier, the unhealthy remote included —
// skipping it would let the entry resurrect when the tier recovers.
// Idempotent and always successful from the caller's point of view; tier
// failures are only logged and metered.
func (c *Coordinator) Delete(ctx context.Context, domain, key string) error {
	if c.closed.Load() {
		return ErrClosed
	}
	ctx, end := c.startSpan(ctx, "delete", domain)
	defer end()

	nk := namespacedKey(domain, key)
	for _, t := range c.tiers {
		start := time.Now()
		err := t.Delete(ctx, nk)
		c.met.Observe(t.Name(), "delete", time.Since(start))
		if err != nil {
			c.log.Warn().Str("tier", t.Name()).Str("domain", domain).Str("key", key).
				Err(err).Msg("tier delete failed")
		}
	}
	return nil
}

// InvalidatePattern removes every key in the domain sharing the given raw
// prefix, across all tiers, and returns the number of distinct keys
// removed. Like Delete, it attempts the remote tier even while it is
// marked unhealthy — skipping it would let the invalidated entries
// resurrect on recovery; the scan's own per-page timeout bounds the cost.
// Meant for coarse invalidation — remote prefix scans are expensive and
// page-rate-limited. An error is returned only when every tier's scan
// failed.
func (c *Coordinator) InvalidatePattern(ctx context.Context, domain, prefix string) (int, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}
	ctx, end := c.startSpan(ctx, "invalidate", domain)
	defer end()

	np := namespacedKey(domain, prefix)
	removed := make(map[string]struct{})
	var scanErrs []error

	for i, t := range c.tiers {
		keys, err := t.ScanPrefix(ctx, np)
		if err != nil {
			c.reportRemote(i, false)
			scanErrs = append(scanErrs, fmt.Errorf("%s: %w", t.Name(), err))
			c.log.Warn().Str("tier", t.Name()).Str("domain", domain).Str("prefix", prefix).
				Err(err).Msg("tier scan failed")
			continue
		}
		for _, k := range keys {
			if err := t.Delete(ctx, k); err != nil {
				c.log.Warn().Str("tier", t.Name()).Str("domain", domain).Str("key", k).
					Err(err).Msg("invalidation delete failed")
				continue
			}
			removed[k] = struct{}{}
		}
	}

	n := len(removed)
	c.met.Invalidated(domain, n)
	c.log.Info().Str("domain", domain).Str("prefix", prefix).Int("removed", n).
		Msg("pattern invalidation")

	if len(scanErrs) == len(c.tiers) {
		return n, errors.Join(scanErrs...)
	}
	return n, nil
}

// GetOrLoad returns the cached value for (domain, key), calling loader on
// a miss. Concurrent callers for the same key share a single loader call.
// The loaded value is stored best-effort: even a total Set failure does
// not fail the call, since the caller already has the recomputed value.
func (c *Coordinator) GetOrLoad(ctx context.Context, domain, key string, ttl time.Duration, loader func(context.Context) ([]byte, error)) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if v, ok := c.Get(ctx, domain, key); ok {
		return v, nil
	}

	nk := namespacedKey(domain, key)
	v, err, _ := c.sfg.Do(nk, func() (any, error) {
		// Re-check: another flight may have populated the cache.
		if v, ok := c.Get(ctx, domain, key); ok {
			return v, nil
		}
		b, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.Set(ctx, domain, key, b, ttl); err != nil {
			c.log.Warn().Str("domain", domain).Str("key", key).Err(err).
				Msg("store after load failed")
		}
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return bytes.Clone(v.([]byte)), nil
}
