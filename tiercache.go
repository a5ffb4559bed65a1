// Package tiercache is a tiered, health-aware byte cache that sits between
// request handlers and expensive backends (AI text generation, third-party
// image search, database reads). Lookups walk the tiers in priority order —
// in-process memory, then a remote distributed store, then an optional
// client-persisted fallback — skipping any tier the health monitor has
// marked unhealthy, and asynchronously back-fill faster tiers on a
// slower-tier hit.
//
// The cache is an optimization layer, never a system of record: a tier may
// drop an entry at any time, a miss is always recoverable by recomputing
// from the origin, and tier failures surface to callers only as misses.
package tiercache

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/snapwords/tiercache/health"
	"github.com/snapwords/tiercache/metrics"
	"github.com/snapwords/tiercache/tier"
)

// Coordinator is the public face of the cache. Construct one at startup
// with New, hand it to request handlers, and Close it on shutdown. All
// methods are safe for concurrent use.
type Coordinator struct {
	tiers     []tier.Tier
	remoteIdx int // index of the remote tier in tiers, -1 when absent
	monitor   *health.Monitor

	defaultTTL time.Duration
	domainTTLs map[string]time.Duration

	log    zerolog.Logger
	met    *metrics.Collector
	tracer trace.Tracer // nil disables span creation

	wb  *writeback
	sfg singleflight.Group

	closed    atomic.Bool
	closeOnce sync.Once

	nowFunc func() time.Time // for testing; defaults to time.Now
}

// New builds a Coordinator from functional options. At least one tier must
// be configured; misconfiguration (bad address, unreachable remote,
// unwritable client store) is fatal here and only here — once constructed
// the cache degrades instead of crashing.
func New(opts ...Option) (*Coordinator, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	c := &Coordinator{
		remoteIdx:  -1,
		defaultTTL: cfg.defaultTTL,
		domainTTLs: cfg.domainTTLs,
		log:        cfg.logger,
		met:        cfg.collector,
		nowFunc:    time.Now,
	}
	if cfg.tracerProvider != nil {
		c.tracer = cfg.tracerProvider.Tracer("github.com/snapwords/tiercache")
	}

	// A later tier failing to construct must release everything built
	// before it, the probe loop included.
	fail := func(err error) (*Coordinator, error) {
		if c.monitor != nil {
			c.monitor.Close()
		}
		for _, t := range c.tiers {
			_ = t.Close()
		}
		return nil, err
	}

	if cfg.memoryEntries > 0 {
		mem, err := tier.NewMemory(cfg.memoryEntries, cfg.memoryTTLCap)
		if err != nil {
			return fail(err)
		}
		c.tiers = append(c.tiers, mem)
	}
	if cfg.remote != nil {
		rt, err := tier.NewRemote(*cfg.remote)
		if err != nil {
			return fail(err)
		}
		c.remoteIdx = len(c.tiers)
		c.tiers = append(c.tiers, rt)
		c.monitor = health.NewMonitor(rt, cfg.health, func(healthy bool) {
			c.met.HealthTransition(rt.Name(), healthy)
			c.log.Warn().Str("tier", rt.Name()).Bool("healthy", healthy).Msg("tier health transition")
		})
		c.monitor.Start()
	}
	if cfg.localPath != "" {
		lt, err := tier.NewLocal(cfg.localPath)
		if err != nil {
			return fail(err)
		}
		c.tiers = append(c.tiers, lt)
	}
	if len(c.tiers) == 0 {
		return nil, ErrNoTiers
	}

	c.wb = newWriteback(cfg.writebackSize, c.met, c.log)
	return c, nil
}

// Close drains the write-back queue, stops the health monitor, and closes
// every tier. Idempotent; the first error encountered is returned.
func (c *Coordinator) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.wb.close()
		if c.monitor != nil {
			c.monitor.Close()
		}
		for _, t := range c.tiers {
			if cerr := t.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close %s tier: %w", t.Name(), cerr)
			}
		}
	})
	return err
}

// namespacedKey joins domain and key so two domains can never collide,
// even with identical raw keys. Tiers only ever see this form.
func namespacedKey(domain, key string) string {
	return domain + ":" + key
}

// resolveTTL applies the two-level TTL policy: a positive per-call
// override wins, then the domain default, then the global default. The
// memory tier applies its own cap on top.
func (c *Coordinator) resolveTTL(domain string, override time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	if ttl, ok := c.domainTTLs[domain]; ok {
		return ttl
	}
	return c.defaultTTL
}

// skip reports whether the tier at index i should be bypassed because the
// health monitor has marked it unhealthy.
func (c *Coordinator) skip(i int) bool {
	return i == c.remoteIdx && c.monitor != nil && !c.monitor.Healthy()
}

// reportRemote feeds a request-path outcome into the health monitor when
// the tier at index i is the remote tier.
func (c *Coordinator) reportRemote(i int, ok bool) {
	if i != c.remoteIdx || c.monitor == nil {
		return
	}
	if ok {
		c.monitor.ReportSuccess()
	} else {
		c.monitor.ReportFailure()
	}
}

func (c *Coordinator) now() time.Time {
	if c.nowFunc != nil {
		return c.nowFunc()
	}
	return time.Now()
}
