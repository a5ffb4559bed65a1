// Package metrics passively observes cache operations: per-tier and
// per-domain hits and misses, operation latency, write failures,
// invalidations, write-back drops, and health transitions. Recording never
// blocks or fails the operation being observed, and a nil *Collector is a
// usable no-op, so the hot path carries no observability branching beyond
// a nil check.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// TierStats aggregates one tier's counters.
type TierStats struct {
	Hits          uint64  `json:"hits"`
	Misses        uint64  `json:"misses"`
	HitRate       float64 `json:"hit_rate"`
	WriteFailures uint64  `json:"write_failures"`
}

// DomainStats aggregates one logical domain's counters across all tiers.
type DomainStats struct {
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// Stats is a point-in-time snapshot of every counter the collector holds.
type Stats struct {
	Tiers             map[string]TierStats   `json:"tiers"`
	Domains           map[string]DomainStats `json:"domains"`
	Invalidations     uint64                 `json:"invalidations"`
	WritebackDrops    uint64                 `json:"writeback_drops"`
	HealthTransitions uint64                 `json:"health_transitions"`
}

type tierCounts struct {
	hits, misses, writeFailures uint64
}

type domainCounts struct {
	hits, misses uint64
}

// Collector records cache events into prometheus collectors and mirrors
// them into plain counters backing Snapshot.
type Collector struct {
	reg *prometheus.Registry

	hits              *prometheus.CounterVec
	misses            *prometheus.CounterVec
	opDuration        *prometheus.HistogramVec
	writeFailures     *prometheus.CounterVec
	invalidated       *prometheus.CounterVec
	healthTransitions *prometheus.CounterVec
	writebackDrops    prometheus.Counter

	mu            sync.Mutex
	tiers         map[string]*tierCounts
	domains       map[string]*domainCounts
	invalidations uint64
	wbDrops       uint64
	transitions   uint64
}

// NewCollector creates a Collector registered on reg; a nil reg gets a
// private registry. Registration conflicts panic, as misregistration is a
// startup-only programming error.
func NewCollector(reg *prometheus.Registry) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	c := &Collector{
		reg: reg,
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tiercache_hits_total",
			Help: "Cache hits by tier and domain.",
		}, []string{"tier", "domain"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tiercache_misses_total",
			Help: "Cache misses by tier and domain.",
		}, []string{"tier", "domain"}),
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tiercache_op_duration_seconds",
			Help:    "Tier operation latency.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"tier", "op"}),
		writeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tiercache_write_failures_total",
			Help: "Failed tier writes by tier and domain.",
		}, []string{"tier", "domain"}),
		invalidated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tiercache_invalidated_keys_total",
			Help: "Keys removed by pattern invalidation, by domain.",
		}, []string{"domain"}),
		healthTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tiercache_health_transitions_total",
			Help: "Tier health transitions by tier and resulting state.",
		}, []string{"tier", "state"}),
		writebackDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tiercache_writeback_drops_total",
			Help: "Write-back tasks dropped due to queue saturation.",
		}),
		tiers:   make(map[string]*tierCounts),
		domains: make(map[string]*domainCounts),
	}
	reg.MustRegister(
		c.hits, c.misses, c.opDuration, c.writeFailures,
		c.invalidated, c.healthTransitions, c.writebackDrops,
	)
	return c
}

// Handler serves the collector's registry in prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// Hit records a cache hit.
func (c *Collector) Hit(tier, domain string) {
	if c == nil {
		return
	}
	c.hits.WithLabelValues(tier, domain).Inc()
	c.mu.Lock()
	c.tier(tier).hits++
	c.domain(domain).hits++
	c.mu.Unlock()
}

// Miss records a cache miss (including tier failures treated as misses).
func (c *Collector) Miss(tier, domain string) {
	if c == nil {
		return
	}
	c.misses.WithLabelValues(tier, domain).Inc()
	c.mu.Lock()
	c.tier(tier).misses++
	c.domain(domain).misses++
	c.mu.Unlock()
}

// Observe records one tier operation's latency.
func (c *Collector) Observe(tier, op string, d time.Duration) {
	if c == nil {
		return
	}
	c.opDuration.WithLabelValues(tier, op).Observe(d.Seconds())
}

// WriteFailure records a failed tier write.
func (c *Collector) WriteFailure(tier, domain string) {
	if c == nil {
		return
	}
	c.writeFailures.WithLabelValues(tier, domain).Inc()
	c.mu.Lock()
	c.tier(tier).writeFailures++
	c.mu.Unlock()
}

// Invalidated records n keys removed by pattern invalidation.
func (c *Collector) Invalidated(domain string, n int) {
	if c == nil || n < 0 {
		return
	}
	c.invalidated.WithLabelValues(domain).Add(float64(n))
	c.mu.Lock()
	c.invalidations += uint64(n)
	c.mu.Unlock()
}

// HealthTransition records a tier health flip.
func (c *Collector) HealthTransition(tier string, healthy bool) {
	if c == nil {
		return
	}
	state := "unhealthy"
	if healthy {
		state = "healthy"
	}
	c.healthTransitions.WithLabelValues(tier, state).Inc()
	c.mu.Lock()
	c.transitions++
	c.mu.Unlock()
}

// WritebackDropped records a write-back task dropped under saturation.
func (c *Collector) WritebackDropped() {
	if c == nil {
		return
	}
	c.writebackDrops.Inc()
	c.mu.Lock()
	c.wbDrops++
	c.mu.Unlock()
}

// Snapshot returns the current counters. A nil collector returns an empty
// snapshot.
func (c *Collector) Snapshot() Stats {
	s := Stats{
		Tiers:   make(map[string]TierStats),
		Domains: make(map[string]DomainStats),
	}
	if c == nil {
		return s
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, t := range c.tiers {
		s.Tiers[name] = TierStats{
			Hits:          t.hits,
			Misses:        t.misses,
			HitRate:       rate(t.hits, t.misses),
			WriteFailures: t.writeFailures,
		}
	}
	for name, d := range c.domains {
		s.Domains[name] = DomainStats{
			Hits:    d.hits,
			Misses:  d.misses,
			HitRate: rate(d.hits, d.misses),
		}
	}
	s.Invalidations = c.invalidations
	s.WritebackDrops = c.wbDrops
	s.HealthTransitions = c.transitions
	return s
}

// tier returns the mirror counters for a tier. Must be called with mu held.
func (c *Collector) tier(name string) *tierCounts {
	t, ok := c.tiers[name]
	if !ok {
		t = &tierCounts{}
		c.tiers[name] = t
	}
	return t
}

// domain returns the mirror counters for a domain. Must be called with mu held.
func (c *Collector) domain(name string) *domainCounts {
	d, ok := c.domains[name]
	if !ok {
		d = &domainCounts{}
		c.domains[name] = d
	}
	return d
}

func rate(hits, misses uint64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
