package tiercache

import (
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/snapwords/tiercache/health"
	"github.com/snapwords/tiercache/metrics"
	"github.com/snapwords/tiercache/tier"
)

// Option configures a Coordinator.
type Option func(*config)

// WithMemoryTier enables the in-process tier, bounded at maxEntries with
// LRU eviction. ttlCap clamps how long any entry may live in memory; zero
// disables the clamp.
func WithMemoryTier(maxEntries int, ttlCap time.Duration) Option {
	return func(c *config) {
		c.memoryEntries = maxEntries
		c.memoryTTLCap = ttlCap
	}
}

// WithRemoteTier enables the distributed tier. The remote store is the
// only tier with an external failure mode, so enabling it also starts the
// background health monitor (see [WithHealthConfig]).
func WithRemoteTier(cfg tier.RemoteConfig) Option {
	return func(c *config) {
		c.remote = &cfg
	}
}

// WithClientTier enables the client-persisted fallback tier at path. Only
// meant for processes running on the client side; it is the lowest
// priority tier and purely advisory.
func WithClientTier(path string) Option {
	return func(c *config) {
		c.localPath = path
	}
}

// WithDefaultTTL sets the TTL used when neither the call nor the domain
// specifies one.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *config) {
		c.defaultTTL = ttl
	}
}

// WithDomainTTL sets the default TTL for one logical domain, e.g. a long
// TTL for expensive-to-recompute generated text.
func WithDomainTTL(domain string, ttl time.Duration) Option {
	return func(c *config) {
		c.domainTTLs[domain] = ttl
	}
}

// WithHealthConfig tunes the remote tier's health monitor. No-op unless a
// remote tier is configured.
func WithHealthConfig(cfg health.Config) Option {
	return func(c *config) {
		c.health = cfg
	}
}

// WithLogger sets the structured logging sink. Defaults to a disabled
// logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithCollector sets the metrics collector, e.g. one registered on the
// application's prometheus registry. Defaults to a collector on a private
// registry so Stats works out of the box.
func WithCollector(m *metrics.Collector) Option {
	return func(c *config) {
		c.collector = m
	}
}

// WithTracerProvider enables OpenTelemetry spans around coordinator
// operations. Tracing is off when no provider is configured.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *config) {
		c.tracerProvider = tp
	}
}

// WithWritebackQueueSize bounds the background write-back queue. Tasks
// beyond the bound are dropped (and counted), never queued blocking.
func WithWritebackQueueSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.writebackSize = n
		}
	}
}
