package tiercache

import (
	"net/http"

	"github.com/snapwords/tiercache/health"
	"github.com/snapwords/tiercache/metrics"
)

// Stats is the operational snapshot exposed for a status endpoint:
// per-tier and per-domain hit/miss counters plus the remote tier's current
// health record.
type Stats struct {
	metrics.Stats

	// RemoteHealth is nil when no remote tier is configured.
	RemoteHealth *health.Snapshot `json:"remote_health,omitempty"`
}

// MetricsHandler returns an http.Handler that serves the cache's
// Prometheus metrics.
func (c *Coordinator) MetricsHandler() http.Handler {
	return c.met.Handler()
}

// Stats returns the current counters and health state.
func (c *Coordinator) Stats() Stats {
	s := Stats{Stats: c.met.Snapshot()}
	if c.monitor != nil {
		snap := c.monitor.Snapshot()
		s.RemoteHealth = &snap
	}
	return s
}
