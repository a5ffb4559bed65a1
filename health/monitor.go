// Package health tracks the availability of the remote cache tier with a
// hysteresis state machine: a tier flips unhealthy only after several
// consecutive failures and recovers only after consecutive successful
// probes, so a single blip never flaps the flag.
//
// The monitor probes in the background so the request path reads a
// pre-computed flag instead of paying a degraded tier's latency. Probe
// intervals back off exponentially while the tier keeps failing and reset
// on the first success.
package health

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds the monitor parameters. Zero values fall back to the
// defaults noted per field.
type Config struct {
	// Interval is the base probe interval (default 5s).
	Interval time.Duration
	// ProbeTimeout bounds each probe (default 1s).
	ProbeTimeout time.Duration
	// FailureThreshold is the number of consecutive failures before the
	// tier is marked unhealthy (default 3).
	FailureThreshold int
	// SuccessThreshold is the number of consecutive successful probes
	// required to restore an unhealthy tier (default 2).
	SuccessThreshold int
	// BackoffFactor multiplies the probe interval per consecutive failure
	// (default 2.0).
	BackoffFactor float64
	// MaxInterval caps the backed-off probe interval (default 60s).
	MaxInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = time.Second
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 2
	}
	if c.BackoffFactor < 1 {
		c.BackoffFactor = 2
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = time.Minute
	}
	return c
}

// Prober is the probe side of a tier: a lightweight liveness check.
type Prober interface {
	Probe(ctx context.Context) error
}

// Snapshot is the monitor's published state. It is replaced wholesale on
// every update, never mutated in place, so readers always see a consistent
// record.
type Snapshot struct {
	Healthy              bool
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	LastProbeAt          time.Time
	LastTransitionAt     time.Time
}

// Monitor owns the health record for one tier. Reads are lock-free; only
// the probe loop and request-path reports write.
type Monitor struct {
	cfg    Config
	prober Prober

	// onTransition, when set, is called outside the hot path with the new
	// healthy value on every state change.
	onTransition func(healthy bool)

	cur atomic.Pointer[Snapshot]

	mu       sync.Mutex // guards interval
	interval time.Duration

	closeCh   chan struct{}
	closeOnce sync.Once

	nowFunc func() time.Time // for testing; defaults to time.Now
}

// NewMonitor creates a Monitor for the given prober. The tier starts
// healthy: a stale optimistic flag costs at most one timed-out operation
// before the tier's own timeout forces a miss. Call Start to begin probing.
func NewMonitor(p Prober, cfg Config, onTransition func(healthy bool)) *Monitor {
	cfg = cfg.withDefaults()
	m := &Monitor{
		cfg:          cfg,
		prober:       p,
		onTransition: onTransition,
		interval:     cfg.Interval,
		closeCh:      make(chan struct{}),
		nowFunc:      time.Now,
	}
	m.cur.Store(&Snapshot{Healthy: true})
	return m
}

// Start launches the background probe loop.
func (m *Monitor) Start() {
	go m.loop()
}

// Healthy reports the current flag without performing any I/O.
func (m *Monitor) Healthy() bool {
	return m.cur.Load().Healthy
}

// Snapshot returns the current health record.
func (m *Monitor) Snapshot() Snapshot {
	return *m.cur.Load()
}

// ReportSuccess records a successful request-path operation against the
// tier. While healthy it resets the failure streak; it does not count
// toward recovery, which requires successful probes.
func (m *Monitor) ReportSuccess() {
	m.record(true, false)
}

// ReportFailure records a failed request-path operation against the tier.
func (m *Monitor) ReportFailure() {
	m.record(false, false)
}

// Close stops the probe loop. The last snapshot remains readable.
func (m *Monitor) Close() {
	m.closeOnce.Do(func() { close(m.closeCh) })
}

func (m *Monitor) loop() {
	for {
		m.mu.Lock()
		wait := m.interval
		m.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-m.closeCh:
			timer.Stop()
			return
		case <-timer.C:
		}
		m.probeOnce()
	}
}

func (m *Monitor) probeOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ProbeTimeout)
	err := m.prober.Probe(ctx)
	cancel()
	m.record(err == nil, true)
}

// record advances the hysteresis state machine. fromProbe distinguishes
// background probes from request-path reports: only probes may restore an
// unhealthy tier.
func (m *Monitor) record(success, fromProbe bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := *m.cur.Load()
	now := m.now()
	if fromProbe {
		s.LastProbeAt = now
	}

	var flipped bool
	if success {
		s.ConsecutiveFailures = 0
		if !s.Healthy && fromProbe {
			s.ConsecutiveSuccesses++
			if s.ConsecutiveSuccesses >= m.cfg.SuccessThreshold {
				s.Healthy = true
				s.ConsecutiveSuccesses = 0
				s.LastTransitionAt = now
				flipped = true
			}
		}
		m.interval = m.cfg.Interval
	} else {
		s.ConsecutiveSuccesses = 0
		s.ConsecutiveFailures++
		if s.Healthy && s.ConsecutiveFailures >= m.cfg.FailureThreshold {
			s.Healthy = false
			s.LastTransitionAt = now
			flipped = true
		}
		m.interval = nextInterval(m.cfg, s.ConsecutiveFailures)
	}

	m.cur.Store(&s)

	if flipped && m.onTransition != nil {
		healthy := s.Healthy
		go m.onTransition(healthy)
	}
}

func (m *Monitor) now() time.Time {
	if m.nowFunc != nil {
		return m.nowFunc()
	}
	return time.Now()
}
