package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeProber struct {
	fail atomic.Bool
}

func (p *fakeProber) Probe(context.Context) error {
	if p.fail.Load() {
		return errors.New("probe failed")
	}
	return nil
}

func newTestMonitor(cfg Config, onTransition func(bool)) (*Monitor, *fakeProber) {
	p := &fakeProber{}
	m := NewMonitor(p, cfg, onTransition)
	now := time.Now()
	m.nowFunc = func() time.Time { return now }
	return m, p
}

func TestMonitor_StartsHealthy(t *testing.T) {
	m, _ := newTestMonitor(Config{}, nil)
	if !m.Healthy() {
		t.Fatal("expected initial healthy state")
	}
	s := m.Snapshot()
	if s.ConsecutiveFailures != 0 || s.ConsecutiveSuccesses != 0 {
		t.Fatalf("unexpected initial counters: %+v", s)
	}
}

func TestMonitor_FailureThreshold(t *testing.T) {
	m, p := newTestMonitor(Config{FailureThreshold: 3, SuccessThreshold: 2}, nil)
	p.fail.Store(true)

	m.probeOnce()
	m.probeOnce()
	if !m.Healthy() {
		t.Fatal("expected healthy after 2 failures")
	}
	m.probeOnce() // 3rd consecutive failure trips the flag
	if m.Healthy() {
		t.Fatal("expected unhealthy after 3 failures")
	}
	if s := m.Snapshot(); s.ConsecutiveFailures != 3 {
		t.Fatalf("ConsecutiveFailures = %d, want 3", s.ConsecutiveFailures)
	}
}

func TestMonitor_SuccessThresholdRestores(t *testing.T) {
	m, p := newTestMonitor(Config{FailureThreshold: 1, SuccessThreshold: 2}, nil)

	p.fail.Store(true)
	m.probeOnce()
	if m.Healthy() {
		t.Fatal("expected unhealthy")
	}

	p.fail.Store(false)
	m.probeOnce()
	if m.Healthy() {
		t.Fatal("expected still unhealthy after 1 success")
	}
	m.probeOnce() // 2nd consecutive success restores
	if !m.Healthy() {
		t.Fatal("expected healthy after 2 successes")
	}
}

func TestMonitor_SingleSuccessRestoresWithThresholdOne(t *testing.T) {
	m, p := newTestMonitor(Config{FailureThreshold: 3, SuccessThreshold: 1}, nil)

	p.fail.Store(true)
	for i := 0; i < 3; i++ {
		m.probeOnce()
	}
	if m.Healthy() {
		t.Fatal("expected unhealthy")
	}

	p.fail.Store(false)
	m.probeOnce()
	if !m.Healthy() {
		t.Fatal("expected healthy after 1 successful probe")
	}
}

func TestMonitor_FailureResetsRecoveryStreak(t *testing.T) {
	m, p := newTestMonitor(Config{FailureThreshold: 1, SuccessThreshold: 2}, nil)

	p.fail.Store(true)
	m.probeOnce()

	p.fail.Store(false)
	m.probeOnce() // 1 success toward recovery
	p.fail.Store(true)
	m.probeOnce() // failure wipes the streak
	p.fail.Store(false)
	m.probeOnce() // back to 1 success
	if m.Healthy() {
		t.Fatal("expected still unhealthy: the streak must be consecutive")
	}
	m.probeOnce()
	if !m.Healthy() {
		t.Fatal("expected healthy after 2 consecutive successes")
	}
}

func TestMonitor_RequestReportsDontRestore(t *testing.T) {
	m, p := newTestMonitor(Config{FailureThreshold: 1, SuccessThreshold: 1}, nil)

	p.fail.Store(true)
	m.probeOnce()
	if m.Healthy() {
		t.Fatal("expected unhealthy")
	}

	// Request-path successes must not restore health; only probes may.
	m.ReportSuccess()
	m.ReportSuccess()
	if m.Healthy() {
		t.Fatal("request-path success restored health")
	}

	p.fail.Store(false)
	m.probeOnce()
	if !m.Healthy() {
		t.Fatal("expected probe to restore health")
	}
}

func TestMonitor_RequestFailuresTrip(t *testing.T) {
	m, _ := newTestMonitor(Config{FailureThreshold: 3, SuccessThreshold: 1}, nil)

	m.ReportFailure()
	m.ReportFailure()
	m.ReportSuccess() // resets the streak while healthy
	m.ReportFailure()
	m.ReportFailure()
	if !m.Healthy() {
		t.Fatal("expected healthy: only 2 consecutive failures after reset")
	}
	m.ReportFailure()
	if m.Healthy() {
		t.Fatal("expected unhealthy after 3 consecutive request failures")
	}
}

func TestMonitor_BackoffGrowsAndResets(t *testing.T) {
	cfg := Config{
		Interval:         time.Second,
		BackoffFactor:    2,
		MaxInterval:      5 * time.Second,
		FailureThreshold: 10,
	}
	m, p := newTestMonitor(cfg, nil)

	interval := func() time.Duration {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.interval
	}

	p.fail.Store(true)
	m.probeOnce()
	if got := interval(); got != 2*time.Second {
		t.Fatalf("after 1 failure interval = %v, want 2s", got)
	}
	m.probeOnce()
	if got := interval(); got != 4*time.Second {
		t.Fatalf("after 2 failures interval = %v, want 4s", got)
	}
	m.probeOnce()
	if got := interval(); got != 5*time.Second {
		t.Fatalf("after 3 failures interval = %v, want the 5s cap", got)
	}

	p.fail.Store(false)
	m.probeOnce()
	if got := interval(); got != time.Second {
		t.Fatalf("after success interval = %v, want the 1s base", got)
	}
}

func TestMonitor_TransitionHook(t *testing.T) {
	flips := make(chan bool, 4)
	m, p := newTestMonitor(Config{FailureThreshold: 1, SuccessThreshold: 1}, func(healthy bool) {
		flips <- healthy
	})

	p.fail.Store(true)
	m.probeOnce()
	select {
	case h := <-flips:
		if h {
			t.Fatal("expected unhealthy transition")
		}
	case <-time.After(time.Second):
		t.Fatal("transition hook not called")
	}

	p.fail.Store(false)
	m.probeOnce()
	select {
	case h := <-flips:
		if !h {
			t.Fatal("expected healthy transition")
		}
	case <-time.After(time.Second):
		t.Fatal("transition hook not called")
	}

	// Repeated failures while already unhealthy must not re-fire the hook.
	p.fail.Store(true)
	m.probeOnce()
	<-flips // the healthy→unhealthy flip
	m.probeOnce()
	m.probeOnce()
	select {
	case <-flips:
		t.Fatal("hook fired without a state change")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMonitor_LoopAndClose(t *testing.T) {
	p := &fakeProber{}
	m := NewMonitor(p, Config{Interval: 10 * time.Millisecond, FailureThreshold: 1, SuccessThreshold: 1}, nil)
	m.Start()
	defer m.Close()

	p.fail.Store(true)
	deadline := time.Now().Add(2 * time.Second)
	for m.Healthy() {
		if time.Now().After(deadline) {
			t.Fatal("probe loop never tripped the flag")
		}
		time.Sleep(5 * time.Millisecond)
	}

	m.Close()
	m.Close() // idempotent
	snap := m.Snapshot()
	if snap.Healthy {
		t.Fatal("last snapshot must remain readable after Close")
	}
}

func TestNextInterval(t *testing.T) {
	cfg := Config{Interval: time.Second, BackoffFactor: 3, MaxInterval: 10 * time.Second}
	if got := nextInterval(cfg, 0); got != time.Second {
		t.Fatalf("0 failures: got %v", got)
	}
	if got := nextInterval(cfg, 1); got != 3*time.Second {
		t.Fatalf("1 failure: got %v", got)
	}
	if got := nextInterval(cfg, 2); got != 9*time.Second {
		t.Fatalf("2 failures: got %v", got)
	}
	if got := nextInterval(cfg, 3); got != 10*time.Second {
		t.Fatalf("3 failures: got %v, want the cap", got)
	}
}
