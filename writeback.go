package tiercache

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/snapwords/tiercache/metrics"
	"github.com/snapwords/tiercache/tier"
)

// writebackTask back-fills the given faster tiers with an entry found in a
// slower one. The entry keeps its original ExpiresAt: write-back copies
// forward, never extends a lifetime.
type writebackTask struct {
	key     string
	domain  string
	entry   tier.Entry
	targets []tier.Tier
}

// writeback is a bounded fire-and-forget queue. It exists purely as an
// optimization, so back-pressure is handled by dropping tasks: a saturated
// queue must never block a reader.
type writeback struct {
	tasks   chan writebackTask
	closeCh chan struct{}
	done    chan struct{}

	met *metrics.Collector
	log zerolog.Logger

	nowFunc func() time.Time // for testing; defaults to time.Now
}

func newWriteback(size int, met *metrics.Collector, log zerolog.Logger) *writeback {
	w := &writeback{
		tasks:   make(chan writebackTask, size),
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
		met:     met,
		log:     log,
		nowFunc: time.Now,
	}
	go w.run()
	return w
}

// enqueue submits a task without blocking. Tasks are dropped once the
// queue is saturated or closed.
func (w *writeback) enqueue(t writebackTask) {
	select {
	case <-w.closeCh:
	case w.tasks <- t:
	default:
		w.met.WritebackDropped()
		w.log.Debug().Str("domain", t.domain).Str("key", t.key).Msg("write-back dropped")
	}
}

// close stops the worker after it drains the tasks already queued.
func (w *writeback) close() {
	select {
	case <-w.closeCh:
		return
	default:
	}
	close(w.closeCh)
	<-w.done
}

func (w *writeback) run() {
	defer close(w.done)
	for {
		select {
		case t := <-w.tasks:
			w.apply(t)
		case <-w.closeCh:
			// Drain whatever was queued before shutdown.
			for {
				select {
				case t := <-w.tasks:
					w.apply(t)
				default:
					return
				}
			}
		}
	}
}

func (w *writeback) apply(t writebackTask) {
	if t.entry.Expired(w.now()) {
		return
	}
	// The caller is long gone; bound the back-fill on its own budget.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for _, target := range t.targets {
		if err := target.Set(ctx, t.key, t.entry); err != nil {
			w.met.WriteFailure(target.Name(), t.domain)
			w.log.Warn().Str("tier", target.Name()).Str("domain", t.domain).Str("key", t.key).
				Err(err).Msg("write-back failed")
		}
	}
}

func (w *writeback) now() time.Time {
	if w.nowFunc != nil {
		return w.nowFunc()
	}
	return time.Now()
}
