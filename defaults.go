package tiercache

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/snapwords/tiercache/metrics"
)

// Defaults applied when an option is left unset.
const (
	// DefaultTTL is the fallback entry lifetime when neither the call nor
	// the domain specifies one.
	DefaultTTL = 5 * time.Minute

	// DefaultMemoryEntries bounds the memory tier used by DefaultOptions.
	DefaultMemoryEntries = 4096

	// DefaultMemoryTTLCap keeps long-lived domains from pinning memory.
	DefaultMemoryTTLCap = time.Minute

	// DefaultWritebackQueueSize bounds the background write-back queue.
	DefaultWritebackQueueSize = 256
)

// DefaultOptions returns the recommended baseline for production use: an
// in-process memory tier with conservative bounds. Add a remote tier and
// domain TTLs on top.
func DefaultOptions() []Option {
	return []Option{
		WithMemoryTier(DefaultMemoryEntries, DefaultMemoryTTLCap),
	}
}

func defaultConfig() config {
	return config{
		defaultTTL:    DefaultTTL,
		domainTTLs:    make(map[string]time.Duration),
		logger:        zerolog.Nop(),
		collector:     metrics.NewCollector(nil),
		writebackSize: DefaultWritebackQueueSize,
	}
}
