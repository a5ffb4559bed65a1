package tiercache

import (
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/snapwords/tiercache/health"
	"github.com/snapwords/tiercache/metrics"
	"github.com/snapwords/tiercache/tier"
)

// config holds the internal configuration assembled via functional options.
type config struct {
	memoryEntries int
	memoryTTLCap  time.Duration

	remote *tier.RemoteConfig
	health health.Config

	localPath string

	defaultTTL time.Duration
	domainTTLs map[string]time.Duration

	logger         zerolog.Logger
	collector      *metrics.Collector
	tracerProvider trace.TracerProvider

	writebackSize int
}
