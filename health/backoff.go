package health

import (
	"math"
	"time"
)

// nextInterval returns the probe interval after the given number of
// consecutive failures, growing exponentially from the base interval and
// capped at cfg.MaxInterval. Zero failures yields the base interval.
func nextInterval(cfg Config, failures int) time.Duration {
	if failures <= 0 {
		return cfg.Interval
	}
	d := float64(cfg.Interval) * math.Pow(cfg.BackoffFactor, float64(failures))
	if max := float64(cfg.MaxInterval); d > max {
		d = max
	}
	return time.Duration(d)
}
