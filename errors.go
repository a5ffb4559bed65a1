package tiercache

import "errors"

// Sentinel errors, checked with errors.Is.
var (
	// ErrNoTiers is returned by New when no tier was configured.
	ErrNoTiers = errors.New("tiercache: no tiers configured")

	// ErrClosed is returned when the coordinator is used after Close.
	ErrClosed = errors.New("tiercache: coordinator closed")

	// ErrSetFailed is returned by Set when every attempted tier rejected
	// the write — the one case where the value genuinely landed nowhere.
	ErrSetFailed = errors.New("tiercache: set failed on every tier")

	// ErrInvalidTTL is returned when a negative TTL override is supplied.
	ErrInvalidTTL = errors.New("tiercache: invalid ttl")
)
