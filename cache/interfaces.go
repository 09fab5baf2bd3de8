// Package cache provides an in-memory key/value store with per-entry
// expiration, used to share count lookups between callers.
package cache

import "time"

// Reader defines the interface for reading cache entries
type Reader[V any] interface {
	// Get returns the value for key and true if it is present and not expired
	Get(key string) (V, bool)
}

// Writer defines the interface for writing cache entries
type Writer[V any] interface {
	// Put stores value under key, replacing any existing entry.
	// A non-positive ttl disables expiration for the entry.
	Put(key string, value V, ttl time.Duration)

	// Add stores value only if key is absent or expired.
	// Returns false if a live entry already exists (no update is performed).
	Add(key string, value V, ttl time.Duration) bool
}

// Store is the main interface that combines all cache operations
type Store[V any] interface {
	Reader[V]
	Writer[V]

	// Clear removes every entry in the store
	Clear()
}

// EvictReason explains why an entry was removed.
type EvictReason int

const (
	// EvictTTL means the entry expired and was dropped on access.
	EvictTTL EvictReason = iota
	// EvictClear means the entry was dropped by Clear or Close.
	EvictClear
)

// Metrics receives cache-level observability signals.
type Metrics interface {
	Hit()
	Miss()
	Evict(reason EvictReason, n int)
	Size(entries int)
}

// NoopMetrics is the default Metrics and does nothing.
type NoopMetrics struct{}

func (NoopMetrics) Hit()                   {}
func (NoopMetrics) Miss()                  {}
func (NoopMetrics) Evict(EvictReason, int) {}
func (NoopMetrics) Size(int)               {}

// Clock provides time in UnixNano; useful for deterministic tests.
type Clock interface{ NowUnixNano() int64 }

var _ Metrics = NoopMetrics{}
