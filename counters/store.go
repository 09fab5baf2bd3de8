package counters

import (
	"sync"
	"time"

	"github.com/briangreenhill/sharecounts/cache"
)

// Store is the cache a Counters instance reads and writes.
type Store = cache.Store[*Result]

var (
	sharedOnce  sync.Once
	sharedStore *cache.Memory[*Result]
)

// SharedStore returns the process-wide store used by instances created
// without WithStore. Instances sharing it see each other's entries, and
// Clear or Close on it affects all of them.
func SharedStore() *cache.Memory[*Result] {
	sharedOnce.Do(func() {
		sharedStore = cache.NewMemory[*Result](cache.Options{})
	})
	return sharedStore
}

// Outcome classifies a finished fetch.
type Outcome string

const (
	OutcomeGood Outcome = "good"
	OutcomeBad  Outcome = "bad"
)

// Metrics receives one signal per adapter fetch.
type Metrics interface {
	Fetched(network string, outcome Outcome, took time.Duration)
}

type NoopMetrics struct{}

func (NoopMetrics) Fetched(string, Outcome, time.Duration) {}

var _ Metrics = NoopMetrics{}
