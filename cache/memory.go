package cache

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Options configures a Memory store. Zero values are safe:
//   - Shards <= 0 => 2*GOMAXPROCS, rounded up to a power of two
//   - nil Metrics => NoopMetrics
//   - nil Clock   => time.Now
type Options struct {
	Shards  int
	Metrics Metrics
	Clock   Clock
}

// Memory implements Store in process memory. Keys are spread over shards,
// each guarded by its own mutex. Expiration is lazy: an expired entry is
// dropped the next time it is read, there is no background sweep.
//
// Clear on a Memory shared by several components wipes entries for all of
// them.
type Memory[V any] struct {
	shards []*shard[V]
	size   atomic.Int64
	closed atomic.Bool
	opt    Options
}

type shard[V any] struct {
	mu sync.Mutex
	m  map[string]entry[V]
}

type entry[V any] struct {
	val V
	exp int64 // UnixNano deadline, 0 = never
}

// NewMemory creates an empty in-memory store.
func NewMemory[V any](opt Options) *Memory[V] {
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	n := opt.Shards
	if n <= 0 {
		n = 2 * runtime.GOMAXPROCS(0)
	}
	n = nextPow2(n)

	shards := make([]*shard[V], n)
	for i := range shards {
		shards[i] = &shard[V]{m: make(map[string]entry[V])}
	}
	return &Memory[V]{shards: shards, opt: opt}
}

// Get implements Reader.
func (c *Memory[V]) Get(key string) (V, bool) {
	var zero V
	if c.closed.Load() {
		return zero, false
	}
	s := c.shardFor(key)

	s.mu.Lock()
	e, ok := s.m[key]
	if ok && c.expired(e) {
		delete(s.m, key)
		ok = false
		c.size.Add(-1)
		c.opt.Metrics.Evict(EvictTTL, 1)
	}
	s.mu.Unlock()

	if !ok {
		c.opt.Metrics.Miss()
		return zero, false
	}
	c.opt.Metrics.Hit()
	return e.val, true
}

// Put implements Writer.
func (c *Memory[V]) Put(key string, value V, ttl time.Duration) {
	if c.closed.Load() {
		return
	}
	s := c.shardFor(key)

	s.mu.Lock()
	if _, exists := s.m[key]; !exists {
		c.size.Add(1)
	}
	s.m[key] = entry[V]{val: value, exp: c.deadline(ttl)}
	s.mu.Unlock()

	c.opt.Metrics.Size(c.Len())
}

// Add implements Writer. The presence check and the write happen under one
// lock, so of several concurrent Adds for the same key exactly one wins.
func (c *Memory[V]) Add(key string, value V, ttl time.Duration) bool {
	if c.closed.Load() {
		return false
	}
	s := c.shardFor(key)

	s.mu.Lock()
	if e, exists := s.m[key]; exists {
		if !c.expired(e) {
			s.mu.Unlock()
			return false
		}
		c.opt.Metrics.Evict(EvictTTL, 1)
	} else {
		c.size.Add(1)
	}
	s.m[key] = entry[V]{val: value, exp: c.deadline(ttl)}
	s.mu.Unlock()

	c.opt.Metrics.Size(c.Len())
	return true
}

// Remove deletes key if present and returns true on success.
func (c *Memory[V]) Remove(key string) bool {
	s := c.shardFor(key)

	s.mu.Lock()
	_, ok := s.m[key]
	if ok {
		delete(s.m, key)
		c.size.Add(-1)
	}
	s.mu.Unlock()

	if ok {
		c.opt.Metrics.Size(c.Len())
	}
	return ok
}

// Len returns the number of resident entries, including expired entries
// that have not been read since they expired.
func (c *Memory[V]) Len() int {
	return int(c.size.Load())
}

// Clear implements Store.
func (c *Memory[V]) Clear() {
	dropped := 0
	for _, s := range c.shards {
		s.mu.Lock()
		dropped += len(s.m)
		s.m = make(map[string]entry[V])
		s.mu.Unlock()
	}
	c.size.Add(-int64(dropped))
	if dropped > 0 {
		c.opt.Metrics.Evict(EvictClear, dropped)
	}
	c.opt.Metrics.Size(c.Len())
}

// Close drops every entry and marks the store closed. Reads on a closed
// store miss and writes are ignored.
func (c *Memory[V]) Close() error {
	c.closed.Store(true)
	c.Clear()
	return nil
}

func (c *Memory[V]) shardFor(key string) *shard[V] {
	h := xxhash.Sum64String(key)
	return c.shards[h&uint64(len(c.shards)-1)]
}

func (c *Memory[V]) now() int64 {
	if c.opt.Clock != nil {
		return c.opt.Clock.NowUnixNano()
	}
	return time.Now().UnixNano()
}

// deadline converts a relative ttl into an absolute UnixNano deadline.
func (c *Memory[V]) deadline(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return c.now() + int64(ttl)
}

func (c *Memory[V]) expired(e entry[V]) bool {
	return e.exp != 0 && c.now() >= e.exp
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

var _ Store[struct{}] = (*Memory[struct{}])(nil)
