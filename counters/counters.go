// Package counters retrieves share counts for a URL across networks. Lookups
// go through a cache that collapses concurrent requests for the same
// (URL, network) pair onto one fetch and keeps successful and failed
// outcomes for different lengths of time.
package counters

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/iter"

	"github.com/briangreenhill/sharecounts/cache"
	"github.com/briangreenhill/sharecounts/networks"
)

// Counters coordinates cached count lookups.
type Counters struct {
	reg   *networks.Registry
	opts  Options
	store Store
	log   zerolog.Logger
}

// New creates a Counters that fetches through reg. Options are applied over
// DefaultOptions.
func New(reg *networks.Registry, opts ...Option) *Counters {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Store == nil {
		o.Store = SharedStore()
	}
	if o.Metrics == nil {
		o.Metrics = NoopMetrics{}
	}

	// instances may share a store, the id tells their log lines apart
	log := o.Logger.With().
		Str("component", "counters").
		Str("instance", uuid.NewString()).
		Logger()

	return &Counters{
		reg:   reg,
		opts:  o,
		store: o.Store,
		log:   log,
	}
}

// Options returns a copy of the instance configuration.
func (c *Counters) Options() Options {
	return c.opts
}

// IsValidNetwork reports whether network has an adapter.
func (c *Counters) IsValidNetwork(network string) bool {
	return c.reg.IsValidNetwork(network)
}

// InvalidNetworks returns the entries of names without an adapter, in order.
func (c *Counters) InvalidNetworks(names []string) []string {
	return c.reg.InvalidNetworks(names)
}

// RetrieveUncachedCount fetches the count straight from the network's
// adapter. An unregistered network fails with *networks.UnknownNetworkError
// before any I/O. Adapter failures are logged and returned.
func (c *Counters) RetrieveUncachedCount(ctx context.Context, url, network string) (int, error) {
	adapter, ok := c.reg.Get(network)
	if !ok {
		return 0, &networks.UnknownNetworkError{Network: network}
	}

	n, err := adapter.Fetch(ctx, url)
	if err != nil {
		c.log.Error().Err(err).Str("network", network).Str("url", url).Msg("could not fetch count")
		return 0, err
	}
	return n, nil
}

// GetCachedOrRetrieveCount returns the cached count for the pair, starting a
// fetch on a miss. It never fails: a failed fetch, or ctx ending before the
// count is known, yields the unknown count.
func (c *Counters) GetCachedOrRetrieveCount(ctx context.Context, url, network string) int {
	n, err := c.lookup(ctx, url, network).Wait(ctx)
	if err != nil {
		return c.opts.UnknownCount
	}
	return n
}

// RetrieveCounts looks up every network concurrently and returns the counts
// sorted by network. Duplicate networks are looked up once.
func (c *Counters) RetrieveCounts(ctx context.Context, url string, names []string) Counts {
	unique := dedup(names)
	if len(unique) == 0 {
		return Counts{}
	}

	mapper := iter.Mapper[string, Count]{MaxGoroutines: len(unique)}
	counts := mapper.Map(unique, func(network *string) Count {
		return Count{Network: *network, Count: c.GetCachedOrRetrieveCount(ctx, url, *network)}
	})

	out := Counts(counts)
	out.sort()
	return out
}

// lookup returns the cached result for the pair, or installs a pending one
// and starts its fetch.
func (c *Counters) lookup(ctx context.Context, url, network string) *Result {
	key := cache.KeyFor(network, url)

	if r, ok := c.store.Get(key); ok && r != nil {
		c.logFromCache(key, r)
		return r
	}

	r := newPending()
	if !c.store.Add(key, r, c.opts.MemoryCache.TimeoutResultTimeout) {
		// lost the race to another caller
		if shared, ok := c.store.Get(key); ok && shared != nil {
			c.logFromCache(key, shared)
			return shared
		}
	}

	go c.fetch(ctx, key, url, network, r)
	return r
}

func (c *Counters) logFromCache(key string, r *Result) {
	e := c.log.Debug().Str("key", key)
	if n, ok := r.Value(); ok {
		e = e.Int("count", n)
	} else {
		e = e.Bool("pending", true)
	}
	e.Msg("from cache")
}

// fetch resolves r and replaces the placeholder with the outcome. It is
// detached from the caller's cancellation and bounded by the placeholder
// lifetime, so it never outlives its placeholder.
func (c *Counters) fetch(ctx context.Context, key, url, network string, r *Result) {
	ctx = context.WithoutCancel(ctx)
	if d := c.opts.MemoryCache.TimeoutResultTimeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	start := time.Now()
	n, err := c.retrieve(ctx, url, network)
	took := time.Since(start)

	if err != nil {
		c.log.Error().Err(err).Str("key", key).Dur("took", took).Msg("fetched bad result")
		c.store.Put(key, resolved(c.opts.UnknownCount), c.opts.MemoryCache.BadResultTimeout)
		c.opts.Metrics.Fetched(network, OutcomeBad, took)
		r.resolve(c.opts.UnknownCount)
		return
	}

	c.log.Info().Str("key", key).Int("count", n).Dur("took", took).Msg("fetched good result")
	c.store.Put(key, resolved(n), c.opts.MemoryCache.GoodResultTimeout)
	c.opts.Metrics.Fetched(network, OutcomeGood, took)
	r.resolve(n)
}

// retrieve turns an adapter panic into an error so waiters are always released.
func (c *Counters) retrieve(ctx context.Context, url, network string) (n int, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%s adapter panicked: %v", network, p)
		}
	}()
	return c.RetrieveUncachedCount(ctx, url, network)
}

func dedup(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
