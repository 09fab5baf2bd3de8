// Package prom exports cache and fetch signals as Prometheus metrics.
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/briangreenhill/sharecounts/cache"
	"github.com/briangreenhill/sharecounts/counters"
)

// Adapter implements cache.Metrics and counters.Metrics.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Adapter struct {
	hits    prometheus.Counter
	misses  prometheus.Counter
	evicts  *prometheus.CounterVec
	sizeEnt prometheus.Gauge

	fetches  *prometheus.CounterVec
	fetchDur *prometheus.HistogramVec
}

// New constructs a Prometheus metrics adapter.
//   - reg:     registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub: Prometheus namespace and subsystem
func New(reg prometheus.Registerer, ns, sub string) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "cache_hits_total",
			Help:      "Cache hits",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "cache_misses_total",
			Help:      "Cache misses",
		}),
		evicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: sub,
				Name:      "cache_evictions_total",
				Help:      "Cache evictions by reason",
			},
			[]string{"reason"},
		),
		sizeEnt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "cache_size_entries",
			Help:      "Number of resident entries",
		}),
		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: sub,
				Name:      "fetches_total",
				Help:      "Network fetches by outcome",
			},
			[]string{"network", "outcome"},
		),
		fetchDur: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Subsystem: sub,
				Name:      "fetch_duration_seconds",
				Help:      "Network fetch latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"network"},
		),
	}
	reg.MustRegister(a.hits, a.misses, a.evicts, a.sizeEnt, a.fetches, a.fetchDur)
	return a
}

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

// Evict adds n evictions with a reason label.
func (a *Adapter) Evict(r cache.EvictReason, n int) {
	a.evicts.WithLabelValues(reason(r)).Add(float64(n))
}

// Size updates the resident entry gauge.
func (a *Adapter) Size(entries int) {
	a.sizeEnt.Set(float64(entries))
}

// Fetched records one adapter fetch.
func (a *Adapter) Fetched(network string, outcome counters.Outcome, took time.Duration) {
	a.fetches.WithLabelValues(network, string(outcome)).Inc()
	a.fetchDur.WithLabelValues(network).Observe(took.Seconds())
}

// reason maps EvictReason to a stable label value.
func reason(r cache.EvictReason) string {
	switch r {
	case cache.EvictTTL:
		return "ttl"
	case cache.EvictClear:
		return "clear"
	default:
		return "other"
	}
}

var (
	_ cache.Metrics    = (*Adapter)(nil)
	_ counters.Metrics = (*Adapter)(nil)
)
