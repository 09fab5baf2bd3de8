package counters

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// MemoryCacheOptions holds the lifetimes of the three kinds of cache entry.
type MemoryCacheOptions struct {
	// GoodResultTimeout is how long a successfully fetched count is served.
	GoodResultTimeout time.Duration
	// BadResultTimeout is how long the unknown count is served after a failed fetch.
	BadResultTimeout time.Duration
	// TimeoutResultTimeout is how long an in-flight fetch is shared, and also
	// the longest a fetch may run.
	TimeoutResultTimeout time.Duration
}

// Options is the configuration snapshot of a Counters instance.
type Options struct {
	MemoryCache  MemoryCacheOptions
	UnknownCount int
	Logger       zerolog.Logger

	// Store holds cached results. Defaults to SharedStore().
	Store   Store
	Metrics Metrics
}

// DefaultOptions returns the options every instance starts from.
func DefaultOptions() Options {
	return Options{
		MemoryCache: MemoryCacheOptions{
			GoodResultTimeout:    240 * time.Second,
			BadResultTimeout:     60 * time.Second,
			TimeoutResultTimeout: 10 * time.Second,
		},
		UnknownCount: -1,
		Logger:       zerolog.New(os.Stderr).With().Timestamp().Logger(),
		Metrics:      NoopMetrics{},
	}
}

type Option func(*Options)

// WithMemoryCache overrides the non-zero lifetimes in m and keeps the
// defaults for the rest.
func WithMemoryCache(m MemoryCacheOptions) Option {
	return func(o *Options) {
		if m.GoodResultTimeout != 0 {
			o.MemoryCache.GoodResultTimeout = m.GoodResultTimeout
		}
		if m.BadResultTimeout != 0 {
			o.MemoryCache.BadResultTimeout = m.BadResultTimeout
		}
		if m.TimeoutResultTimeout != 0 {
			o.MemoryCache.TimeoutResultTimeout = m.TimeoutResultTimeout
		}
	}
}

func WithUnknownCount(n int) Option {
	return func(o *Options) { o.UnknownCount = n }
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithStore gives the instance its own cache instead of the shared one.
func WithStore(s Store) Option {
	return func(o *Options) { o.Store = s }
}

func WithMetrics(m Metrics) Option {
	return func(o *Options) {
		if m != nil {
			o.Metrics = m
		}
	}
}
