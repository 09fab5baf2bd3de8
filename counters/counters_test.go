package counters

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/briangreenhill/sharecounts/cache"
	"github.com/briangreenhill/sharecounts/facebook"
	"github.com/briangreenhill/sharecounts/networks"
	"github.com/briangreenhill/sharecounts/twitter"
)

type fakeClock struct{ t atomic.Int64 }

func (c *fakeClock) NowUnixNano() int64      { return c.t.Load() }
func (c *fakeClock) Advance(d time.Duration) { c.t.Add(int64(d)) }

// countingAdapter counts calls and answers with fn
type countingAdapter struct {
	name  string
	calls atomic.Int64
	fn    networks.FetchFunc
}

func (a *countingAdapter) Name() string { return a.name }

func (a *countingAdapter) Fetch(ctx context.Context, url string) (int, error) {
	a.calls.Add(1)
	return a.fn(ctx, url)
}

func fixed(n int) networks.FetchFunc {
	return func(context.Context, string) (int, error) { return n, nil }
}

func failing(err error) networks.FetchFunc {
	return func(context.Context, string) (int, error) { return 0, err }
}

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes map[Outcome]int
}

func (m *recordingMetrics) Fetched(network string, outcome Outcome, took time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcomes == nil {
		m.outcomes = make(map[Outcome]int)
	}
	m.outcomes[outcome]++
}

func newTestCounters(t *testing.T, adapters []networks.Adapter, opts ...Option) (*Counters, *cache.Memory[*Result], *fakeClock) {
	t.Helper()
	reg := networks.NewRegistry()
	for _, a := range adapters {
		reg.Register(a)
	}
	clk := &fakeClock{}
	clk.t.Store(time.Unix(1_700_000_000, 0).UnixNano())
	store := cache.NewMemory[*Result](cache.Options{Clock: clk})
	t.Cleanup(func() { _ = store.Close() })

	base := []Option{WithLogger(zerolog.Nop()), WithStore(store)}
	return New(reg, append(base, opts...)...), store, clk
}

func TestDefaultOptions(t *testing.T) {
	o := DefaultOptions()
	if o.MemoryCache.GoodResultTimeout != 240000*time.Millisecond {
		t.Errorf("GoodResultTimeout = %v", o.MemoryCache.GoodResultTimeout)
	}
	if o.MemoryCache.BadResultTimeout != 60000*time.Millisecond {
		t.Errorf("BadResultTimeout = %v", o.MemoryCache.BadResultTimeout)
	}
	if o.MemoryCache.TimeoutResultTimeout != 10000*time.Millisecond {
		t.Errorf("TimeoutResultTimeout = %v", o.MemoryCache.TimeoutResultTimeout)
	}
	if o.UnknownCount != -1 {
		t.Errorf("UnknownCount = %d", o.UnknownCount)
	}
}

func TestOptionsMerge(t *testing.T) {
	c, _, _ := newTestCounters(t, nil, WithMemoryCache(MemoryCacheOptions{GoodResultTimeout: 100 * time.Millisecond}))

	o := c.Options()
	if o.MemoryCache.GoodResultTimeout != 100*time.Millisecond {
		t.Errorf("caller value should win, got %v", o.MemoryCache.GoodResultTimeout)
	}
	if o.MemoryCache.BadResultTimeout != time.Minute || o.MemoryCache.TimeoutResultTimeout != 10*time.Second {
		t.Errorf("unset values should keep defaults, got %+v", o.MemoryCache)
	}
	if o.UnknownCount != -1 {
		t.Errorf("UnknownCount = %d, want -1", o.UnknownCount)
	}

	// the snapshot is a copy
	o.UnknownCount = 7
	if c.Options().UnknownCount != -1 {
		t.Error("mutating the returned options should not affect the instance")
	}
}

func TestValidation(t *testing.T) {
	c, _, _ := newTestCounters(t, []networks.Adapter{
		&countingAdapter{name: "facebook", fn: fixed(1)},
		&countingAdapter{name: "twitter", fn: fixed(1)},
	})

	if !c.IsValidNetwork("facebook") || c.IsValidNetwork("myspace") {
		t.Error("IsValidNetwork should follow the registry")
	}
	got := c.InvalidNetworks([]string{"myspace", "facebook", "digg"})
	if len(got) != 2 || got[0] != "myspace" || got[1] != "digg" {
		t.Errorf("InvalidNetworks = %v, want [myspace digg]", got)
	}
}

func TestRetrieveUncachedCount(t *testing.T) {
	boom := errors.New("boom")
	ok := &countingAdapter{name: "ok", fn: fixed(12)}
	bad := &countingAdapter{name: "bad", fn: failing(boom)}
	c, store, _ := newTestCounters(t, []networks.Adapter{ok, bad})

	n, err := c.RetrieveUncachedCount(context.Background(), "https://example.com/", "ok")
	if err != nil || n != 12 {
		t.Errorf("got (%d, %v), want (12, nil)", n, err)
	}

	_, err = c.RetrieveUncachedCount(context.Background(), "https://example.com/", "bad")
	if !errors.Is(err, boom) {
		t.Errorf("adapter error should propagate, got %v", err)
	}

	_, err = c.RetrieveUncachedCount(context.Background(), "https://example.com/", "myspace")
	var unknown *networks.UnknownNetworkError
	if !errors.As(err, &unknown) || unknown.Network != "myspace" {
		t.Errorf("expected UnknownNetworkError, got %v", err)
	}

	if store.Len() != 0 {
		t.Errorf("uncached retrieval should not touch the cache, got %d entries", store.Len())
	}
}

func TestGetCachedOrRetrieveCount_SingleFetch(t *testing.T) {
	release := make(chan struct{})
	a := &countingAdapter{name: "facebook", fn: func(ctx context.Context, url string) (int, error) {
		<-release
		return 42, nil
	}}
	c, _, _ := newTestCounters(t, []networks.Adapter{a})

	var g errgroup.Group
	results := make([]int, 64)
	for i := range results {
		i := i // per-iteration copy (go 1.21 loop semantics)
		g.Go(func() error {
			results[i] = c.GetCachedOrRetrieveCount(context.Background(), "https://example.com/", "facebook")
			return nil
		})
	}
	close(release)
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	if n := a.calls.Load(); n != 1 {
		t.Errorf("expected exactly one fetch, got %d", n)
	}
	for i, n := range results {
		if n != 42 {
			t.Errorf("caller %d got %d, want 42", i, n)
		}
	}
}

func TestGetCachedOrRetrieveCount_SharesPending(t *testing.T) {
	release := make(chan struct{})
	a := &countingAdapter{name: "facebook", fn: func(ctx context.Context, url string) (int, error) {
		<-release
		return 5, nil
	}}
	c, _, _ := newTestCounters(t, []networks.Adapter{a})

	first := c.lookup(context.Background(), "u", "facebook")
	second := c.lookup(context.Background(), "u", "facebook")
	if first != second {
		t.Fatal("a lookup during the fetch should share the pending result")
	}
	if _, ok := first.Value(); ok {
		t.Error("result should still be pending")
	}

	close(release)
	n, err := second.Wait(context.Background())
	if err != nil || n != 5 {
		t.Errorf("got (%d, %v), want (5, nil)", n, err)
	}
}

func TestGetCachedOrRetrieveCount_GoodResultTTL(t *testing.T) {
	a := &countingAdapter{name: "facebook", fn: fixed(3)}
	c, _, clk := newTestCounters(t, []networks.Adapter{a},
		WithMemoryCache(MemoryCacheOptions{GoodResultTimeout: 100 * time.Millisecond}))
	ctx := context.Background()

	if n := c.GetCachedOrRetrieveCount(ctx, "u", "facebook"); n != 3 {
		t.Fatalf("got %d, want 3", n)
	}
	clk.Advance(99 * time.Millisecond)
	if n := c.GetCachedOrRetrieveCount(ctx, "u", "facebook"); n != 3 {
		t.Fatalf("got %d, want 3", n)
	}
	if calls := a.calls.Load(); calls != 1 {
		t.Fatalf("good result should be served from cache, got %d fetches", calls)
	}

	clk.Advance(2 * time.Millisecond)
	c.GetCachedOrRetrieveCount(ctx, "u", "facebook")
	if calls := a.calls.Load(); calls != 2 {
		t.Errorf("expired good result should be fetched again, got %d fetches", calls)
	}
}

func TestGetCachedOrRetrieveCount_BadResultTTL(t *testing.T) {
	a := &countingAdapter{name: "facebook", fn: failing(errors.New("down"))}
	m := &recordingMetrics{}
	c, store, clk := newTestCounters(t, []networks.Adapter{a},
		WithMemoryCache(MemoryCacheOptions{BadResultTimeout: 100 * time.Millisecond}),
		WithUnknownCount(-7),
		WithMetrics(m))
	ctx := context.Background()

	if n := c.GetCachedOrRetrieveCount(ctx, "u", "facebook"); n != -7 {
		t.Fatalf("failed fetch should yield the unknown count, got %d", n)
	}
	r, ok := store.Get(cache.KeyFor("facebook", "u"))
	if !ok {
		t.Fatal("bad result should be cached")
	}
	if n, _ := r.Value(); n != -7 {
		t.Errorf("cached bad result = %d, want -7", n)
	}

	clk.Advance(99 * time.Millisecond)
	c.GetCachedOrRetrieveCount(ctx, "u", "facebook")
	if calls := a.calls.Load(); calls != 1 {
		t.Fatalf("bad result should be served from cache, got %d fetches", calls)
	}

	clk.Advance(2 * time.Millisecond)
	c.GetCachedOrRetrieveCount(ctx, "u", "facebook")
	if calls := a.calls.Load(); calls != 2 {
		t.Errorf("expired bad result should be fetched again, got %d fetches", calls)
	}
	if m.outcomes[OutcomeBad] != 2 || m.outcomes[OutcomeGood] != 0 {
		t.Errorf("metrics = %v, want 2 bad", m.outcomes)
	}
}

func TestGetCachedOrRetrieveCount_UnknownNetwork(t *testing.T) {
	c, _, _ := newTestCounters(t, nil)

	if n := c.GetCachedOrRetrieveCount(context.Background(), "u", "myspace"); n != -1 {
		t.Errorf("unknown network should yield the unknown count, got %d", n)
	}
}

func TestGetCachedOrRetrieveCount_Panic(t *testing.T) {
	a := &countingAdapter{name: "facebook", fn: func(context.Context, string) (int, error) {
		panic("nil map")
	}}
	c, _, _ := newTestCounters(t, []networks.Adapter{a})

	if n := c.GetCachedOrRetrieveCount(context.Background(), "u", "facebook"); n != -1 {
		t.Errorf("panicking adapter should yield the unknown count, got %d", n)
	}
}

func TestGetCachedOrRetrieveCount_FetchTimeout(t *testing.T) {
	a := &countingAdapter{name: "facebook", fn: func(ctx context.Context, url string) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}}
	c, _, _ := newTestCounters(t, []networks.Adapter{a},
		WithMemoryCache(MemoryCacheOptions{TimeoutResultTimeout: 20 * time.Millisecond}))

	start := time.Now()
	n := c.GetCachedOrRetrieveCount(context.Background(), "u", "facebook")
	if n != -1 {
		t.Errorf("timed out fetch should yield the unknown count, got %d", n)
	}
	if took := time.Since(start); took > 5*time.Second {
		t.Errorf("fetch should be bounded by the placeholder lifetime, took %v", took)
	}
}

func TestGetCachedOrRetrieveCount_CallerCanceled(t *testing.T) {
	release := make(chan struct{})
	a := &countingAdapter{name: "facebook", fn: func(ctx context.Context, url string) (int, error) {
		<-release
		return 9, nil
	}}
	c, _, _ := newTestCounters(t, []networks.Adapter{a})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if n := c.GetCachedOrRetrieveCount(ctx, "u", "facebook"); n != -1 {
		t.Errorf("canceled caller should get the unknown count, got %d", n)
	}

	// the fetch keeps running for later callers
	close(release)
	if n := c.GetCachedOrRetrieveCount(context.Background(), "u", "facebook"); n != 9 {
		t.Errorf("got %d, want 9", n)
	}
	if calls := a.calls.Load(); calls != 1 {
		t.Errorf("expected one fetch, got %d", calls)
	}
}

func TestRetrieveCounts_SortedAndNeverFails(t *testing.T) {
	down := errors.New("down")
	c, _, _ := newTestCounters(t, []networks.Adapter{
		&countingAdapter{name: "c", fn: failing(down)},
		&countingAdapter{name: "a", fn: failing(down)},
		&countingAdapter{name: "b", fn: failing(down)},
	})

	got := c.RetrieveCounts(context.Background(), "u", []string{"c", "a", "b"})
	want := Counts{{"a", -1}, {"b", -1}, {"c", -1}}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestRetrieveCounts_Concurrent(t *testing.T) {
	var started sync.WaitGroup
	started.Add(3)
	wait := func(n int) networks.FetchFunc {
		return func(ctx context.Context, url string) (int, error) {
			// every fetch must be running before any completes
			started.Done()
			started.Wait()
			return n, nil
		}
	}
	c, _, _ := newTestCounters(t, []networks.Adapter{
		&countingAdapter{name: "x", fn: wait(1)},
		&countingAdapter{name: "y", fn: wait(2)},
		&countingAdapter{name: "z", fn: wait(3)},
	})

	got := c.RetrieveCounts(context.Background(), "u", []string{"z", "y", "x", "y"})
	if m := got.Map(); len(m) != 3 || m["x"] != 1 || m["y"] != 2 || m["z"] != 3 {
		t.Errorf("got %v", got)
	}
}

func TestRetrieveCounts_Empty(t *testing.T) {
	c, _, _ := newTestCounters(t, nil)

	got := c.RetrieveCounts(context.Background(), "u", nil)
	b, err := json.Marshal(got)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "{}" {
		t.Errorf("got %s, want {}", b)
	}
}

func TestRetrieveCounts_FacebookAndTwitter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"share":{"comment_count":2,"share_count":40}}`))
	}))
	defer srv.Close()

	c, _, _ := newTestCounters(t, []networks.Adapter{
		facebook.New(facebook.WithBaseURL(srv.URL)),
		twitter.New(-1),
	}, WithMemoryCache(MemoryCacheOptions{
		GoodResultTimeout:    100 * time.Millisecond,
		BadResultTimeout:     100 * time.Millisecond,
		TimeoutResultTimeout: 100 * time.Millisecond,
	}))

	got := c.RetrieveCounts(context.Background(), "https://example.com/", []string{"twitter", "facebook"})
	b, err := json.Marshal(got)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"facebook":42,"twitter":-1}` {
		t.Errorf("got %s", b)
	}
}

func TestStoreIsolation(t *testing.T) {
	a := &countingAdapter{name: "facebook", fn: fixed(1)}
	reg := networks.NewRegistry()
	reg.Register(a)

	one := New(reg, WithLogger(zerolog.Nop()), WithStore(cache.NewMemory[*Result](cache.Options{})))
	two := New(reg, WithLogger(zerolog.Nop()), WithStore(cache.NewMemory[*Result](cache.Options{})))
	one.GetCachedOrRetrieveCount(context.Background(), "u", "facebook")
	two.GetCachedOrRetrieveCount(context.Background(), "u", "facebook")
	if calls := a.calls.Load(); calls != 2 {
		t.Errorf("instances with their own stores should not share entries, got %d fetches", calls)
	}

	url := "https://example.com/shared-" + time.Now().Format(time.RFC3339Nano)
	three := New(reg, WithLogger(zerolog.Nop()))
	four := New(reg, WithLogger(zerolog.Nop()))
	three.GetCachedOrRetrieveCount(context.Background(), url, "facebook")
	four.GetCachedOrRetrieveCount(context.Background(), url, "facebook")
	if calls := a.calls.Load(); calls != 3 {
		t.Errorf("instances on the shared store should share entries, got %d fetches", calls)
	}
	SharedStore().Remove(cache.KeyFor("facebook", url))
}
