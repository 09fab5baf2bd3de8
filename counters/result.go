package counters

import "context"

// Result is a count that may still be being fetched. Every caller looking
// up the same pair while the fetch runs gets the same *Result.
type Result struct {
	done  chan struct{}
	count int
}

func newPending() *Result {
	return &Result{done: make(chan struct{})}
}

func resolved(n int) *Result {
	r := newPending()
	r.resolve(n)
	return r
}

// resolve must be called exactly once.
func (r *Result) resolve(n int) {
	r.count = n
	close(r.done)
}

// Done is closed once the count is known.
func (r *Result) Done() <-chan struct{} {
	return r.done
}

// Value returns the count and true if it is known, without blocking.
func (r *Result) Value() (int, bool) {
	select {
	case <-r.done:
		return r.count, true
	default:
		return 0, false
	}
}

// Wait blocks until the count is known or ctx ends.
func (r *Result) Wait(ctx context.Context) (int, error) {
	select {
	case <-r.done:
		return r.count, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
