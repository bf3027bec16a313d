// Package jobpool implements C8, the bounded work-stealing pool spec §5
// and §2 describe: a fixed maximum concurrency for the section loop's
// extraction phase, the one phase the engine runs through the pool.
// Grounded on quay-claircore/indexer/layerscanner/layerscanner.go, which
// drives an identical "launch every unit of work, bound in-flight count
// with a semaphore, fail fast on the first error" pattern via
// golang.org/x/sync/errgroup and golang.org/x/sync/semaphore.
package jobpool

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultConcurrency implements spec §5's sizing rule:
// max(min(cores, 6), round(0.6 * cores)).
func DefaultConcurrency() int {
	return concurrencyFor(runtime.GOMAXPROCS(0))
}

func concurrencyFor(cores int) int {
	if cores < 1 {
		cores = 1
	}
	a := cores
	if a > 6 {
		a = 6
	}
	b := int(0.6*float64(cores) + 0.5)
	if a > b {
		return a
	}
	return b
}

// Pool bounds the number of concurrently running jobs submitted via [Run].
// The zero value is not usable; use [New].
type Pool struct {
	sem *semaphore.Weighted
	max int64
}

// New returns a Pool that admits at most max concurrent jobs. A
// non-positive max is rectified to [DefaultConcurrency].
func New(max int) *Pool {
	if max < 1 {
		max = DefaultConcurrency()
	}
	return &Pool{sem: semaphore.NewWeighted(int64(max)), max: int64(max)}
}

// MaxConcurrency returns the pool's configured job limit.
func (p *Pool) MaxConcurrency() int64 { return p.max }

// Run launches fn(item) for every item in items, bounded by the pool's
// concurrency limit, and returns the first error encountered (if any)
// after all launched jobs complete. The provided context controls
// cancellation for the whole batch: the first error cancels the
// derived context and further unstarted jobs return immediately.
func Run[T any](ctx context.Context, p *Pool, items []T, fn func(context.Context, T) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, item := range items {
		item := item
		g.Go(func() error {
			if err := p.sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer p.sem.Release(1)
			return fn(gctx, item)
		})
	}
	return g.Wait()
}

// Batches splits items into chunks of size n (spec §5's "batches of size
// clamp(...)" sizing for content seeding and extraction). The final batch
// may be shorter than n. n < 1 is rectified to 1.
func Batches[T any](items []T, n int) [][]T {
	if n < 1 {
		n = 1
	}
	var out [][]T
	for i := 0; i < len(items); i += n {
		end := i + n
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[i:end])
	}
	return out
}

// Clamp restricts v to the inclusive range [lo, hi] (spec §5's
// "clamp(cores*2, 4, 30)" and "clamp(pkgs/cores/10, 10, 100)" sizing
// rules).
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
