package pipeline

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Pool bounds the number of concurrently running handshake verifications.
// Chain validation and key derivation are CPU-bound; without a bound a
// login burst could starve the I/O path of established connections.
type Pool struct {
	sem *semaphore.Weighted
}

func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Pool{sem: semaphore.NewWeighted(int64(workers))}
}

// Submit runs fn on its own goroutine once a worker slot is free. Per
// connection there is at most one submission in flight, so ordering
// between submissions of different connections does not matter.
func (p *Pool) Submit(fn func()) {
	go func() {
		// Only fails on context cancellation, and this context has none.
		_ = p.sem.Acquire(context.Background(), 1)
		defer p.sem.Release(1)
		fn()
	}()
}
