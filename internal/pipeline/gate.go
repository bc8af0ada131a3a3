package pipeline

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// DefaultMaxConcurrentRuns bounds how many pipeline runs execute at once
// across the process.
const DefaultMaxConcurrentRuns = 3

// Gate is the global concurrency limit for pipeline runs. Waiters are
// released in FIFO order as running pipelines finish.
type Gate struct {
	sem *semaphore.Weighted
}

// NewGate creates a Gate admitting up to limit concurrent runs.
func NewGate(limit int) *Gate {
	if limit <= 0 {
		limit = DefaultMaxConcurrentRuns
	}
	return &Gate{sem: semaphore.NewWeighted(int64(limit))}
}

// Acquire blocks until a run slot is free or the context is done.
func (g *Gate) Acquire(ctx context.Context) error {
	return g.sem.Acquire(ctx, 1)
}

// Release frees a run slot.
func (g *Gate) Release() {
	g.sem.Release(1)
}

// TryAcquire claims a slot without blocking.
func (g *Gate) TryAcquire() bool {
	return g.sem.TryAcquire(1)
}
