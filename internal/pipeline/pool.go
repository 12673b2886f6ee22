package pipeline

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Pool bounds how many CPU-bound stages run at once across all requests.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool creates a pool with the given number of slots (at least one).
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(workers))}
}

// Do runs fn once a slot is free. It returns ctx.Err() if the context ends
// while waiting.
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn()
}

// within runs fn on the pool and returns its value.
func within[T any](ctx context.Context, p *Pool, fn func() (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, func() error {
		var err error
		out, err = fn()
		return err
	})
	return out, err
}
