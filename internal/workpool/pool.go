// Package workpool runs blocking calls (object store metadata lookups, model
// provider requests) on a bounded set of goroutines so a slow upstream cannot
// pin request handlers or exhaust the process.
package workpool

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

type Pool struct {
	sem  *semaphore.Weighted
	size int64
}

func New(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: int64(size)}
}

func (p *Pool) Size() int {
	return int(p.size)
}

type result[T any] struct {
	val T
	err error
}

// Do waits for a free slot, runs fn on its own goroutine and returns its result.
// If ctx ends first Do returns ctx.Err() immediately; fn keeps its slot until it
// returns, and is expected to observe the same ctx to stop early.
func Do[T any](ctx context.Context, p *Pool, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return zero, fmt.Errorf("workpool: waiting for slot: %w", err)
	}

	done := make(chan result[T], 1)
	go func() {
		defer p.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				done <- result[T]{err: fmt.Errorf("workpool: task panicked: %v", r)}
			}
		}()
		v, err := fn(ctx)
		done <- result[T]{val: v, err: err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
