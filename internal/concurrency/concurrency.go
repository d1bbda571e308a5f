// Package concurrency holds the goroutine helpers shared by the cluster runtime and the
// command line.
package concurrency

import (
	"context"

	"github.com/sourcegraph/conc/pool"
)

// NewPool returns a pool running at most maxGoroutines tasks at once. The first failing task
// cancels the context of the others and Wait only returns that first error.
func NewPool(ctx context.Context, maxGoroutines int) *pool.ContextPool {
	return pool.New().
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError().
		WithMaxGoroutines(maxGoroutines)
}

// Await receives one value from ch. It gives up with the error of ctx once ctx is done; a
// value that is already available wins over cancellation.
func Await[T any](ctx context.Context, ch <-chan T) (T, error) {
	select {
	case v := <-ch:
		return v, nil
	default:
	}
	select {
	case v := <-ch:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
