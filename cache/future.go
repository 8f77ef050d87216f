package cache

import (
	"context"
	"sync"
)

// Future is the pending result of a non-blocking Cache call.
//
// Abandoning a Future does not cancel the work behind it: a dispatched
// backend call runs to completion and its result is discarded.
type Future[T any] struct {
	done  chan struct{}
	once  sync.Once
	value T
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// resolvedFuture returns a Future that is already complete.
func resolvedFuture[T any](v T) *Future[T] {
	f := newFuture[T]()
	f.resolve(v)
	return f
}

// Go runs fn on a new goroutine and returns its pending result. It adapts
// a blocking function to the AsyncFunc shape.
func Go[T any](fn func() T) *Future[T] {
	f := newFuture[T]()
	go func() { f.resolve(fn()) }()
	return f
}

func (f *Future[T]) resolve(v T) {
	f.once.Do(func() {
		f.value = v
		close(f.done)
	})
}

// Done returns a channel that is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the result is available or ctx is done. On ctx expiry
// it returns the zero value and ctx.Err(); the underlying work continues.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result blocks until the result is available.
func (f *Future[T]) Result() T {
	<-f.done
	return f.value
}

// Lookup is the result of a status read: the value and whether it was a hit.
type Lookup[V any] struct {
	Value V
	Hit   bool
}

// Outcome is the result of a memoized call.
type Outcome[R any] struct {
	Value R
	Err   error
}
