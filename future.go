package webcrypto

import (
	"context"
	"sync"
)

// Future is a single-resolution asynchronous result: it resolves or rejects
// exactly once, never both. There is no cancellation; once a provider request
// has been issued it runs to completion.
type Future[T any] struct {
	done  chan struct{}
	once  sync.Once
	value T
	err   error
}

func newFuture[T any]() (*Future[T], func(T, error)) {
	f := &Future[T]{done: make(chan struct{})}
	complete := func(value T, err error) {
		f.once.Do(func() {
			f.value = value
			f.err = err
			close(f.done)
		})
	}
	return f, complete
}

// Done is closed once the future has settled.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Await blocks until the future settles. A done ctx abandons the wait only;
// the underlying operation still runs to completion.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func resolvedFuture[T any](value T) *Future[T] {
	f, complete := newFuture[T]()
	complete(value, nil)
	return f
}

func rejectedFuture[T any](err error) *Future[T] {
	f, complete := newFuture[T]()
	var zero T
	complete(zero, err)
	return f
}

// goFuture runs fn on its own goroutine and settles the returned future with
// its one-shot completion.
func goFuture[T any](fn func(ctx context.Context) (T, error)) *Future[T] {
	f, complete := newFuture[T]()
	go func() {
		complete(fn(context.Background()))
	}()
	return f
}
