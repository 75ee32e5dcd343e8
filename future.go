package unistor

import "context"

// Future is the pending result of an asynchronous operation. It resolves
// exactly once; Wait may be called any number of times and from multiple
// goroutines.
type Future[T any] struct {
	doneC chan struct{}
	val   T
	err   error
}

func goFuture[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	f := &Future[T]{doneC: make(chan struct{})}
	go func() {
		f.val, f.err = fn(ctx)
		close(f.doneC)
	}()
	return f
}

// Done is closed when the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.doneC
}

// Wait blocks until the result is available or ctx is done. Cancelling
// the wait does not cancel the operation itself; cancel the context the
// operation was started with for that.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.doneC:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
