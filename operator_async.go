package unistor

import (
	"context"
	"net/url"
)

// AsyncOperator exposes every Operator operation in future form with
// identical semantics. Each call runs on exactly one goroutine started
// when the caller invokes it; the library never starts work the caller
// did not ask for. Cancellation flows through the context given at call
// time.
type AsyncOperator struct {
	op *Operator
}

// Async returns the asynchronous façade of the operator.
func (o *Operator) Async() *AsyncOperator {
	return &AsyncOperator{op: o}
}

func (a *AsyncOperator) Stat(ctx context.Context, path string) *Future[Metadata] {
	return goFuture(ctx, func(ctx context.Context) (Metadata, error) {
		return a.op.Stat(ctx, path)
	})
}

func (a *AsyncOperator) StatWith(ctx context.Context, path string, opt OpStat) *Future[Metadata] {
	return goFuture(ctx, func(ctx context.Context) (Metadata, error) {
		return a.op.StatWith(ctx, path, opt)
	})
}

func (a *AsyncOperator) Read(ctx context.Context, path string) *Future[[]byte] {
	return goFuture(ctx, func(ctx context.Context) ([]byte, error) {
		return a.op.Read(ctx, path)
	})
}

func (a *AsyncOperator) ReadWith(ctx context.Context, path string, opt OpRead) *Future[[]byte] {
	return goFuture(ctx, func(ctx context.Context) ([]byte, error) {
		return a.op.ReadWith(ctx, path, opt)
	})
}

func (a *AsyncOperator) Write(ctx context.Context, path string, b []byte) *Future[struct{}] {
	return goFuture(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.op.Write(ctx, path, b)
	})
}

func (a *AsyncOperator) WriteWith(ctx context.Context, path string, b []byte, opt OpWrite) *Future[struct{}] {
	return goFuture(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.op.WriteWith(ctx, path, b, opt)
	})
}

func (a *AsyncOperator) Delete(ctx context.Context, path string) *Future[struct{}] {
	return goFuture(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.op.Delete(ctx, path)
	})
}

func (a *AsyncOperator) DeleteBatch(ctx context.Context, paths []string) *Future[[]DeleteResult] {
	return goFuture(ctx, func(ctx context.Context) ([]DeleteResult, error) {
		return a.op.DeleteBatch(ctx, paths), nil
	})
}

func (a *AsyncOperator) ListAll(ctx context.Context, path string, opt OpList) *Future[[]Entry] {
	return goFuture(ctx, func(ctx context.Context) ([]Entry, error) {
		return a.op.ListAll(ctx, path, opt)
	})
}

func (a *AsyncOperator) Copy(ctx context.Context, src, dst string) *Future[struct{}] {
	return goFuture(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.op.Copy(ctx, src, dst)
	})
}

func (a *AsyncOperator) Rename(ctx context.Context, src, dst string) *Future[struct{}] {
	return goFuture(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.op.Rename(ctx, src, dst)
	})
}

func (a *AsyncOperator) Presign(ctx context.Context, path string, opt OpPresign) *Future[*url.URL] {
	return goFuture(ctx, func(ctx context.Context) (*url.URL, error) {
		return a.op.Presign(ctx, path, opt)
	})
}
