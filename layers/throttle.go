package layers

import (
	"context"
	"io"

	"github.com/juju/ratelimit"
	"github.com/unistor/unistor"
)

// Throttle bounds the byte rate of read and write streams with a shared
// token bucket. Both directions draw from the same bucket, matching a
// single backend connection budget.
type Throttle struct {
	// Rate is the sustained limit in bytes per second. A non-positive
	// Rate leaves the chain unchanged.
	Rate float64
	// Capacity is the burst size in bytes. Defaults to one second worth
	// of Rate.
	Capacity int64
}

// Apply implements unistor.Layer.
func (l Throttle) Apply(inner unistor.Accessor) unistor.Accessor {
	if l.Rate <= 0 {
		return inner
	}
	capacity := l.Capacity
	if capacity <= 0 {
		capacity = int64(l.Rate)
	}
	return &throttleAccessor{
		Accessor: inner,
		bucket:   ratelimit.NewBucketWithRate(l.Rate, capacity),
	}
}

type throttleAccessor struct {
	unistor.Accessor
	bucket *ratelimit.Bucket
}

func (a *throttleAccessor) Close() error {
	return closeAccessor(a.Accessor)
}

func (a *throttleAccessor) Read(ctx context.Context, path string, o unistor.OpRead) (unistor.Reader, error) {
	r, err := a.Accessor.Read(ctx, path, o)
	if err != nil {
		return nil, err
	}
	return &throttledReader{r: r, limited: ratelimit.Reader(r, a.bucket)}, nil
}

func (a *throttleAccessor) Write(ctx context.Context, path string, o unistor.OpWrite) (unistor.Writer, error) {
	w, err := a.Accessor.Write(ctx, path, o)
	if err != nil {
		return nil, err
	}
	return &throttledWriter{w: w, limited: ratelimit.Writer(w, a.bucket)}, nil
}

type throttledReader struct {
	r       unistor.Reader
	limited io.Reader
}

func (r *throttledReader) Read(p []byte) (int, error) {
	return r.limited.Read(p)
}

func (r *throttledReader) Seek(offset int64, whence int) (int64, error) {
	s, ok := r.r.(io.Seeker)
	if !ok {
		return 0, errSeekUnsupported
	}
	return s.Seek(offset, whence)
}

func (r *throttledReader) Close() error {
	return r.r.Close()
}

type throttledWriter struct {
	w       unistor.Writer
	limited io.Writer
}

func (w *throttledWriter) Write(p []byte) (int, error) {
	return w.limited.Write(p)
}

func (w *throttledWriter) Close() error {
	return w.w.Close()
}

func (w *throttledWriter) Abort() error {
	return w.w.Abort()
}
