package layers

import (
	"context"
	"io"
	"net/url"
	"time"

	"github.com/rcrowley/go-metrics"
	"github.com/unistor/unistor"
)

// Metrics records per-operation timers, error meters and transferred byte
// meters into a go-metrics registry. One timer sample is recorded per
// call reaching this layer, so placing Metrics inside a Retry layer
// counts individual attempts while placing it outside counts logical
// calls.
type Metrics struct {
	// Registry receives the metrics. Callers who want to read the
	// numbers must pass their own; the default is a private registry.
	Registry metrics.Registry
}

// Apply implements unistor.Layer.
func (l Metrics) Apply(inner unistor.Accessor) unistor.Accessor {
	r := l.Registry
	if r == nil {
		r = metrics.NewRegistry()
	}
	a := &metricsAccessor{
		Accessor:     inner,
		timers:       make(map[string]metrics.Timer),
		errorMeters:  make(map[string]metrics.Meter),
		bytesRead:    metrics.NewRegisteredMeter("bytes_read", r),
		bytesWritten: metrics.NewRegisteredMeter("bytes_written", r),
	}
	for _, op := range []string{"stat", "read", "write", "delete", "list", "copy", "rename", "presign"} {
		a.timers[op] = metrics.NewRegisteredTimer(op, r)
		a.errorMeters[op] = metrics.NewRegisteredMeter(op+"_errors", r)
	}
	return a
}

type metricsAccessor struct {
	unistor.Accessor
	timers       map[string]metrics.Timer
	errorMeters  map[string]metrics.Meter
	bytesRead    metrics.Meter
	bytesWritten metrics.Meter
}

func (a *metricsAccessor) Close() error {
	return closeAccessor(a.Accessor)
}

func (a *metricsAccessor) record(op string, started time.Time, err error) {
	a.timers[op].UpdateSince(started)
	if err != nil {
		a.errorMeters[op].Mark(1)
	}
}

func (a *metricsAccessor) Stat(ctx context.Context, path string, o unistor.OpStat) (unistor.Metadata, error) {
	started := time.Now()
	m, err := a.Accessor.Stat(ctx, path, o)
	a.record("stat", started, err)
	return m, err
}

func (a *metricsAccessor) Read(ctx context.Context, path string, o unistor.OpRead) (unistor.Reader, error) {
	started := time.Now()
	r, err := a.Accessor.Read(ctx, path, o)
	a.record("read", started, err)
	if err != nil {
		return nil, err
	}
	return &meteredReader{r: r, meter: a.bytesRead}, nil
}

func (a *metricsAccessor) Write(ctx context.Context, path string, o unistor.OpWrite) (unistor.Writer, error) {
	started := time.Now()
	w, err := a.Accessor.Write(ctx, path, o)
	a.record("write", started, err)
	if err != nil {
		return nil, err
	}
	return &meteredWriter{w: w, meter: a.bytesWritten}, nil
}

func (a *metricsAccessor) Delete(ctx context.Context, path string) error {
	started := time.Now()
	err := a.Accessor.Delete(ctx, path)
	a.record("delete", started, err)
	return err
}

func (a *metricsAccessor) List(ctx context.Context, path string, o unistor.OpList) (unistor.Lister, error) {
	started := time.Now()
	l, err := a.Accessor.List(ctx, path, o)
	a.record("list", started, err)
	return l, err
}

func (a *metricsAccessor) Copy(ctx context.Context, src, dst string) error {
	started := time.Now()
	err := a.Accessor.Copy(ctx, src, dst)
	a.record("copy", started, err)
	return err
}

func (a *metricsAccessor) Rename(ctx context.Context, src, dst string) error {
	started := time.Now()
	err := a.Accessor.Rename(ctx, src, dst)
	a.record("rename", started, err)
	return err
}

func (a *metricsAccessor) Presign(ctx context.Context, path string, o unistor.OpPresign) (*url.URL, error) {
	started := time.Now()
	u, err := a.Accessor.Presign(ctx, path, o)
	a.record("presign", started, err)
	return u, err
}

type meteredReader struct {
	r     unistor.Reader
	meter metrics.Meter
}

func (r *meteredReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	r.meter.Mark(int64(n))
	return n, err
}

func (r *meteredReader) Seek(offset int64, whence int) (int64, error) {
	s, ok := r.r.(io.Seeker)
	if !ok {
		return 0, errSeekUnsupported
	}
	return s.Seek(offset, whence)
}

func (r *meteredReader) Close() error {
	return r.r.Close()
}

type meteredWriter struct {
	w     unistor.Writer
	meter metrics.Meter
}

func (w *meteredWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.meter.Mark(int64(n))
	return n, err
}

func (w *meteredWriter) Close() error {
	return w.w.Close()
}

func (w *meteredWriter) Abort() error {
	return w.w.Abort()
}
