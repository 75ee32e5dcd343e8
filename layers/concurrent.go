package layers

import (
	"context"
	"io"
	"net/url"
	"sync"

	"github.com/unistor/unistor"
	"github.com/unistor/unistor/internal/admission"
)

// ConcurrencyLimit bounds the number of in-flight operations through a
// counting admission gate. Excess calls block until a slot frees or
// their context is done. Read and write handles hold their slot until
// closed.
type ConcurrencyLimit struct {
	// Limit is the global in-flight bound. Default 64.
	Limit int
	// PerOp optionally bounds individual operation kinds ("read",
	// "write", ...) on top of the global limit.
	PerOp map[string]int
}

// Apply implements unistor.Layer.
func (l ConcurrencyLimit) Apply(inner unistor.Accessor) unistor.Accessor {
	limit := l.Limit
	if limit <= 0 {
		limit = 64
	}
	a := &limitAccessor{
		Accessor: inner,
		global:   admission.New(limit),
		perOp:    make(map[string]*admission.Gate, len(l.PerOp)),
	}
	for op, n := range l.PerOp {
		if n > 0 {
			a.perOp[op] = admission.New(n)
		}
	}
	return a
}

type limitAccessor struct {
	unistor.Accessor
	global *admission.Gate
	perOp  map[string]*admission.Gate
}

func (a *limitAccessor) Close() error {
	return closeAccessor(a.Accessor)
}

// acquire takes the global slot first, then the per-op slot. Release
// happens in reverse. The fixed order keeps two concurrent callers from
// deadlocking on each other's partial acquisitions.
func (a *limitAccessor) acquire(ctx context.Context, op, path string) (func(), error) {
	if err := a.global.Acquire(ctx); err != nil {
		return nil, &unistor.Error{Kind: unistor.KindUnexpected, Op: op, Path: path, Err: err}
	}
	g, ok := a.perOp[op]
	if !ok {
		return a.global.Release, nil
	}
	if err := g.Acquire(ctx); err != nil {
		a.global.Release()
		return nil, &unistor.Error{Kind: unistor.KindUnexpected, Op: op, Path: path, Err: err}
	}
	return func() {
		g.Release()
		a.global.Release()
	}, nil
}

func (a *limitAccessor) Stat(ctx context.Context, path string, o unistor.OpStat) (unistor.Metadata, error) {
	release, err := a.acquire(ctx, "stat", path)
	if err != nil {
		return unistor.Metadata{}, err
	}
	defer release()
	return a.Accessor.Stat(ctx, path, o)
}

func (a *limitAccessor) Read(ctx context.Context, path string, o unistor.OpRead) (unistor.Reader, error) {
	release, err := a.acquire(ctx, "read", path)
	if err != nil {
		return nil, err
	}
	r, err := a.Accessor.Read(ctx, path, o)
	if err != nil {
		release()
		return nil, err
	}
	return &slotReader{r: r, release: release}, nil
}

func (a *limitAccessor) Write(ctx context.Context, path string, o unistor.OpWrite) (unistor.Writer, error) {
	release, err := a.acquire(ctx, "write", path)
	if err != nil {
		return nil, err
	}
	w, err := a.Accessor.Write(ctx, path, o)
	if err != nil {
		release()
		return nil, err
	}
	return &slotWriter{w: w, release: release}, nil
}

func (a *limitAccessor) Delete(ctx context.Context, path string) error {
	release, err := a.acquire(ctx, "delete", path)
	if err != nil {
		return err
	}
	defer release()
	return a.Accessor.Delete(ctx, path)
}

func (a *limitAccessor) List(ctx context.Context, path string, o unistor.OpList) (unistor.Lister, error) {
	release, err := a.acquire(ctx, "list", path)
	if err != nil {
		return nil, err
	}
	l, err := a.Accessor.List(ctx, path, o)
	if err != nil {
		release()
		return nil, err
	}
	return &slotLister{l: l, release: release}, nil
}

func (a *limitAccessor) Copy(ctx context.Context, src, dst string) error {
	release, err := a.acquire(ctx, "copy", src)
	if err != nil {
		return err
	}
	defer release()
	return a.Accessor.Copy(ctx, src, dst)
}

func (a *limitAccessor) Rename(ctx context.Context, src, dst string) error {
	release, err := a.acquire(ctx, "rename", src)
	if err != nil {
		return err
	}
	defer release()
	return a.Accessor.Rename(ctx, src, dst)
}

func (a *limitAccessor) Presign(ctx context.Context, path string, o unistor.OpPresign) (*url.URL, error) {
	release, err := a.acquire(ctx, "presign", path)
	if err != nil {
		return nil, err
	}
	defer release()
	return a.Accessor.Presign(ctx, path, o)
}

// slotLister holds its slot while the sequence is drained. Lazy listers
// do their directory I/O inside Next, so the bound must cover the whole
// drain, not just the open.
type slotLister struct {
	l       unistor.Lister
	release func()
	once    sync.Once
}

func (l *slotLister) Next(ctx context.Context) (*unistor.Entry, error) {
	e, err := l.l.Next(ctx)
	if err != nil || e == nil {
		l.once.Do(l.release)
	}
	return e, err
}

type slotReader struct {
	r       unistor.Reader
	release func()
	once    sync.Once
}

func (r *slotReader) Read(p []byte) (int, error) {
	return r.r.Read(p)
}

func (r *slotReader) Seek(offset int64, whence int) (int64, error) {
	s, ok := r.r.(io.Seeker)
	if !ok {
		return 0, errSeekUnsupported
	}
	return s.Seek(offset, whence)
}

func (r *slotReader) Close() error {
	err := r.r.Close()
	r.once.Do(r.release)
	return err
}

type slotWriter struct {
	w       unistor.Writer
	release func()
	once    sync.Once
}

func (w *slotWriter) Write(p []byte) (int, error) {
	return w.w.Write(p)
}

func (w *slotWriter) Close() error {
	err := w.w.Close()
	w.once.Do(w.release)
	return err
}

func (w *slotWriter) Abort() error {
	err := w.w.Abort()
	w.once.Do(w.release)
	return err
}
