package layers

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/fatih/structs"
	"github.com/unistor/unistor"
	"github.com/unistor/unistor/internal/logger"
)

// Logging records start, end, duration, byte counts and error kind of
// every call passing through it. It never alters the result or the error.
type Logging struct {
	// Logger receives the records. Defaults to a logger named after the
	// backend scheme.
	Logger logger.Logger
}

// Apply implements unistor.Layer.
func (l Logging) Apply(inner unistor.Accessor) unistor.Accessor {
	log := l.Logger
	if log == nil {
		log = logger.New("storage " + inner.Info().Scheme)
	}
	return &loggingAccessor{Accessor: inner, log: log}
}

type loggingAccessor struct {
	unistor.Accessor
	log logger.Logger
}

func (a *loggingAccessor) Close() error {
	return closeAccessor(a.Accessor)
}

// optFields renders an option struct as sorted key=value pairs.
func optFields(v any) string {
	m := structs.Map(v)
	names := structs.Names(v)
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%v", name, m[name]))
	}
	return strings.Join(parts, " ")
}

func (a *loggingAccessor) finish(op, path string, started time.Time, err error) {
	d := time.Since(started)
	if err != nil {
		a.log.Errorf("%s %q failed in %s: %s: %s", op, path, d, unistor.ErrorKind(err), err)
		return
	}
	a.log.Debugf("%s %q finished in %s", op, path, d)
}

func (a *loggingAccessor) Stat(ctx context.Context, path string, o unistor.OpStat) (unistor.Metadata, error) {
	a.log.Debugf("stat %q started %s", path, optFields(o))
	started := time.Now()
	m, err := a.Accessor.Stat(ctx, path, o)
	a.finish("stat", path, started, err)
	return m, err
}

func (a *loggingAccessor) Read(ctx context.Context, path string, o unistor.OpRead) (unistor.Reader, error) {
	a.log.Debugf("read %q started %s", path, optFields(o))
	started := time.Now()
	r, err := a.Accessor.Read(ctx, path, o)
	a.finish("read", path, started, err)
	if err != nil {
		return nil, err
	}
	return &loggingReader{r: r, log: a.log, path: path, started: started}, nil
}

func (a *loggingAccessor) Write(ctx context.Context, path string, o unistor.OpWrite) (unistor.Writer, error) {
	a.log.Debugf("write %q started %s", path, optFields(o))
	started := time.Now()
	w, err := a.Accessor.Write(ctx, path, o)
	a.finish("write", path, started, err)
	if err != nil {
		return nil, err
	}
	return &loggingWriter{w: w, log: a.log, path: path, started: started}, nil
}

func (a *loggingAccessor) Delete(ctx context.Context, path string) error {
	a.log.Debugf("delete %q started", path)
	started := time.Now()
	err := a.Accessor.Delete(ctx, path)
	a.finish("delete", path, started, err)
	return err
}

func (a *loggingAccessor) List(ctx context.Context, path string, o unistor.OpList) (unistor.Lister, error) {
	a.log.Debugf("list %q started %s", path, optFields(o))
	started := time.Now()
	l, err := a.Accessor.List(ctx, path, o)
	a.finish("list", path, started, err)
	return l, err
}

func (a *loggingAccessor) Copy(ctx context.Context, src, dst string) error {
	a.log.Debugf("copy %q -> %q started", src, dst)
	started := time.Now()
	err := a.Accessor.Copy(ctx, src, dst)
	a.finish("copy", src, started, err)
	return err
}

func (a *loggingAccessor) Rename(ctx context.Context, src, dst string) error {
	a.log.Debugf("rename %q -> %q started", src, dst)
	started := time.Now()
	err := a.Accessor.Rename(ctx, src, dst)
	a.finish("rename", src, started, err)
	return err
}

func (a *loggingAccessor) Presign(ctx context.Context, path string, o unistor.OpPresign) (*url.URL, error) {
	a.log.Debugf("presign %q started %s", path, optFields(o))
	started := time.Now()
	u, err := a.Accessor.Presign(ctx, path, o)
	a.finish("presign", path, started, err)
	return u, err
}

type loggingReader struct {
	r       unistor.Reader
	log     logger.Logger
	path    string
	started time.Time
	n       int64
}

func (r *loggingReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	r.n += int64(n)
	return n, err
}

// Seek forwards to the inner reader so seekable backends stay seekable
// through the layer. The operator only exposes it when the capability
// declares seek support.
func (r *loggingReader) Seek(offset int64, whence int) (int64, error) {
	s, ok := r.r.(io.Seeker)
	if !ok {
		return 0, errSeekUnsupported
	}
	return s.Seek(offset, whence)
}

func (r *loggingReader) Close() error {
	err := r.r.Close()
	r.log.Debugf("read %q closed after %d bytes in %s", r.path, r.n, time.Since(r.started))
	return err
}

type loggingWriter struct {
	w       unistor.Writer
	log     logger.Logger
	path    string
	started time.Time
	n       int64
}

func (w *loggingWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.n += int64(n)
	return n, err
}

func (w *loggingWriter) Close() error {
	err := w.w.Close()
	if err != nil {
		w.log.Errorf("write %q commit failed after %d bytes: %s", w.path, w.n, err)
	} else {
		w.log.Debugf("write %q committed %d bytes in %s", w.path, w.n, time.Since(w.started))
	}
	return err
}

func (w *loggingWriter) Abort() error {
	err := w.w.Abort()
	w.log.Debugf("write %q aborted after %d bytes", w.path, w.n)
	return err
}
