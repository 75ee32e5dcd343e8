package unistor

import (
	"context"
	"errors"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/unistor/unistor/internal/counters"
	"github.com/unistor/unistor/internal/logger"
)

// Operator is the user-facing façade over a layered Accessor. It
// validates options against the backend capability before dispatch,
// normalizes paths and errors, and keeps per-operator transfer counters.
//
// An Operator owns its layer chain and terminal accessor exclusively.
// It is safe for concurrent use; the handles it returns are not.
type Operator struct {
	info Info
	acc  Accessor
	log  logger.Logger

	stats counters.Counters
}

// NewOperator builds an Operator over a driver accessor, wrapping it with
// the given layers. Layers wrap in the order supplied: the last layer is
// outermost and sees calls first.
func NewOperator(a Accessor, layers ...Layer) (*Operator, error) {
	if a == nil {
		return nil, errorf(KindInvalidInput, "new", "", "nil accessor")
	}
	acc := applyLayers(a, layers)
	info := acc.Info()
	return &Operator{
		info: info,
		acc:  acc,
		log:  logger.New("operator " + info.Scheme),
	}, nil
}

// Info returns the backend identity and the capability set after layer
// narrowing.
func (o *Operator) Info() Info {
	return o.info
}

// Close releases resources held by the layer chain and the driver.
// Outstanding readers and writers must be closed first.
func (o *Operator) Close() error {
	if c, ok := o.acc.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Stats is a snapshot of the operator's transfer counters.
type Stats struct {
	BytesRead    int64
	BytesWritten int64
	Operations   int64
	Errors       int64
}

// Stats returns a snapshot of counters accumulated since construction.
func (o *Operator) Stats() Stats {
	return Stats{
		BytesRead:    o.stats.Read(counters.BytesRead),
		BytesWritten: o.stats.Read(counters.BytesWritten),
		Operations:   o.stats.Read(counters.Operations),
		Errors:       o.stats.Read(counters.Errors),
	}
}

// Stat returns the metadata of the object at path.
func (o *Operator) Stat(ctx context.Context, path string) (Metadata, error) {
	return o.StatWith(ctx, path, OpStat{})
}

// StatWith is Stat with options.
func (o *Operator) StatWith(ctx context.Context, p string, opt OpStat) (Metadata, error) {
	const op = "stat"
	p, err := o.preparePath(op, p)
	if err != nil {
		return Metadata{}, o.done(op, p, err)
	}
	if err := o.checkStat(op, p, opt); err != nil {
		return Metadata{}, o.done(op, p, err)
	}
	m, err := o.acc.Stat(ctx, p, opt)
	return m, o.done(op, p, err)
}

// IsExist reports whether an object exists at path.
func (o *Operator) IsExist(ctx context.Context, path string) (bool, error) {
	_, err := o.Stat(ctx, path)
	if IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Read returns the whole content of the object at path.
func (o *Operator) Read(ctx context.Context, path string) ([]byte, error) {
	return o.ReadWith(ctx, path, FullRead)
}

// ReadWith reads the range selected by opt and returns its content.
func (o *Operator) ReadWith(ctx context.Context, path string, opt OpRead) ([]byte, error) {
	r, err := o.Reader(ctx, path, opt)
	if err != nil {
		return nil, err
	}
	b, err := io.ReadAll(r)
	if cerr := r.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, o.done("read", path, err)
	}
	return b, nil
}

// Reader opens a streaming read handle. The caller owns the handle and
// must close it. When the backend capability declares ReadCanSeek the
// returned handle also implements io.Seeker.
func (o *Operator) Reader(ctx context.Context, p string, opt OpRead) (Reader, error) {
	const op = "read"
	p, err := o.preparePath(op, p)
	if err != nil {
		return nil, o.done(op, p, err)
	}
	if err := o.checkRead(op, p, opt); err != nil {
		return nil, o.done(op, p, err)
	}
	r, err := o.acc.Read(ctx, p, opt)
	if err != nil {
		return nil, o.done(op, p, err)
	}
	o.stats.Incr(counters.Operations, 1)
	return o.countReader(r), nil
}

// Write replaces the object at path with b.
func (o *Operator) Write(ctx context.Context, path string, b []byte) error {
	return o.WriteWith(ctx, path, b, OpWrite{})
}

// WriteWith writes b with options. The write is committed before it
// returns; on error no partial object is left visible where the backend
// allows atomicity.
func (o *Operator) WriteWith(ctx context.Context, path string, b []byte, opt OpWrite) error {
	w, err := o.Writer(ctx, path, opt)
	if err != nil {
		return err
	}
	if _, err = w.Write(b); err != nil {
		_ = w.Abort()
		return o.done("write", path, err)
	}
	if err = w.Close(); err != nil {
		return o.done("write", path, err)
	}
	return nil
}

// Writer opens a streaming write handle. Close commits the object, Abort
// discards it and leaves the backend unchanged.
func (o *Operator) Writer(ctx context.Context, p string, opt OpWrite) (Writer, error) {
	const op = "write"
	p, err := o.preparePath(op, p)
	if err != nil {
		return nil, o.done(op, p, err)
	}
	if err := o.checkWrite(op, p, opt); err != nil {
		return nil, o.done(op, p, err)
	}
	w, err := o.acc.Write(ctx, p, opt)
	if err != nil {
		return nil, o.done(op, p, err)
	}
	o.stats.Incr(counters.Operations, 1)
	return &countWriter{w: w, stats: &o.stats}, nil
}

// Delete removes the object at path. Deleting a missing object is not an
// error.
func (o *Operator) Delete(ctx context.Context, p string) error {
	const op = "delete"
	p, err := o.preparePath(op, p)
	if err != nil {
		return o.done(op, p, err)
	}
	if !o.info.Capability.Delete {
		return o.done(op, p, errorf(KindUnsupported, op, p, "backend %q does not support delete", o.info.Scheme))
	}
	return o.done(op, p, o.acc.Delete(ctx, p))
}

// DeleteResult is the outcome of one path in a batch delete.
type DeleteResult struct {
	Path string
	Err  error
}

// DeleteBatch deletes every path and reports a per-item outcome instead
// of a single aggregate error.
func (o *Operator) DeleteBatch(ctx context.Context, paths []string) []DeleteResult {
	results := make([]DeleteResult, 0, len(paths))
	for _, p := range paths {
		results = append(results, DeleteResult{Path: p, Err: o.Delete(ctx, p)})
	}
	return results
}

// List returns a lazy sequence of entries under path. An empty path lists
// the root.
func (o *Operator) List(ctx context.Context, p string, opt OpList) (Lister, error) {
	const op = "list"
	p, err := o.prepareDirPath(op, p)
	if err != nil {
		return nil, o.done(op, p, err)
	}
	if err := o.checkList(op, p, opt); err != nil {
		return nil, o.done(op, p, err)
	}
	l, err := o.acc.List(ctx, p, opt)
	return l, o.done(op, p, err)
}

// ListAll drains a listing into a slice.
func (o *Operator) ListAll(ctx context.Context, path string, opt OpList) ([]Entry, error) {
	l, err := o.List(ctx, path, opt)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	for {
		e, err := l.Next(ctx)
		if err != nil {
			return nil, o.done("list", path, err)
		}
		if e == nil {
			return entries, nil
		}
		entries = append(entries, *e)
	}
}

// Copy duplicates the object at src to dst.
func (o *Operator) Copy(ctx context.Context, src, dst string) error {
	return o.pairOp(ctx, "copy", src, dst, o.info.Capability.Copy, o.acc.Copy)
}

// Rename moves the object at src to dst.
func (o *Operator) Rename(ctx context.Context, src, dst string) error {
	return o.pairOp(ctx, "rename", src, dst, o.info.Capability.Rename, o.acc.Rename)
}

func (o *Operator) pairOp(ctx context.Context, op, src, dst string, supported bool, fn func(context.Context, string, string) error) error {
	src, err := o.preparePath(op, src)
	if err != nil {
		return o.done(op, src, err)
	}
	dst, err = o.preparePath(op, dst)
	if err != nil {
		return o.done(op, dst, err)
	}
	if !supported {
		return o.done(op, src, errorf(KindUnsupported, op, src, "backend %q does not support %s", o.info.Scheme, op))
	}
	if src == dst {
		return o.done(op, src, errorf(KindInvalidInput, op, src, "source and destination are the same"))
	}
	return o.done(op, src, fn(ctx, src, dst))
}

// Presign returns a time-limited direct-access URL for path.
func (o *Operator) Presign(ctx context.Context, p string, opt OpPresign) (*url.URL, error) {
	const op = "presign"
	p, err := o.preparePath(op, p)
	if err != nil {
		return nil, o.done(op, p, err)
	}
	if !o.info.Capability.Presign {
		return nil, o.done(op, p, errorf(KindUnsupported, op, p, "backend %q does not support presign", o.info.Scheme))
	}
	if opt.Expire <= 0 {
		return nil, o.done(op, p, errorf(KindInvalidInput, op, p, "presign expire must be positive"))
	}
	if opt.Method == "" {
		opt.Method = "GET"
	}
	u, err := o.acc.Presign(ctx, p, opt)
	return u, o.done(op, p, err)
}

// done finalizes one operation: counts it, and normalizes foreign errors
// into the shared taxonomy.
func (o *Operator) done(op, path string, err error) error {
	o.stats.Incr(counters.Operations, 1)
	if err == nil {
		return nil
	}
	o.stats.Incr(counters.Errors, 1)
	var e *Error
	if !errors.As(err, &e) {
		err = newError(KindUnexpected, op, path, err)
	}
	o.log.Debugf("%s %q failed: %s", op, path, err)
	return err
}

func (o *Operator) preparePath(op, p string) (string, error) {
	np, err := normalizePath(p)
	if err != nil {
		return p, newError(KindInvalidInput, op, p, err)
	}
	if np == "" {
		return p, errorf(KindInvalidInput, op, p, "empty path")
	}
	return np, nil
}

func (o *Operator) prepareDirPath(op, p string) (string, error) {
	np, err := normalizePath(p)
	if err != nil {
		return p, newError(KindInvalidInput, op, p, err)
	}
	return np, nil
}

func (o *Operator) checkStat(op, p string, opt OpStat) error {
	c := o.info.Capability
	if !c.Stat {
		return errorf(KindUnsupported, op, p, "backend %q does not support stat", o.info.Scheme)
	}
	if opt.IfMatch != "" && !c.StatWithIfMatch {
		return errorf(KindUnsupported, op, p, "backend %q does not support stat if-match", o.info.Scheme)
	}
	return nil
}

func (o *Operator) checkRead(op, p string, opt OpRead) error {
	c := o.info.Capability
	if !c.Read {
		return errorf(KindUnsupported, op, p, "backend %q does not support read", o.info.Scheme)
	}
	if opt.Offset < 0 {
		return errorf(KindInvalidInput, op, p, "negative read offset")
	}
	if (opt.Offset > 0 || opt.Length > 0) && !c.ReadWithRange {
		return errorf(KindUnsupported, op, p, "backend %q does not support range read", o.info.Scheme)
	}
	if opt.IfMatch != "" && !c.ReadWithIfMatch {
		return errorf(KindUnsupported, op, p, "backend %q does not support read if-match", o.info.Scheme)
	}
	if opt.Version != "" && !c.ReadWithVersion {
		return errorf(KindUnsupported, op, p, "backend %q does not support versioned read", o.info.Scheme)
	}
	return nil
}

func (o *Operator) checkWrite(op, p string, opt OpWrite) error {
	c := o.info.Capability
	if !c.Write {
		return errorf(KindUnsupported, op, p, "backend %q does not support write", o.info.Scheme)
	}
	if opt.Append && !c.WriteCanAppend {
		return errorf(KindUnsupported, op, p, "backend %q does not support append", o.info.Scheme)
	}
	if opt.ContentType != "" && !c.WriteWithContentType {
		return errorf(KindUnsupported, op, p, "backend %q does not support content type", o.info.Scheme)
	}
	if opt.IfMatch != "" && !c.WriteWithIfMatch {
		return errorf(KindUnsupported, op, p, "backend %q does not support conditional write", o.info.Scheme)
	}
	if len(opt.UserMeta) > 0 && !c.WriteWithUserMeta {
		return errorf(KindUnsupported, op, p, "backend %q does not support user metadata", o.info.Scheme)
	}
	return nil
}

func (o *Operator) checkList(op, p string, opt OpList) error {
	c := o.info.Capability
	if !c.List {
		return errorf(KindUnsupported, op, p, "backend %q does not support list", o.info.Scheme)
	}
	if opt.Recursive && !c.ListWithRecursive {
		return errorf(KindUnsupported, op, p, "backend %q does not support recursive list", o.info.Scheme)
	}
	if opt.Limit < 0 {
		return errorf(KindInvalidInput, op, p, "negative list limit")
	}
	return nil
}

// normalizePath cleans p into the canonical driver form: forward slashes,
// no leading slash, no dot segments. Paths escaping the root are
// rejected.
func normalizePath(p string) (string, error) {
	if strings.ContainsRune(p, 0) {
		return "", errors.New("path contains NUL byte")
	}
	rel := path.Clean(p)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", errors.New("path escapes the root")
	}
	cleaned := strings.TrimPrefix(path.Clean("/"+p), "/")
	if cleaned == "." {
		cleaned = ""
	}
	return cleaned, nil
}

func (o *Operator) countReader(r Reader) Reader {
	cr := countReader{r: r, stats: &o.stats}
	if s, ok := r.(io.Seeker); ok && o.info.Capability.ReadCanSeek {
		return &countSeekReader{countReader: cr, s: s}
	}
	return &cr
}

type countReader struct {
	r     Reader
	stats *counters.Counters
}

func (r *countReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	r.stats.Incr(counters.BytesRead, int64(n))
	return n, err
}

func (r *countReader) Close() error {
	return r.r.Close()
}

type countSeekReader struct {
	countReader
	s io.Seeker
}

func (r *countSeekReader) Seek(offset int64, whence int) (int64, error) {
	return r.s.Seek(offset, whence)
}

type countWriter struct {
	w     Writer
	stats *counters.Counters
}

func (w *countWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.stats.Incr(counters.BytesWritten, int64(n))
	return n, err
}

func (w *countWriter) Close() error {
	return w.w.Close()
}

func (w *countWriter) Abort() error {
	return w.w.Abort()
}
