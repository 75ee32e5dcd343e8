package layers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"sync"

	"github.com/unistor/unistor"
)

// Checksum computes a SHA-256 digest over every full write body passing
// through it and verifies full reads of the same path against the
// recorded digest. A mismatch surfaces as a ChecksumMismatch error when
// the read stream completes, not mid-stream. Partial (ranged) reads and
// appends are not verifiable and bypass the check; an append drops the
// recorded digest.
type Checksum struct{}

// Apply implements unistor.Layer.
func (l Checksum) Apply(inner unistor.Accessor) unistor.Accessor {
	return &checksumAccessor{
		Accessor: inner,
		sums:     make(map[string]string),
	}
}

type checksumAccessor struct {
	unistor.Accessor
	m    sync.RWMutex
	sums map[string]string // path -> hex digest of last committed body
}

func (a *checksumAccessor) Close() error {
	return closeAccessor(a.Accessor)
}

func (a *checksumAccessor) sum(path string) (string, bool) {
	a.m.RLock()
	defer a.m.RUnlock()
	s, ok := a.sums[path]
	return s, ok
}

func (a *checksumAccessor) setSum(path, s string) {
	a.m.Lock()
	a.sums[path] = s
	a.m.Unlock()
}

func (a *checksumAccessor) dropSum(paths ...string) {
	a.m.Lock()
	for _, p := range paths {
		delete(a.sums, p)
	}
	a.m.Unlock()
}

func (a *checksumAccessor) Read(ctx context.Context, path string, o unistor.OpRead) (unistor.Reader, error) {
	r, err := a.Accessor.Read(ctx, path, o)
	if err != nil {
		return nil, err
	}
	if o.Offset != 0 || o.Length > 0 {
		return r, nil
	}
	expected, ok := a.sum(path)
	if !ok {
		return r, nil
	}
	return &verifyReader{r: r, path: path, expected: expected, h: sha256.New()}, nil
}

func (a *checksumAccessor) Write(ctx context.Context, path string, o unistor.OpWrite) (unistor.Writer, error) {
	w, err := a.Accessor.Write(ctx, path, o)
	if err != nil {
		return nil, err
	}
	if o.Append {
		// The digest of the combined body is unknown.
		return &dropSumWriter{w: w, acc: a, path: path}, nil
	}
	return &sumWriter{w: w, acc: a, path: path, h: sha256.New()}, nil
}

func (a *checksumAccessor) Delete(ctx context.Context, path string) error {
	err := a.Accessor.Delete(ctx, path)
	if err == nil {
		a.dropSum(path)
	}
	return err
}

func (a *checksumAccessor) Copy(ctx context.Context, src, dst string) error {
	err := a.Accessor.Copy(ctx, src, dst)
	if err == nil {
		if s, ok := a.sum(src); ok {
			a.setSum(dst, s)
		} else {
			a.dropSum(dst)
		}
	}
	return err
}

func (a *checksumAccessor) Rename(ctx context.Context, src, dst string) error {
	err := a.Accessor.Rename(ctx, src, dst)
	if err == nil {
		if s, ok := a.sum(src); ok {
			a.setSum(dst, s)
		} else {
			a.dropSum(dst)
		}
		a.dropSum(src)
	}
	return err
}

// verifyReader hashes the stream and compares the digest once the
// underlying reader reports EOF.
type verifyReader struct {
	r        unistor.Reader
	path     string
	expected string
	h        hash.Hash
	seeked   bool
	verified bool
}

func (r *verifyReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 && !r.seeked {
		r.h.Write(p[:n])
	}
	if err == io.EOF && !r.seeked && !r.verified {
		r.verified = true
		if hex.EncodeToString(r.h.Sum(nil)) != r.expected {
			return n, &unistor.Error{Kind: unistor.KindChecksumMismatch, Op: "read", Path: r.path}
		}
	}
	return n, err
}

// Seek disables verification; the hash no longer covers the full body.
func (r *verifyReader) Seek(offset int64, whence int) (int64, error) {
	s, ok := r.r.(io.Seeker)
	if !ok {
		return 0, errSeekUnsupported
	}
	r.seeked = true
	return s.Seek(offset, whence)
}

func (r *verifyReader) Close() error {
	return r.r.Close()
}

type sumWriter struct {
	w    unistor.Writer
	acc  *checksumAccessor
	path string
	h    hash.Hash
}

func (w *sumWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.h.Write(p[:n])
	return n, err
}

func (w *sumWriter) Close() error {
	err := w.w.Close()
	if err == nil {
		w.acc.setSum(w.path, hex.EncodeToString(w.h.Sum(nil)))
	}
	return err
}

func (w *sumWriter) Abort() error {
	return w.w.Abort()
}

type dropSumWriter struct {
	w    unistor.Writer
	acc  *checksumAccessor
	path string
}

func (w *dropSumWriter) Write(p []byte) (int, error) {
	return w.w.Write(p)
}

func (w *dropSumWriter) Close() error {
	err := w.w.Close()
	if err == nil {
		w.acc.dropSum(w.path)
	}
	return err
}

func (w *dropSumWriter) Abort() error {
	return w.w.Abort()
}
