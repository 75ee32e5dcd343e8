package layers

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/unistor/unistor"
	"github.com/unistor/unistor/internal/lrucache"
)

// Cache keeps recently read ranges in a bounded in-memory LRU keyed by
// (path, range, etag/version). Writes, deletes and renames seen through
// the same chain invalidate the affected paths. Entries larger than the
// cache bound are served but not kept.
type Cache struct {
	// MaxSize bounds the cache in bytes. Default 32 MiB.
	MaxSize int64
	// TTL expires entries regardless of use. Default 1h.
	TTL time.Duration
}

// Apply implements unistor.Layer.
func (l Cache) Apply(inner unistor.Accessor) unistor.Accessor {
	maxSize := l.MaxSize
	if maxSize <= 0 {
		maxSize = 32 << 20
	}
	ttl := l.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &cacheAccessor{
		Accessor: inner,
		cache:    lrucache.New(maxSize, ttl),
	}
}

type cacheAccessor struct {
	unistor.Accessor
	cache *lrucache.Cache
}

// Close releases the cache's timers before closing the inner accessor.
func (a *cacheAccessor) Close() error {
	a.cache.Close()
	return closeAccessor(a.Accessor)
}

// Info annotates nothing; the cached accessor serves exactly what the
// inner one would.

func cacheKey(path string, o unistor.OpRead) string {
	return fmt.Sprintf("%s\x00%d\x00%d\x00%s\x00%s", path, o.Offset, o.Length, o.IfMatch, o.Version)
}

func (a *cacheAccessor) Read(ctx context.Context, path string, o unistor.OpRead) (unistor.Reader, error) {
	b, err := a.cache.Get(cacheKey(path, o), func() ([]byte, error) {
		r, err := a.Accessor.Read(ctx, path, o)
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return readAll(r)
	})
	if err != nil {
		return nil, err
	}
	return &bytesReader{Reader: bytes.NewReader(b)}, nil
}

func (a *cacheAccessor) Write(ctx context.Context, path string, o unistor.OpWrite) (unistor.Writer, error) {
	w, err := a.Accessor.Write(ctx, path, o)
	if err != nil {
		return nil, err
	}
	return &invalidateWriter{w: w, acc: a, path: path}, nil
}

func (a *cacheAccessor) Delete(ctx context.Context, path string) error {
	err := a.Accessor.Delete(ctx, path)
	if err == nil {
		a.invalidate(path)
	}
	return err
}

func (a *cacheAccessor) Copy(ctx context.Context, src, dst string) error {
	err := a.Accessor.Copy(ctx, src, dst)
	if err == nil {
		a.invalidate(dst)
	}
	return err
}

func (a *cacheAccessor) Rename(ctx context.Context, src, dst string) error {
	err := a.Accessor.Rename(ctx, src, dst)
	if err == nil {
		a.invalidate(src)
		a.invalidate(dst)
	}
	return err
}

func (a *cacheAccessor) invalidate(path string) {
	a.cache.RemovePrefix(path + "\x00")
}

type invalidateWriter struct {
	w    unistor.Writer
	acc  *cacheAccessor
	path string
}

func (w *invalidateWriter) Write(p []byte) (int, error) {
	return w.w.Write(p)
}

func (w *invalidateWriter) Close() error {
	err := w.w.Close()
	if err == nil {
		w.acc.invalidate(w.path)
	}
	return err
}

func (w *invalidateWriter) Abort() error {
	return w.w.Abort()
}

// bytesReader adapts bytes.Reader to the Reader contract. It is
// naturally seekable, so the layer does not narrow ReadCanSeek.
type bytesReader struct {
	*bytes.Reader
}

func (r *bytesReader) Close() error { return nil }

func readAll(r unistor.Reader) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
