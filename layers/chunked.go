package layers

import (
	"context"
	"io"

	"github.com/unistor/unistor"
	"github.com/unistor/unistor/internal/bufferpool"
)

// ChunkedRead splits a logical read into backend-preferred chunk
// boundaries and reassembles the stream transparently. The layer is
// active only when a chunk size is known (configured here or declared by
// the backend capability) and the backend supports range reads;
// otherwise it passes through unchanged. Chunk buffers are pooled.
//
// A chunked stream cannot seek, so the layer narrows ReadCanSeek.
type ChunkedRead struct {
	// ChunkSize overrides the backend's preferred alignment. Zero uses
	// Capability.ChunkSize.
	ChunkSize int64
}

// Apply implements unistor.Layer.
func (l ChunkedRead) Apply(inner unistor.Accessor) unistor.Accessor {
	size := l.ChunkSize
	cap := inner.Info().Capability
	if size <= 0 {
		size = cap.ChunkSize
	}
	if size <= 0 || !cap.ReadWithRange {
		return inner
	}
	return &chunkAccessor{
		Accessor: inner,
		size:     size,
		pool:     bufferpool.New(int(size)),
	}
}

type chunkAccessor struct {
	unistor.Accessor
	size int64
	pool *bufferpool.Pool
}

func (a *chunkAccessor) Close() error {
	return closeAccessor(a.Accessor)
}

func (a *chunkAccessor) Info() unistor.Info {
	info := a.Accessor.Info()
	info.Capability.ReadCanSeek = false
	return info
}

func (a *chunkAccessor) Read(ctx context.Context, path string, o unistor.OpRead) (unistor.Reader, error) {
	remaining := o.Length
	if remaining <= 0 {
		remaining = -1
	}
	r := &chunkReader{
		ctx:       ctx,
		acc:       a.Accessor,
		pool:      a.pool,
		path:      path,
		opt:       o,
		size:      a.size,
		off:       o.Offset,
		remaining: remaining,
	}
	// Fetch the first chunk eagerly so a missing object still fails at
	// open time, as it would without this layer.
	if err := r.loadChunk(); err != nil {
		return nil, err
	}
	return r, nil
}

// chunkReader issues one aligned range read per chunk and serves the
// caller from the pooled buffer. The context of the opening call governs
// every chunk fetch.
type chunkReader struct {
	ctx       context.Context
	acc       unistor.Accessor
	pool      *bufferpool.Pool
	path      string
	opt       unistor.OpRead
	size      int64
	off       int64
	remaining int64 // -1 when reading to the end

	buf    bufferpool.Buffer
	cur    []byte
	eof    bool
	closed bool
}

func (r *chunkReader) Read(p []byte) (int, error) {
	for len(r.cur) == 0 {
		if r.eof || r.closed {
			return 0, io.EOF
		}
		if err := r.loadChunk(); err != nil {
			return 0, err
		}
	}
	n := copy(p, r.cur)
	r.cur = r.cur[n:]
	if len(r.cur) == 0 {
		r.buf.Release()
	}
	return n, nil
}

func (r *chunkReader) loadChunk() error {
	if r.remaining == 0 {
		r.eof = true
		return nil
	}
	// Read up to the next aligned boundary.
	want := r.size - r.off%r.size
	if r.remaining > 0 && want > r.remaining {
		want = r.remaining
	}
	inner, err := r.acc.Read(r.ctx, r.path, unistor.OpRead{
		Offset:  r.off,
		Length:  want,
		IfMatch: r.opt.IfMatch,
		Version: r.opt.Version,
	})
	if err != nil {
		return err
	}
	buf := r.pool.Get(int(want))
	got, err := io.ReadFull(inner, buf.Data)
	cerr := inner.Close()
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		buf.Release()
		return err
	}
	if cerr != nil {
		buf.Release()
		return cerr
	}
	if got == 0 {
		buf.Release()
		r.eof = true
		return nil
	}
	r.off += int64(got)
	if r.remaining > 0 {
		r.remaining -= int64(got)
	}
	// A short chunk means the object ended inside it.
	if int64(got) < want {
		r.eof = true
	}
	r.buf = buf
	r.cur = buf.Data[:got]
	return nil
}

func (r *chunkReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if len(r.cur) > 0 {
		r.cur = nil
		r.buf.Release()
	}
	return nil
}
