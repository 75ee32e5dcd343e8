package unistor

import (
	"context"
	"io"
	"net/url"
	"time"
)

// OpStat carries recognized options for a stat call.
type OpStat struct {
	// IfMatch fails the call unless the object's etag matches.
	IfMatch string
}

// OpRead carries recognized options for a read call.
type OpRead struct {
	// Offset of the first byte to read.
	Offset int64
	// Length of the range to read. Zero or negative means to the end of
	// the object.
	Length int64
	// IfMatch fails the call unless the object's etag matches.
	IfMatch string
	// Version selects an object version on versioned backends.
	Version string
}

// FullRead is an OpRead covering the whole object.
var FullRead = OpRead{}

// OpWrite carries recognized options for a write call.
type OpWrite struct {
	// Append opens the writer at the end of the existing object instead
	// of replacing it.
	Append bool
	// ContentType to record with the object.
	ContentType string
	// IfMatch makes the commit conditional on the object's current etag.
	// Backends declaring WriteWithIfMatch make such writes safely
	// retryable.
	IfMatch string
	// UserMeta key/value pairs to store with the object.
	UserMeta map[string]string
}

// OpList carries recognized options for a list call.
type OpList struct {
	// Recursive lists the whole subtree instead of one level.
	Recursive bool
	// Limit hints the page size for backends that paginate. Zero lets
	// the driver choose.
	Limit int
}

// OpPresign carries recognized options for a presign call.
type OpPresign struct {
	// Method is the HTTP method the URL is valid for (GET, PUT, ...).
	Method string
	// Expire bounds the lifetime of the returned URL.
	Expire time.Duration
}

// Reader is a handle over an object's content. It is created in the open
// state by Accessor.Read and must be closed by its single owner. Readers
// of backends declaring ReadCanSeek also implement io.Seeker.
type Reader interface {
	io.Reader
	io.Closer
}

// Writer is a handle accumulating an object's new content. Close commits:
// only then may the written object become visible. Abort discards the
// pending content and leaves the backend as it was before the write
// started. After Close or Abort the handle is dead.
type Writer interface {
	io.Writer
	io.Closer
	Abort() error
}

// Lister yields entries from a list call lazily. Next returns (nil, nil)
// when the sequence is exhausted. Pagination, if the backend needs it, is
// internal to the driver; restarting requires a fresh List call.
type Lister interface {
	Next(ctx context.Context) (*Entry, error)
}

// Accessor is the backend-facing contract every driver implements. It is
// the lowest common denominator of storage operations; drivers must
// truthfully report what they support via Info().Capability and classify
// native failures into the shared error taxonomy.
//
// Paths arriving at an Accessor are already normalized by the Operator:
// forward slashes, no leading slash, no dot segments.
type Accessor interface {
	Info() Info
	Stat(ctx context.Context, path string, o OpStat) (Metadata, error)
	Read(ctx context.Context, path string, o OpRead) (Reader, error)
	Write(ctx context.Context, path string, o OpWrite) (Writer, error)
	Delete(ctx context.Context, path string) error
	List(ctx context.Context, path string, o OpList) (Lister, error)
	Copy(ctx context.Context, src, dst string) error
	Rename(ctx context.Context, src, dst string) error
	Presign(ctx context.Context, path string, o OpPresign) (*url.URL, error)
}
