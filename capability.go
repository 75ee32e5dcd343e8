package unistor

// Capability declares what a backend natively supports. Drivers report it
// truthfully from Info; the Operator consults it before dispatch and
// rejects unsupported options with KindUnsupported, before any I/O.
//
// Layers may narrow a capability (a chunking layer clears ReadCanSeek)
// but never widen it.
type Capability struct {
	Stat            bool
	StatWithIfMatch bool

	Read            bool
	ReadWithRange   bool
	ReadWithIfMatch bool
	ReadWithVersion bool
	// ReadCanSeek declares that read handles implement io.Seeker.
	ReadCanSeek bool
	// ChunkSize is the backend's preferred read alignment in bytes. Zero
	// means no preference.
	ChunkSize int64

	Write                bool
	WriteCanAppend       bool
	WriteWithContentType bool
	// WriteWithIfMatch also declares that such conditional writes are
	// safe to repeat, which the retry layer relies on.
	WriteWithIfMatch  bool
	WriteWithUserMeta bool
	// MaxPartSize bounds a single upload part on backends that split
	// large writes. Zero means unbounded.
	MaxPartSize int64

	Delete bool

	List              bool
	ListWithRecursive bool

	Copy   bool
	Rename bool

	Presign bool
}
