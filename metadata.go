package unistor

import "time"

// Metadata is the normalized set of attributes for a stored object.
// Drivers map whatever their backend natively returns onto this type.
// It is a plain value; holding one does not keep any backend resource
// alive.
type Metadata struct {
	// Path of the object, normalized, relative to the operator root.
	Path string
	// Size of the object content in bytes.
	Size int64
	// LastModified is zero if the backend does not track it.
	LastModified time.Time
	ContentType  string
	ETag         string
	IsDir        bool
	// UserMeta holds backend user-defined key/value pairs, nil if the
	// backend has none or does not support them.
	UserMeta map[string]string
}

// Entry is one item yielded by a list operation.
type Entry struct {
	Path string
	// Metadata is filled when the backend returns it inline with the
	// listing. Nil means the caller must Stat the path separately.
	Metadata *Metadata
}

// Info identifies a constructed operator: the backend scheme, the root
// all paths are resolved under, and the (possibly layer-narrowed)
// capability set. Shared read-only between the operator and its layers.
type Info struct {
	Scheme     string
	Root       string
	Capability Capability
}
