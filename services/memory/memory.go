// Package memory implements an in-memory Accessor backed by an ordered
// btree index. It supports the full option surface except presign, and
// is the reference backend for tests.
package memory

import (
	"bytes"
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/google/btree"
	"github.com/unistor/unistor"
)

const scheme = "memory"

type object struct {
	path string
	data []byte
	meta unistor.Metadata
}

func less(a, b *object) bool {
	return a.path < b.path
}

// Memory is an in-memory object store. Safe for concurrent use.
type Memory struct {
	m    sync.RWMutex
	tree *btree.BTreeG[*object]
}

// New returns an empty store. It accepts the Factory signature; no
// options are recognized.
func New(options map[string]string) (*Memory, error) {
	return &Memory{tree: btree.NewG(8, less)}, nil
}

// NewAccessor adapts New to the registry Factory signature.
func NewAccessor(options map[string]string) (unistor.Accessor, error) {
	return New(options)
}

var _ unistor.Accessor = (*Memory)(nil)

// Info implements unistor.Accessor.
func (s *Memory) Info() unistor.Info {
	return unistor.Info{
		Scheme: scheme,
		Root:   "/",
		Capability: unistor.Capability{
			Stat:                 true,
			StatWithIfMatch:      true,
			Read:                 true,
			ReadWithRange:        true,
			ReadWithIfMatch:      true,
			ReadCanSeek:          true,
			Write:                true,
			WriteCanAppend:       true,
			WriteWithContentType: true,
			WriteWithIfMatch:     true,
			WriteWithUserMeta:    true,
			Delete:               true,
			List:                 true,
			ListWithRecursive:    true,
			Copy:                 true,
			Rename:               true,
		},
	}
}

func (s *Memory) get(path string) (*object, bool) {
	return s.tree.Get(&object{path: path})
}

func newETag() string {
	u, err := uuid.NewV1()
	if err != nil {
		return ""
	}
	return u.String()
}

func notFound(op, path string) error {
	return &unistor.Error{Kind: unistor.KindNotFound, Op: op, Path: path}
}

func conditionNotMatch(op, path string) error {
	return &unistor.Error{Kind: unistor.KindConditionNotMatch, Op: op, Path: path}
}

// Stat implements unistor.Accessor.
func (s *Memory) Stat(ctx context.Context, path string, o unistor.OpStat) (unistor.Metadata, error) {
	s.m.RLock()
	defer s.m.RUnlock()
	obj, ok := s.get(path)
	if !ok {
		return unistor.Metadata{}, notFound("stat", path)
	}
	if o.IfMatch != "" && o.IfMatch != obj.meta.ETag {
		return unistor.Metadata{}, conditionNotMatch("stat", path)
	}
	return obj.meta, nil
}

// Read implements unistor.Accessor. The returned reader holds a snapshot
// of the object; later writes replace the data slice wholesale and never
// mutate it.
func (s *Memory) Read(ctx context.Context, path string, o unistor.OpRead) (unistor.Reader, error) {
	s.m.RLock()
	defer s.m.RUnlock()
	obj, ok := s.get(path)
	if !ok {
		return nil, notFound("read", path)
	}
	if o.IfMatch != "" && o.IfMatch != obj.meta.ETag {
		return nil, conditionNotMatch("read", path)
	}
	data := obj.data
	if o.Offset > int64(len(data)) {
		data = nil
	} else {
		data = data[o.Offset:]
	}
	if o.Length > 0 && o.Length < int64(len(data)) {
		data = data[:o.Length]
	}
	return &reader{Reader: bytes.NewReader(data)}, nil
}

// Write implements unistor.Accessor. Content stays invisible until the
// writer commits.
func (s *Memory) Write(ctx context.Context, path string, o unistor.OpWrite) (unistor.Writer, error) {
	return &writer{s: s, path: path, opt: o}, nil
}

// Delete implements unistor.Accessor. Deleting a missing path is not an
// error.
func (s *Memory) Delete(ctx context.Context, path string) error {
	s.m.Lock()
	s.tree.Delete(&object{path: path})
	s.m.Unlock()
	return nil
}

// List implements unistor.Accessor. The lister iterates a snapshot taken
// at open time.
func (s *Memory) List(ctx context.Context, path string, o unistor.OpList) (unistor.Lister, error) {
	prefix := path
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	s.m.RLock()
	defer s.m.RUnlock()
	var entries []unistor.Entry
	seenDirs := make(map[string]struct{})
	s.tree.AscendGreaterOrEqual(&object{path: prefix}, func(obj *object) bool {
		if !strings.HasPrefix(obj.path, prefix) {
			return false
		}
		rest := obj.path[len(prefix):]
		if o.Recursive {
			meta := obj.meta
			entries = append(entries, unistor.Entry{Path: obj.path, Metadata: &meta})
			return true
		}
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			dir := prefix + rest[:i+1]
			if _, ok := seenDirs[dir]; !ok {
				seenDirs[dir] = struct{}{}
				entries = append(entries, unistor.Entry{Path: dir, Metadata: &unistor.Metadata{Path: dir, IsDir: true}})
			}
			return true
		}
		meta := obj.meta
		entries = append(entries, unistor.Entry{Path: obj.path, Metadata: &meta})
		return true
	})
	return &sliceLister{entries: entries}, nil
}

// Copy implements unistor.Accessor.
func (s *Memory) Copy(ctx context.Context, src, dst string) error {
	s.m.Lock()
	defer s.m.Unlock()
	obj, ok := s.get(src)
	if !ok {
		return notFound("copy", src)
	}
	meta := obj.meta
	meta.Path = dst
	meta.ETag = newETag()
	meta.LastModified = time.Now()
	s.tree.ReplaceOrInsert(&object{path: dst, data: obj.data, meta: meta})
	return nil
}

// Rename implements unistor.Accessor.
func (s *Memory) Rename(ctx context.Context, src, dst string) error {
	s.m.Lock()
	defer s.m.Unlock()
	obj, ok := s.get(src)
	if !ok {
		return notFound("rename", src)
	}
	meta := obj.meta
	meta.Path = dst
	s.tree.ReplaceOrInsert(&object{path: dst, data: obj.data, meta: meta})
	s.tree.Delete(obj)
	return nil
}

// Presign implements unistor.Accessor. Not supported.
func (s *Memory) Presign(ctx context.Context, path string, o unistor.OpPresign) (*url.URL, error) {
	return nil, &unistor.Error{Kind: unistor.KindUnsupported, Op: "presign", Path: path}
}

type reader struct {
	*bytes.Reader
}

func (r *reader) Close() error { return nil }

type sliceLister struct {
	entries []unistor.Entry
	next    int
}

func (l *sliceLister) Next(ctx context.Context) (*unistor.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.next >= len(l.entries) {
		return nil, nil
	}
	e := l.entries[l.next]
	l.next++
	return &e, nil
}
