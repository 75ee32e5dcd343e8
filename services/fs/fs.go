// Package fs implements an Accessor over a local filesystem directory.
// All object paths resolve under a fixed root. Writes go to a hidden
// temp file in the destination directory and are published with an
// atomic rename on commit.
package fs

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mitchellh/go-homedir"
	cp "github.com/otiai10/copy"
	"github.com/unistor/unistor"
)

const scheme = "fs"

const fileMode = 0640

// FS is a filesystem-backed store rooted at a directory.
type FS struct {
	root string
}

// New returns a store rooted at options["root"]. "~" is expanded to the
// user home directory and the directory is created if missing.
func New(options map[string]string) (*FS, error) {
	root := options["root"]
	if root == "" {
		root = "."
	}
	root, err := homedir.Expand(root)
	if err != nil {
		return nil, err
	}
	root, err = filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err = os.MkdirAll(root, os.ModeDir|0750); err != nil {
		return nil, err
	}
	return &FS{root: root}, nil
}

// NewAccessor adapts New to the registry Factory signature.
func NewAccessor(options map[string]string) (unistor.Accessor, error) {
	return New(options)
}

var _ unistor.Accessor = (*FS)(nil)

// Root returns the absolute root directory.
func (s *FS) Root() string {
	return s.root
}

// Info implements unistor.Accessor. The filesystem has nowhere to keep
// etags, content types or user metadata, so those options are not
// declared.
func (s *FS) Info() unistor.Info {
	return unistor.Info{
		Scheme: scheme,
		Root:   s.root,
		Capability: unistor.Capability{
			Stat:              true,
			Read:              true,
			ReadWithRange:     true,
			ReadCanSeek:       true,
			Write:             true,
			WriteCanAppend:    true,
			Delete:            true,
			List:              true,
			ListWithRecursive: true,
			Copy:              true,
			Rename:            true,
		},
	}
}

func (s *FS) abs(path string) string {
	return filepath.Join(s.root, filepath.FromSlash(path))
}

// classify maps an OS error into the shared taxonomy.
func classify(op, path string, err error) error {
	if err == nil {
		return nil
	}
	kind := unistor.KindUnexpected
	switch {
	case os.IsNotExist(err):
		kind = unistor.KindNotFound
	case os.IsPermission(err):
		kind = unistor.KindPermissionDenied
	case os.IsExist(err):
		kind = unistor.KindAlreadyExists
	}
	return &unistor.Error{Kind: kind, Op: op, Path: path, Err: err}
}

// Stat implements unistor.Accessor.
func (s *FS) Stat(ctx context.Context, path string, o unistor.OpStat) (unistor.Metadata, error) {
	fi, err := os.Stat(s.abs(path))
	if err != nil {
		return unistor.Metadata{}, classify("stat", path, err)
	}
	return metadataFromFileInfo(path, fi), nil
}

func metadataFromFileInfo(path string, fi os.FileInfo) unistor.Metadata {
	return unistor.Metadata{
		Path:         path,
		Size:         fi.Size(),
		LastModified: fi.ModTime(),
		IsDir:        fi.IsDir(),
	}
}

// Read implements unistor.Accessor. A bounded range read returns a
// non-seekable handle; full reads are seekable.
func (s *FS) Read(ctx context.Context, path string, o unistor.OpRead) (unistor.Reader, error) {
	f, err := os.Open(s.abs(path)) // nolint: gosec
	if err != nil {
		return nil, classify("read", path, err)
	}
	if o.Offset > 0 {
		if _, err = f.Seek(o.Offset, 0); err != nil {
			_ = f.Close()
			return nil, classify("read", path, err)
		}
	}
	if o.Length > 0 {
		return &rangeReader{f: f, remaining: o.Length}, nil
	}
	return &fileReader{File: f}, nil
}

// Delete implements unistor.Accessor. Deleting a missing path is not an
// error.
func (s *FS) Delete(ctx context.Context, path string) error {
	err := os.Remove(s.abs(path))
	if os.IsNotExist(err) {
		return nil
	}
	return classify("delete", path, err)
}

// List implements unistor.Accessor. Directory entries carry a trailing
// slash. A recursive listing walks lazily, one directory per Next pass.
func (s *FS) List(ctx context.Context, path string, o unistor.OpList) (unistor.Lister, error) {
	dir := s.abs(path)
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, classify("list", path, err)
	}
	if !fi.IsDir() {
		return nil, &unistor.Error{Kind: unistor.KindInvalidInput, Op: "list", Path: path}
	}
	prefix := path
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &walkLister{s: s, recursive: o.Recursive, dirs: []string{prefix}}, nil
}

// Copy implements unistor.Accessor. Directories copy recursively.
func (s *FS) Copy(ctx context.Context, src, dst string) error {
	if _, err := os.Stat(s.abs(src)); err != nil {
		return classify("copy", src, err)
	}
	if err := os.MkdirAll(filepath.Dir(s.abs(dst)), os.ModeDir|0750); err != nil {
		return classify("copy", dst, err)
	}
	if err := cp.Copy(s.abs(src), s.abs(dst)); err != nil {
		return classify("copy", src, err)
	}
	return nil
}

// Rename implements unistor.Accessor.
func (s *FS) Rename(ctx context.Context, src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(s.abs(dst)), os.ModeDir|0750); err != nil {
		return classify("rename", dst, err)
	}
	if err := os.Rename(s.abs(src), s.abs(dst)); err != nil {
		return classify("rename", src, err)
	}
	return nil
}

// Presign implements unistor.Accessor. Not supported.
func (s *FS) Presign(ctx context.Context, path string, o unistor.OpPresign) (*url.URL, error) {
	return nil, &unistor.Error{Kind: unistor.KindUnsupported, Op: "presign", Path: path}
}

type fileReader struct {
	*os.File
}

type rangeReader struct {
	f         *os.File
	remaining int64
}

func (r *rangeReader) Read(p []byte) (int, error) {
	if r.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > r.remaining {
		p = p[:r.remaining]
	}
	n, err := r.f.Read(p)
	r.remaining -= int64(n)
	return n, err
}

func (r *rangeReader) Close() error {
	return r.f.Close()
}

// walkLister yields the subtree rooted at the opening directory. dirs is
// the pending directory stack; entries buffers the current directory's
// items.
type walkLister struct {
	s         *FS
	recursive bool
	dirs      []string
	entries   []unistor.Entry
}

func (l *walkLister) Next(ctx context.Context) (*unistor.Entry, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(l.entries) > 0 {
			e := l.entries[0]
			l.entries = l.entries[1:]
			return &e, nil
		}
		if len(l.dirs) == 0 {
			return nil, nil
		}
		dir := l.dirs[0]
		l.dirs = l.dirs[1:]
		if err := l.readDir(dir); err != nil {
			return nil, err
		}
	}
}

func (l *walkLister) readDir(prefix string) error {
	des, err := os.ReadDir(l.s.abs(prefix))
	if err != nil {
		return classify("list", prefix, err)
	}
	sort.Slice(des, func(i, j int) bool { return des[i].Name() < des[j].Name() })
	for _, de := range des {
		name := de.Name()
		// Skip in-flight temp files.
		if strings.HasPrefix(name, tmpPrefix) {
			continue
		}
		p := prefix + name
		if de.IsDir() {
			p += "/"
			if l.recursive {
				l.dirs = append(l.dirs, p)
			}
			l.entries = append(l.entries, unistor.Entry{Path: p, Metadata: &unistor.Metadata{Path: p, IsDir: true}})
			continue
		}
		fi, err := de.Info()
		if err != nil {
			return classify("list", p, err)
		}
		meta := metadataFromFileInfo(p, fi)
		l.entries = append(l.entries, unistor.Entry{Path: p, Metadata: &meta})
	}
	return nil
}
