// Package bolt implements an Accessor persisting objects in a single
// bbolt database file. Content and metadata live in separate buckets;
// every commit is one transaction, so a crashed writer never leaves a
// partial object behind.
package bolt

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/mitchellh/go-homedir"
	"github.com/unistor/unistor"
	bolt "go.etcd.io/bbolt"
)

const scheme = "bolt"

var (
	contentBucket = []byte("content")
	metaBucket    = []byte("meta")
)

// Keys for the persisted metadata record.
type record struct {
	Size         int64             `json:"size"`
	LastModified time.Time         `json:"last_modified"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag"`
	UserMeta     map[string]string `json:"user_meta,omitempty"`
}

// Bolt is a bbolt-backed object store.
type Bolt struct {
	db *bolt.DB
}

// New opens the database at options["path"], creating buckets as needed.
func New(options map[string]string) (*Bolt, error) {
	path := options["path"]
	if path == "" {
		return nil, &unistor.Error{Kind: unistor.KindInvalidInput, Op: "new", Path: "", Err: errMissingPath}
	}
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0640, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err2 := tx.CreateBucketIfNotExists(contentBucket); err2 != nil {
			return err2
		}
		_, err2 := tx.CreateBucketIfNotExists(metaBucket)
		return err2
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Bolt{db: db}, nil
}

// NewAccessor adapts New to the registry Factory signature.
func NewAccessor(options map[string]string) (unistor.Accessor, error) {
	return New(options)
}

var _ unistor.Accessor = (*Bolt)(nil)

// Close releases the database file lock.
func (s *Bolt) Close() error {
	return s.db.Close()
}

// Info implements unistor.Accessor. The database keeps full metadata but
// appending would rewrite the whole value, so append is not declared.
func (s *Bolt) Info() unistor.Info {
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

func (s *Bolt) loadRecord(tx *bolt.Tx, path string) (*record, error) {
	b := tx.Bucket(metaBucket).Get([]byte(path))
	if b == nil {
		return nil, nil
	}
	var rec record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (rec *record) metadata(path string) unistor.Metadata {
	return unistor.Metadata{
		Path:         path,
		Size:         rec.Size,
		LastModified: rec.LastModified,
		ContentType:  rec.ContentType,
		ETag:         rec.ETag,
		UserMeta:     rec.UserMeta,
	}
}

// Stat implements unistor.Accessor.
func (s *Bolt) Stat(ctx context.Context, path string, o unistor.OpStat) (unistor.Metadata, error) {
	var m unistor.Metadata
	err := s.db.View(func(tx *bolt.Tx) error {
		rec, err := s.loadRecord(tx, path)
		if err != nil {
			return err
		}
		if rec == nil {
			return &unistor.Error{Kind: unistor.KindNotFound, Op: "stat", Path: path}
		}
		if o.IfMatch != "" && o.IfMatch != rec.ETag {
			return &unistor.Error{Kind: unistor.KindConditionNotMatch, Op: "stat", Path: path}
		}
		m = rec.metadata(path)
		return nil
	})
	return m, err
}

// Read implements unistor.Accessor. Bolt pages are only valid inside the
// transaction, so the range is copied out and served from memory.
func (s *Bolt) Read(ctx context.Context, path string, o unistor.OpRead) (unistor.Reader, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		rec, err := s.loadRecord(tx, path)
		if err != nil {
			return err
		}
		if rec == nil {
			return &unistor.Error{Kind: unistor.KindNotFound, Op: "read", Path: path}
		}
		if o.IfMatch != "" && o.IfMatch != rec.ETag {
			return &unistor.Error{Kind: unistor.KindConditionNotMatch, Op: "read", Path: path}
		}
		v := tx.Bucket(contentBucket).Get([]byte(path))
		if o.Offset > int64(len(v)) {
			v = nil
		} else {
			v = v[o.Offset:]
		}
		if o.Length > 0 && o.Length < int64(len(v)) {
			v = v[:o.Length]
		}
		data = append(data, v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &reader{Reader: bytes.NewReader(data)}, nil
}

// Write implements unistor.Accessor.
func (s *Bolt) Write(ctx context.Context, path string, o unistor.OpWrite) (unistor.Writer, error) {
	return &writer{s: s, path: path, opt: o}, nil
}

// Delete implements unistor.Accessor. Deleting a missing path is not an
// error.
func (s *Bolt) Delete(ctx context.Context, path string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(contentBucket).Delete([]byte(path)); err != nil {
			return err
		}
		return tx.Bucket(metaBucket).Delete([]byte(path))
	})
}

// List implements unistor.Accessor. The meta bucket cursor is already
// key-ordered; a prefix scan collects the snapshot at open time.
func (s *Bolt) List(ctx context.Context, path string, o unistor.OpList) (unistor.Lister, error) {
	prefix := path
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	var entries []unistor.Entry
	seenDirs := make(map[string]struct{})
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(metaBucket).Cursor()
		p := []byte(prefix)
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			key := string(k)
			rest := key[len(prefix):]
			if !o.Recursive {
				if i := strings.IndexByte(rest, '/'); i >= 0 {
					dir := prefix + rest[:i+1]
					if _, ok := seenDirs[dir]; !ok {
						seenDirs[dir] = struct{}{}
						entries = append(entries, unistor.Entry{Path: dir, Metadata: &unistor.Metadata{Path: dir, IsDir: true}})
					}
					continue
				}
			}
			var rec record
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			meta := rec.metadata(key)
			entries = append(entries, unistor.Entry{Path: key, Metadata: &meta})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &sliceLister{entries: entries}, nil
}

// Copy implements unistor.Accessor.
func (s *Bolt) Copy(ctx context.Context, src, dst string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		rec, err := s.loadRecord(tx, src)
		if err != nil {
			return err
		}
		if rec == nil {
			return &unistor.Error{Kind: unistor.KindNotFound, Op: "copy", Path: src}
		}
		rec.ETag = newETag()
		rec.LastModified = time.Now()
		mb, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		content := tx.Bucket(contentBucket)
		data := content.Get([]byte(src))
		if err = content.Put([]byte(dst), append([]byte(nil), data...)); err != nil {
			return err
		}
		return tx.Bucket(metaBucket).Put([]byte(dst), mb)
	})
}

// Rename implements unistor.Accessor.
func (s *Bolt) Rename(ctx context.Context, src, dst string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		mb := tx.Bucket(metaBucket).Get([]byte(src))
		if mb == nil {
			return &unistor.Error{Kind: unistor.KindNotFound, Op: "rename", Path: src}
		}
		content := tx.Bucket(contentBucket)
		data := content.Get([]byte(src))
		if err := content.Put([]byte(dst), append([]byte(nil), data...)); err != nil {
			return err
		}
		if err := tx.Bucket(metaBucket).Put([]byte(dst), append([]byte(nil), mb...)); err != nil {
			return err
		}
		if err := content.Delete([]byte(src)); err != nil {
			return err
		}
		return tx.Bucket(metaBucket).Delete([]byte(src))
	})
}

// Presign implements unistor.Accessor. Not supported.
func (s *Bolt) Presign(ctx context.Context, path string, o unistor.OpPresign) (*url.URL, error) {
	return nil, &unistor.Error{Kind: unistor.KindUnsupported, Op: "presign", Path: path}
}

func newETag() string {
	u, err := uuid.NewV1()
	if err != nil {
		return ""
	}
	return u.String()
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
