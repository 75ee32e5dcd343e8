package fs

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/gofrs/uuid"
	"github.com/unistor/unistor"
)

const tmpPrefix = ".unistor-tmp-"

var errWriterDone = errors.New("writer already closed or aborted")

// Write implements unistor.Accessor. Content accumulates in a hidden
// temp file next to the destination; Close publishes it with an atomic
// rename, Abort removes it. An append starts the temp file from a copy
// of the existing object so even aborted appends leave the original
// untouched.
func (s *FS) Write(ctx context.Context, path string, o unistor.OpWrite) (unistor.Writer, error) {
	final := s.abs(path)
	if err := os.MkdirAll(filepath.Dir(final), os.ModeDir|0750); err != nil {
		return nil, classify("write", path, err)
	}
	u, err := uuid.NewV1()
	if err != nil {
		return nil, classify("write", path, err)
	}
	tmp := filepath.Join(filepath.Dir(final), tmpPrefix+filepath.Base(final)+"-"+u.String())
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, fileMode) // nolint: gosec
	if err != nil {
		return nil, classify("write", path, err)
	}
	if o.Append {
		if err := copyExisting(f, final); err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
			return nil, classify("write", path, err)
		}
	}
	return &writer{f: f, tmp: tmp, final: final, path: path}, nil
}

// copyExisting seeds the temp file with the current object content. A
// missing object means the append starts empty.
func copyExisting(dst *os.File, src string) error {
	f, err := os.Open(src) // nolint: gosec
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(dst, f)
	return err
}

type writer struct {
	f     *os.File
	tmp   string
	final string
	path  string
	done  bool
}

func (w *writer) Write(p []byte) (int, error) {
	if w.done {
		return 0, errWriterDone
	}
	return w.f.Write(p)
}

func (w *writer) Close() error {
	if w.done {
		return errWriterDone
	}
	w.done = true
	if err := w.f.Sync(); err != nil {
		_ = w.f.Close()
		_ = os.Remove(w.tmp)
		return classify("write", w.path, err)
	}
	if err := w.f.Close(); err != nil {
		_ = os.Remove(w.tmp)
		return classify("write", w.path, err)
	}
	if err := os.Rename(w.tmp, w.final); err != nil {
		_ = os.Remove(w.tmp)
		return classify("write", w.path, err)
	}
	return nil
}

func (w *writer) Abort() error {
	if w.done {
		return errWriterDone
	}
	w.done = true
	_ = w.f.Close()
	if err := os.Remove(w.tmp); err != nil {
		return classify("write", w.path, err)
	}
	return nil
}
