package memory

import (
	"bytes"
	"errors"
	"time"

	"github.com/unistor/unistor"
)

var errWriterDone = errors.New("writer already closed or aborted")

// writer buffers content and publishes it atomically on Close. Abort
// drops the buffer; the store never sees a partial object.
type writer struct {
	s    *Memory
	path string
	opt  unistor.OpWrite
	buf  bytes.Buffer
	done bool
}

func (w *writer) Write(p []byte) (int, error) {
	if w.done {
		return 0, errWriterDone
	}
	return w.buf.Write(p)
}

func (w *writer) Close() error {
	if w.done {
		return errWriterDone
	}
	w.done = true

	w.s.m.Lock()
	defer w.s.m.Unlock()

	prev, exists := w.s.get(w.path)
	if w.opt.IfMatch != "" {
		if !exists || prev.meta.ETag != w.opt.IfMatch {
			return conditionNotMatch("write", w.path)
		}
	}

	var data []byte
	if w.opt.Append && exists {
		data = make([]byte, 0, len(prev.data)+w.buf.Len())
		data = append(data, prev.data...)
		data = append(data, w.buf.Bytes()...)
	} else {
		data = append(data, w.buf.Bytes()...)
	}

	meta := unistor.Metadata{
		Path:         w.path,
		Size:         int64(len(data)),
		LastModified: time.Now(),
		ContentType:  w.opt.ContentType,
		ETag:         newETag(),
	}
	if len(w.opt.UserMeta) > 0 {
		meta.UserMeta = make(map[string]string, len(w.opt.UserMeta))
		for k, v := range w.opt.UserMeta {
			meta.UserMeta[k] = v
		}
	}
	w.s.tree.ReplaceOrInsert(&object{path: w.path, data: data, meta: meta})
	return nil
}

func (w *writer) Abort() error {
	if w.done {
		return errWriterDone
	}
	w.done = true
	w.buf.Reset()
	return nil
}
