package bolt

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/unistor/unistor"
	bolt "go.etcd.io/bbolt"
)

var (
	errWriterDone  = errors.New("writer already closed or aborted")
	errMissingPath = errors.New("bolt: missing \"path\" option")
)

// writer buffers content and commits it in a single transaction on
// Close.
type writer struct {
	s    *Bolt
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
	return w.s.db.Update(func(tx *bolt.Tx) error {
		if w.opt.IfMatch != "" {
			rec, err := w.s.loadRecord(tx, w.path)
			if err != nil {
				return err
			}
			if rec == nil || rec.ETag != w.opt.IfMatch {
				return &unistor.Error{Kind: unistor.KindConditionNotMatch, Op: "write", Path: w.path}
			}
		}
		rec := record{
			Size:         int64(w.buf.Len()),
			LastModified: time.Now(),
			ContentType:  w.opt.ContentType,
			ETag:         newETag(),
			UserMeta:     w.opt.UserMeta,
		}
		mb, err := json.Marshal(&rec)
		if err != nil {
			return err
		}
		if err = tx.Bucket(contentBucket).Put([]byte(w.path), w.buf.Bytes()); err != nil {
			return err
		}
		return tx.Bucket(metaBucket).Put([]byte(w.path), mb)
	})
}

func (w *writer) Abort() error {
	if w.done {
		return errWriterDone
	}
	w.done = true
	w.buf.Reset()
	return nil
}
