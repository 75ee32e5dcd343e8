// Package layers contains composable behavior-modifying wrappers around
// an Accessor: retry with backoff, concurrency limiting, logging,
// metrics, byte-rate throttling, chunk-aligned reads, content checksums
// and a read cache.
//
// Layers are applied with unistor.NewOperator; the last layer supplied is
// outermost and sees caller operations first. Order changes observable
// behavior. A layer never widens the inner capability.
package layers

import (
	"errors"
	"io"

	"github.com/unistor/unistor"
)

var errSeekUnsupported = errors.New("inner reader does not support seek")

// closeAccessor closes the inner accessor when it holds resources.
func closeAccessor(a unistor.Accessor) error {
	if c, ok := a.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
