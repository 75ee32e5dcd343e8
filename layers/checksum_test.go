package layers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unistor/unistor"
	"github.com/unistor/unistor/services/memory"
)

func TestChecksumVerifiesFullReads(t *testing.T) {
	ctx := context.Background()
	mem, err := memory.New(nil)
	require.NoError(t, err)
	op, err := unistor.NewOperator(mem, Checksum{})
	require.NoError(t, err)

	require.NoError(t, op.Write(ctx, "a.txt", []byte("hello")))
	b, err := op.Read(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))
}

func TestChecksumDetectsCorruption(t *testing.T) {
	ctx := context.Background()
	mem, err := memory.New(nil)
	require.NoError(t, err)
	op, err := unistor.NewOperator(mem, Checksum{})
	require.NoError(t, err)

	require.NoError(t, op.Write(ctx, "a.txt", []byte("hello")))

	// Rewrite the object behind the layer's back.
	require.NoError(t, write(mem, "a.txt", "hackd"))

	_, err = op.Read(ctx, "a.txt")
	require.Error(t, err)
	assert.Equal(t, unistor.KindChecksumMismatch, unistor.ErrorKind(err))
}

func TestChecksumSkipsRangedReads(t *testing.T) {
	ctx := context.Background()
	mem, err := memory.New(nil)
	require.NoError(t, err)
	op, err := unistor.NewOperator(mem, Checksum{})
	require.NoError(t, err)

	require.NoError(t, op.Write(ctx, "a.txt", []byte("hello")))
	require.NoError(t, write(mem, "a.txt", "hackd"))

	b, err := op.ReadWith(ctx, "a.txt", unistor.OpRead{Offset: 1, Length: 3})
	require.NoError(t, err)
	assert.Equal(t, "ack", string(b))
}

func TestChecksumFollowsRename(t *testing.T) {
	ctx := context.Background()
	mem, err := memory.New(nil)
	require.NoError(t, err)
	op, err := unistor.NewOperator(mem, Checksum{})
	require.NoError(t, err)

	require.NoError(t, op.Write(ctx, "a.txt", []byte("hello")))
	require.NoError(t, op.Rename(ctx, "a.txt", "b.txt"))

	b, err := op.Read(ctx, "b.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))

	// Corruption of the renamed object is still caught.
	require.NoError(t, write(mem, "b.txt", "hackd"))
	_, err = op.Read(ctx, "b.txt")
	assert.Equal(t, unistor.KindChecksumMismatch, unistor.ErrorKind(err))
}

func TestChecksumAppendDropsDigest(t *testing.T) {
	ctx := context.Background()
	mem, err := memory.New(nil)
	require.NoError(t, err)
	op, err := unistor.NewOperator(mem, Checksum{})
	require.NoError(t, err)

	require.NoError(t, op.Write(ctx, "a.txt", []byte("hello")))
	require.NoError(t, op.WriteWith(ctx, "a.txt", []byte(" world"), unistor.OpWrite{Append: true}))

	// No digest covers the combined body, so the read is served as is.
	b, err := op.Read(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(b))
}
