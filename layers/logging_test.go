package layers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unistor/unistor"
	"github.com/unistor/unistor/services/memory"
)

func TestLoggingDoesNotAlterResults(t *testing.T) {
	ctx := context.Background()
	mem, err := memory.New(nil)
	require.NoError(t, err)
	op, err := unistor.NewOperator(mem, Logging{})
	require.NoError(t, err)

	require.NoError(t, op.Write(ctx, "a.txt", []byte("hello")))
	b, err := op.Read(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))

	m, err := op.Stat(ctx, "a.txt")
	require.NoError(t, err)
	assert.EqualValues(t, 5, m.Size)

	// Errors pass through with their kind intact.
	_, err = op.Read(ctx, "missing.txt")
	assert.True(t, unistor.IsNotFound(err))

	w, err := op.Writer(ctx, "b.txt", unistor.OpWrite{})
	require.NoError(t, err)
	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)
	require.NoError(t, w.Abort())
	ok, err := op.IsExist(ctx, "b.txt")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOptFields(t *testing.T) {
	s := optFields(unistor.OpRead{Offset: 2, Length: 7})
	assert.Equal(t, "IfMatch= Length=7 Offset=2 Version=", s)
}
