package unistor_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unistor/unistor"
)

func TestAsyncOperatorMatchesSync(t *testing.T) {
	ctx := context.Background()
	op := newMemOperator(t)
	async := op.Async()

	_, err := async.Write(ctx, "a.txt", []byte("hello")).Wait(ctx)
	require.NoError(t, err)

	b, err := async.Read(ctx, "a.txt").Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))

	m, err := async.Stat(ctx, "a.txt").Wait(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 5, m.Size)

	_, err = async.Delete(ctx, "a.txt").Wait(ctx)
	require.NoError(t, err)

	_, err = async.Stat(ctx, "a.txt").Wait(ctx)
	assert.True(t, unistor.IsNotFound(err))
}

func TestFutureDone(t *testing.T) {
	ctx := context.Background()
	op := newMemOperator(t)

	f := op.Async().Write(ctx, "a.txt", []byte("x"))
	<-f.Done()
	_, err := f.Wait(ctx)
	require.NoError(t, err)
}

func TestFutureWaitCancel(t *testing.T) {
	ctx := context.Background()
	op := newMemOperator(t)

	f := op.Async().Read(ctx, "missing")
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	// A cancelled wait does not consume the result; a later wait still
	// resolves it.
	if _, err := f.Wait(cancelled); err == nil {
		t.FailNow()
	}
	_, err := f.Wait(ctx)
	assert.True(t, unistor.IsNotFound(err))
}
