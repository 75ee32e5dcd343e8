package layers

import (
	"context"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unistor/unistor"
	"github.com/unistor/unistor/services/memory"
)

func TestConcurrencyLimitBlocksExcessCalls(t *testing.T) {
	defer leaktest.Check(t)()
	ctx := context.Background()

	mem, err := memory.New(nil)
	require.NoError(t, err)
	require.NoError(t, write(mem, "a.txt", "hello"))
	op, err := unistor.NewOperator(mem, ConcurrencyLimit{Limit: 2})
	require.NoError(t, err)

	// Two open readers hold both slots until closed.
	r1, err := op.Reader(ctx, "a.txt", unistor.FullRead)
	require.NoError(t, err)
	r2, err := op.Reader(ctx, "a.txt", unistor.FullRead)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = op.Stat(waitCtx, "a.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Freeing one slot unblocks the next caller.
	require.NoError(t, r1.Close())
	_, err = op.Stat(ctx, "a.txt")
	require.NoError(t, err)
	require.NoError(t, r2.Close())
}

func TestConcurrencyLimitCoversListDrain(t *testing.T) {
	defer leaktest.Check(t)()
	ctx := context.Background()

	mem, err := memory.New(nil)
	require.NoError(t, err)
	require.NoError(t, write(mem, "dir/a.txt", "x"))
	require.NoError(t, write(mem, "dir/b.txt", "x"))
	op, err := unistor.NewOperator(mem, ConcurrencyLimit{Limit: 1})
	require.NoError(t, err)

	l, err := op.List(ctx, "dir", unistor.OpList{})
	require.NoError(t, err)

	// The undrained lister still holds the slot.
	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = op.Stat(waitCtx, "dir/a.txt")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	for {
		e, err := l.Next(ctx)
		require.NoError(t, err)
		if e == nil {
			break
		}
	}
	_, err = op.Stat(ctx, "dir/a.txt")
	require.NoError(t, err)
}

func TestConcurrencyLimitPerOp(t *testing.T) {
	defer leaktest.Check(t)()
	ctx := context.Background()

	mem, err := memory.New(nil)
	require.NoError(t, err)
	require.NoError(t, write(mem, "a.txt", "hello"))
	op, err := unistor.NewOperator(mem, ConcurrencyLimit{Limit: 8, PerOp: map[string]int{"read": 1}})
	require.NoError(t, err)

	r, err := op.Reader(ctx, "a.txt", unistor.FullRead)
	require.NoError(t, err)

	// Reads beyond the per-op bound block, other ops still pass.
	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = op.Reader(waitCtx, "a.txt", unistor.FullRead)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	_, err = op.Stat(ctx, "a.txt")
	require.NoError(t, err)

	require.NoError(t, r.Close())
	r, err = op.Reader(ctx, "a.txt", unistor.FullRead)
	require.NoError(t, err)
	require.NoError(t, r.Close())
}
