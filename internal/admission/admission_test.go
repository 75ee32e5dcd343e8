package admission

import (
	"context"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
)

func TestGate(t *testing.T) {
	defer leaktest.Check(t)()
	ctx := context.Background()

	g := New(2)
	if err := g.Acquire(ctx); err != nil {
		t.Fatal(err)
	}
	if err := g.Acquire(ctx); err != nil {
		t.Fatal(err)
	}
	if g.Len() != 2 {
		t.FailNow()
	}
	if g.TryAcquire() {
		t.FailNow()
	}

	// A full gate blocks until the context is done.
	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := g.Acquire(waitCtx); err != context.DeadlineExceeded {
		t.Fatal(err)
	}

	g.Release()
	if !g.TryAcquire() {
		t.FailNow()
	}
	g.Release()
	g.Release()
	if g.Len() != 0 {
		t.FailNow()
	}
}

func TestReleaseWithoutAcquirePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.FailNow()
		}
	}()
	New(1).Release()
}
