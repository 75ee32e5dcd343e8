// Package admission implements a counting gate that bounds in-flight
// operations. Acquire blocks until a slot frees or the context is done.
package admission

import "context"

type Gate struct {
	slots chan struct{}
}

// New returns a Gate admitting at most n holders at a time.
// n must be positive.
func New(n int) *Gate {
	return &Gate{
		slots: make(chan struct{}, n),
	}
}

// Acquire takes one slot. It returns the context error if ctx is done
// before a slot frees.
func (g *Gate) Acquire(ctx context.Context) error {
	select {
	case g.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes a slot without blocking.
func (g *Gate) TryAcquire() bool {
	select {
	case g.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees one slot. Must be called exactly once per successful
// Acquire.
func (g *Gate) Release() {
	select {
	case <-g.slots:
	default:
		panic("admission: release without acquire")
	}
}

// Len returns the number of held slots.
func (g *Gate) Len() int {
	return len(g.slots)
}
