// Package unistor provides one uniform API for reading, writing, listing
// and managing objects across heterogeneous storage backends.
//
// A backend driver implements the Accessor interface and reports its
// Capability. An Operator wraps the accessor with an ordered chain of
// layers (retry, caching, logging, rate limiting, metrics, ...) and
// validates every call against the capability before any I/O happens.
//
//	acc, _ := memory.New(nil)
//	op, _ := unistor.NewOperator(acc,
//		layers.Logging{},
//		&layers.Retry{MaxAttempts: 3},
//	)
//	_ = op.Write(ctx, "a.txt", []byte("hello"))
//	b, _ := op.Read(ctx, "a.txt")
//
// Layers wrap in the order supplied: the last layer is outermost and sees
// caller operations first. Order is deliberate and changes observable
// behavior; retry outside a cache retries cache misses, retry inside does
// not.
package unistor
