package layers

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v3"
	"github.com/unistor/unistor"
)

// Retry retries idempotent operations (stat, read, list, delete) on
// transient failures using exponential backoff with jitter. Writes are
// retried only when they are conditional (if-match) and the backend
// declares conditional writes safe to repeat. NotFound, PermissionDenied
// and ChecksumMismatch are never retried. When attempts are exhausted the
// last error is surfaced tagged as retried.
type Retry struct {
	// MaxAttempts bounds the total number of tries. Default 3.
	MaxAttempts int
	// InitialInterval is the first backoff delay. Default 500ms.
	InitialInterval time.Duration
	// MaxInterval caps the backoff delay. Default 30s.
	MaxInterval time.Duration
	// Multiplier grows the delay between attempts. Default 2.
	Multiplier float64
	// RandomizationFactor is the jitter applied to each delay. Default 0.5.
	RandomizationFactor float64
}

// Apply implements unistor.Layer.
func (l *Retry) Apply(inner unistor.Accessor) unistor.Accessor {
	cfg := *l
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 30 * time.Second
	}
	if cfg.Multiplier == 0 {
		cfg.Multiplier = 2
	}
	if cfg.RandomizationFactor == 0 {
		cfg.RandomizationFactor = 0.5
	}
	return &retryAccessor{Accessor: inner, cfg: cfg}
}

type retryAccessor struct {
	unistor.Accessor
	cfg Retry
}

func (a *retryAccessor) Close() error {
	return closeAccessor(a.Accessor)
}

func (a *retryAccessor) newBackOff() *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     a.cfg.InitialInterval,
		RandomizationFactor: a.cfg.RandomizationFactor,
		Multiplier:          a.cfg.Multiplier,
		MaxInterval:         a.cfg.MaxInterval,
		MaxElapsedTime:      0, // attempts are bounded by count, not time
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return b
}

func (a *retryAccessor) retry(ctx context.Context, call func() error) error {
	bo := a.newBackOff()
	var err error
	for attempt := 1; ; attempt++ {
		err = call()
		if err == nil || !unistor.IsRetryable(err) {
			return err
		}
		if attempt >= a.cfg.MaxAttempts {
			break
		}
		select {
		case <-time.After(bo.NextBackOff()):
		case <-ctx.Done():
			// The budget was not exhausted; the last error stands as is.
			return err
		}
	}
	return tagRetried(err)
}

func tagRetried(err error) error {
	var e *unistor.Error
	if errors.As(err, &e) {
		tagged := *e
		tagged.Retried = true
		return &tagged
	}
	return err
}

func (a *retryAccessor) Stat(ctx context.Context, path string, o unistor.OpStat) (m unistor.Metadata, err error) {
	err = a.retry(ctx, func() error {
		m, err = a.Accessor.Stat(ctx, path, o)
		return err
	})
	return m, err
}

func (a *retryAccessor) Read(ctx context.Context, path string, o unistor.OpRead) (r unistor.Reader, err error) {
	err = a.retry(ctx, func() error {
		r, err = a.Accessor.Read(ctx, path, o)
		return err
	})
	return r, err
}

func (a *retryAccessor) List(ctx context.Context, path string, o unistor.OpList) (l unistor.Lister, err error) {
	err = a.retry(ctx, func() error {
		l, err = a.Accessor.List(ctx, path, o)
		return err
	})
	return l, err
}

func (a *retryAccessor) Delete(ctx context.Context, path string) error {
	return a.retry(ctx, func() error {
		return a.Accessor.Delete(ctx, path)
	})
}

func (a *retryAccessor) Write(ctx context.Context, path string, o unistor.OpWrite) (unistor.Writer, error) {
	// A write is only safe to repeat when the commit is conditional on
	// the etag observed by the caller.
	if o.IfMatch != "" && a.Accessor.Info().Capability.WriteWithIfMatch {
		var w unistor.Writer
		err := a.retry(ctx, func() (err error) {
			w, err = a.Accessor.Write(ctx, path, o)
			return err
		})
		return w, err
	}
	return a.Accessor.Write(ctx, path, o)
}
