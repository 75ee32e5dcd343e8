package unistor

import (
	"errors"
	"fmt"
)

// Kind classifies an error into the shared taxonomy. Every error leaving
// an Operator or Accessor carries exactly one Kind.
type Kind int

const (
	// KindUnexpected wraps an opaque backend-native error.
	KindUnexpected Kind = iota
	KindNotFound
	KindAlreadyExists
	KindPermissionDenied
	// KindUnsupported is returned before any I/O when a requested option
	// is absent from the backend capability.
	KindUnsupported
	KindInvalidInput
	KindChecksumMismatch
	// KindRateLimited marks throttling signals from the backend. Retryable.
	KindRateLimited
	// KindConditionNotMatch is returned when an if-match precondition
	// fails against the object's current etag.
	KindConditionNotMatch
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindAlreadyExists:
		return "already exists"
	case KindPermissionDenied:
		return "permission denied"
	case KindUnsupported:
		return "unsupported"
	case KindInvalidInput:
		return "invalid input"
	case KindChecksumMismatch:
		return "checksum mismatch"
	case KindRateLimited:
		return "rate limited"
	case KindConditionNotMatch:
		return "condition not match"
	default:
		return "unexpected"
	}
}

// Error is the typed error returned from every failed operation.
type Error struct {
	Kind Kind
	// Op is the failed operation name ("read", "write", "stat", ...).
	Op string
	// Path the operation was issued against. For copy/rename it is the
	// source path.
	Path string
	// Retried is set by the retry layer when the error survived the
	// configured attempt budget.
	Retried bool
	// Err is the backend-native cause, may be nil.
	Err error
}

// Error implements error interface.
func (e *Error) Error() string {
	s := e.Op + " " + e.Path + ": " + e.Kind.String()
	if e.Retried {
		s += " (retried)"
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

// Unwrap returns the backend-native cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

func errorf(kind Kind, op, path, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: fmt.Errorf(format, args...)}
}

// ErrorKind extracts the taxonomy kind from err. Errors that did not
// originate from this package classify as KindUnexpected.
func ErrorKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return ErrorKind(err) == KindNotFound }

// IsUnsupported reports whether err was rejected by the capability gate.
func IsUnsupported(err error) bool { return ErrorKind(err) == KindUnsupported }

// IsRetried reports whether err exhausted a retry layer's attempt budget.
func IsRetried(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retried
}

// retryable kinds are safe to retry for idempotent operations. NotFound,
// PermissionDenied and ChecksumMismatch are never retryable and never
// masked by layers.
func retryableKind(k Kind) bool {
	return k == KindRateLimited || k == KindUnexpected
}

// IsRetryable reports whether a retry layer may retry err for an
// idempotent operation.
func IsRetryable(err error) bool {
	return retryableKind(ErrorKind(err))
}
