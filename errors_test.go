package unistor

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	err := newError(KindNotFound, "stat", "a.txt", nil)
	if err.Error() != "stat a.txt: not found" {
		t.Fatal(err.Error())
	}
	err = newError(KindUnexpected, "read", "b.txt", errors.New("boom"))
	err.Retried = true
	if err.Error() != "read b.txt: unexpected (retried): boom" {
		t.Fatal(err.Error())
	}
}

func TestErrorKindExtraction(t *testing.T) {
	inner := newError(KindRateLimited, "read", "a.txt", nil)
	wrapped := fmt.Errorf("outer: %w", inner)
	if ErrorKind(wrapped) != KindRateLimited {
		t.FailNow()
	}
	if !IsRetryable(wrapped) {
		t.FailNow()
	}
	if ErrorKind(errors.New("plain")) != KindUnexpected {
		t.FailNow()
	}
}

func TestRetryableKinds(t *testing.T) {
	for kind, want := range map[Kind]bool{
		KindRateLimited:       true,
		KindUnexpected:        true,
		KindNotFound:          false,
		KindPermissionDenied:  false,
		KindChecksumMismatch:  false,
		KindUnsupported:       false,
		KindInvalidInput:      false,
		KindAlreadyExists:     false,
		KindConditionNotMatch: false,
	} {
		if retryableKind(kind) != want {
			t.Fatalf("kind %s: want retryable=%v", kind, want)
		}
	}
}

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"/a.txt":    "a.txt",
		"a//b.txt":  "a/b.txt",
		"./a.txt":   "a.txt",
		"a/./b":     "a/b",
		"a/c/../b":  "a/b",
		"/":         "",
		"":          "",
		"dir/":      "dir",
		"/dir/sub/": "dir/sub",
	}
	for in, want := range cases {
		got, err := normalizePath(in)
		if err != nil {
			t.Fatalf("%q: %s", in, err)
		}
		if got != want {
			t.Fatalf("%q: got %q want %q", in, got, want)
		}
	}
	for _, in := range []string{"..", "../x", "a/../../x"} {
		if _, err := normalizePath(in); err == nil {
			t.Fatalf("%q: expected error", in)
		}
	}
}
