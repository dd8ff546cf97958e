package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("connection reset")
	err := Wrap(ErrTransient, "fetch", "tmdb lookup", "request failed", base)
	if !errors.Is(err, ErrTransient) {
		t.Fatal("wrapped error should match its marker")
	}
	if !errors.Is(err, base) {
		t.Fatal("wrapped error should preserve the cause")
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := Wrap(nil, "store", "commit", "", nil)
	if !errors.Is(err, ErrTransient) {
		t.Fatal("nil marker should default to ErrTransient")
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transient", fmt.Errorf("%w: boom", ErrTransient), true},
		{"unavailable", Wrap(ErrUnavailable, "store", "commit", "", nil), true},
		{"timeout", ErrTimeout, true},
		{"deadline", context.DeadlineExceeded, true},
		{"validation", Wrap(ErrValidation, "adapter", "normalize", "", nil), false},
		{"not found", Wrap(ErrNotFound, "fetch", "lookup", "", nil), false},
		{"plain", errors.New("unclassified"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Retryable(tc.err); got != tc.want {
				t.Errorf("Retryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
