package fetch

import "errors"

var (
	// ErrRateLimitTimeout indicates a queued call could not be dispatched
	// before the caller's deadline.
	ErrRateLimitTimeout = errors.New("fetch: rate limit timeout")

	// ErrExhausted indicates the retry budget was spent on transient failures.
	// The last underlying cause is wrapped alongside it.
	ErrExhausted = errors.New("fetch: retry attempts exhausted")

	// ErrNotFound indicates the provider does not know the identifier.
	ErrNotFound = errors.New("fetch: not found upstream")

	// ErrInvalidIdentifier indicates the provider rejected the identifier as
	// malformed. Never retried.
	ErrInvalidIdentifier = errors.New("fetch: invalid identifier")

	// ErrQueueFull indicates the per-provider wait queue is at capacity.
	ErrQueueFull = errors.New("fetch: provider queue full")
)
