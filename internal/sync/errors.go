package sync

import "errors"

var (
	// ErrQueueFull indicates the pending job backlog reached the configured
	// depth and intake refused the target.
	ErrQueueFull = errors.New("sync: job queue full")

	// ErrCanceled indicates a queued job was canceled before a worker
	// claimed it.
	ErrCanceled = errors.New("sync: job canceled")

	// ErrNotRunning indicates the orchestrator has not been started.
	ErrNotRunning = errors.New("sync: orchestrator not running")
)
