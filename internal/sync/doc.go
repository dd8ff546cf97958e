// Package sync runs the synchronization pipeline: a bounded worker pool
// polls persisted jobs and drives each one through fetch, normalize,
// resolve, and write. The orchestrator is the only writer of job state.
package sync
