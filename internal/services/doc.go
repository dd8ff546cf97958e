// Package services defines the shared error domain for the aggregation
// pipeline. Components wrap failures with a sentinel marker so the
// synchronization orchestrator can classify them (retry, fail, surface to the
// caller) without inspecting message text.
package services
