// Package daemon wires the curator services together: the single-instance
// lock, the synchronization orchestrator, and the HTTP API the CLI talks to.
package daemon
