// Package api defines the JSON view models exchanged between the curator
// daemon and its clients, plus the HTTP client the CLI uses to reach a
// running daemon.
package api
