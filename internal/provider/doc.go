// Package provider defines the capability surface every metadata source
// implements and the registry the orchestrator dispatches through. Each
// source lives in its own subpackage; normalization is pure while raw
// fetches run through the shared rate-limited client and response cache.
package provider
