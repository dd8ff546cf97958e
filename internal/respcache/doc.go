// Package respcache holds raw provider responses in a bounded in-memory LRU
// with per-entry expiry. Concurrent requests for the same key are collapsed
// into a single upstream fetch; every waiter receives the one result.
package respcache
