// Package fetch wraps outbound provider requests with per-source token-bucket
// rate limiting, a bounded in-flight concurrency cap, and retry with
// exponential backoff. Providers build their own requests; the client owns
// throttling, retries, and the mapping of transport failures onto the typed
// error taxonomy.
package fetch
