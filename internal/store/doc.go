// Package store persists canonical media records, provider identities,
// suggestions, and sync jobs in SQLite. Record upserts merge field-wise so a
// partial refresh never erases previously known values; suggestions are
// regenerated wholesale on each successful sync. All writes for one internal
// id commit in a single transaction.
package store
