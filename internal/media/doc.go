// Package media defines the canonical domain model shared across the
// aggregation pipeline: media kinds (lots), provider sources, the canonical
// record shape, lot-specific extension payloads, and provider identities.
package media
