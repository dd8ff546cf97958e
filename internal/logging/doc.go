// Package logging configures log/slog for the daemon and CLI: a logfmt-style
// console handler for interactive use, a JSON handler for machine ingestion,
// attr helpers, and standardized field keys shared across components.
package logging
