// Package identity maps (source, external identifier, lot) keys onto stable
// internal identifiers. An exact identity hit wins; otherwise candidates with
// the same lot are scored by normalized-title similarity with a year
// tolerance, attaching to an existing record above the match threshold,
// failing closed inside the ambiguity band, and minting a fresh identifier
// below it.
package identity
