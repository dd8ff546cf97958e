package media

import "time"

// ProviderIdentity maps an external (source, identifier, lot) triple to the
// internal id of a canonical record. Many identities may point at one record;
// each triple resolves to exactly one record.
type ProviderIdentity struct {
	Source             Source
	ExternalIdentifier string
	Lot                Lot
	InternalID         string
	CreatedAt          time.Time
}

// Suggestion is a lightweight cross-reference to related media discovered
// during normalization. Suggestions are derived data: they are fully replaced
// on each successful sync, never merged.
type Suggestion struct {
	Lot        Lot    `json:"lot"`
	Source     Source `json:"source"`
	Identifier string `json:"identifier"`
	Title      string `json:"title"`
	Image      string `json:"image,omitempty"`
	MetadataID string `json:"metadata_id,omitempty"`
}

// SearchItem is the lightweight shape returned by provider search, enough to
// drive a follow-up refresh of the full record.
type SearchItem struct {
	Identifier  string `json:"identifier"`
	Title       string `json:"title"`
	Image       string `json:"image,omitempty"`
	PublishYear int    `json:"publish_year,omitempty"`
}
