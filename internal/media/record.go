package media

import (
	"errors"
	"strings"
	"time"
)

// Creator is a single credited person within a role group.
type Creator struct {
	Name     string `json:"name"`
	Image    string `json:"image,omitempty"`
	PersonID string `json:"person_id,omitempty"`
}

// CreatorGroup collects creators sharing one role (e.g. "Director", "Author").
// Group and member order is preserved as returned by the provider.
type CreatorGroup struct {
	Role     string    `json:"role"`
	Creators []Creator `json:"creators"`
}

// Video references a provider-hosted video asset.
type Video struct {
	VideoID string `json:"video_id"`
	Site    string `json:"site,omitempty"`
}

// Assets bundles the visual material attached to a record.
type Assets struct {
	Images []string `json:"images,omitempty"`
	Videos []Video  `json:"videos,omitempty"`
}

// Group describes membership of a record in a provider-defined collection,
// e.g. a movie franchise.
type Group struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Part int    `json:"part"`
}

// Record is the normalized representation of one media item. Adapters emit it
// and the canonical store persists it; the internal identifier is assigned by
// the identity resolver, not by adapters.
type Record struct {
	InternalID         string
	Lot                Lot
	Source             Source
	ExternalIdentifier string

	Title          string
	Description    string
	SourceURL      string
	ProviderRating float64
	PublishYear    int
	PublishDate    *time.Time
	IsNsfw         *bool
	Genres         []string
	Creators       []CreatorGroup
	Assets         Assets
	Group          *Group

	Specifics   Specifics
	Suggestions []Suggestion
}

// Validate checks the invariants every normalized record must satisfy before
// it enters the pipeline: a known lot and source, a non-empty external
// identifier, and specifics matching the lot when present.
func (r *Record) Validate() error {
	if r == nil {
		return errors.New("media record is nil")
	}
	if !r.Lot.IsValid() {
		return &ValidationError{Field: "lot", Reason: "unknown lot " + string(r.Lot)}
	}
	if !r.Source.IsValid() {
		return &ValidationError{Field: "source", Reason: "unknown source " + string(r.Source)}
	}
	if strings.TrimSpace(r.ExternalIdentifier) == "" {
		return &ValidationError{Field: "external_identifier", Reason: "missing"}
	}
	if strings.TrimSpace(r.Title) == "" {
		return &ValidationError{Field: "title", Reason: "missing"}
	}
	if err := r.Specifics.Validate(r.Lot); err != nil {
		return err
	}
	return nil
}

// ValidationError describes a record field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "media record invalid: " + e.Field + ": " + e.Reason
}
