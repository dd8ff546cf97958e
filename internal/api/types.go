package api

import "time"

// MediaResponse is the full detail view of one canonical record.
type MediaResponse struct {
	Media MediaView `json:"media"`
}

// MediaView mirrors the canonical record field set.
type MediaView struct {
	InternalID     string             `json:"internal_id"`
	Lot            string             `json:"lot"`
	Source         string             `json:"source"`
	Identifier     string             `json:"identifier"`
	Title          string             `json:"title"`
	Description    string             `json:"description,omitempty"`
	SourceURL      string             `json:"source_url,omitempty"`
	ProviderRating float64            `json:"provider_rating,omitempty"`
	PublishYear    int                `json:"publish_year,omitempty"`
	PublishDate    *time.Time         `json:"publish_date,omitempty"`
	IsNsfw         *bool              `json:"is_nsfw,omitempty"`
	Genres         []string           `json:"genres,omitempty"`
	Creators       []CreatorGroupView `json:"creators,omitempty"`
	Images         []string           `json:"images,omitempty"`
	Videos         []VideoView        `json:"videos,omitempty"`
	Group          *GroupView         `json:"group,omitempty"`
	Specifics      *SpecificsView     `json:"specifics,omitempty"`
	Suggestions    []SuggestionView   `json:"suggestions,omitempty"`
	Identities     []IdentityView     `json:"identities,omitempty"`
}

// SpecificsView carries the lot-dependent extension fields; exactly one
// member is populated.
type SpecificsView struct {
	Anime       *AnimeSpecificsView       `json:"anime,omitempty"`
	AudioBook   *AudioBookSpecificsView   `json:"audio_book,omitempty"`
	Book        *BookSpecificsView        `json:"book,omitempty"`
	Manga       *MangaSpecificsView       `json:"manga,omitempty"`
	Movie       *MovieSpecificsView       `json:"movie,omitempty"`
	Podcast     *PodcastSpecificsView     `json:"podcast,omitempty"`
	Show        *ShowSpecificsView        `json:"show,omitempty"`
	VideoGame   *VideoGameSpecificsView   `json:"video_game,omitempty"`
	VisualNovel *VisualNovelSpecificsView `json:"visual_novel,omitempty"`
}

type AnimeSpecificsView struct {
	Episodes int `json:"episodes,omitempty"`
}

type AudioBookSpecificsView struct {
	Runtime int `json:"runtime,omitempty"`
}

type BookSpecificsView struct {
	Pages int `json:"pages,omitempty"`
}

type MangaSpecificsView struct {
	Volumes  int `json:"volumes,omitempty"`
	Chapters int `json:"chapters,omitempty"`
}

type MovieSpecificsView struct {
	Runtime int `json:"runtime,omitempty"`
}

type PodcastSpecificsView struct {
	TotalEpisodes int `json:"total_episodes,omitempty"`
	Episodes      int `json:"episodes,omitempty"`
}

type ShowSpecificsView struct {
	Seasons  int `json:"seasons,omitempty"`
	Episodes int `json:"episodes,omitempty"`
}

type VideoGameSpecificsView struct {
	Platforms []string `json:"platforms,omitempty"`
}

type VisualNovelSpecificsView struct {
	Length int `json:"length,omitempty"`
}

// CreatorGroupView is one role with its credited people.
type CreatorGroupView struct {
	Role     string        `json:"role"`
	Creators []CreatorView `json:"creators"`
}

// CreatorView is one credited person.
type CreatorView struct {
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

// VideoView references a provider-hosted video.
type VideoView struct {
	VideoID string `json:"video_id"`
	Site    string `json:"site,omitempty"`
}

// GroupView is collection membership.
type GroupView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Part int    `json:"part"`
}

// SuggestionView is one related-media pointer.
type SuggestionView struct {
	Lot        string `json:"lot"`
	Source     string `json:"source"`
	Identifier string `json:"identifier"`
	Title      string `json:"title"`
	Image      string `json:"image,omitempty"`
	MetadataID string `json:"metadata_id,omitempty"`
}

// IdentityView is one provider binding of a record.
type IdentityView struct {
	Source     string `json:"source"`
	Identifier string `json:"identifier"`
	Lot        string `json:"lot"`
}

// RefreshRequest asks the daemon to synchronize one provider target.
type RefreshRequest struct {
	Source     string `json:"source"`
	Identifier string `json:"identifier"`
	Lot        string `json:"lot"`
	Wait       bool   `json:"wait,omitempty"`
}

// RefreshResponse reports the job created (or joined) for a refresh.
type RefreshResponse struct {
	Job JobView `json:"job"`
}

// CancelRequest asks the daemon to drop pending jobs for a target.
type CancelRequest struct {
	Source     string `json:"source"`
	Identifier string `json:"identifier"`
	Lot        string `json:"lot"`
}

// CancelResponse reports how many pending jobs were removed.
type CancelResponse struct {
	Removed int `json:"removed"`
}

// JobView mirrors one sync job row.
type JobView struct {
	ID         int64     `json:"id"`
	Source     string    `json:"source"`
	Identifier string    `json:"identifier"`
	Lot        string    `json:"lot"`
	InternalID string    `json:"internal_id,omitempty"`
	Kind       string    `json:"kind"`
	State      string    `json:"state"`
	Attempt    int       `json:"attempt"`
	LastError  string    `json:"last_error,omitempty"`
	NextRunAt  time.Time `json:"next_run_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// JobListResponse lists jobs, newest first.
type JobListResponse struct {
	Jobs []JobView `json:"jobs"`
}

// StatusResponse summarizes a running daemon.
type StatusResponse struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	DatabasePath string         `json:"database_path"`
	LockFilePath string         `json:"lock_file_path"`
	Sources      []string       `json:"sources"`
	JobCounts    map[string]int `json:"job_counts"`
}

// SearchResponse lists lightweight provider search hits.
type SearchResponse struct {
	Source  string           `json:"source"`
	Query   string           `json:"query"`
	Page    int              `json:"page"`
	Results []SearchItemView `json:"results"`
}

// SearchItemView is one provider search hit.
type SearchItemView struct {
	Identifier  string `json:"identifier"`
	Title       string `json:"title"`
	Image       string `json:"image,omitempty"`
	PublishYear int    `json:"publish_year,omitempty"`
}

// ErrorResponse carries a daemon-side failure message.
type ErrorResponse struct {
	Error string `json:"error"`
}
