package media

import (
	"fmt"
	"time"
)

// Specifics carries the lot-dependent extension payload of a record. Exactly
// one variant pointer is set, and it must match the record's lot.
type Specifics struct {
	Anime       *AnimeSpecifics       `json:"anime,omitempty"`
	AudioBook   *AudioBookSpecifics   `json:"audio_book,omitempty"`
	Book        *BookSpecifics        `json:"book,omitempty"`
	Manga       *MangaSpecifics       `json:"manga,omitempty"`
	Movie       *MovieSpecifics       `json:"movie,omitempty"`
	Podcast     *PodcastSpecifics     `json:"podcast,omitempty"`
	Show        *ShowSpecifics        `json:"show,omitempty"`
	VideoGame   *VideoGameSpecifics   `json:"video_game,omitempty"`
	VisualNovel *VisualNovelSpecifics `json:"visual_novel,omitempty"`
}

// AnimeSpecifics extends anime records.
type AnimeSpecifics struct {
	Episodes int `json:"episodes,omitempty"`
}

// AudioBookSpecifics extends audio book records. Runtime is in minutes.
type AudioBookSpecifics struct {
	Runtime int `json:"runtime,omitempty"`
}

// BookSpecifics extends book records.
type BookSpecifics struct {
	Pages int `json:"pages,omitempty"`
}

// MangaSpecifics extends manga records.
type MangaSpecifics struct {
	Volumes  int `json:"volumes,omitempty"`
	Chapters int `json:"chapters,omitempty"`
}

// MovieSpecifics extends movie records. Runtime is in minutes.
type MovieSpecifics struct {
	Runtime int `json:"runtime,omitempty"`
}

// PodcastEpisode is one entry of a podcast feed, ordered by episode number.
type PodcastEpisode struct {
	Title       string     `json:"title"`
	Overview    string     `json:"overview,omitempty"`
	Thumbnail   string     `json:"thumbnail,omitempty"`
	Number      int        `json:"number"`
	Runtime     int        `json:"runtime,omitempty"`
	PublishDate *time.Time `json:"publish_date,omitempty"`
}

// PodcastSpecifics extends podcast records.
type PodcastSpecifics struct {
	Episodes      []PodcastEpisode `json:"episodes,omitempty"`
	TotalEpisodes int              `json:"total_episodes,omitempty"`
}

// ShowEpisode is one episode within a season.
type ShowEpisode struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Images        []string   `json:"images,omitempty"`
	EpisodeNumber int        `json:"episode_number"`
	PublishDate   *time.Time `json:"publish_date,omitempty"`
	Overview      string     `json:"overview,omitempty"`
	Runtime       int        `json:"runtime,omitempty"`
}

// ShowSeason is one season of a show, episodes in broadcast order.
type ShowSeason struct {
	SeasonNumber int           `json:"season_number"`
	Name         string        `json:"name"`
	Overview     string        `json:"overview,omitempty"`
	Images       []string      `json:"images,omitempty"`
	Episodes     []ShowEpisode `json:"episodes,omitempty"`
}

// ShowSpecifics extends show records.
type ShowSpecifics struct {
	Seasons []ShowSeason `json:"seasons,omitempty"`
}

// VideoGameSpecifics extends video game records.
type VideoGameSpecifics struct {
	Platforms []string `json:"platforms,omitempty"`
}

// VisualNovelSpecifics extends visual novel records. Length is in minutes.
type VisualNovelSpecifics struct {
	Length int `json:"length,omitempty"`
}

// Lot returns the lot the populated variant corresponds to, or "" when no
// variant is set.
func (s Specifics) Lot() Lot {
	switch {
	case s.Anime != nil:
		return LotAnime
	case s.AudioBook != nil:
		return LotAudioBook
	case s.Book != nil:
		return LotBook
	case s.Manga != nil:
		return LotManga
	case s.Movie != nil:
		return LotMovie
	case s.Podcast != nil:
		return LotPodcast
	case s.Show != nil:
		return LotShow
	case s.VideoGame != nil:
		return LotVideoGame
	case s.VisualNovel != nil:
		return LotVisualNovel
	default:
		return ""
	}
}

// IsZero reports whether no variant is populated.
func (s Specifics) IsZero() bool {
	return s.Lot() == ""
}

// Validate enforces the one-variant-per-record invariant: at most one variant
// set, and when set it must match the supplied lot.
func (s Specifics) Validate(lot Lot) error {
	count := 0
	for _, set := range []bool{
		s.Anime != nil,
		s.AudioBook != nil,
		s.Book != nil,
		s.Manga != nil,
		s.Movie != nil,
		s.Podcast != nil,
		s.Show != nil,
		s.VideoGame != nil,
		s.VisualNovel != nil,
	} {
		if set {
			count++
		}
	}
	if count > 1 {
		return fmt.Errorf("specifics: %d variants populated, want at most one", count)
	}
	if count == 1 && s.Lot() != lot {
		return fmt.Errorf("specifics: variant %s does not match lot %s", s.Lot(), lot)
	}
	return nil
}
