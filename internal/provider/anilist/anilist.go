package anilist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"curator/internal/media"
	"curator/internal/provider"
)

// Options configures the AniList adapter.
type Options struct {
	BaseURL  string
	CacheTTL time.Duration
}

// Adapter serves anime and manga lots from AniList.
type Adapter struct {
	deps    provider.Deps
	logger  *slog.Logger
	baseURL string
	ttl     time.Duration
}

var _ provider.Provider = (*Adapter)(nil)
var _ provider.Searcher = (*Adapter)(nil)

// New creates an AniList adapter. The public API needs no key.
func New(opts Options, deps provider.Deps) (*Adapter, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("anilist base url required")
	}
	return &Adapter{
		deps:    deps,
		logger:  deps.ComponentLogger("anilist"),
		baseURL: baseURL,
		ttl:     opts.CacheTTL,
	}, nil
}

func (a *Adapter) Source() media.Source { return media.SourceAniList }

func (a *Adapter) Supports(lot media.Lot) bool {
	return lot == media.LotAnime || lot == media.LotManga
}

const detailsQuery = `query ($id: Int, $type: MediaType) {
  Media(id: $id, type: $type) {
    id
    type
    siteUrl
    title { english romaji }
    description
    coverImage { extraLarge }
    bannerImage
    startDate { year month day }
    averageScore
    genres
    isAdult
    episodes
    chapters
    volumes
    trailer { id site }
    staff { edges { role node { id name { full } image { large } } } }
    recommendations {
      nodes {
        mediaRecommendation {
          id
          type
          title { english romaji }
          coverImage { extraLarge }
        }
      }
    }
  }
}`

func mediaType(lot media.Lot) (string, error) {
	switch lot {
	case media.LotAnime:
		return "ANIME", nil
	case media.LotManga:
		return "MANGA", nil
	default:
		return "", fmt.Errorf("%w: anilist does not serve %s", provider.ErrUnsupportedLot, lot)
	}
}

// FetchRaw posts the details query for identifier with the media type picked
// by shape.
func (a *Adapter) FetchRaw(ctx context.Context, identifier, shape string) ([]byte, error) {
	id, err := strconv.Atoi(strings.TrimSpace(identifier))
	if err != nil {
		return nil, fmt.Errorf("anilist identifier must be numeric: %w", err)
	}
	kind, err := mediaType(media.Lot(shape))
	if err != nil {
		return nil, err
	}
	return a.deps.CachedDo(ctx, a.Source(), identifier, shape, a.ttl, func(ctx context.Context) (*http.Request, error) {
		return a.buildQuery(ctx, detailsQuery, map[string]any{"id": id, "type": kind})
	})
}

func (a *Adapter) buildQuery(ctx context.Context, query string, variables map[string]any) (*http.Request, error) {
	body, err := json.Marshal(map[string]any{"query": query, "variables": variables})
	if err != nil {
		return nil, fmt.Errorf("marshal graphql request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req, nil
}

type titlePayload struct {
	English string `json:"english"`
	Romaji  string `json:"romaji"`
}

func (t titlePayload) preferred() string {
	if t.English != "" {
		return t.English
	}
	return t.Romaji
}

type mediaPayload struct {
	ID         int64        `json:"id"`
	Type       string       `json:"type"`
	SiteURL    string       `json:"siteUrl"`
	Title      titlePayload `json:"title"`
	Description string      `json:"description"`
	CoverImage struct {
		ExtraLarge string `json:"extraLarge"`
	} `json:"coverImage"`
	BannerImage string `json:"bannerImage"`
	StartDate   struct {
		Year  int `json:"year"`
		Month int `json:"month"`
		Day   int `json:"day"`
	} `json:"startDate"`
	AverageScore float64  `json:"averageScore"`
	Genres       []string `json:"genres"`
	IsAdult      bool     `json:"isAdult"`
	Episodes     int      `json:"episodes"`
	Chapters     int      `json:"chapters"`
	Volumes      int      `json:"volumes"`
	Trailer      *struct {
		ID   string `json:"id"`
		Site string `json:"site"`
	} `json:"trailer"`
	Staff struct {
		Edges []struct {
			Role string `json:"role"`
			Node struct {
				ID   int64 `json:"id"`
				Name struct {
					Full string `json:"full"`
				} `json:"name"`
				Image struct {
					Large string `json:"large"`
				} `json:"image"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"staff"`
	Recommendations struct {
		Nodes []struct {
			MediaRecommendation *struct {
				ID         int64        `json:"id"`
				Type       string       `json:"type"`
				Title      titlePayload `json:"title"`
				CoverImage struct {
					ExtraLarge string `json:"extraLarge"`
				} `json:"coverImage"`
			} `json:"mediaRecommendation"`
		} `json:"nodes"`
	} `json:"recommendations"`
}

type detailsResponse struct {
	Data struct {
		Media *mediaPayload `json:"Media"`
	} `json:"data"`
}

// Normalize converts an AniList details response into a canonical record.
func (a *Adapter) Normalize(raw []byte, lot media.Lot) (*media.Record, error) {
	kind, err := mediaType(lot)
	if err != nil {
		return nil, err
	}
	var response detailsResponse
	if err := json.Unmarshal(raw, &response); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", provider.ErrMalformedPayload, err)
	}
	payload := response.Data.Media
	if payload == nil || payload.ID == 0 {
		return nil, fmt.Errorf("%w: response missing media", provider.ErrMalformedPayload)
	}
	if payload.Type != "" && payload.Type != kind {
		return nil, fmt.Errorf("%w: %s payload for %s lot", provider.ErrMalformedPayload,
			strings.ToLower(payload.Type), lot)
	}
	title := payload.Title.preferred()
	if title == "" {
		return nil, fmt.Errorf("%w: media missing title", provider.ErrMalformedPayload)
	}

	record := &media.Record{
		Lot:                lot,
		Source:             media.SourceAniList,
		ExternalIdentifier: strconv.FormatInt(payload.ID, 10),
		Title:              title,
		Description:        payload.Description,
		SourceURL:          payload.SiteURL,
		ProviderRating:     payload.AverageScore,
		Genres:             payload.Genres,
	}
	if payload.IsAdult {
		nsfw := true
		record.IsNsfw = &nsfw
	}
	if payload.StartDate.Year > 0 {
		record.PublishYear = payload.StartDate.Year
		if payload.StartDate.Month > 0 && payload.StartDate.Day > 0 {
			published := time.Date(payload.StartDate.Year, time.Month(payload.StartDate.Month),
				payload.StartDate.Day, 0, 0, 0, 0, time.UTC)
			record.PublishDate = &published
		}
	}
	for _, image := range []string{payload.CoverImage.ExtraLarge, payload.BannerImage} {
		if image != "" {
			record.Assets.Images = append(record.Assets.Images, image)
		}
	}
	if payload.Trailer != nil && payload.Trailer.ID != "" {
		record.Assets.Videos = append(record.Assets.Videos, media.Video{
			VideoID: payload.Trailer.ID,
			Site:    payload.Trailer.Site,
		})
	}
	record.Creators = staffGroups(payload)
	record.Suggestions = recommendationSuggestions(payload)

	switch lot {
	case media.LotAnime:
		record.Specifics = media.Specifics{Anime: &media.AnimeSpecifics{Episodes: payload.Episodes}}
	case media.LotManga:
		record.Specifics = media.Specifics{Manga: &media.MangaSpecifics{
			Volumes:  payload.Volumes,
			Chapters: payload.Chapters,
		}}
	}
	return record, nil
}

func staffGroups(payload *mediaPayload) []media.CreatorGroup {
	var groups []media.CreatorGroup
	index := make(map[string]int)
	for _, edge := range payload.Staff.Edges {
		if edge.Node.Name.Full == "" {
			continue
		}
		role := edge.Role
		if role == "" {
			role = "Staff"
		}
		at, ok := index[role]
		if !ok {
			groups = append(groups, media.CreatorGroup{Role: role})
			at = len(groups) - 1
			index[role] = at
		}
		groups[at].Creators = append(groups[at].Creators, media.Creator{
			Name:     edge.Node.Name.Full,
			Image:    edge.Node.Image.Large,
			PersonID: strconv.FormatInt(edge.Node.ID, 10),
		})
	}
	return groups
}

func recommendationSuggestions(payload *mediaPayload) []media.Suggestion {
	var suggestions []media.Suggestion
	for _, node := range payload.Recommendations.Nodes {
		rec := node.MediaRecommendation
		if rec == nil || rec.ID == 0 {
			continue
		}
		title := rec.Title.preferred()
		if title == "" {
			continue
		}
		lot := media.LotAnime
		if rec.Type == "MANGA" {
			lot = media.LotManga
		}
		suggestions = append(suggestions, media.Suggestion{
			Lot:        lot,
			Source:     media.SourceAniList,
			Identifier: strconv.FormatInt(rec.ID, 10),
			Title:      title,
			Image:      rec.CoverImage.ExtraLarge,
		})
	}
	return suggestions
}
