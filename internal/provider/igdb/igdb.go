package igdb

import (
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

const defaultImageBaseURL = "https://images.igdb.com/igdb/image/upload/t_cover_big"

// Options configures the IGDB adapter. APIKey is the bearer token; ClientID
// is the registered application id the API requires alongside it.
type Options struct {
	BaseURL      string
	APIKey       string
	ClientID     string
	ImageBaseURL string
	CacheTTL     time.Duration
}

// Adapter serves the video game lot from IGDB.
type Adapter struct {
	deps         provider.Deps
	logger       *slog.Logger
	baseURL      string
	apiKey       string
	clientID     string
	imageBaseURL string
	ttl          time.Duration
}

var _ provider.Provider = (*Adapter)(nil)

// New creates an IGDB adapter.
func New(opts Options, deps provider.Deps) (*Adapter, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("igdb api key required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("igdb base url required")
	}
	imageBaseURL := strings.TrimRight(strings.TrimSpace(opts.ImageBaseURL), "/")
	if imageBaseURL == "" {
		imageBaseURL = defaultImageBaseURL
	}
	return &Adapter{
		deps:         deps,
		logger:       deps.ComponentLogger("igdb"),
		baseURL:      baseURL,
		apiKey:       apiKey,
		clientID:     strings.TrimSpace(opts.ClientID),
		imageBaseURL: imageBaseURL,
		ttl:          opts.CacheTTL,
	}, nil
}

func (a *Adapter) Source() media.Source { return media.SourceIGDB }

func (a *Adapter) Supports(lot media.Lot) bool { return lot == media.LotVideoGame }

const detailsFields = `fields name, summary, rating, first_release_date, url,
cover.image_id, artworks.image_id, platforms.name,
involved_companies.company.name, involved_companies.developer,
involved_companies.publisher, videos.video_id,
similar_games.name, similar_games.cover.image_id;`

// FetchRaw posts an Apicalypse query for the given game id.
func (a *Adapter) FetchRaw(ctx context.Context, identifier, shape string) ([]byte, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(identifier), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("igdb identifier must be numeric: %w", err)
	}
	if media.Lot(shape) != media.LotVideoGame {
		return nil, fmt.Errorf("%w: igdb does not serve %q", provider.ErrUnsupportedLot, shape)
	}
	body := fmt.Sprintf("%s where id = %d;", detailsFields, id)
	return a.deps.CachedDo(ctx, a.Source(), identifier, shape, a.ttl, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/games", strings.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
		if a.clientID != "" {
			req.Header.Set("Client-ID", a.clientID)
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
}

type imageRef struct {
	ImageID string `json:"image_id"`
}

type gamePayload struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	Summary          string    `json:"summary"`
	Rating           float64   `json:"rating"`
	FirstReleaseDate int64     `json:"first_release_date"`
	URL              string    `json:"url"`
	Cover            *imageRef `json:"cover"`
	Artworks         []imageRef `json:"artworks"`
	Platforms        []struct {
		Name string `json:"name"`
	} `json:"platforms"`
	InvolvedCompanies []struct {
		Developer bool `json:"developer"`
		Publisher bool `json:"publisher"`
		Company   struct {
			Name string `json:"name"`
		} `json:"company"`
	} `json:"involved_companies"`
	Videos []struct {
		VideoID string `json:"video_id"`
	} `json:"videos"`
	SimilarGames []struct {
		ID    int64     `json:"id"`
		Name  string    `json:"name"`
		Cover *imageRef `json:"cover"`
	} `json:"similar_games"`
}

// Normalize converts an IGDB games response into a canonical record.
func (a *Adapter) Normalize(raw []byte, lot media.Lot) (*media.Record, error) {
	if lot != media.LotVideoGame {
		return nil, fmt.Errorf("%w: igdb does not serve %s", provider.ErrUnsupportedLot, lot)
	}
	var games []gamePayload
	if err := json.Unmarshal(raw, &games); err != nil {
		return nil, fmt.Errorf("%w: decode games response: %w", provider.ErrMalformedPayload, err)
	}
	if len(games) == 0 {
		return nil, fmt.Errorf("%w: empty games response", provider.ErrMalformedPayload)
	}
	game := games[0]
	if game.ID == 0 || game.Name == "" {
		return nil, fmt.Errorf("%w: game missing id or name", provider.ErrMalformedPayload)
	}

	record := &media.Record{
		Lot:                media.LotVideoGame,
		Source:             media.SourceIGDB,
		ExternalIdentifier: strconv.FormatInt(game.ID, 10),
		Title:              game.Name,
		Description:        game.Summary,
		SourceURL:          game.URL,
		ProviderRating:     game.Rating,
	}
	if game.FirstReleaseDate > 0 {
		released := time.Unix(game.FirstReleaseDate, 0).UTC()
		record.PublishDate = &released
		record.PublishYear = released.Year()
	}
	if game.Cover != nil {
		record.Assets.Images = append(record.Assets.Images, a.imageURL(game.Cover.ImageID))
	}
	for _, artwork := range game.Artworks {
		if url := a.imageURL(artwork.ImageID); url != "" {
			record.Assets.Images = append(record.Assets.Images, url)
		}
	}
	for _, video := range game.Videos {
		if video.VideoID != "" {
			record.Assets.Videos = append(record.Assets.Videos, media.Video{VideoID: video.VideoID, Site: "YouTube"})
		}
	}

	specifics := &media.VideoGameSpecifics{}
	for _, platform := range game.Platforms {
		if platform.Name != "" {
			specifics.Platforms = append(specifics.Platforms, platform.Name)
		}
	}
	record.Specifics = media.Specifics{VideoGame: specifics}

	var developers, publishers media.CreatorGroup
	developers.Role = "Developer"
	publishers.Role = "Publisher"
	for _, involved := range game.InvolvedCompanies {
		if involved.Company.Name == "" {
			continue
		}
		creator := media.Creator{Name: involved.Company.Name}
		switch {
		case involved.Developer:
			developers.Creators = append(developers.Creators, creator)
		case involved.Publisher:
			publishers.Creators = append(publishers.Creators, creator)
		}
	}
	for _, group := range []media.CreatorGroup{developers, publishers} {
		if len(group.Creators) > 0 {
			record.Creators = append(record.Creators, group)
		}
	}

	for _, similar := range game.SimilarGames {
		if similar.ID == 0 || similar.Name == "" {
			continue
		}
		suggestion := media.Suggestion{
			Lot:        media.LotVideoGame,
			Source:     media.SourceIGDB,
			Identifier: strconv.FormatInt(similar.ID, 10),
			Title:      similar.Name,
		}
		if similar.Cover != nil {
			suggestion.Image = a.imageURL(similar.Cover.ImageID)
		}
		record.Suggestions = append(record.Suggestions, suggestion)
	}
	return record, nil
}

func (a *Adapter) imageURL(imageID string) string {
	if strings.TrimSpace(imageID) == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s.jpg", a.imageBaseURL, imageID)
}
