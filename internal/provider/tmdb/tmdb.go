package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"curator/internal/media"
	"curator/internal/provider"
	"curator/internal/respcache"
)

const (
	defaultImageBaseURL = "https://image.tmdb.org/t/p/w500"
	siteURL             = "https://www.themoviedb.org"
)

// Options configures the TMDB adapter.
type Options struct {
	BaseURL      string
	APIKey       string
	Language     string
	ImageBaseURL string
	CacheTTL     time.Duration
}

// Adapter serves movie and show lots from TMDB.
type Adapter struct {
	deps         provider.Deps
	logger       *slog.Logger
	baseURL      string
	apiKey       string
	language     string
	imageBaseURL string
	ttl          time.Duration
}

var _ provider.Provider = (*Adapter)(nil)
var _ provider.Searcher = (*Adapter)(nil)

// New creates a TMDB adapter.
func New(opts Options, deps provider.Deps) (*Adapter, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("tmdb api key required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("tmdb base url required")
	}
	imageBaseURL := strings.TrimRight(strings.TrimSpace(opts.ImageBaseURL), "/")
	if imageBaseURL == "" {
		imageBaseURL = defaultImageBaseURL
	}
	return &Adapter{
		deps:         deps,
		logger:       deps.ComponentLogger("tmdb"),
		baseURL:      baseURL,
		apiKey:       apiKey,
		language:     strings.TrimSpace(opts.Language),
		imageBaseURL: imageBaseURL,
		ttl:          opts.CacheTTL,
	}, nil
}

func (a *Adapter) Source() media.Source { return media.SourceTMDB }

func (a *Adapter) Supports(lot media.Lot) bool {
	return lot == media.LotMovie || lot == media.LotShow
}

// showEnvelope bundles the series payload with its per-season payloads so a
// show fetch caches and normalizes as one unit.
type showEnvelope struct {
	Details json.RawMessage   `json:"details"`
	Seasons []json.RawMessage `json:"seasons"`
}

// FetchRaw retrieves the full payload for identifier. The shape selects the
// lot: "movie" fetches the movie details document, "show" fetches the series
// document plus every season.
func (a *Adapter) FetchRaw(ctx context.Context, identifier, shape string) ([]byte, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, errors.New("tmdb identifier required")
	}
	switch media.Lot(shape) {
	case media.LotMovie:
		return a.deps.CachedDo(ctx, a.Source(), identifier, shape, a.ttl, func(ctx context.Context) (*http.Request, error) {
			return a.buildRequest(ctx, "/movie/"+identifier, url.Values{
				"append_to_response": []string{"credits,videos,recommendations"},
			})
		})
	case media.LotShow:
		if a.deps.Cache == nil {
			return a.fetchShow(ctx, identifier)
		}
		return a.deps.Cache.GetOrFetch(ctx, respcache.Key(a.Source(), identifier, shape), a.ttl, func(ctx context.Context) ([]byte, error) {
			return a.fetchShow(ctx, identifier)
		})
	default:
		return nil, fmt.Errorf("%w: tmdb does not serve %q", provider.ErrUnsupportedLot, shape)
	}
}

// fetchShow composes the series document and each season document.
func (a *Adapter) fetchShow(ctx context.Context, identifier string) ([]byte, error) {
	details, err := a.dispatch(ctx, "/tv/"+identifier, url.Values{
		"append_to_response": []string{"credits,videos,recommendations"},
	})
	if err != nil {
		return nil, err
	}

	var series struct {
		Seasons []struct {
			SeasonNumber int `json:"season_number"`
		} `json:"seasons"`
	}
	if err := json.Unmarshal(details, &series); err != nil {
		return nil, fmt.Errorf("%w: decode series seasons: %w", provider.ErrMalformedPayload, err)
	}

	envelope := showEnvelope{Details: details}
	for _, season := range series.Seasons {
		payload, err := a.dispatch(ctx, fmt.Sprintf("/tv/%s/season/%d", identifier, season.SeasonNumber), nil)
		if err != nil {
			return nil, fmt.Errorf("fetch season %d: %w", season.SeasonNumber, err)
		}
		envelope.Seasons = append(envelope.Seasons, payload)
	}
	return json.Marshal(envelope)
}

func (a *Adapter) dispatch(ctx context.Context, path string, params url.Values) ([]byte, error) {
	req, err := a.buildRequest(ctx, path, params)
	if err != nil {
		return nil, err
	}
	return a.deps.Fetch.Do(ctx, a.Source(), req)
}

func (a *Adapter) buildRequest(ctx context.Context, path string, params url.Values) (*http.Request, error) {
	endpoint, err := url.Parse(a.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("parse tmdb url: %w", err)
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", a.apiKey)
	if a.language != "" {
		params.Set("language", a.language)
	}
	endpoint.RawQuery = params.Encode()
	return http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
}

func (a *Adapter) imageURL(path string) string {
	if strings.TrimSpace(path) == "" {
		return ""
	}
	return a.imageBaseURL + path
}

type creditPerson struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Job         string `json:"job"`
	ProfilePath string `json:"profile_path"`
}

type credits struct {
	Cast []creditPerson `json:"cast"`
	Crew []creditPerson `json:"crew"`
}

type videoResult struct {
	Key  string `json:"key"`
	Site string `json:"site"`
	Type string `json:"type"`
}

type recommendationResult struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Name       string `json:"name"`
	PosterPath string `json:"poster_path"`
}

type detailsPayload struct {
	ID                  int64   `json:"id"`
	Title               string  `json:"title"`
	Name                string  `json:"name"`
	Overview            string  `json:"overview"`
	VoteAverage         float64 `json:"vote_average"`
	ReleaseDate         string  `json:"release_date"`
	FirstAirDate        string  `json:"first_air_date"`
	Runtime             int     `json:"runtime"`
	Adult               bool    `json:"adult"`
	PosterPath          string  `json:"poster_path"`
	BackdropPath        string  `json:"backdrop_path"`
	Genres              []struct {
		Name string `json:"name"`
	} `json:"genres"`
	BelongsToCollection *struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"belongs_to_collection"`
	Credits         credits `json:"credits"`
	Videos          struct {
		Results []videoResult `json:"results"`
	} `json:"videos"`
	Recommendations struct {
		Results []recommendationResult `json:"results"`
	} `json:"recommendations"`
}

type seasonPayload struct {
	SeasonNumber int    `json:"season_number"`
	Name         string `json:"name"`
	Overview     string `json:"overview"`
	PosterPath   string `json:"poster_path"`
	Episodes     []struct {
		ID            int64  `json:"id"`
		Name          string `json:"name"`
		Overview      string `json:"overview"`
		EpisodeNumber int    `json:"episode_number"`
		Runtime       int    `json:"runtime"`
		AirDate       string `json:"air_date"`
		StillPath     string `json:"still_path"`
	} `json:"episodes"`
}

// Normalize converts a TMDB payload into a canonical record for lot.
func (a *Adapter) Normalize(raw []byte, lot media.Lot) (*media.Record, error) {
	switch lot {
	case media.LotMovie:
		return a.normalizeMovie(raw)
	case media.LotShow:
		return a.normalizeShow(raw)
	default:
		return nil, fmt.Errorf("%w: tmdb does not serve %s", provider.ErrUnsupportedLot, lot)
	}
}

func (a *Adapter) normalizeMovie(raw []byte) (*media.Record, error) {
	var payload detailsPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode movie details: %w", provider.ErrMalformedPayload, err)
	}
	if payload.ID == 0 {
		return nil, fmt.Errorf("%w: movie payload missing id", provider.ErrMalformedPayload)
	}
	if payload.Title == "" && payload.Name != "" {
		// A series document answered a movie request.
		return nil, fmt.Errorf("%w: show payload for movie lot", provider.ErrMalformedPayload)
	}

	record := a.baseRecord(&payload, media.LotMovie, payload.Title, payload.ReleaseDate)
	record.SourceURL = fmt.Sprintf("%s/movie/%d", siteURL, payload.ID)
	record.Specifics = media.Specifics{Movie: &media.MovieSpecifics{Runtime: payload.Runtime}}
	record.Suggestions = a.suggestions(payload.Recommendations.Results, media.LotMovie)
	return record, nil
}

func (a *Adapter) normalizeShow(raw []byte) (*media.Record, error) {
	var envelope showEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil || len(envelope.Details) == 0 {
		return nil, fmt.Errorf("%w: decode show envelope", provider.ErrMalformedPayload)
	}
	var payload detailsPayload
	if err := json.Unmarshal(envelope.Details, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode show details: %w", provider.ErrMalformedPayload, err)
	}
	if payload.ID == 0 {
		return nil, fmt.Errorf("%w: show payload missing id", provider.ErrMalformedPayload)
	}
	if payload.Name == "" && payload.Title != "" {
		return nil, fmt.Errorf("%w: movie payload for show lot", provider.ErrMalformedPayload)
	}

	record := a.baseRecord(&payload, media.LotShow, payload.Name, payload.FirstAirDate)
	record.SourceURL = fmt.Sprintf("%s/tv/%d", siteURL, payload.ID)

	specifics := &media.ShowSpecifics{}
	for _, rawSeason := range envelope.Seasons {
		var season seasonPayload
		if err := json.Unmarshal(rawSeason, &season); err != nil {
			return nil, fmt.Errorf("%w: decode season: %w", provider.ErrMalformedPayload, err)
		}
		out := media.ShowSeason{
			SeasonNumber: season.SeasonNumber,
			Name:         season.Name,
			Overview:     season.Overview,
		}
		if image := a.imageURL(season.PosterPath); image != "" {
			out.Images = []string{image}
		}
		for _, episode := range season.Episodes {
			entry := media.ShowEpisode{
				ID:            strconv.FormatInt(episode.ID, 10),
				Name:          episode.Name,
				Overview:      episode.Overview,
				EpisodeNumber: episode.EpisodeNumber,
				Runtime:       episode.Runtime,
				PublishDate:   parseDate(episode.AirDate),
			}
			if image := a.imageURL(episode.StillPath); image != "" {
				entry.Images = []string{image}
			}
			out.Episodes = append(out.Episodes, entry)
		}
		specifics.Seasons = append(specifics.Seasons, out)
	}
	record.Specifics = media.Specifics{Show: specifics}
	record.Suggestions = a.suggestions(payload.Recommendations.Results, media.LotShow)
	return record, nil
}

func (a *Adapter) baseRecord(payload *detailsPayload, lot media.Lot, title, releaseDate string) *media.Record {
	record := &media.Record{
		Lot:                lot,
		Source:             media.SourceTMDB,
		ExternalIdentifier: strconv.FormatInt(payload.ID, 10),
		Title:              title,
		Description:        payload.Overview,
		ProviderRating:     payload.VoteAverage,
		PublishDate:        parseDate(releaseDate),
	}
	if record.PublishDate != nil {
		record.PublishYear = record.PublishDate.Year()
	}
	if payload.Adult {
		nsfw := true
		record.IsNsfw = &nsfw
	}
	for _, genre := range payload.Genres {
		if genre.Name != "" {
			record.Genres = append(record.Genres, genre.Name)
		}
	}
	if payload.BelongsToCollection != nil {
		record.Group = &media.Group{
			ID:   strconv.FormatInt(payload.BelongsToCollection.ID, 10),
			Name: payload.BelongsToCollection.Name,
		}
	}
	record.Creators = a.creators(payload.Credits)
	for _, image := range []string{a.imageURL(payload.PosterPath), a.imageURL(payload.BackdropPath)} {
		if image != "" {
			record.Assets.Images = append(record.Assets.Images, image)
		}
	}
	for _, video := range payload.Videos.Results {
		if video.Key != "" {
			record.Assets.Videos = append(record.Assets.Videos, media.Video{VideoID: video.Key, Site: video.Site})
		}
	}
	return record
}

// creators groups crew by job and appends cast as one "Actor" group, order
// preserved from the payload.
func (a *Adapter) creators(c credits) []media.CreatorGroup {
	var groups []media.CreatorGroup
	index := make(map[string]int)
	for _, person := range c.Crew {
		role := person.Job
		if role == "" {
			role = "Crew"
		}
		at, ok := index[role]
		if !ok {
			groups = append(groups, media.CreatorGroup{Role: role})
			at = len(groups) - 1
			index[role] = at
		}
		groups[at].Creators = append(groups[at].Creators, media.Creator{
			Name:     person.Name,
			Image:    a.imageURL(person.ProfilePath),
			PersonID: strconv.FormatInt(person.ID, 10),
		})
	}
	if len(c.Cast) > 0 {
		group := media.CreatorGroup{Role: "Actor"}
		for _, person := range c.Cast {
			group.Creators = append(group.Creators, media.Creator{
				Name:     person.Name,
				Image:    a.imageURL(person.ProfilePath),
				PersonID: strconv.FormatInt(person.ID, 10),
			})
		}
		groups = append(groups, group)
	}
	return groups
}

func (a *Adapter) suggestions(results []recommendationResult, lot media.Lot) []media.Suggestion {
	var suggestions []media.Suggestion
	for _, result := range results {
		title := result.Title
		if title == "" {
			title = result.Name
		}
		if result.ID == 0 || title == "" {
			continue
		}
		suggestions = append(suggestions, media.Suggestion{
			Lot:        lot,
			Source:     media.SourceTMDB,
			Identifier: strconv.FormatInt(result.ID, 10),
			Title:      title,
			Image:      a.imageURL(result.PosterPath),
		})
	}
	return suggestions
}

func parseDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil
	}
	return &parsed
}
