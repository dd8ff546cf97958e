package itunes

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
)

const episodeLimit = 300

// Options configures the iTunes adapter.
type Options struct {
	BaseURL  string
	CacheTTL time.Duration
}

// Adapter serves podcast and audio book lots from the iTunes lookup API.
type Adapter struct {
	deps    provider.Deps
	logger  *slog.Logger
	baseURL string
	ttl     time.Duration
}

var _ provider.Provider = (*Adapter)(nil)

// New creates an iTunes adapter. The lookup API needs no key.
func New(opts Options, deps provider.Deps) (*Adapter, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("itunes base url required")
	}
	return &Adapter{
		deps:    deps,
		logger:  deps.ComponentLogger("itunes"),
		baseURL: baseURL,
		ttl:     opts.CacheTTL,
	}, nil
}

func (a *Adapter) Source() media.Source { return media.SourceITunes }

func (a *Adapter) Supports(lot media.Lot) bool {
	return lot == media.LotPodcast || lot == media.LotAudioBook
}

// FetchRaw looks up identifier. Podcast lookups include the episode entity so
// one request yields the collection and its episodes.
func (a *Adapter) FetchRaw(ctx context.Context, identifier, shape string) ([]byte, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, errors.New("itunes identifier required")
	}
	params := url.Values{"id": []string{identifier}}
	switch media.Lot(shape) {
	case media.LotPodcast:
		params.Set("entity", "podcastEpisode")
		params.Set("limit", strconv.Itoa(episodeLimit))
	case media.LotAudioBook:
		params.Set("entity", "audiobook")
	default:
		return nil, fmt.Errorf("%w: itunes does not serve %q", provider.ErrUnsupportedLot, shape)
	}
	return a.deps.CachedDo(ctx, a.Source(), identifier, shape, a.ttl, func(ctx context.Context) (*http.Request, error) {
		endpoint, err := url.Parse(a.baseURL + "/lookup")
		if err != nil {
			return nil, fmt.Errorf("parse itunes url: %w", err)
		}
		endpoint.RawQuery = params.Encode()
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	})
}

type lookupResult struct {
	WrapperType       string   `json:"wrapperType"`
	Kind              string   `json:"kind"`
	CollectionID      int64    `json:"collectionId"`
	TrackID           int64    `json:"trackId"`
	CollectionName    string   `json:"collectionName"`
	TrackName         string   `json:"trackName"`
	ArtistName        string   `json:"artistName"`
	Description       string   `json:"description"`
	LongDescription   string   `json:"longDescription"`
	CollectionViewURL string   `json:"collectionViewUrl"`
	ArtworkURL100     string   `json:"artworkUrl100"`
	ArtworkURL600     string   `json:"artworkUrl600"`
	ArtworkURL160     string   `json:"artworkUrl160"`
	ReleaseDate       string   `json:"releaseDate"`
	PrimaryGenreName  string   `json:"primaryGenreName"`
	Genres            []string `json:"genres"`
	TrackCount        int      `json:"trackCount"`
	TrackTimeMillis   int64    `json:"trackTimeMillis"`
	ContentAdvisory   string   `json:"contentAdvisoryRating"`
}

type lookupResponse struct {
	ResultCount int            `json:"resultCount"`
	Results     []lookupResult `json:"results"`
}

// Normalize converts a lookup response into a canonical record.
func (a *Adapter) Normalize(raw []byte, lot media.Lot) (*media.Record, error) {
	if lot != media.LotPodcast && lot != media.LotAudioBook {
		return nil, fmt.Errorf("%w: itunes does not serve %s", provider.ErrUnsupportedLot, lot)
	}
	var response lookupResponse
	if err := json.Unmarshal(raw, &response); err != nil {
		return nil, fmt.Errorf("%w: decode lookup response: %w", provider.ErrMalformedPayload, err)
	}
	if response.ResultCount == 0 || len(response.Results) == 0 {
		return nil, fmt.Errorf("%w: empty lookup response", provider.ErrMalformedPayload)
	}

	collection := response.Results[0]
	if collection.CollectionID == 0 {
		return nil, fmt.Errorf("%w: lookup result missing collection id", provider.ErrMalformedPayload)
	}
	title := collection.CollectionName
	if title == "" {
		title = collection.TrackName
	}
	if title == "" {
		return nil, fmt.Errorf("%w: lookup result missing title", provider.ErrMalformedPayload)
	}

	record := &media.Record{
		Lot:                lot,
		Source:             media.SourceITunes,
		ExternalIdentifier: strconv.FormatInt(collection.CollectionID, 10),
		Title:              title,
		Description:        firstNonEmpty(collection.Description, collection.LongDescription),
		SourceURL:          collection.CollectionViewURL,
		PublishDate:        parseReleaseDate(collection.ReleaseDate),
	}
	if record.PublishDate != nil {
		record.PublishYear = record.PublishDate.Year()
	}
	if strings.EqualFold(collection.ContentAdvisory, "explicit") {
		nsfw := true
		record.IsNsfw = &nsfw
	}
	record.Genres = genres(collection)
	if image := artwork(collection); image != "" {
		record.Assets.Images = []string{image}
	}
	if collection.ArtistName != "" {
		role := "Host"
		if lot == media.LotAudioBook {
			role = "Author"
		}
		record.Creators = []media.CreatorGroup{{
			Role:     role,
			Creators: []media.Creator{{Name: collection.ArtistName}},
		}}
	}

	switch lot {
	case media.LotPodcast:
		record.Specifics = media.Specifics{Podcast: podcastSpecifics(collection, response.Results[1:])}
	case media.LotAudioBook:
		record.Specifics = media.Specifics{AudioBook: &media.AudioBookSpecifics{
			Runtime: int(collection.TrackTimeMillis / 60000),
		}}
	}
	return record, nil
}

// podcastSpecifics numbers episodes oldest first; the feed arrives newest
// first.
func podcastSpecifics(collection lookupResult, rest []lookupResult) *media.PodcastSpecifics {
	specifics := &media.PodcastSpecifics{TotalEpisodes: collection.TrackCount}
	var entries []lookupResult
	for _, result := range rest {
		if result.Kind == "podcast-episode" || result.WrapperType == "podcastEpisode" {
			entries = append(entries, result)
		}
	}
	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		episode := media.PodcastEpisode{
			Title:       entry.TrackName,
			Overview:    entry.Description,
			Thumbnail:   firstNonEmpty(entry.ArtworkURL160, entry.ArtworkURL600, entry.ArtworkURL100),
			Number:      len(entries) - i,
			Runtime:     int(entry.TrackTimeMillis / 60000),
			PublishDate: parseReleaseDate(entry.ReleaseDate),
		}
		specifics.Episodes = append(specifics.Episodes, episode)
	}
	if specifics.TotalEpisodes == 0 {
		specifics.TotalEpisodes = len(specifics.Episodes)
	}
	return specifics
}

func genres(result lookupResult) []string {
	if len(result.Genres) > 0 {
		return result.Genres
	}
	if result.PrimaryGenreName != "" {
		return []string{result.PrimaryGenreName}
	}
	return nil
}

func artwork(result lookupResult) string {
	return firstNonEmpty(result.ArtworkURL600, result.ArtworkURL100, result.ArtworkURL160)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

func parseReleaseDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05Z0700", "2006-01-02"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return &parsed
		}
	}
	return nil
}
