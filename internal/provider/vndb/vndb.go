package vndb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"curator/internal/media"
	"curator/internal/provider"
)

const siteURL = "https://vndb.org"

// Options configures the VNDB adapter.
type Options struct {
	BaseURL  string
	CacheTTL time.Duration
}

// Adapter serves the visual novel lot from VNDB.
type Adapter struct {
	deps    provider.Deps
	logger  *slog.Logger
	baseURL string
	ttl     time.Duration
}

var _ provider.Provider = (*Adapter)(nil)

// New creates a VNDB adapter. The public API needs no key.
func New(opts Options, deps provider.Deps) (*Adapter, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("vndb base url required")
	}
	return &Adapter{
		deps:    deps,
		logger:  deps.ComponentLogger("vndb"),
		baseURL: baseURL,
		ttl:     opts.CacheTTL,
	}, nil
}

func (a *Adapter) Source() media.Source { return media.SourceVNDB }

func (a *Adapter) Supports(lot media.Lot) bool { return lot == media.LotVisualNovel }

const detailsFields = "title, description, image.url, rating, released, " +
	"length_minutes, tags.name, tags.rating, developers.name, screenshots.url"

// FetchRaw posts a vn query for the given identifier (e.g. "v17").
func (a *Adapter) FetchRaw(ctx context.Context, identifier, shape string) ([]byte, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, errors.New("vndb identifier required")
	}
	if media.Lot(shape) != media.LotVisualNovel {
		return nil, fmt.Errorf("%w: vndb does not serve %q", provider.ErrUnsupportedLot, shape)
	}
	body, err := json.Marshal(map[string]any{
		"filters": []any{"id", "=", identifier},
		"fields":  detailsFields,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal vn query: %w", err)
	}
	return a.deps.CachedDo(ctx, a.Source(), identifier, shape, a.ttl, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/vn", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
}

type vnPayload struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	Rating        float64 `json:"rating"`
	Released      string  `json:"released"`
	LengthMinutes int     `json:"length_minutes"`
	Image         *struct {
		URL string `json:"url"`
	} `json:"image"`
	Tags []struct {
		Name   string  `json:"name"`
		Rating float64 `json:"rating"`
	} `json:"tags"`
	Developers []struct {
		Name string `json:"name"`
	} `json:"developers"`
	Screenshots []struct {
		URL string `json:"url"`
	} `json:"screenshots"`
}

type vnResponse struct {
	Results []vnPayload `json:"results"`
}

// Normalize converts a vn query response into a canonical record. Tags rated
// at 2.0 or higher become genres.
func (a *Adapter) Normalize(raw []byte, lot media.Lot) (*media.Record, error) {
	if lot != media.LotVisualNovel {
		return nil, fmt.Errorf("%w: vndb does not serve %s", provider.ErrUnsupportedLot, lot)
	}
	var response vnResponse
	if err := json.Unmarshal(raw, &response); err != nil {
		return nil, fmt.Errorf("%w: decode vn response: %w", provider.ErrMalformedPayload, err)
	}
	if len(response.Results) == 0 {
		return nil, fmt.Errorf("%w: empty vn response", provider.ErrMalformedPayload)
	}
	vn := response.Results[0]
	if vn.ID == "" || vn.Title == "" {
		return nil, fmt.Errorf("%w: vn missing id or title", provider.ErrMalformedPayload)
	}

	record := &media.Record{
		Lot:                media.LotVisualNovel,
		Source:             media.SourceVNDB,
		ExternalIdentifier: vn.ID,
		Title:              vn.Title,
		Description:        vn.Description,
		SourceURL:          siteURL + "/" + vn.ID,
		ProviderRating:     vn.Rating,
		Specifics: media.Specifics{VisualNovel: &media.VisualNovelSpecifics{
			Length: vn.LengthMinutes,
		}},
	}
	if released, err := time.Parse("2006-01-02", vn.Released); err == nil {
		record.PublishDate = &released
		record.PublishYear = released.Year()
	}
	if vn.Image != nil && vn.Image.URL != "" {
		record.Assets.Images = append(record.Assets.Images, vn.Image.URL)
	}
	for _, screenshot := range vn.Screenshots {
		if screenshot.URL != "" {
			record.Assets.Images = append(record.Assets.Images, screenshot.URL)
		}
	}
	for _, tag := range vn.Tags {
		if tag.Name != "" && tag.Rating >= 2 {
			record.Genres = append(record.Genres, tag.Name)
		}
	}
	if len(vn.Developers) > 0 {
		group := media.CreatorGroup{Role: "Developer"}
		for _, developer := range vn.Developers {
			if developer.Name != "" {
				group.Creators = append(group.Creators, media.Creator{Name: developer.Name})
			}
		}
		if len(group.Creators) > 0 {
			record.Creators = []media.CreatorGroup{group}
		}
	}
	return record, nil
}
