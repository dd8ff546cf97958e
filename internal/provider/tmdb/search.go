package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"curator/internal/media"
	"curator/internal/provider"
)

type searchResponse struct {
	Page    int `json:"page"`
	Results []struct {
		ID           int64  `json:"id"`
		Title        string `json:"title"`
		Name         string `json:"name"`
		MediaType    string `json:"media_type"`
		PosterPath   string `json:"poster_path"`
		ReleaseDate  string `json:"release_date"`
		FirstAirDate string `json:"first_air_date"`
	} `json:"results"`
	TotalResults int `json:"total_results"`
}

// Search performs a multi search, keeping movie and tv matches only.
func (a *Adapter) Search(ctx context.Context, query string, page int) ([]media.SearchItem, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query must not be empty")
	}
	if page < 1 {
		page = 1
	}
	shape := fmt.Sprintf("search:%s:%d", query, page)
	raw, err := a.deps.CachedDo(ctx, a.Source(), query, shape, a.ttl, func(ctx context.Context) (*http.Request, error) {
		return a.buildRequest(ctx, "/search/multi", url.Values{
			"query": []string{query},
			"page":  []string{strconv.Itoa(page)},
		})
	})
	if err != nil {
		return nil, err
	}

	var payload searchResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode search response: %w", provider.ErrMalformedPayload, err)
	}

	var items []media.SearchItem
	for _, result := range payload.Results {
		if result.MediaType != "movie" && result.MediaType != "tv" {
			continue
		}
		title := result.Title
		date := result.ReleaseDate
		if result.MediaType == "tv" {
			title = result.Name
			date = result.FirstAirDate
		}
		item := media.SearchItem{
			Identifier: strconv.FormatInt(result.ID, 10),
			Title:      title,
			Image:      a.imageURL(result.PosterPath),
		}
		if published := parseDate(date); published != nil {
			item.PublishYear = published.Year()
		}
		items = append(items, item)
	}
	return items, nil
}
