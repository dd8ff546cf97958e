package openlibrary

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
	NumFound int `json:"num_found"`
	Docs     []struct {
		Key              string `json:"key"`
		Title            string `json:"title"`
		CoverID          int64  `json:"cover_i"`
		FirstPublishYear int    `json:"first_publish_year"`
	} `json:"docs"`
}

// Search queries the work index.
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
		endpoint, err := url.Parse(a.baseURL + "/search.json")
		if err != nil {
			return nil, fmt.Errorf("parse openlibrary url: %w", err)
		}
		params := url.Values{}
		params.Set("q", query)
		params.Set("fields", "key,title,cover_i,first_publish_year")
		params.Set("offset", strconv.Itoa((page-1)*a.pageLimit))
		params.Set("limit", strconv.Itoa(a.pageLimit))
		params.Set("type", "work")
		endpoint.RawQuery = params.Encode()
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	})
	if err != nil {
		return nil, err
	}

	var payload searchResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode search response: %w", provider.ErrMalformedPayload, err)
	}

	items := make([]media.SearchItem, 0, len(payload.Docs))
	for _, doc := range payload.Docs {
		item := media.SearchItem{
			Identifier:  WorkKey(doc.Key),
			Title:       doc.Title,
			PublishYear: doc.FirstPublishYear,
		}
		if doc.CoverID > 0 {
			item.Image = a.coverImageURL("b", doc.CoverID)
		}
		items = append(items, item)
	}
	return items, nil
}
