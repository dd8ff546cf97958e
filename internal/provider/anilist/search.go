package anilist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"curator/internal/media"
	"curator/internal/provider"
)

const searchQuery = `query ($search: String, $page: Int) {
  Page(page: $page, perPage: 20) {
    media(search: $search) {
      id
      title { english romaji }
      coverImage { extraLarge }
      startDate { year }
    }
  }
}`

type searchResponse struct {
	Data struct {
		Page struct {
			Media []struct {
				ID         int64        `json:"id"`
				Title      titlePayload `json:"title"`
				CoverImage struct {
					ExtraLarge string `json:"extraLarge"`
				} `json:"coverImage"`
				StartDate struct {
					Year int `json:"year"`
				} `json:"startDate"`
			} `json:"media"`
		} `json:"Page"`
	} `json:"data"`
}

// Search queries both anime and manga titles.
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
		return a.buildQuery(ctx, searchQuery, map[string]any{"search": query, "page": page})
	})
	if err != nil {
		return nil, err
	}

	var payload searchResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode search response: %w", provider.ErrMalformedPayload, err)
	}

	var items []media.SearchItem
	for _, entry := range payload.Data.Page.Media {
		title := entry.Title.preferred()
		if entry.ID == 0 || title == "" {
			continue
		}
		items = append(items, media.SearchItem{
			Identifier:  strconv.FormatInt(entry.ID, 10),
			Title:       title,
			Image:       entry.CoverImage.ExtraLarge,
			PublishYear: entry.StartDate.Year,
		})
	}
	return items, nil
}
