package openlibrary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"curator/internal/media"
	"curator/internal/provider"
	"curator/internal/respcache"
)

const (
	defaultImageBaseURL = "https://covers.openlibrary.org"
	defaultCoverSize    = "L"
	siteURL             = "https://openlibrary.org"
)

// Options configures the Open Library adapter.
type Options struct {
	BaseURL        string
	ImageBaseURL   string
	CoverImageSize string
	PageLimit      int
	CacheTTL       time.Duration
}

// Adapter serves the book lot from Open Library.
type Adapter struct {
	deps         provider.Deps
	logger       *slog.Logger
	baseURL      string
	imageBaseURL string
	coverSize    string
	pageLimit    int
	ttl          time.Duration
}

var _ provider.Provider = (*Adapter)(nil)
var _ provider.Searcher = (*Adapter)(nil)

// New creates an Open Library adapter. No API key is required.
func New(opts Options, deps provider.Deps) (*Adapter, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("openlibrary base url required")
	}
	imageBaseURL := strings.TrimRight(strings.TrimSpace(opts.ImageBaseURL), "/")
	if imageBaseURL == "" {
		imageBaseURL = defaultImageBaseURL
	}
	coverSize := strings.TrimSpace(opts.CoverImageSize)
	if coverSize == "" {
		coverSize = defaultCoverSize
	}
	pageLimit := opts.PageLimit
	if pageLimit <= 0 {
		pageLimit = 20
	}
	return &Adapter{
		deps:         deps,
		logger:       deps.ComponentLogger("openlibrary"),
		baseURL:      baseURL,
		imageBaseURL: imageBaseURL,
		coverSize:    coverSize,
		pageLimit:    pageLimit,
		ttl:          opts.CacheTTL,
	}, nil
}

func (a *Adapter) Source() media.Source { return media.SourceOpenLibrary }

func (a *Adapter) Supports(lot media.Lot) bool { return lot == media.LotBook }

// envelope bundles every document a book fetch touches so normalization
// stays pure.
type envelope struct {
	Work        json.RawMessage  `json:"work"`
	Editions    json.RawMessage  `json:"editions"`
	Authors     []authorDocument `json:"authors"`
	RelatedHTML string           `json:"related_html,omitempty"`
}

type authorDocument struct {
	Role    string          `json:"role"`
	Payload json.RawMessage `json:"payload"`
}

// FetchRaw composes the work, editions, author, and related-work documents
// for the given work identifier.
func (a *Adapter) FetchRaw(ctx context.Context, identifier, shape string) ([]byte, error) {
	identifier = WorkKey(identifier)
	if identifier == "" {
		return nil, errors.New("openlibrary identifier required")
	}
	if media.Lot(shape) != media.LotBook {
		return nil, fmt.Errorf("%w: openlibrary does not serve %q", provider.ErrUnsupportedLot, shape)
	}
	// An ISBN identifies an edition; resolve it to the work before fetching
	// so the cache keys on the work id either way.
	if isbn, ok := normalizeISBN(identifier); ok {
		workID, err := a.workIDFromISBN(ctx, isbn)
		if err != nil {
			return nil, err
		}
		identifier = workID
	}
	if a.deps.Cache == nil {
		return a.fetchBook(ctx, identifier)
	}
	return a.deps.Cache.GetOrFetch(ctx, respcache.Key(a.Source(), identifier, shape), a.ttl, func(ctx context.Context) ([]byte, error) {
		return a.fetchBook(ctx, identifier)
	})
}

func (a *Adapter) fetchBook(ctx context.Context, identifier string) ([]byte, error) {
	work, err := a.get(ctx, "/works/"+identifier+".json", nil)
	if err != nil {
		return nil, err
	}

	var workDoc struct {
		Authors []struct {
			Author struct {
				Key string `json:"key"`
			} `json:"author"`
			Key string `json:"key"`
		} `json:"authors"`
	}
	if err := json.Unmarshal(work, &workDoc); err != nil {
		return nil, fmt.Errorf("%w: decode work: %w", provider.ErrMalformedPayload, err)
	}

	editions, err := a.get(ctx, "/works/"+identifier+"/editions.json", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch editions: %w", err)
	}

	composed := envelope{Work: work, Editions: editions}
	for _, entry := range workDoc.Authors {
		key := entry.Author.Key
		if key == "" {
			key = entry.Key
		}
		if key == "" {
			continue
		}
		payload, err := a.get(ctx, "/authors/"+WorkKey(key)+".json", nil)
		if err != nil {
			a.logger.Warn("author fetch failed, skipping",
				slog.String("author_key", key), slog.Any("error", err))
			continue
		}
		composed.Authors = append(composed.Authors, authorDocument{Role: "Author", Payload: payload})
	}

	// The related-work carousel is an undocumented HTML partial; losing it
	// only loses suggestions.
	if related, err := a.fetchRelated(ctx, identifier); err == nil {
		composed.RelatedHTML = related
	} else {
		a.logger.Debug("related works fetch failed, skipping", slog.Any("error", err))
	}

	return json.Marshal(composed)
}

// workIDFromISBN looks up the edition document for an ISBN and returns the
// first work it belongs to.
func (a *Adapter) workIDFromISBN(ctx context.Context, isbn string) (string, error) {
	raw, err := a.get(ctx, "/isbn/"+isbn+".json", nil)
	if err != nil {
		return "", fmt.Errorf("resolve isbn %s: %w", isbn, err)
	}
	var edition struct {
		Works []struct {
			Key string `json:"key"`
		} `json:"works"`
	}
	if err := json.Unmarshal(raw, &edition); err != nil {
		return "", fmt.Errorf("%w: decode isbn edition: %w", provider.ErrMalformedPayload, err)
	}
	if len(edition.Works) == 0 || WorkKey(edition.Works[0].Key) == "" {
		return "", fmt.Errorf("%w: isbn %s belongs to no work", provider.ErrMalformedPayload, isbn)
	}
	return WorkKey(edition.Works[0].Key), nil
}

func (a *Adapter) fetchRelated(ctx context.Context, identifier string) (string, error) {
	raw, err := a.get(ctx, "/partials.json", url.Values{
		"workid":     []string{identifier},
		"_component": []string{"RelatedWorkCarousel"},
	})
	if err != nil {
		return "", err
	}
	var partial struct {
		Data string `json:"0"`
	}
	if err := json.Unmarshal(raw, &partial); err != nil {
		return "", fmt.Errorf("decode partial: %w", err)
	}
	return partial.Data, nil
}

func (a *Adapter) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint, err := url.Parse(a.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("parse openlibrary url: %w", err)
	}
	if params != nil {
		endpoint.RawQuery = params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return a.deps.Fetch.Do(ctx, a.Source(), req)
}

// description is either a bare string or a typed {type, value} object.
type description string

func (d *description) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*d = description(text)
		return nil
	}
	var nested struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &nested); err != nil {
		return err
	}
	*d = description(nested.Value)
	return nil
}

type workPayload struct {
	Key         string      `json:"key"`
	Title       string      `json:"title"`
	Description description `json:"description"`
	Covers      []int64     `json:"covers"`
	Subjects    []string    `json:"subjects"`
}

type editionsPayload struct {
	Entries []struct {
		PublishDate   string  `json:"publish_date"`
		NumberOfPages int     `json:"number_of_pages"`
		Covers        []int64 `json:"covers"`
	} `json:"entries"`
}

// Normalize converts a composed book envelope into a canonical record.
func (a *Adapter) Normalize(raw []byte, lot media.Lot) (*media.Record, error) {
	if lot != media.LotBook {
		return nil, fmt.Errorf("%w: openlibrary does not serve %s", provider.ErrUnsupportedLot, lot)
	}
	var composed envelope
	if err := json.Unmarshal(raw, &composed); err != nil || len(composed.Work) == 0 {
		return nil, fmt.Errorf("%w: decode book envelope", provider.ErrMalformedPayload)
	}
	var work workPayload
	if err := json.Unmarshal(composed.Work, &work); err != nil {
		return nil, fmt.Errorf("%w: decode work: %w", provider.ErrMalformedPayload, err)
	}
	identifier := WorkKey(work.Key)
	if identifier == "" || work.Title == "" {
		return nil, fmt.Errorf("%w: work missing key or title", provider.ErrMalformedPayload)
	}

	var editions editionsPayload
	if len(composed.Editions) > 0 {
		if err := json.Unmarshal(composed.Editions, &editions); err != nil {
			return nil, fmt.Errorf("%w: decode editions: %w", provider.ErrMalformedPayload, err)
		}
	}

	record := &media.Record{
		Lot:                media.LotBook,
		Source:             media.SourceOpenLibrary,
		ExternalIdentifier: identifier,
		Title:              work.Title,
		Description:        string(work.Description),
		SourceURL:          siteURL + "/works/" + identifier,
	}

	// Page count averages over every edition that reports one; the publish
	// year is the earliest edition date.
	var pageSum, pageCount int
	var earliest *time.Time
	for _, edition := range editions.Entries {
		if edition.NumberOfPages > 0 {
			pageSum += edition.NumberOfPages
			pageCount++
		}
		if published := parseEditionDate(edition.PublishDate); published != nil {
			if earliest == nil || published.Before(*earliest) {
				earliest = published
			}
		}
	}
	pages := 0
	if pageCount > 0 {
		pages = pageSum / pageCount
	}
	record.Specifics = media.Specifics{Book: &media.BookSpecifics{Pages: pages}}
	if earliest != nil {
		record.PublishYear = earliest.Year()
	}

	seen := make(map[int64]bool)
	appendCover := func(cover int64) {
		if cover <= 0 || seen[cover] {
			return
		}
		seen[cover] = true
		record.Assets.Images = append(record.Assets.Images, a.coverImageURL("b", cover))
	}
	for _, cover := range work.Covers {
		appendCover(cover)
	}
	for _, edition := range editions.Entries {
		for _, cover := range edition.Covers {
			appendCover(cover)
		}
	}

	record.Genres = splitSubjects(work.Subjects)
	record.Creators = a.creators(composed.Authors)
	record.Suggestions = a.relatedSuggestions(composed.RelatedHTML)
	return record, nil
}

type authorPayload struct {
	Name   string  `json:"name"`
	Photos []int64 `json:"photos"`
}

func (a *Adapter) creators(authors []authorDocument) []media.CreatorGroup {
	var group media.CreatorGroup
	group.Role = "Author"
	for _, doc := range authors {
		var author authorPayload
		if err := json.Unmarshal(doc.Payload, &author); err != nil || author.Name == "" {
			continue
		}
		creator := media.Creator{Name: author.Name}
		for _, photo := range author.Photos {
			if photo > 0 {
				creator.Image = a.coverImageURL("a", photo)
				break
			}
		}
		group.Creators = append(group.Creators, creator)
	}
	if len(group.Creators) == 0 {
		return nil
	}
	return []media.CreatorGroup{group}
}

func (a *Adapter) coverImageURL(kind string, cover int64) string {
	return fmt.Sprintf("%s/%s/id/%d-%s.jpg?default=false", a.imageBaseURL, kind, cover, a.coverSize)
}

// splitSubjects breaks comma-joined subject strings apart and title-cases
// each resulting genre.
func splitSubjects(subjects []string) []string {
	caser := cases.Title(language.English)
	var genres []string
	for _, subject := range subjects {
		for _, part := range strings.Split(subject, ", ") {
			part = strings.TrimSpace(part)
			if part != "" {
				genres = append(genres, caser.String(part))
			}
		}
	}
	return genres
}

var editionDateLayouts = []string{"Jan 2, 2006", "January 2, 2006", "2006-01-02", "2006"}

func parseEditionDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range editionDateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return &parsed
		}
	}
	return nil
}

// normalizeISBN strips separators and reports whether the identifier is an
// ISBN-10 or ISBN-13 rather than a work id.
func normalizeISBN(identifier string) (string, bool) {
	var b strings.Builder
	for _, r := range identifier {
		if r == '-' || r == ' ' {
			continue
		}
		b.WriteRune(r)
	}
	cleaned := strings.ToUpper(b.String())
	if len(cleaned) != 10 && len(cleaned) != 13 {
		return "", false
	}
	for i, r := range cleaned {
		if r >= '0' && r <= '9' {
			continue
		}
		if r == 'X' && len(cleaned) == 10 && i == 9 {
			continue
		}
		return "", false
	}
	return cleaned, true
}

// WorkKey extracts the bare identifier from an Open Library key path such as
// "/works/OL45883W".
func WorkKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	parts := strings.Split(key, "/")
	return parts[len(parts)-1]
}
