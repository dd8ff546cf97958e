package itunes

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"curator/internal/fetch"
	"curator/internal/media"
	"curator/internal/provider"
)

func newAdapter(t *testing.T, baseURL string) *Adapter {
	t.Helper()
	limits := func(media.Source) fetch.Limits {
		return fetch.Limits{QPS: 100, Burst: 100, MaxConcurrent: 4, MaxRetryAttempts: 1}
	}
	adapter, err := New(Options{BaseURL: baseURL, CacheTTL: time.Minute},
		provider.Deps{Fetch: fetch.NewClient(limits, nil)})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return adapter
}

const podcastPayload = `{"resultCount": 3, "results": [
	{"wrapperType": "track", "kind": "podcast", "collectionId": 1200361736,
	 "collectionName": "The Daily", "artistName": "The New York Times",
	 "collectionViewUrl": "https://podcasts.apple.com/podcast/id1200361736",
	 "artworkUrl600": "https://is1.mzstatic.com/daily600.jpg",
	 "releaseDate": "2017-02-01T10:00:00Z", "primaryGenreName": "News",
	 "trackCount": 2},
	{"wrapperType": "podcastEpisode", "kind": "podcast-episode", "trackId": 2,
	 "trackName": "Episode Two", "description": "Second.",
	 "artworkUrl160": "https://is1.mzstatic.com/ep2.jpg",
	 "releaseDate": "2017-02-02T10:00:00Z", "trackTimeMillis": 1500000},
	{"wrapperType": "podcastEpisode", "kind": "podcast-episode", "trackId": 1,
	 "trackName": "Episode One", "description": "First.",
	 "releaseDate": "2017-02-01T10:00:00Z", "trackTimeMillis": 1200000}
]}`

func TestFetchAndNormalizePodcast(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/lookup" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("entity") != "podcastEpisode" {
			t.Errorf("podcast lookup should request episodes: %s", r.URL.RawQuery)
		}
		w.Write([]byte(podcastPayload))
	}))
	defer server.Close()

	adapter := newAdapter(t, server.URL)
	raw, err := adapter.FetchRaw(context.Background(), "1200361736", provider.ShapeForLot(media.LotPodcast))
	if err != nil {
		t.Fatalf("FetchRaw failed: %v", err)
	}
	record, err := adapter.Normalize(raw, media.LotPodcast)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if record.ExternalIdentifier != "1200361736" || record.Title != "The Daily" {
		t.Errorf("identity fields wrong: %q %q", record.ExternalIdentifier, record.Title)
	}
	podcast := record.Specifics.Podcast
	if podcast == nil || podcast.TotalEpisodes != 2 || len(podcast.Episodes) != 2 {
		t.Fatalf("podcast specifics wrong: %+v", record.Specifics)
	}
	// Feed arrives newest first; episodes store oldest first.
	if podcast.Episodes[0].Title != "Episode One" || podcast.Episodes[0].Number != 1 {
		t.Errorf("episode ordering wrong: %+v", podcast.Episodes)
	}
	if podcast.Episodes[1].Runtime != 25 {
		t.Errorf("runtime should convert millis to minutes, got %d", podcast.Episodes[1].Runtime)
	}
	if len(record.Creators) != 1 || record.Creators[0].Role != "Host" {
		t.Errorf("creators wrong: %+v", record.Creators)
	}
	if record.PublishYear != 2017 {
		t.Errorf("publish year = %d", record.PublishYear)
	}
	if err := record.Validate(); err != nil {
		t.Errorf("record should validate: %v", err)
	}
}

func TestNormalizeAudioBook(t *testing.T) {
	payload := `{"resultCount": 1, "results": [
		{"wrapperType": "audiobook", "collectionId": 1442351802,
		 "collectionName": "Becoming", "artistName": "Michelle Obama",
		 "description": "A memoir.", "artworkUrl100": "https://is1.mzstatic.com/becoming.jpg",
		 "releaseDate": "2018-11-13T08:00:00Z", "primaryGenreName": "Biography",
		 "trackTimeMillis": 69000000, "contentAdvisoryRating": "Explicit"}
	]}`
	adapter := newAdapter(t, "http://unused.invalid")
	record, err := adapter.Normalize([]byte(payload), media.LotAudioBook)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if record.Specifics.AudioBook == nil || record.Specifics.AudioBook.Runtime != 1150 {
		t.Errorf("audiobook runtime wrong: %+v", record.Specifics)
	}
	if record.Creators[0].Role != "Author" {
		t.Errorf("audiobook artist should be Author, got %+v", record.Creators)
	}
	if record.IsNsfw == nil || !*record.IsNsfw {
		t.Error("explicit advisory should mark nsfw")
	}
}

func TestNormalizeRejectsBadPayloads(t *testing.T) {
	adapter := newAdapter(t, "http://unused.invalid")
	if _, err := adapter.Normalize([]byte(`{"resultCount": 0, "results": []}`), media.LotPodcast); !errors.Is(err, provider.ErrMalformedPayload) {
		t.Errorf("want ErrMalformedPayload for empty lookup, got %v", err)
	}
	if _, err := adapter.Normalize([]byte(`{}`), media.LotMovie); !errors.Is(err, provider.ErrUnsupportedLot) {
		t.Errorf("want ErrUnsupportedLot for movie, got %v", err)
	}
	if _, err := adapter.FetchRaw(context.Background(), "1", "book"); !errors.Is(err, provider.ErrUnsupportedLot) {
		t.Errorf("want ErrUnsupportedLot from FetchRaw, got %v", err)
	}
}
