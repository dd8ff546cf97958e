package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"curator/internal/media"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenPath(filepath.Join(t.TempDir(), "curator.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func movieRecord(internalID string) *media.Record {
	published := time.Date(1999, time.March, 31, 0, 0, 0, 0, time.UTC)
	nsfw := false
	return &media.Record{
		InternalID:         internalID,
		Lot:                media.LotMovie,
		Source:             media.SourceTMDB,
		ExternalIdentifier: "603",
		Title:              "The Matrix",
		Description:        "A hacker learns the truth about his reality.",
		SourceURL:          "https://www.themoviedb.org/movie/603",
		ProviderRating:     8.2,
		PublishYear:        1999,
		PublishDate:        &published,
		IsNsfw:             &nsfw,
		Genres:             []string{"Action", "Science Fiction"},
		Creators: []media.CreatorGroup{
			{Role: "Director", Creators: []media.Creator{{Name: "Lana Wachowski"}, {Name: "Lilly Wachowski"}}},
			{Role: "Actor", Creators: []media.Creator{{Name: "Keanu Reeves", Image: "https://img/neo.jpg"}}},
		},
		Assets: media.Assets{
			Images: []string{"https://img/matrix-poster.jpg"},
			Videos: []media.Video{{VideoID: "m8e-FF8MsqU", Site: "youtube"}},
		},
		Group:     &media.Group{ID: "2344", Name: "The Matrix Collection", Part: 1},
		Specifics: media.Specifics{Movie: &media.MovieSpecifics{Runtime: 136}},
		Suggestions: []media.Suggestion{
			{Lot: media.LotMovie, Source: media.SourceTMDB, Identifier: "604", Title: "The Matrix Reloaded", Image: "https://img/reloaded.jpg"},
		},
	}
}

func TestUpsertRecordRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	want := movieRecord("rec-1")

	if err := s.UpsertRecord(ctx, want); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	details, err := s.MediaDetails(ctx, "rec-1")
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	got := details.Record

	if got.Title != want.Title || got.Description != want.Description {
		t.Errorf("title/description = %q/%q", got.Title, got.Description)
	}
	if got.Lot != media.LotMovie || got.Source != media.SourceTMDB || got.ExternalIdentifier != "603" {
		t.Errorf("identity fields = %s/%s/%s", got.Lot, got.Source, got.ExternalIdentifier)
	}
	if got.ProviderRating != 8.2 || got.PublishYear != 1999 {
		t.Errorf("rating/year = %v/%d", got.ProviderRating, got.PublishYear)
	}
	if got.PublishDate == nil || !got.PublishDate.Equal(*want.PublishDate) {
		t.Errorf("publish date = %v", got.PublishDate)
	}
	if got.IsNsfw == nil || *got.IsNsfw {
		t.Errorf("is_nsfw = %v", got.IsNsfw)
	}
	if len(got.Genres) != 2 || got.Genres[0] != "Action" {
		t.Errorf("genres = %v", got.Genres)
	}
	if len(got.Creators) != 2 || got.Creators[0].Role != "Director" || len(got.Creators[0].Creators) != 2 {
		t.Errorf("creators = %+v", got.Creators)
	}
	if len(got.Assets.Images) != 1 || len(got.Assets.Videos) != 1 || got.Assets.Videos[0].Site != "youtube" {
		t.Errorf("assets = %+v", got.Assets)
	}
	if got.Group == nil || got.Group.Name != "The Matrix Collection" || got.Group.Part != 1 {
		t.Errorf("group = %+v", got.Group)
	}
	if got.Specifics.Movie == nil || got.Specifics.Movie.Runtime != 136 {
		t.Errorf("specifics = %+v", got.Specifics)
	}
	if got.Specifics.Lot() != got.Lot {
		t.Errorf("specifics lot %s does not match record lot %s", got.Specifics.Lot(), got.Lot)
	}
	if len(got.Suggestions) != 1 || got.Suggestions[0].Identifier != "604" {
		t.Errorf("suggestions = %+v", got.Suggestions)
	}
	if len(details.Identities) != 1 || details.Identities[0].ExternalIdentifier != "603" {
		t.Errorf("identities = %+v", details.Identities)
	}
}

func TestUpsertRecordRetainsMissingFields(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.UpsertRecord(ctx, movieRecord("rec-1")); err != nil {
		t.Fatalf("initial upsert: %v", err)
	}

	// Refresh payload missing the description and group but carrying a new
	// rating and an extra suggestion.
	refresh := movieRecord("rec-1")
	refresh.Description = ""
	refresh.Group = nil
	refresh.ProviderRating = 8.7
	refresh.Suggestions = append(refresh.Suggestions, media.Suggestion{
		Lot: media.LotMovie, Source: media.SourceTMDB, Identifier: "605", Title: "The Matrix Revolutions",
	})
	if err := s.UpsertRecord(ctx, refresh); err != nil {
		t.Fatalf("refresh upsert: %v", err)
	}

	details, err := s.MediaDetails(ctx, "rec-1")
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	got := details.Record
	if got.Description == "" {
		t.Error("stored description was lost on refresh")
	}
	if got.Group == nil {
		t.Error("stored group was lost on refresh")
	}
	if got.ProviderRating != 8.7 {
		t.Errorf("rating = %v, want 8.7", got.ProviderRating)
	}
	if len(got.Suggestions) != 2 {
		t.Errorf("suggestions = %d, want full replacement with 2", len(got.Suggestions))
	}
}

func TestUpsertRecordMergesSpecificsWithinVariant(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := movieRecord("rec-manga")
	first.Lot = media.LotManga
	first.Source = media.SourceAniList
	first.ExternalIdentifier = "30013"
	first.Title = "One Piece"
	first.Group = nil
	first.Specifics = media.Specifics{Manga: &media.MangaSpecifics{Volumes: 100, Chapters: 1050}}
	if err := s.UpsertRecord(ctx, first); err != nil {
		t.Fatalf("initial upsert: %v", err)
	}

	refresh := *first
	refresh.Specifics = media.Specifics{Manga: &media.MangaSpecifics{Chapters: 1100}}
	if err := s.UpsertRecord(ctx, &refresh); err != nil {
		t.Fatalf("refresh upsert: %v", err)
	}

	details, err := s.MediaDetails(ctx, "rec-manga")
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	manga := details.Record.Specifics.Manga
	if manga == nil {
		t.Fatal("manga specifics missing")
	}
	if manga.Volumes != 100 {
		t.Errorf("volumes = %d, want stored 100 retained", manga.Volumes)
	}
	if manga.Chapters != 1100 {
		t.Errorf("chapters = %d, want refreshed 1100", manga.Chapters)
	}
}

func TestUpsertRecordRejectsIdentityRemap(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.UpsertRecord(ctx, movieRecord("rec-1")); err != nil {
		t.Fatalf("initial upsert: %v", err)
	}

	hijack := movieRecord("rec-2")
	err := s.UpsertRecord(ctx, hijack)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}

	// The losing transaction must not leave a partial record behind.
	if _, err := s.MediaDetails(ctx, "rec-2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("rec-2 lookup err = %v, want ErrNotFound", err)
	}
}

func TestMediaDetailsNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.MediaDetails(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestFindByTitleYearLot(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := movieRecord("rec-1")
	if err := s.UpsertRecord(ctx, first); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	remake := movieRecord("rec-remake")
	remake.ExternalIdentifier = "624860"
	remake.Title = "The Matrix Resurrections"
	remake.PublishYear = 2021
	published := time.Date(2021, time.December, 22, 0, 0, 0, 0, time.UTC)
	remake.PublishDate = &published
	if err := s.UpsertRecord(ctx, remake); err != nil {
		t.Fatalf("upsert remake: %v", err)
	}

	candidates, err := s.FindByTitleYearLot(ctx, "The Matrix", 1999, 1, media.LotMovie)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(candidates) != 1 || candidates[0].InternalID != "rec-1" {
		t.Errorf("candidates = %+v, want only rec-1", candidates)
	}

	// Unknown year matches everything in the lot.
	candidates, err = s.FindByTitleYearLot(ctx, "The Matrix", 0, 1, media.LotMovie)
	if err != nil {
		t.Fatalf("find without year: %v", err)
	}
	if len(candidates) != 2 {
		t.Errorf("candidates = %d, want 2", len(candidates))
	}

	candidates, err = s.FindByTitleYearLot(ctx, "The Matrix", 1999, 1, media.LotBook)
	if err != nil {
		t.Fatalf("find other lot: %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("book lot candidates = %+v, want none", candidates)
	}
}

func TestProviderIdentityLookup(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.UpsertRecord(ctx, movieRecord("rec-1")); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	internalID, err := s.FindProviderIdentity(ctx, media.SourceTMDB, "603", media.LotMovie)
	if err != nil {
		t.Fatalf("find identity: %v", err)
	}
	if internalID != "rec-1" {
		t.Errorf("internal id = %q", internalID)
	}

	if _, err := s.FindProviderIdentity(ctx, media.SourceIGDB, "603", media.LotMovie); err == nil {
		t.Error("expected missing identity error")
	}

	// A second provider identity attaching to the same record.
	err = s.UpsertProviderIdentity(ctx, media.ProviderIdentity{
		Source:             media.SourceAniList,
		ExternalIdentifier: "889",
		Lot:                media.LotMovie,
		InternalID:         "rec-1",
	})
	if err != nil {
		t.Fatalf("upsert identity: %v", err)
	}
	identities, err := s.ListProviderIdentities(ctx, "rec-1")
	if err != nil {
		t.Fatalf("list identities: %v", err)
	}
	if len(identities) != 2 {
		t.Fatalf("identities = %d, want 2", len(identities))
	}

	// Remapping the existing binding must fail.
	err = s.UpsertProviderIdentity(ctx, media.ProviderIdentity{
		Source:             media.SourceTMDB,
		ExternalIdentifier: "603",
		Lot:                media.LotMovie,
		InternalID:         "rec-other",
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("remap err = %v, want ErrConflict", err)
	}
}

func TestSchemaVersionGate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "curator.db")
	s, err := OpenPath(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := OpenPath(path); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("reopen err = %v, want ErrSchemaMismatch", err)
	}
}
