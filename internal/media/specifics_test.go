package media

import "testing"

func TestSpecificsLot(t *testing.T) {
	cases := []struct {
		name      string
		specifics Specifics
		want      Lot
	}{
		{"empty", Specifics{}, ""},
		{"movie", Specifics{Movie: &MovieSpecifics{Runtime: 148}}, LotMovie},
		{"show", Specifics{Show: &ShowSpecifics{}}, LotShow},
		{"book", Specifics{Book: &BookSpecifics{Pages: 320}}, LotBook},
		{"anime", Specifics{Anime: &AnimeSpecifics{Episodes: 26}}, LotAnime},
		{"manga", Specifics{Manga: &MangaSpecifics{Volumes: 12}}, LotManga},
		{"podcast", Specifics{Podcast: &PodcastSpecifics{TotalEpisodes: 4}}, LotPodcast},
		{"video game", Specifics{VideoGame: &VideoGameSpecifics{}}, LotVideoGame},
		{"visual novel", Specifics{VisualNovel: &VisualNovelSpecifics{Length: 50}}, LotVisualNovel},
		{"audio book", Specifics{AudioBook: &AudioBookSpecifics{Runtime: 600}}, LotAudioBook},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.specifics.Lot(); got != tc.want {
				t.Errorf("Lot() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSpecificsValidateMatchingLot(t *testing.T) {
	s := Specifics{Movie: &MovieSpecifics{Runtime: 148}}
	if err := s.Validate(LotMovie); err != nil {
		t.Fatalf("Validate(movie) returned error: %v", err)
	}
}

func TestSpecificsValidateMismatchedLot(t *testing.T) {
	s := Specifics{Show: &ShowSpecifics{Seasons: []ShowSeason{{SeasonNumber: 1}}}}
	if err := s.Validate(LotMovie); err == nil {
		t.Fatal("Validate should reject show specifics on a movie lot")
	}
}

func TestSpecificsValidateMultipleVariants(t *testing.T) {
	s := Specifics{
		Movie: &MovieSpecifics{Runtime: 90},
		Book:  &BookSpecifics{Pages: 100},
	}
	if err := s.Validate(LotMovie); err == nil {
		t.Fatal("Validate should reject multiple populated variants")
	}
}

func TestSpecificsValidateEmpty(t *testing.T) {
	if err := (Specifics{}).Validate(LotMovie); err != nil {
		t.Fatalf("empty specifics should be permitted (partial payloads): %v", err)
	}
}

func TestRecordValidate(t *testing.T) {
	record := &Record{
		Lot:                LotMovie,
		Source:             SourceTMDB,
		ExternalIdentifier: "27205",
		Title:              "Inception",
		Specifics:          Specifics{Movie: &MovieSpecifics{Runtime: 148}},
	}
	if err := record.Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}

	missingID := *record
	missingID.ExternalIdentifier = "  "
	if err := missingID.Validate(); err == nil {
		t.Fatal("Validate should reject a blank external identifier")
	}

	badLot := *record
	badLot.Lot = "mixtape"
	if err := badLot.Validate(); err == nil {
		t.Fatal("Validate should reject an unknown lot")
	}
}

func TestParseLot(t *testing.T) {
	cases := []struct {
		input string
		want  Lot
		ok    bool
	}{
		{"movie", LotMovie, true},
		{" MOVIE ", LotMovie, true},
		{"visual_novel", LotVisualNovel, true},
		{"", "", false},
		{"laserdisc", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseLot(tc.input)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ParseLot(%q) = (%q, %v), want (%q, %v)", tc.input, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParseSource(t *testing.T) {
	if got, ok := ParseSource("TMDB"); !ok || got != SourceTMDB {
		t.Errorf("ParseSource(TMDB) = (%q, %v)", got, ok)
	}
	if _, ok := ParseSource("myspace"); ok {
		t.Error("ParseSource should reject unknown sources")
	}
}
