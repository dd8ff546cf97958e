package identity

import "testing"

func TestNormalizeTitle(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"The Matrix", "the matrix"},
		{"  Ever17 -the out of infinity-  ", "ever17 the out of infinity"},
		{"AKIRA", "akira"},
		{"Spider-Man: No Way Home", "spider man no way home"},
		{"...", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeTitle(tc.in); got != tc.want {
			t.Errorf("NormalizeTitle(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSimilarity(t *testing.T) {
	if got := Similarity("The Matrix", "the MATRIX"); got != 1 {
		t.Errorf("case variants should score 1, got %f", got)
	}
	if got := Similarity("Spider-Man: No Way Home", "Spider Man No Way Home"); got != 1 {
		t.Errorf("punctuation variants should score 1, got %f", got)
	}
	if got := Similarity("The Matrix", "Breaking Bad"); got > 0.3 {
		t.Errorf("unrelated titles should score low, got %f", got)
	}
	if got := Similarity("", "The Matrix"); got != 0 {
		t.Errorf("empty title scores 0, got %f", got)
	}

	near := Similarity("The Matrix Reloaded", "The Matrix Revolutions")
	far := Similarity("The Matrix Reloaded", "Inception")
	if near <= far {
		t.Errorf("sequel pair (%f) should outscore unrelated pair (%f)", near, far)
	}
}
