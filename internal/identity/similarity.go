package identity

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var lowerCaser = cases.Lower(language.Und)

// NormalizeTitle folds case, strips punctuation, and collapses whitespace so
// provider spelling variants of one title compare equal.
func NormalizeTitle(title string) string {
	title = lowerCaser.String(strings.TrimSpace(title))
	var b strings.Builder
	b.Grow(len(title))
	lastSpace := true
	for _, r := range title {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case !lastSpace:
			b.WriteRune(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// Similarity scores two titles in [0,1] with a Dice coefficient over
// character trigrams of the normalized forms. Short titles fall back to
// exact comparison.
func Similarity(a, b string) float64 {
	a = NormalizeTitle(a)
	b = NormalizeTitle(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	ta := trigrams(a)
	tb := trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	shared := 0
	for gram := range ta {
		if tb[gram] {
			shared++
		}
	}
	return 2 * float64(shared) / float64(len(ta)+len(tb))
}

func trigrams(s string) map[string]bool {
	runes := []rune(" " + s + " ")
	if len(runes) < 3 {
		return nil
	}
	grams := make(map[string]bool, len(runes))
	for i := 0; i+3 <= len(runes); i++ {
		grams[string(runes[i:i+3])] = true
	}
	return grams
}
