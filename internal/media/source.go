package media

import "strings"

// Source identifies an external metadata origin.
type Source string

const (
	SourceTMDB        Source = "tmdb"
	SourceOpenLibrary Source = "openlibrary"
	SourceAniList     Source = "anilist"
	SourceITunes      Source = "itunes"
	SourceIGDB        Source = "igdb"
	SourceVNDB        Source = "vndb"
)

var allSources = []Source{
	SourceTMDB,
	SourceOpenLibrary,
	SourceAniList,
	SourceITunes,
	SourceIGDB,
	SourceVNDB,
}

var sourceSet = func() map[Source]struct{} {
	set := make(map[Source]struct{}, len(allSources))
	for _, source := range allSources {
		set[source] = struct{}{}
	}
	return set
}()

// AllSources returns the ordered list of known sources.
func AllSources() []Source {
	cp := make([]Source, len(allSources))
	copy(cp, allSources)
	return cp
}

// ParseSource converts a string into a known Source.
func ParseSource(value string) (Source, bool) {
	normalized := Source(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := sourceSet[normalized]
	return normalized, ok
}

// IsValid reports whether the source is a known provider tag.
func (s Source) IsValid() bool {
	_, ok := sourceSet[s]
	return ok
}

func (s Source) String() string {
	return string(s)
}
