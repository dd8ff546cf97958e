package media

import "strings"

// Lot is the media kind discriminator.
type Lot string

const (
	LotMovie       Lot = "movie"
	LotShow        Lot = "show"
	LotBook        Lot = "book"
	LotAnime       Lot = "anime"
	LotManga       Lot = "manga"
	LotPodcast     Lot = "podcast"
	LotVideoGame   Lot = "video_game"
	LotVisualNovel Lot = "visual_novel"
	LotAudioBook   Lot = "audio_book"
)

var allLots = []Lot{
	LotMovie,
	LotShow,
	LotBook,
	LotAnime,
	LotManga,
	LotPodcast,
	LotVideoGame,
	LotVisualNovel,
	LotAudioBook,
}

var lotSet = func() map[Lot]struct{} {
	set := make(map[Lot]struct{}, len(allLots))
	for _, lot := range allLots {
		set[lot] = struct{}{}
	}
	return set
}()

// AllLots returns the ordered list of known lots.
func AllLots() []Lot {
	cp := make([]Lot, len(allLots))
	copy(cp, allLots)
	return cp
}

// ParseLot converts a string into a known Lot.
func ParseLot(value string) (Lot, bool) {
	normalized := Lot(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := lotSet[normalized]
	return normalized, ok
}

// IsValid reports whether the lot is one of the known media kinds.
func (l Lot) IsValid() bool {
	_, ok := lotSet[l]
	return ok
}

func (l Lot) String() string {
	return string(l)
}
