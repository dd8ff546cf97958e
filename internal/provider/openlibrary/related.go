package openlibrary

import (
	"regexp"
	"strings"

	"curator/internal/media"
)

// The related-work carousel arrives as an HTML fragment from an undocumented
// partials endpoint. Each carousel item carries a work link and a cover image
// whose alt text is "<title> by <author>".
var (
	carouselItemPattern = regexp.MustCompile(`(?s)<div[^>]*class="[^"]*\bbook\b[^"]*\bcarousel__item\b[^"]*".*?</a>`)
	workHrefPattern     = regexp.MustCompile(`href="(/works/[^"?]+)`)
	coverImagePattern   = regexp.MustCompile(`<img[^>]*class="[^"]*\bbookcover\b[^"]*"[^>]*>`)
	altPattern          = regexp.MustCompile(`alt="([^"]*)"`)
	srcPattern          = regexp.MustCompile(`src="([^"]*)"`)
)

func (a *Adapter) relatedSuggestions(html string) []media.Suggestion {
	if strings.TrimSpace(html) == "" {
		return nil
	}
	var suggestions []media.Suggestion
	for _, item := range carouselItemPattern.FindAllString(html, -1) {
		href := workHrefPattern.FindStringSubmatch(item)
		if href == nil {
			continue
		}
		identifier := WorkKey(href[1])

		cover := coverImagePattern.FindString(item)
		if cover == "" {
			continue
		}
		alt := altPattern.FindStringSubmatch(cover)
		if alt == nil {
			continue
		}
		title, _, _ := strings.Cut(alt[1], " by ")
		title = strings.TrimSpace(title)
		if title == "" || identifier == "" {
			continue
		}

		suggestion := media.Suggestion{
			Lot:        media.LotBook,
			Source:     media.SourceOpenLibrary,
			Identifier: identifier,
			Title:      title,
		}
		if src := srcPattern.FindStringSubmatch(cover); src != nil {
			suggestion.Image = src[1]
		}
		suggestions = append(suggestions, suggestion)
	}
	return suggestions
}
