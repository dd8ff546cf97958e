package config

import (
	"os"
	"strings"

	"curator/internal/media"
)

// normalize expands path fields and applies environment fallbacks.
func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}

	if c.TMDB.APIKey == "" {
		c.TMDB.APIKey = strings.TrimSpace(os.Getenv("TMDB_API_KEY"))
	}
	if c.IGDB.APIKey == "" {
		c.IGDB.APIKey = strings.TrimSpace(os.Getenv("IGDB_API_KEY"))
	}
	if c.IGDB.ClientID == "" {
		c.IGDB.ClientID = strings.TrimSpace(os.Getenv("IGDB_CLIENT_ID"))
	}

	for _, source := range media.AllSources() {
		p := c.ProviderFor(source)
		if p == nil {
			continue
		}
		p.BaseURL = strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
		p.ImageBaseURL = strings.TrimRight(strings.TrimSpace(p.ImageBaseURL), "/")
		if p.Burst <= 0 {
			p.Burst = p.RateLimitQPS
		}
	}
	return nil
}
