package main

import (
	"fmt"
	"log/slog"

	"curator/internal/config"
	"curator/internal/fetch"
	"curator/internal/media"
	"curator/internal/provider"
	"curator/internal/provider/anilist"
	"curator/internal/provider/igdb"
	"curator/internal/provider/itunes"
	"curator/internal/provider/openlibrary"
	"curator/internal/provider/tmdb"
	"curator/internal/provider/vndb"
	"curator/internal/respcache"
)

// buildRegistry constructs the shared fetch client and response cache, then
// registers an adapter for every enabled provider section.
func buildRegistry(cfg *config.Config, logger *slog.Logger) (*provider.Registry, error) {
	limitsFor := func(source media.Source) fetch.Limits {
		p := cfg.ProviderFor(source)
		if p == nil {
			return fetch.Limits{}
		}
		return fetch.Limits{
			QPS:              p.RateLimitQPS,
			Burst:            p.Burst,
			MaxConcurrent:    p.MaxConcurrent,
			MaxRetryAttempts: cfg.RetryAttemptsFor(source),
			QueueDepth:       cfg.Sync.JobQueueDepth,
		}
	}
	client := fetch.NewClient(limitsFor, logger)

	cache, err := respcache.New(cfg.Cache.MaxEntries, logger)
	if err != nil {
		return nil, fmt.Errorf("create response cache: %w", err)
	}

	deps := provider.Deps{Fetch: client, Cache: cache, Logger: logger}
	registry := provider.NewRegistry()

	for _, source := range cfg.EnabledSources() {
		adapter, err := buildAdapter(cfg, source, deps)
		if err != nil {
			return nil, fmt.Errorf("configure %s: %w", source, err)
		}
		registry.Register(adapter)
	}
	return registry, nil
}

func buildAdapter(cfg *config.Config, source media.Source, deps provider.Deps) (provider.Provider, error) {
	p := cfg.ProviderFor(source)
	ttl := cfg.CacheTTLFor(source)

	switch source {
	case media.SourceTMDB:
		return tmdb.New(tmdb.Options{
			BaseURL:      p.BaseURL,
			APIKey:       p.APIKey,
			Language:     p.Language,
			ImageBaseURL: p.ImageBaseURL,
			CacheTTL:     ttl,
		}, deps)
	case media.SourceOpenLibrary:
		return openlibrary.New(openlibrary.Options{
			BaseURL:        p.BaseURL,
			ImageBaseURL:   p.ImageBaseURL,
			CoverImageSize: p.CoverImageSize,
			PageLimit:      p.PageLimit,
			CacheTTL:       ttl,
		}, deps)
	case media.SourceAniList:
		return anilist.New(anilist.Options{
			BaseURL:  p.BaseURL,
			CacheTTL: ttl,
		}, deps)
	case media.SourceITunes:
		return itunes.New(itunes.Options{
			BaseURL:  p.BaseURL,
			CacheTTL: ttl,
		}, deps)
	case media.SourceIGDB:
		return igdb.New(igdb.Options{
			BaseURL:      p.BaseURL,
			APIKey:       p.APIKey,
			ClientID:     p.ClientID,
			ImageBaseURL: p.ImageBaseURL,
			CacheTTL:     ttl,
		}, deps)
	case media.SourceVNDB:
		return vndb.New(vndb.Options{
			BaseURL:  p.BaseURL,
			CacheTTL: ttl,
		}, deps)
	default:
		return nil, fmt.Errorf("unknown source %s", source)
	}
}
