package config

const (
	defaultDataDir = "~/.local/share/curator/data"
	defaultLogDir  = "~/.local/share/curator/logs"
	defaultAPIBind = "127.0.0.1:7787"

	defaultLogFormat = "console"
	defaultLogLevel  = "info"

	defaultWorkerPoolSize       = 4
	defaultJobQueueDepth        = 256
	defaultPollInterval         = 5
	defaultRefreshInterval      = 86400
	defaultRetryBackoffInitial  = 10
	defaultRetryBackoffCeiling  = 900
	defaultShutdownGracePeriod  = 30
	defaultRetryAttempts        = 3
	defaultSimilarityThreshold  = 0.85
	defaultAmbiguityMargin      = 0.05
	defaultYearTolerance        = 1
	defaultCacheMaxEntries      = 4096
	defaultCacheTTL             = 21600
	defaultProviderQPS          = 4
	defaultProviderBurst        = 4
	defaultProviderConcurrency  = 4
	defaultTMDBBaseURL          = "https://api.themoviedb.org/3"
	defaultTMDBLanguage         = "en-US"
	defaultOpenLibraryBaseURL   = "https://openlibrary.org"
	defaultOpenLibraryImageURL  = "https://covers.openlibrary.org"
	defaultOpenLibraryCoverSize = "M"
	defaultOpenLibraryPageLimit = 20
	defaultAniListBaseURL       = "https://graphql.anilist.co"
	defaultITunesBaseURL        = "https://itunes.apple.com"
	defaultIGDBBaseURL          = "https://api.igdb.com/v4"
	defaultVNDBBaseURL          = "https://api.vndb.org/kana"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	baseProvider := func(baseURL string) Provider {
		return Provider{
			Enabled:          true,
			BaseURL:          baseURL,
			RateLimitQPS:     defaultProviderQPS,
			Burst:            defaultProviderBurst,
			MaxConcurrent:    defaultProviderConcurrency,
			MaxRetryAttempts: defaultRetryAttempts,
		}
	}

	tmdb := baseProvider(defaultTMDBBaseURL)
	tmdb.Language = defaultTMDBLanguage

	openlibrary := baseProvider(defaultOpenLibraryBaseURL)
	openlibrary.ImageBaseURL = defaultOpenLibraryImageURL
	openlibrary.CoverImageSize = defaultOpenLibraryCoverSize
	openlibrary.PageLimit = defaultOpenLibraryPageLimit

	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Sync: Sync{
			WorkerPoolSize:       defaultWorkerPoolSize,
			JobQueueDepth:        defaultJobQueueDepth,
			PollInterval:         defaultPollInterval,
			RefreshInterval:      defaultRefreshInterval,
			RetryBackoffInitial:  defaultRetryBackoffInitial,
			RetryBackoffCeiling:  defaultRetryBackoffCeiling,
			ShutdownGracePeriod:  defaultShutdownGracePeriod,
			DefaultRetryAttempts: defaultRetryAttempts,
		},
		Identity: Identity{
			SimilarityThreshold: defaultSimilarityThreshold,
			AmbiguityMargin:     defaultAmbiguityMargin,
			YearTolerance:       defaultYearTolerance,
		},
		Cache: Cache{
			MaxEntries: defaultCacheMaxEntries,
			DefaultTTL: defaultCacheTTL,
		},
		TMDB:        tmdb,
		OpenLibrary: openlibrary,
		AniList:     baseProvider(defaultAniListBaseURL),
		ITunes:      baseProvider(defaultITunesBaseURL),
		IGDB:        baseProvider(defaultIGDBBaseURL),
		VNDB:        baseProvider(defaultVNDBBaseURL),
	}
}
