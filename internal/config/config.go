package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"curator/internal/media"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Sync contains configuration for the synchronization orchestrator.
type Sync struct {
	WorkerPoolSize       int `toml:"worker_pool_size"`
	JobQueueDepth        int `toml:"job_queue_depth"`
	PollInterval         int `toml:"poll_interval"`          // seconds
	RefreshInterval      int `toml:"refresh_interval"`       // seconds between recurring sweeps
	RetryBackoffInitial  int `toml:"retry_backoff_initial"`  // seconds
	RetryBackoffCeiling  int `toml:"retry_backoff_ceiling"`  // seconds
	ShutdownGracePeriod  int `toml:"shutdown_grace_period"`  // seconds
	DefaultRetryAttempts int `toml:"default_retry_attempts"` // per-provider override available
}

// Identity contains configuration for cross-source identity resolution.
type Identity struct {
	SimilarityThreshold float64 `toml:"similarity_threshold"`
	AmbiguityMargin     float64 `toml:"ambiguity_margin"`
	YearTolerance       int     `toml:"year_tolerance"`
}

// Cache contains configuration for the provider response cache.
type Cache struct {
	MaxEntries int `toml:"max_entries"`
	DefaultTTL int `toml:"default_ttl"` // seconds
}

// Provider contains per-source connection and throttling settings.
type Provider struct {
	Enabled          bool   `toml:"enabled"`
	APIKey           string `toml:"api_key"`
	ClientID         string `toml:"client_id"`
	BaseURL          string `toml:"base_url"`
	Language         string `toml:"language"`
	RateLimitQPS     int    `toml:"rate_limit_qps"`
	Burst            int    `toml:"burst"`
	MaxConcurrent    int    `toml:"max_concurrent"`
	CacheTTL         int    `toml:"cache_ttl"` // seconds, 0 means cache.default_ttl
	MaxRetryAttempts int    `toml:"max_retry_attempts"`
	ImageBaseURL     string `toml:"image_base_url"`
	CoverImageSize   string `toml:"cover_image_size"`
	PageLimit        int    `toml:"page_limit"`
}

// Config encapsulates all configuration values for curator.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and API bind address
//   - Logging: log format and level
//   - Sync: orchestrator worker pool, queue depth, intervals
//   - Identity: similarity threshold and merge policy knobs
//   - Cache: response cache capacity and default TTL
//   - Providers: one section per external metadata source
type Config struct {
	Paths    Paths    `toml:"paths"`
	Logging  Logging  `toml:"logging"`
	Sync     Sync     `toml:"sync"`
	Identity Identity `toml:"identity"`
	Cache    Cache    `toml:"cache"`

	TMDB        Provider `toml:"tmdb"`
	OpenLibrary Provider `toml:"openlibrary"`
	AniList     Provider `toml:"anilist"`
	ITunes      Provider `toml:"itunes"`
	IGDB        Provider `toml:"igdb"`
	VNDB        Provider `toml:"vndb"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/curator/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("curator.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ProviderFor returns the settings section for a source tag.
func (c *Config) ProviderFor(source media.Source) *Provider {
	switch source {
	case media.SourceTMDB:
		return &c.TMDB
	case media.SourceOpenLibrary:
		return &c.OpenLibrary
	case media.SourceAniList:
		return &c.AniList
	case media.SourceITunes:
		return &c.ITunes
	case media.SourceIGDB:
		return &c.IGDB
	case media.SourceVNDB:
		return &c.VNDB
	default:
		return nil
	}
}

// EnabledSources lists the sources with an enabled provider section.
func (c *Config) EnabledSources() []media.Source {
	var sources []media.Source
	for _, source := range media.AllSources() {
		if p := c.ProviderFor(source); p != nil && p.Enabled {
			sources = append(sources, source)
		}
	}
	return sources
}

// CacheTTLFor returns the response-cache TTL for a source, falling back to
// the global default when the provider section leaves it unset.
func (c *Config) CacheTTLFor(source media.Source) time.Duration {
	if p := c.ProviderFor(source); p != nil && p.CacheTTL > 0 {
		return time.Duration(p.CacheTTL) * time.Second
	}
	return time.Duration(c.Cache.DefaultTTL) * time.Second
}

// RetryAttemptsFor returns the fetch retry ceiling for a source.
func (c *Config) RetryAttemptsFor(source media.Source) int {
	if p := c.ProviderFor(source); p != nil && p.MaxRetryAttempts > 0 {
		return p.MaxRetryAttempts
	}
	return c.Sync.DefaultRetryAttempts
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
