package config

import (
	"errors"
	"fmt"

	"curator/internal/media"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateIdentity(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateProviders(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateSync() error {
	if err := ensurePositiveMap(map[string]int{
		"sync.worker_pool_size":       c.Sync.WorkerPoolSize,
		"sync.job_queue_depth":        c.Sync.JobQueueDepth,
		"sync.poll_interval":          c.Sync.PollInterval,
		"sync.refresh_interval":       c.Sync.RefreshInterval,
		"sync.retry_backoff_initial":  c.Sync.RetryBackoffInitial,
		"sync.retry_backoff_ceiling":  c.Sync.RetryBackoffCeiling,
		"sync.shutdown_grace_period":  c.Sync.ShutdownGracePeriod,
		"sync.default_retry_attempts": c.Sync.DefaultRetryAttempts,
	}); err != nil {
		return err
	}
	if c.Sync.RetryBackoffCeiling < c.Sync.RetryBackoffInitial {
		return errors.New("sync.retry_backoff_ceiling must be >= sync.retry_backoff_initial")
	}
	return nil
}

func (c *Config) validateIdentity() error {
	if c.Identity.SimilarityThreshold <= 0 || c.Identity.SimilarityThreshold > 1 {
		return errors.New("identity.similarity_threshold must be in (0, 1]")
	}
	if c.Identity.AmbiguityMargin < 0 || c.Identity.AmbiguityMargin >= c.Identity.SimilarityThreshold {
		return errors.New("identity.ambiguity_margin must be non-negative and below the similarity threshold")
	}
	if c.Identity.YearTolerance < 0 {
		return errors.New("identity.year_tolerance must be non-negative")
	}
	return nil
}

func (c *Config) validateCache() error {
	return ensurePositiveMap(map[string]int{
		"cache.max_entries": c.Cache.MaxEntries,
		"cache.default_ttl": c.Cache.DefaultTTL,
	})
}

func (c *Config) validateProviders() error {
	enabled := 0
	for _, source := range media.AllSources() {
		p := c.ProviderFor(source)
		if p == nil || !p.Enabled {
			continue
		}
		enabled++
		prefix := string(source)
		if p.BaseURL == "" {
			return fmt.Errorf("%s.base_url must be set when %s.enabled is true", prefix, prefix)
		}
		if err := ensurePositiveMap(map[string]int{
			prefix + ".rate_limit_qps": p.RateLimitQPS,
			prefix + ".burst":          p.Burst,
			prefix + ".max_concurrent": p.MaxConcurrent,
		}); err != nil {
			return err
		}
		if p.CacheTTL < 0 {
			return fmt.Errorf("%s.cache_ttl must be non-negative", prefix)
		}
		if p.MaxRetryAttempts < 0 {
			return fmt.Errorf("%s.max_retry_attempts must be non-negative", prefix)
		}
	}
	if enabled == 0 {
		return errors.New("at least one provider section must be enabled")
	}
	if c.TMDB.Enabled && c.TMDB.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/curator/config.toml"
		}
		return fmt.Errorf("tmdb.api_key is required when tmdb is enabled. Set TMDB_API_KEY or edit %s (create with 'curator config init')", defaultPath)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
