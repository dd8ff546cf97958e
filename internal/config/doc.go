// Package config loads, validates, and normalizes the TOML configuration for
// the curator daemon and CLI. Defaults are overlaid first, then the config
// file, then path expansion; Validate rejects unusable combinations before
// any component starts.
package config
