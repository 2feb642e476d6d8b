// Package config loads and saves the newsdeck YAML configuration: extra
// sources beyond the built-in catalog, the enabled subset, and the refresh
// interval.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"newsdeck/logger"
	"newsdeck/model"
)

// Config is the top-level configuration.
type Config struct {
	// DataDir holds the item database; CacheDir the image cache files.
	DataDir  string `yaml:"data_dir"`
	CacheDir string `yaml:"cache_dir"`

	// Sources are extra feed sources merged after the built-in catalog.
	Sources []model.FeedSource `yaml:"sources,omitempty"`

	// EnabledSources lists enabled source identifiers. nil means all
	// sources are enabled; an explicit empty list disables everything.
	EnabledSources []string `yaml:"enabled_sources"`

	// RefreshIntervalSeconds between automatic updates; 0 = manual only.
	RefreshIntervalSeconds int `yaml:"refresh_interval_seconds"`

	Log logger.Config `yaml:"log"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	base := "newsdeck"
	if home, err := os.UserHomeDir(); err == nil {
		base = filepath.Join(home, ".config", "newsdeck")
	}
	return &Config{
		DataDir:                base,
		CacheDir:               filepath.Join(base, "images"),
		RefreshIntervalSeconds: 300,
		Log:                    logger.Config{Level: "info"},
	}
}

// DefaultPath returns the standard config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "newsdeck.yaml"
	}
	return filepath.Join(home, ".config", "newsdeck", "config.yaml")
}

// Load reads the config at path, falling back to defaults when the file does
// not exist. Missing fields are filled in from Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	for _, src := range cfg.Sources {
		if err := src.Validate(); err != nil {
			return nil, fmt.Errorf("source %q: %w", src.Identifier, err)
		}
	}
	return cfg, nil
}

// Save writes the config to path, creating parent directories as needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// AllSources returns the built-in catalog plus configured extras, skipping
// extras whose identifier shadows a catalog entry.
func (c *Config) AllSources() []model.FeedSource {
	sources := make([]model.FeedSource, len(model.Catalog))
	copy(sources, model.Catalog)

	seen := make(map[string]bool, len(sources))
	for _, s := range sources {
		seen[s.Identifier] = true
	}
	for _, s := range c.Sources {
		if !seen[s.Identifier] {
			seen[s.Identifier] = true
			sources = append(sources, s)
		}
	}
	return sources
}

// EnabledSet returns the enabled source identifiers.
func (c *Config) EnabledSet() map[string]bool {
	set := make(map[string]bool)
	if c.EnabledSources == nil {
		for _, s := range c.AllSources() {
			set[s.Identifier] = true
		}
		return set
	}
	for _, id := range c.EnabledSources {
		set[id] = true
	}
	return set
}

// EnabledCatalog returns the enabled sources in catalog order.
func (c *Config) EnabledCatalog() []model.FeedSource {
	enabled := c.EnabledSet()
	var sources []model.FeedSource
	for _, s := range c.AllSources() {
		if enabled[s.Identifier] {
			sources = append(sources, s)
		}
	}
	return sources
}

// SetSourceEnabled flips one source in the enabled set.
func (c *Config) SetSourceEnabled(id string, enabled bool) {
	set := c.EnabledSet()
	if enabled {
		set[id] = true
	} else {
		delete(set, id)
	}

	ids := make([]string, 0, len(set))
	for _, s := range c.AllSources() {
		if set[s.Identifier] {
			ids = append(ids, s.Identifier)
		}
	}
	c.EnabledSources = ids
}

// Interval returns the automatic refresh interval; zero means manual only.
func (c *Config) Interval() time.Duration {
	if c.RefreshIntervalSeconds <= 0 {
		return 0
	}
	return time.Duration(c.RefreshIntervalSeconds) * time.Second
}

// DBPath returns the item database location.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "newsdeck.db")
}
