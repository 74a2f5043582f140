package config

import (
	"errors"
	"fmt"
	"os"

	"pokeflow/internal/model"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the default name of the configuration file.
const ConfigFileName = "pokeflow.yaml"

// Config holds a full run configuration. Flags override file values,
// file values override defaults.
type Config struct {
	Source    model.Source    `yaml:"source"`
	Fetch     model.Fetch     `yaml:"fetch"`
	Normalize model.Normalize `yaml:"normalize"`
	Export    model.Export    `yaml:"export"`
}

// ErrInvalidConfig is returned when config validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")

// Load reads config from path, falling back to ConfigFileName in the
// working directory. A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = ConfigFileName
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded configuration for usable values.
func (c *Config) Validate() error {
	if c.Source.BaseURL == "" {
		return fmt.Errorf("%w: source.base_url must not be empty", ErrInvalidConfig)
	}
	if c.Fetch.RetryCount < 0 {
		return fmt.Errorf("%w: fetch.retry_count must be >= 0", ErrInvalidConfig)
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("%w: fetch.timeout_seconds must be > 0", ErrInvalidConfig)
	}
	if c.Fetch.PageLimit < 0 {
		return fmt.Errorf("%w: fetch.page_limit must be >= 0", ErrInvalidConfig)
	}
	if c.Fetch.Prefetch < 1 {
		return fmt.Errorf("%w: fetch.prefetch must be >= 1", ErrInvalidConfig)
	}
	if c.Source.FromID != 0 || c.Source.ToID != 0 {
		if c.Source.ToID < c.Source.FromID {
			return fmt.Errorf("%w: source.to_id must be >= source.from_id", ErrInvalidConfig)
		}
	}
	return nil
}
