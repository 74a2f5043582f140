package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ConfigFileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingDefaultFileUsesDefaults(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(wd) })

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source.BaseURL != "https://pokeapi.co/api/v2" {
		t.Errorf("BaseURL = %q, want default", cfg.Source.BaseURL)
	}
	if cfg.Fetch.RetryCount != 3 {
		t.Errorf("RetryCount = %d, want 3", cfg.Fetch.RetryCount)
	}
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load() with missing explicit path should fail")
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
source:
  base_url: http://localhost:9999
  endpoint: items
fetch:
  page_limit: 5
normalize:
  expand_lists: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source.BaseURL != "http://localhost:9999" {
		t.Errorf("BaseURL = %q", cfg.Source.BaseURL)
	}
	if cfg.Fetch.PageLimit != 5 {
		t.Errorf("PageLimit = %d, want 5", cfg.Fetch.PageLimit)
	}
	if cfg.Fetch.RetryCount != 3 {
		t.Errorf("RetryCount = %d, want default 3 to survive partial file", cfg.Fetch.RetryCount)
	}
	if !cfg.Normalize.ExpandLists {
		t.Error("ExpandLists should be true")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "source: [notamap")
	if _, err := Load(path); err == nil {
		t.Fatal("Load() should fail on malformed YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"empty base url", func(c *Config) { c.Source.BaseURL = "" }, true},
		{"negative retries", func(c *Config) { c.Fetch.RetryCount = -1 }, true},
		{"zero timeout", func(c *Config) { c.Fetch.TimeoutSeconds = 0 }, true},
		{"negative page limit", func(c *Config) { c.Fetch.PageLimit = -2 }, true},
		{"zero prefetch", func(c *Config) { c.Fetch.Prefetch = 0 }, true},
		{"inverted id range", func(c *Config) { c.Source.FromID = 10; c.Source.ToID = 2 }, true},
		{"valid id range", func(c *Config) { c.Source.FromID = 1; c.Source.ToID = 50 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
				}
			} else if err != nil {
				t.Errorf("Validate() error = %v", err)
			}
		})
	}
}
