// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Env variable names read at startup. Keys never live in the config file so
// a committed config cannot leak credentials.
const (
	EnvSpiderAPIKey = "SPIDER_API_KEY"
	EnvGeminiAPIKey = "GEMINI_API_KEY"
	EnvDatabaseURL  = "DATABASE_URL"
)

// Config represents the CLI configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or must be provided via CLI flags.
type Config struct {
	// Paths
	Input   string `json:"input,omitempty"`    // Path to the job queries CSV file
	BaseDir string `json:"base_dir,omitempty"` // Directory holding the run directories
	RunUID  string `json:"run_uid,omitempty"`  // Existing run to resume; empty starts a new run

	// Limits
	SerpLimit     int `json:"serp_limit,omitempty"`     // SERP results requested per query
	PerLabel      int `json:"per_label,omitempty"`      // Scrape candidates kept per (job, label) group
	UnknownQuota  int `json:"unknown_quota,omitempty"`  // Unknown-domain candidates kept per job
	ScrapeWorkers int `json:"scrape_workers,omitempty"` // Parallel scrape fetches

	// Behavior
	UseBrowser  bool   `json:"use_browser,omitempty"` // Use headless browser for SPA sites
	Verbose     bool   `json:"verbose,omitempty"`     // Print detailed debug information
	SearchURL   string `json:"search_url,omitempty"`  // SERP provider endpoint override
	RemotiveURL string `json:"remotive_url,omitempty"` // Job board endpoint override

	// Credentials, from environment only
	SpiderAPIKey string `json:"-"`
	GeminiAPIKey string `json:"-"`
	DatabaseURL  string `json:"-"`
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	cfg.loadEnv()
	return &cfg, nil
}

// FromEnv returns a Config populated from environment variables only, for
// invocations that pass everything else as flags.
func FromEnv() *Config {
	var cfg Config
	cfg.loadEnv()
	return &cfg
}

func (c *Config) loadEnv() {
	if c.SpiderAPIKey == "" {
		c.SpiderAPIKey = os.Getenv(EnvSpiderAPIKey)
	}
	if c.GeminiAPIKey == "" {
		c.GeminiAPIKey = os.Getenv(EnvGeminiAPIKey)
	}
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv(EnvDatabaseURL)
	}
}

// Validate checks that the configuration has valid values.
// Note: This doesn't check for required fields since those are handled
// by CLI flag validation after merging.
func (c *Config) Validate() error {
	if c.SerpLimit < 0 {
		return fmt.Errorf("config error: 'serp_limit' must be non-negative")
	}
	if c.PerLabel < 0 {
		return fmt.Errorf("config error: 'per_label' must be non-negative")
	}
	if c.UnknownQuota < 0 {
		return fmt.Errorf("config error: 'unknown_quota' must be non-negative")
	}
	if c.ScrapeWorkers < 0 {
		return fmt.Errorf("config error: 'scrape_workers' must be non-negative")
	}

	if c.Input != "" {
		if _, err := os.Stat(c.Input); os.IsNotExist(err) {
			return fmt.Errorf("config error: input file not found: %s", c.Input)
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.Input == "" {
		result.Input = defaults.Input
	}
	if result.BaseDir == "" {
		result.BaseDir = defaults.BaseDir
	}
	if result.RunUID == "" {
		result.RunUID = defaults.RunUID
	}
	if result.SearchURL == "" {
		result.SearchURL = defaults.SearchURL
	}
	if result.RemotiveURL == "" {
		result.RemotiveURL = defaults.RemotiveURL
	}
	if result.SpiderAPIKey == "" {
		result.SpiderAPIKey = defaults.SpiderAPIKey
	}
	if result.GeminiAPIKey == "" {
		result.GeminiAPIKey = defaults.GeminiAPIKey
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}

	// Int fields: use default if zero
	if result.SerpLimit == 0 {
		result.SerpLimit = defaults.SerpLimit
	}
	if result.PerLabel == 0 {
		result.PerLabel = defaults.PerLabel
	}
	if result.UnknownQuota == 0 {
		result.UnknownQuota = defaults.UnknownQuota
	}
	if result.ScrapeWorkers == 0 {
		result.ScrapeWorkers = defaults.ScrapeWorkers
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}
