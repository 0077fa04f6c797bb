package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Environment variables that take precedence over the config file.
const (
	EnvWatchesDSN    = "PAGEWATCH_DB"
	EnvPlatformsPath = "PAGEWATCH_PLATFORMS"
)

// StorageConfig represents storage configuration from config file.
type StorageConfig struct {
	Watches struct {
		DSN string `yaml:"dsn"`
	} `yaml:"watches"`
}

// PlatformsConfig points at the user's platform knowledge base.
type PlatformsConfig struct {
	Path string `yaml:"path"`
}

// BrowserConfig controls the headless browser fetcher.
type BrowserConfig struct {
	Enabled bool          `yaml:"enabled"`
	Settle  time.Duration `yaml:"settle"`
}

// FetchConfig controls how pages are retrieved.
type FetchConfig struct {
	Timeout          time.Duration `yaml:"timeout"`
	UserAgent        string        `yaml:"user_agent"`
	RatePerSecond    float64       `yaml:"rate_per_second"`
	Burst            int           `yaml:"burst"`
	CloudflareBypass bool          `yaml:"cloudflare_bypass"`
	CacheTTL         time.Duration `yaml:"cache_ttl"`
	Browser          BrowserConfig `yaml:"browser"`
}

// LogConfig controls logrus output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// FileConfig represents the structure of ~/.pagewatch/config.yaml.
type FileConfig struct {
	Storage   StorageConfig   `yaml:"storage"`
	Platforms PlatformsConfig `yaml:"platforms"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Log       LogConfig       `yaml:"log"`
}

// Dir returns ~/.pagewatch.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".pagewatch"), nil
}

// ConfigFilePath returns the path of the config file.
func ConfigFilePath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Default returns the built-in configuration. Paths live under
// ~/.pagewatch when the home directory is known.
func Default() FileConfig {
	var cfg FileConfig

	cfg.Storage.Watches.DSN = "watches.db"
	cfg.Platforms.Path = "platforms.yaml"
	if dir, err := Dir(); err == nil {
		cfg.Storage.Watches.DSN = filepath.Join(dir, "watches.db")
		cfg.Platforms.Path = filepath.Join(dir, "platforms.yaml")
	}

	cfg.Fetch = FetchConfig{
		Timeout:       30 * time.Second,
		RatePerSecond: 1,
		Burst:         1,
		CacheTTL:      5 * time.Minute,
		Browser: BrowserConfig{
			Settle: 2 * time.Second,
		},
	}
	cfg.Log = LogConfig{Level: "info", Format: "text"}

	return cfg
}

// LoadConfigFile loads configuration from ~/.pagewatch/config.yaml. Returns
// nil if the file doesn't exist (not an error). Returns error if the file
// exists but cannot be parsed.
func LoadConfigFile() (*FileConfig, error) {
	configPath, err := ConfigFilePath()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// Load resolves the effective configuration with precedence:
// 1. Environment variables (highest priority)
// 2. Configuration file (~/.pagewatch/config.yaml)
// 3. Default values (lowest priority)
func Load() (FileConfig, error) {
	cfg := Default()

	file, err := LoadConfigFile()
	if err != nil {
		return cfg, err
	}
	if file != nil {
		if err := mergo.Merge(&cfg, *file, mergo.WithOverride); err != nil {
			return cfg, fmt.Errorf("failed to merge config file: %w", err)
		}
	}

	if val := os.Getenv(EnvWatchesDSN); val != "" {
		cfg.Storage.Watches.DSN = val
	}
	if val := os.Getenv(EnvPlatformsPath); val != "" {
		cfg.Platforms.Path = val
	}

	return cfg, nil
}

// WriteDefaultConfigFile writes the default configuration to
// ~/.pagewatch/config.yaml. An existing file is left alone unless force is
// set. Reports whether a file was written.
func WriteDefaultConfigFile(force bool) (bool, error) {
	configPath, err := ConfigFilePath()
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(configPath); err == nil && !force {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o700); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return false, fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return false, fmt.Errorf("failed to write config file: %w", err)
	}

	return true, nil
}
