package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper: point HOME at a fresh directory and clear env overrides
func setupHome(t *testing.T) string {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv(EnvWatchesDSN, "")
	t.Setenv(EnvPlatformsPath, "")
	return tmpDir
}

// Test helper: write ~/.pagewatch/config.yaml
func writeConfig(t *testing.T, home, content string) {
	dir := filepath.Join(home, ".pagewatch")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600))
}

func TestLoadConfigFile_NoFile(t *testing.T) {
	setupHome(t)

	cfg, err := LoadConfigFile()
	require.NoError(t, err)
	assert.Nil(t, cfg, "Should return nil when config file doesn't exist")
}

func TestLoadConfigFile_ValidConfig(t *testing.T) {
	home := setupHome(t)
	writeConfig(t, home, `storage:
  watches:
    dsn: "/data/watches.db"
platforms:
  path: "/data/platforms.yaml"
fetch:
  timeout: 10s
  user_agent: "custom/1.0"
  rate_per_second: 2.5
  burst: 3
  cloudflare_bypass: true
  cache_ttl: 1m
  browser:
    enabled: true
log:
  level: debug
  format: json
`)

	cfg, err := LoadConfigFile()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "/data/watches.db", cfg.Storage.Watches.DSN)
	assert.Equal(t, "/data/platforms.yaml", cfg.Platforms.Path)
	assert.Equal(t, 10*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, "custom/1.0", cfg.Fetch.UserAgent)
	assert.InDelta(t, 2.5, cfg.Fetch.RatePerSecond, 1e-9)
	assert.Equal(t, 3, cfg.Fetch.Burst)
	assert.True(t, cfg.Fetch.CloudflareBypass)
	assert.Equal(t, time.Minute, cfg.Fetch.CacheTTL)
	assert.True(t, cfg.Fetch.Browser.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadConfigFile_InvalidYAML(t *testing.T) {
	home := setupHome(t)
	writeConfig(t, home, `storage:
  watches:
    - this is invalid yaml because watches should be an object not a list
`)

	cfg, err := LoadConfigFile()
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

// TestLoad_Defaults verifies the built-in values when no file exists
func TestLoad_Defaults(t *testing.T) {
	home := setupHome(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".pagewatch", "watches.db"), cfg.Storage.Watches.DSN)
	assert.Equal(t, filepath.Join(home, ".pagewatch", "platforms.yaml"), cfg.Platforms.Path)
	assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.Fetch.CacheTTL)
	assert.False(t, cfg.Fetch.Browser.Enabled)
	assert.Equal(t, "info", cfg.Log.Level)
}

// TestLoad_PartialConfigMergesDefaults verifies unspecified fields keep their
// defaults
func TestLoad_PartialConfigMergesDefaults(t *testing.T) {
	home := setupHome(t)
	writeConfig(t, home, `fetch:
  timeout: 5s
log:
  level: warn
`)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format, "unset format keeps default")
	assert.Equal(t, 5*time.Minute, cfg.Fetch.CacheTTL, "unset cache TTL keeps default")
	assert.Equal(t, filepath.Join(home, ".pagewatch", "watches.db"), cfg.Storage.Watches.DSN)
}

// TestLoad_EnvironmentOverrides verifies env vars beat the config file
func TestLoad_EnvironmentOverrides(t *testing.T) {
	home := setupHome(t)
	writeConfig(t, home, `storage:
  watches:
    dsn: "/from/file.db"
`)
	t.Setenv(EnvWatchesDSN, "/from/env.db")
	t.Setenv(EnvPlatformsPath, "/from/env.yaml")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/from/env.db", cfg.Storage.Watches.DSN)
	assert.Equal(t, "/from/env.yaml", cfg.Platforms.Path)
}

// TestLoad_InvalidFile verifies parse errors surface
func TestLoad_InvalidFile(t *testing.T) {
	home := setupHome(t)
	writeConfig(t, home, "log: [unterminated")

	_, err := Load()
	assert.Error(t, err)
}

// TestWriteDefaultConfigFile verifies creation and the force flag
func TestWriteDefaultConfigFile(t *testing.T) {
	home := setupHome(t)

	created, err := WriteDefaultConfigFile(false)
	require.NoError(t, err)
	assert.True(t, created)

	path := filepath.Join(home, ".pagewatch", "config.yaml")
	assert.FileExists(t, path)

	created, err = WriteDefaultConfigFile(false)
	require.NoError(t, err)
	assert.False(t, created, "existing file is kept")

	created, err = WriteDefaultConfigFile(true)
	require.NoError(t, err)
	assert.True(t, created)

	cfg, err := LoadConfigFile()
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, Default(), *cfg, "written defaults read back unchanged")
}
