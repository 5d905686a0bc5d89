package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.API.Backend = "ftp" }},
		{"missing base url", func(c *Config) { c.API.BaseURL = "" }},
		{"s3 without bucket", func(c *Config) { c.API.Backend = "s3" }},
		{"zero timeout", func(c *Config) { c.API.Timeout = 0 }},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "redis" }},
		{"zero payload limit", func(c *Config) { c.Storage.MaxPayloadSize = 0 }},
		{"zero slots", func(c *Config) { c.Sync.SlotCount = 0 }},
		{"zero concurrency", func(c *Config) { c.Sync.MaxConcurrent = 0 }},
		{"negative tolerance", func(c *Config) { c.Sync.ClockSkewTolerance = -time.Second }},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateS3WithBucket(t *testing.T) {
	cfg := DefaultConfig()
	cfg.API.Backend = "s3"
	cfg.API.S3Bucket = "game-saves"
	assert.NoError(t, cfg.Validate())
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoaderDefaultsWithoutFile(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := NewLoader("").Load()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Sync.SlotCount)
	assert.Equal(t, 3, cfg.Sync.MaxConcurrent)
	assert.Equal(t, 5*time.Second, cfg.Sync.ClockSkewTolerance)
	assert.Equal(t, "file", cfg.Storage.Driver)
	assert.Equal(t, "http", cfg.API.Backend)
}

func TestLoaderReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "savesync.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"api": {"base_url": "https://staging.example.com"},
		"sync": {"slot_count": 12, "max_concurrent": 5},
		"storage": {"driver": "sqlite"}
	}`), 0644))

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "https://staging.example.com", cfg.API.BaseURL)
	assert.Equal(t, 12, cfg.Sync.SlotCount)
	assert.Equal(t, 5, cfg.Sync.MaxConcurrent)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)

	// Untouched keys keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
}

func TestLoaderEnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SAVESYNC_SYNC_SLOT_COUNT", "4")
	t.Setenv("SAVESYNC_LOG_LEVEL", "debug")

	cfg, err := NewLoader("").Load()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Sync.SlotCount)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoaderRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "savesync.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"log": {"level": "noisy"}}`), 0644))

	_, err := NewLoader(path).Load()
	assert.Error(t, err)
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Storage.DataDir = filepath.Join(dir, "data")
	cfg.Auth.TokenFile = filepath.Join(dir, "auth", "token.json")
	cfg.Log.File = filepath.Join(dir, "logs", "savesync.log")

	require.NoError(t, cfg.EnsureDirectories())

	for _, p := range []string{
		cfg.Storage.DataDir,
		filepath.Dir(cfg.Auth.TokenFile),
		filepath.Dir(cfg.Log.File),
	} {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
