package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// API configuration for the cloud save service.
	API APIConfig `json:"api" mapstructure:"api"`

	// Authentication configuration.
	Auth AuthConfig `json:"auth" mapstructure:"auth"`

	// Local storage paths.
	Storage StorageConfig `json:"storage" mapstructure:"storage"`

	// Sync behavior.
	Sync SyncConfig `json:"sync" mapstructure:"sync"`

	// Logging.
	Log LogConfig `json:"log" mapstructure:"log"`
}

// APIConfig for the remote object store.
type APIConfig struct {
	BaseURL    string        `json:"base_url" mapstructure:"base_url"`
	Timeout    time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxRetries int           `json:"max_retries" mapstructure:"max_retries"`
	UserAgent  string        `json:"user_agent" mapstructure:"user_agent"`

	// S3 backend settings; used when Backend is "s3".
	Backend  string `json:"backend" mapstructure:"backend"` // "http" or "s3"
	S3Bucket string `json:"s3_bucket,omitempty" mapstructure:"s3_bucket"`
	S3Prefix string `json:"s3_prefix,omitempty" mapstructure:"s3_prefix"`

	// S3QuotaBytes is the enforced ceiling when the backend cannot report
	// one itself.
	S3QuotaBytes int64 `json:"s3_quota_bytes,omitempty" mapstructure:"s3_quota_bytes"`
}

// AuthConfig for authentication settings.
type AuthConfig struct {
	Email     string `json:"email,omitempty" mapstructure:"email"`
	TokenFile string `json:"token_file" mapstructure:"token_file"`
}

// StorageConfig for local slot storage.
type StorageConfig struct {
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// Driver selects the local slot store: "file" or "sqlite".
	Driver string `json:"driver" mapstructure:"driver"`

	MaxPayloadSize int64 `json:"max_payload_size" mapstructure:"max_payload_size"`
}

// SyncConfig for synchronization behavior.
type SyncConfig struct {
	// SlotCount fixes the slot space: slots 0..SlotCount-1.
	SlotCount int `json:"slot_count" mapstructure:"slot_count"`

	// MaxConcurrent bounds the per-slot fan-out of batch operations.
	MaxConcurrent int `json:"max_concurrent" mapstructure:"max_concurrent"`

	// ClockSkewTolerance is the band within which divergent timestamps are
	// surfaced as a conflict instead of trusting last-write-wins.
	ClockSkewTolerance time.Duration `json:"clock_skew_tolerance" mapstructure:"clock_skew_tolerance"`

	// QuotaCacheTTL bounds how long a quota reading is reused before the
	// remote store is asked again.
	QuotaCacheTTL time.Duration `json:"quota_cache_ttl" mapstructure:"quota_cache_ttl"`

	// EventBuffer caps the progress event channel; oldest events are
	// dropped on overflow.
	EventBuffer int `json:"event_buffer" mapstructure:"event_buffer"`
}

// LogConfig for logging behavior.
type LogConfig struct {
	Level  string `json:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `json:"format" mapstructure:"format"` // text, json
	File   string `json:"file" mapstructure:"file"`     // empty = stderr
}

// DefaultConfig returns config with sensible defaults.
func DefaultConfig() *Config {
	dataDir := ".savesync"

	return &Config{
		API: APIConfig{
			BaseURL:    "https://saves.emberfall-game.com",
			Timeout:    30 * time.Second,
			MaxRetries: 3,
			UserAgent:  "savesync-go",
			Backend:    "http",
		},
		Auth: AuthConfig{
			TokenFile: filepath.Join(dataDir, "token.json"),
		},
		Storage: StorageConfig{
			DataDir:        dataDir,
			Driver:         "file",
			MaxPayloadSize: 16 * 1024 * 1024, // 16MB per save
		},
		Sync: SyncConfig{
			SlotCount:          8,
			MaxConcurrent:      3,
			ClockSkewTolerance: 5 * time.Second,
			QuotaCacheTTL:      30 * time.Second,
			EventBuffer:        64,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.API.Backend != "http" && c.API.Backend != "s3" {
		return fmt.Errorf("invalid api.backend: %s", c.API.Backend)
	}

	if c.API.Backend == "http" && c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}

	if c.API.Backend == "s3" && c.API.S3Bucket == "" {
		return errors.New("api.s3_bucket is required for the s3 backend")
	}

	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be positive")
	}

	if c.Storage.Driver != "file" && c.Storage.Driver != "sqlite" {
		return fmt.Errorf("invalid storage.driver: %s", c.Storage.Driver)
	}

	if c.Storage.MaxPayloadSize <= 0 {
		return errors.New("storage.max_payload_size must be positive")
	}

	if c.Sync.SlotCount <= 0 {
		return errors.New("sync.slot_count must be positive")
	}

	if c.Sync.MaxConcurrent <= 0 {
		return errors.New("sync.max_concurrent must be positive")
	}

	if c.Sync.ClockSkewTolerance < 0 {
		return errors.New("sync.clock_skew_tolerance cannot be negative")
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}

	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Storage.DataDir}

	if c.Auth.TokenFile != "" {
		dirs = append(dirs, filepath.Dir(c.Auth.TokenFile))
	}
	if c.Log.File != "" {
		dirs = append(dirs, filepath.Dir(c.Log.File))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}
