package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading from file and environment.
type Loader struct {
	configPath string
}

// NewLoader creates a config loader. An empty path searches the default
// locations.
func NewLoader(configPath string) *Loader {
	return &Loader{configPath: configPath}
}

// Load reads configuration from file and environment, layered over defaults.
// Environment variables use the SAVESYNC_ prefix with underscores, e.g.
// SAVESYNC_API_BASE_URL.
func (l *Loader) Load() (*Config, error) {
	v := viper.New()

	cfg := DefaultConfig()
	setDefaults(v, cfg)

	v.SetEnvPrefix("SAVESYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if l.configPath != "" {
		v.SetConfigFile(l.configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("savesync")
		v.SetConfigType("json")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "savesync"))
			v.AddConfigPath(filepath.Join(home, ".savesync"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
			// No config file is fine; defaults plus env apply.
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers defaults so partial config files and env overrides
// merge cleanly.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("api.base_url", cfg.API.BaseURL)
	v.SetDefault("api.timeout", cfg.API.Timeout)
	v.SetDefault("api.max_retries", cfg.API.MaxRetries)
	v.SetDefault("api.user_agent", cfg.API.UserAgent)
	v.SetDefault("api.backend", cfg.API.Backend)
	v.SetDefault("api.s3_quota_bytes", cfg.API.S3QuotaBytes)
	v.SetDefault("auth.token_file", cfg.Auth.TokenFile)
	v.SetDefault("storage.data_dir", cfg.Storage.DataDir)
	v.SetDefault("storage.driver", cfg.Storage.Driver)
	v.SetDefault("storage.max_payload_size", cfg.Storage.MaxPayloadSize)
	v.SetDefault("sync.slot_count", cfg.Sync.SlotCount)
	v.SetDefault("sync.max_concurrent", cfg.Sync.MaxConcurrent)
	v.SetDefault("sync.clock_skew_tolerance", cfg.Sync.ClockSkewTolerance)
	v.SetDefault("sync.quota_cache_ttl", cfg.Sync.QuotaCacheTTL)
	v.SetDefault("sync.event_buffer", cfg.Sync.EventBuffer)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.file", cfg.Log.File)
}
