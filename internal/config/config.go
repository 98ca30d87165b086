// Package config loads client settings from defaults, an optional TOML file
// and CASCADE_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/matt0x6f/cascade-core/internal/constants"
	"github.com/matt0x6f/cascade-core/internal/validation"
	"github.com/rs/zerolog"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "CASCADE_"

// Config is the client configuration
type Config struct {
	AppVersion      string        `toml:"app_version" env:"APP_VERSION"`
	DataDir         string        `toml:"data_dir" env:"DATA_DIR"`
	LogLevel        string        `toml:"log_level" env:"LOG_LEVEL"`
	Nickname        string        `toml:"nickname" env:"NICK"`
	MessageBuffer   int           `toml:"message_buffer" env:"MESSAGE_BUFFER"`
	FlushInterval   time.Duration `toml:"flush_interval" env:"FLUSH_INTERVAL"`
	ScrollbackLimit int           `toml:"scrollback_limit" env:"SCROLLBACK_LIMIT"`

	Update        UpdateConfig       `toml:"update" envPrefix:"UPDATE_"`
	Notifications NotificationConfig `toml:"notifications" envPrefix:"NOTIFY_"`
}

// UpdateConfig controls background update checks
type UpdateConfig struct {
	Enabled       bool          `toml:"enabled" env:"ENABLED"`
	CheckInterval time.Duration `toml:"check_interval" env:"CHECK_INTERVAL"`

	// ManifestPath is the release manifest to read; defaults to
	// <data_dir>/latest.json
	ManifestPath string `toml:"manifest_path" env:"MANIFEST_PATH"`
}

// NotificationConfig controls desktop notifications
type NotificationConfig struct {
	Enabled bool `toml:"enabled" env:"ENABLED"`
}

// Default returns the built-in configuration
func Default() *Config {
	dataDir := ".cascade"
	if dir, err := os.UserConfigDir(); err == nil {
		dataDir = filepath.Join(dir, "cascade")
	}
	return &Config{
		AppVersion:      "0.0.0",
		DataDir:         dataDir,
		LogLevel:        "info",
		MessageBuffer:   constants.MessageBufferSize,
		FlushInterval:   constants.MessageFlushInterval,
		ScrollbackLimit: constants.ScrollbackLimit,
		Update: UpdateConfig{
			Enabled:       true,
			CheckInterval: constants.UpdateCheckInterval,
		},
		Notifications: NotificationConfig{Enabled: true},
	}
}

// Load builds the configuration. A missing file at path is not an error;
// an empty path skips the file entirely.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	if c.Nickname != "" {
		if err := validation.ValidateNickname(c.Nickname); err != nil {
			return fmt.Errorf("invalid nickname: %w", err)
		}
	}
	if c.MessageBuffer <= 0 {
		return fmt.Errorf("message_buffer must be positive")
	}
	if c.FlushInterval <= 0 {
		return fmt.Errorf("flush_interval must be positive")
	}
	if c.ScrollbackLimit < 0 {
		return fmt.Errorf("scrollback_limit cannot be negative")
	}
	if c.Update.Enabled && c.Update.CheckInterval < time.Minute {
		return fmt.Errorf("update.check_interval must be at least 1m")
	}
	return nil
}

// DatabasePath is the sqlite database inside DataDir
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "cascade.db")
}

// ManifestFile is the release manifest the updater reads
func (c *Config) ManifestFile() string {
	if c.Update.ManifestPath != "" {
		return c.Update.ManifestPath
	}
	return filepath.Join(c.DataDir, "latest.json")
}
