package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Defaults.
const (
	DefaultIntervalMinutes  = 60
	DefaultOperationTimeout = 30 * time.Second
	DefaultDBPath           = "duety.db"
	DefaultListenAddr       = ":8080"
	DefaultMetricsAddr      = ":9090"
	DefaultTaskListID       = "@default"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
)

// Config is the complete service configuration.
type Config struct {
	Sync     SyncConfig     `toml:"sync"`
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	Google   GoogleConfig   `toml:"google"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`
}

// SyncConfig controls polling and reconciliation.
type SyncConfig struct {
	IntervalMinutes  int      `toml:"interval_minutes"`
	Enabled          bool     `toml:"enabled"`
	OperationTimeout Duration `toml:"operation_timeout"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr string `toml:"addr"`
	// BaseURL is the externally visible URL, used to build the OAuth
	// redirect URL. Derived from the request when empty.
	BaseURL string `toml:"base_url"`
}

// GoogleConfig holds the OAuth client and the default task list.
type GoogleConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	TaskListID   string `toml:"task_list_id"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig controls the separate Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// Duration is a time.Duration written as a string such as "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Sync: SyncConfig{
			IntervalMinutes:  DefaultIntervalMinutes,
			OperationTimeout: Duration{DefaultOperationTimeout},
		},
		Database: DatabaseConfig{Path: DefaultDBPath},
		Server:   ServerConfig{Addr: DefaultListenAddr},
		Google:   GoogleConfig{TaskListID: DefaultTaskListID},
		Log:      LogConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
		Metrics:  MetricsConfig{Enabled: true, Addr: DefaultMetricsAddr},
	}
}

// Load resolves defaults, the TOML file at path (skipped when path is
// empty) and the environment, then validates the result. A missing file
// at an explicit path is an error. Unknown keys in the file are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("config file %s does not exist", path)
			}
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config file %s: unknown key %q", path, undecoded[0].String())
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// GoogleConfigured reports whether OAuth client credentials are set.
func (c *Config) GoogleConfigured() bool {
	return c.Google.ClientID != "" && c.Google.ClientSecret != ""
}
