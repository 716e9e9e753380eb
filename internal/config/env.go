package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variable names.
const (
	EnvConfig             = "DUETY_CONFIG"
	EnvSyncInterval       = "SYNC_INTERVAL_MINUTES"
	EnvSyncEnabled        = "SYNC_POLLING_ENABLED"
	EnvOperationTimeout   = "SYNC_OPERATION_TIMEOUT"
	EnvDBPath             = "DB_PATH"
	EnvListenAddr         = "LISTEN_ADDR"
	EnvBaseURL            = "BASE_URL"
	EnvGoogleClientID     = "GOOGLE_CLIENT_ID"
	EnvGoogleClientSecret = "GOOGLE_CLIENT_SECRET"
	EnvGoogleTaskListID   = "GOOGLE_TASK_LIST_ID"
	EnvLogLevel           = "LOG_LEVEL"
	EnvLogFormat          = "LOG_FORMAT"
	EnvMetricsEnabled     = "METRICS_ENABLED"
	EnvMetricsAddr        = "METRICS_ADDR"
)

// applyEnv overrides cfg with any set environment variables.
func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv(EnvSyncInterval); ok {
		cfg.Sync.IntervalMinutes = parseInterval(v)
	}
	if v, ok := os.LookupEnv(EnvSyncEnabled); ok {
		// Only the exact value "true" enables polling.
		cfg.Sync.Enabled = v == "true"
	}
	if v, ok := os.LookupEnv(EnvOperationTimeout); ok {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Sync.OperationTimeout = Duration{d}
		}
	}

	setString(&cfg.Database.Path, EnvDBPath)
	setString(&cfg.Server.Addr, EnvListenAddr)
	setString(&cfg.Server.BaseURL, EnvBaseURL)
	setString(&cfg.Google.ClientID, EnvGoogleClientID)
	setString(&cfg.Google.ClientSecret, EnvGoogleClientSecret)
	setString(&cfg.Google.TaskListID, EnvGoogleTaskListID)
	setString(&cfg.Log.Level, EnvLogLevel)
	setString(&cfg.Log.Format, EnvLogFormat)
	setString(&cfg.Metrics.Addr, EnvMetricsAddr)

	if v, ok := os.LookupEnv(EnvMetricsEnabled); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
}

// parseInterval returns the default for non-numeric or non-positive values.
func parseInterval(v string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return DefaultIntervalMinutes
	}
	return n
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
