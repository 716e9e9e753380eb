package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/teemow/duety/internal/logging"
)

// Validate checks the configuration and returns all problems found.
func (c *Config) Validate() error {
	var errs []error

	if c.Sync.IntervalMinutes <= 0 {
		errs = append(errs, fmt.Errorf("sync.interval_minutes must be positive, got %d", c.Sync.IntervalMinutes))
	}
	if c.Sync.OperationTimeout.Duration <= 0 {
		errs = append(errs, fmt.Errorf("sync.operation_timeout must be positive, got %s", c.Sync.OperationTimeout))
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		errs = append(errs, errors.New("database.path must not be empty"))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr must not be empty"))
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, errors.New("metrics.addr must not be empty when metrics are enabled"))
	}
	if (c.Google.ClientID == "") != (c.Google.ClientSecret == "") {
		errs = append(errs, errors.New("google.client_id and google.client_secret must be set together"))
	}

	switch strings.ToLower(c.Log.Format) {
	case logging.FormatText, logging.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("log.format must be %q or %q, got %q", logging.FormatText, logging.FormatJSON, c.Log.Format))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level))
	}

	return errors.Join(errs...)
}
