package logging

import (
	"log/slog"
)

// CronLogger adapts an slog.Logger to the cron.Logger interface
// (Info(msg, keysAndValues...) and Error(err, msg, keysAndValues...)).
// cron's own Info output is chatty, so it is logged at debug level.
type CronLogger struct {
	logger *slog.Logger
}

// NewCronLogger creates a CronLogger. If logger is nil, slog.Default() is used.
func NewCronLogger(logger *slog.Logger) *CronLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &CronLogger{logger: logger}
}

// Info logs routine scheduler messages at debug level.
func (c *CronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.logger.Debug(msg, keysAndValues...)
}

// Error logs scheduler errors, including recovered job panics.
func (c *CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	args := make([]interface{}, 0, len(keysAndValues)+1)
	args = append(args, Err(err))
	args = append(args, keysAndValues...)
	c.logger.Error(msg, args...)
}

// Logger returns the underlying slog.Logger.
func (c *CronLogger) Logger() *slog.Logger {
	return c.logger
}
