// Package logging provides structured logging utilities for duety.
//
// It builds the process logger from configuration, keeps attribute names
// consistent across packages, and adapts slog to the cron scheduler's
// logger interface.
//
// # Usage Patterns
//
//	logger := logging.WithTarget(slog.Default(), "alice", calID, acctID)
//	logger.Info("task created", logging.EventUID(uid))
//
// # Security Considerations
//
//   - Tokens are never logged directly; use SanitizeToken
//   - Feed URLs are logged through RedactURL since they often embed secrets
package logging
