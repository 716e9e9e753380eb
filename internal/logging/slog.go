package logging

import (
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
)

// Common log attribute keys for consistent naming across the codebase.
const (
	KeyOperation = "operation"
	KeyService   = "service"
	KeyUser      = "user"
	KeyCalendar  = "calendar_id"
	KeyAccount   = "account_id"
	KeyEventUID  = "event_uid"
	KeyTrigger   = "trigger"
	KeyDuration  = "duration"
	KeyStatus    = "status"
	KeyError     = "error"
)

// Format names accepted by New.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// New builds a logger writing to w. level is one of debug, info, warn, error;
// format is text or json.
func New(level, format string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case FormatText, "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q, must be text or json", format)
	}
}

// WithOperation returns a logger with the operation attribute set.
func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(slog.String(KeyOperation, operation))
}

// WithService returns a logger with the service attribute set.
func WithService(logger *slog.Logger, service string) *slog.Logger {
	return logger.With(slog.String(KeyService, service))
}

// WithTarget returns a logger scoped to one calendar and account pair.
func WithTarget(logger *slog.Logger, username, calendarID, accountID string) *slog.Logger {
	return logger.With(
		slog.String(KeyUser, username),
		slog.String(KeyCalendar, calendarID),
		slog.String(KeyAccount, accountID),
	)
}

// Operation returns a slog attribute for the operation name.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// User returns a slog attribute for the username.
func User(username string) slog.Attr {
	return slog.String(KeyUser, username)
}

// EventUID returns a slog attribute for a calendar event uid.
func EventUID(uid string) slog.Attr {
	return slog.String(KeyEventUID, uid)
}

// Trigger returns a slog attribute for what started a run.
func Trigger(trigger string) slog.Attr {
	return slog.String(KeyTrigger, trigger)
}

// Status returns a slog attribute for the status.
func Status(status string) slog.Attr {
	return slog.String(KeyStatus, status)
}

// Err returns a slog attribute for an error.
// If err is nil, returns an empty Group attribute that will be omitted from output.
//
// Usage:
//
//	logger.Info("operation", logging.Err(err))  // Safe even if err is nil
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// SanitizeToken returns a masked version of a token for logging.
// It returns a length indicator without exposing any token content.
func SanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[token:%d chars]", len(token))
}

// RedactURL strips the query string, fragment and user info from a feed URL.
// Private calendar feeds commonly carry a secret token in the query.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
