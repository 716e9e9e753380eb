package instrumentation

import (
	"context"
	"log/slog"
	"time"
)

// SyncRun captures the outcome of one reconciliation run for audit logging.
type SyncRun struct {
	Trigger    string
	Username   string
	CalendarID string
	AccountID  string

	Created int
	Updated int
	Deleted int
	Errors  int

	// ErrorMessages are only logged when IncludeErrors is configured.
	ErrorMessages []string

	StartTime time.Time
	Duration  time.Duration

	TraceID string
}

// Status returns "success" or "error" depending on the error count.
func (r *SyncRun) Status() string {
	if r.Errors == 0 {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns slog attributes for the run.
func (r *SyncRun) LogAttrs(includeErrors bool) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("trigger", r.Trigger),
		slog.String("user", r.Username),
		slog.String("calendar_id", r.CalendarID),
		slog.Duration("duration", r.Duration),
		slog.Int("created", r.Created),
		slog.Int("updated", r.Updated),
		slog.Int("deleted", r.Deleted),
		slog.Int("errors", r.Errors),
	}

	if r.AccountID != "" {
		attrs = append(attrs, slog.String("account_id", r.AccountID))
	}
	if r.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", r.TraceID))
	}
	if includeErrors && len(r.ErrorMessages) > 0 {
		attrs = append(attrs, slog.Any("error_messages", r.ErrorMessages))
	}

	return attrs
}

// SyncAuditor writes one structured line per reconciliation run.
type SyncAuditor struct {
	logger        *slog.Logger
	includeErrors bool
	enabled       bool
}

// NewSyncAuditor creates an auditor with the given logger and configuration.
func NewSyncAuditor(logger *slog.Logger, config AuditLoggingConfig) *SyncAuditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncAuditor{
		logger:        logger,
		includeErrors: config.IncludeErrors,
		enabled:       config.Enabled,
	}
}

// LogSyncRun logs the run. Failed runs are logged at warn level.
// A nil auditor is a no-op.
func (a *SyncAuditor) LogSyncRun(ctx context.Context, run *SyncRun) {
	if a == nil || !a.enabled || run == nil {
		return
	}
	if run.TraceID == "" {
		run.TraceID = GetTraceID(ctx)
	}

	level := slog.LevelInfo
	msg := "sync_completed"
	if run.Errors > 0 {
		level = slog.LevelWarn
		msg = "sync_failed"
	}

	a.logger.LogAttrs(ctx, level, msg, run.LogAttrs(a.includeErrors)...)
}
