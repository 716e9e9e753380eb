package instrumentation

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to decode log line %q: %v", buf.String(), err)
	}
	return entry
}

func TestSyncAuditor_Success(t *testing.T) {
	var buf bytes.Buffer
	auditor := NewSyncAuditor(slog.New(slog.NewJSONHandler(&buf, nil)), AuditLoggingConfig{Enabled: true})

	auditor.LogSyncRun(context.Background(), &SyncRun{
		Trigger:    "scheduled",
		Username:   "alice",
		CalendarID: "cal-1",
		AccountID:  "acct-1",
		Created:    2,
		Updated:    1,
		Duration:   time.Second,
	})

	entry := decodeLine(t, &buf)
	if entry["msg"] != "sync_completed" {
		t.Errorf("msg = %v, want sync_completed", entry["msg"])
	}
	if entry["level"] != "INFO" {
		t.Errorf("level = %v, want INFO", entry["level"])
	}
	if entry["created"] != float64(2) || entry["account_id"] != "acct-1" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestSyncAuditor_FailureHidesMessagesByDefault(t *testing.T) {
	var buf bytes.Buffer
	auditor := NewSyncAuditor(slog.New(slog.NewJSONHandler(&buf, nil)), AuditLoggingConfig{Enabled: true})

	run := &SyncRun{Trigger: "manual", Username: "bob", Errors: 1, ErrorMessages: []string{"Failed to fetch calendar: boom"}}
	if run.Status() != StatusError {
		t.Errorf("Status() = %q, want error", run.Status())
	}
	auditor.LogSyncRun(context.Background(), run)

	entry := decodeLine(t, &buf)
	if entry["msg"] != "sync_failed" || entry["level"] != "WARN" {
		t.Errorf("unexpected entry: %v", entry)
	}
	if _, ok := entry["error_messages"]; ok {
		t.Error("error messages should not be logged unless configured")
	}
}

func TestSyncAuditor_IncludeErrors(t *testing.T) {
	var buf bytes.Buffer
	auditor := NewSyncAuditor(slog.New(slog.NewJSONHandler(&buf, nil)), AuditLoggingConfig{Enabled: true, IncludeErrors: true})

	auditor.LogSyncRun(context.Background(), &SyncRun{Errors: 1, ErrorMessages: []string{"x"}})

	entry := decodeLine(t, &buf)
	if _, ok := entry["error_messages"]; !ok {
		t.Error("expected error messages in entry")
	}
}

func TestSyncAuditor_DisabledAndNil(t *testing.T) {
	var buf bytes.Buffer
	auditor := NewSyncAuditor(slog.New(slog.NewJSONHandler(&buf, nil)), AuditLoggingConfig{Enabled: false})
	auditor.LogSyncRun(context.Background(), &SyncRun{})
	if buf.Len() != 0 {
		t.Errorf("expected no output when disabled, got %q", buf.String())
	}

	var nilAuditor *SyncAuditor
	nilAuditor.LogSyncRun(context.Background(), &SyncRun{})
}
