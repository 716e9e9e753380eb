package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Event is a single deadline-bearing item taken from a calendar feed.
// Two events refer to the same logical item iff their UIDs are equal.
type Event struct {
	UID         string
	Summary     string
	Description string
	Due         *time.Time
}

// Fingerprint hashes the fields written to a task. Two events with the
// same fingerprint produce identical tasks.
func (e Event) Fingerprint() string {
	h := sha256.New()
	h.Write([]byte(e.Summary))
	h.Write([]byte{0})
	h.Write([]byte(e.Description))
	h.Write([]byte{0})
	if e.Due != nil {
		h.Write([]byte(e.Due.UTC().Format(time.RFC3339)))
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// Record links a calendar event to the task created for it.
// (CalendarID, AccountID, EventUID) is the primary key.
type Record struct {
	CalendarID     string
	AccountID      string
	EventUID       string
	ExternalTaskID string
	// Fingerprint of the event as last written; empty for rows that
	// predate fingerprints, which forces one update.
	Fingerprint  string
	LastSyncedAt time.Time
}

// Target identifies one (calendar, task account) pair.
type Target struct {
	CalendarID string
	AccountID  string
	Username   string
}

// Key returns the lock and log key for the pair.
func (t Target) Key() string {
	return t.CalendarID + "/" + t.AccountID
}

// Calendar is a registered ICS feed owned by a user.
type Calendar struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	URL       string    `json:"url"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Account is a connected task service account.
type Account struct {
	ID          string
	Username    string
	ServiceType ServiceType
	Credentials string
	Config      string
	Enabled     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Stats accumulates the outcome of one or more reconciliation runs.
type Stats struct {
	Created       int      `json:"created"`
	Updated       int      `json:"updated"`
	Deleted       int      `json:"deleted"`
	Errors        int      `json:"errors"`
	ErrorMessages []string `json:"errorMessages"`
}

// NewStats returns empty stats with a non-nil message list so it encodes as [].
func NewStats() *Stats {
	return &Stats{ErrorMessages: []string{}}
}

// Success reports whether no errors were recorded.
func (s *Stats) Success() bool {
	return s.Errors == 0
}

// Fail records one error with a formatted message.
func (s *Stats) Fail(format string, args ...any) {
	s.Errors++
	s.ErrorMessages = append(s.ErrorMessages, fmt.Sprintf(format, args...))
}

// Merge adds other into s.
func (s *Stats) Merge(other *Stats) {
	if other == nil {
		return
	}
	s.Created += other.Created
	s.Updated += other.Updated
	s.Deleted += other.Deleted
	s.Errors += other.Errors
	s.ErrorMessages = append(s.ErrorMessages, other.ErrorMessages...)
}

// Trigger says what started a run. Used for metrics and audit logs only.
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerScheduled Trigger = "scheduled"
	TriggerCLI       Trigger = "cli"
)
