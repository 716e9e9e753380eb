package tasks

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	gtasks "google.golang.org/api/tasks/v1"

	"github.com/teemow/duety/internal/sync"
)

// DefaultTaskListID is Google's alias for the user's primary list.
const DefaultTaskListID = "@default"

// AccountConfig is the per-account config blob stored next to the
// credentials.
type AccountConfig struct {
	TaskListID string `json:"taskListId,omitempty"`
}

// parseAccountConfig decodes an account config. An empty blob is the
// zero config.
func parseAccountConfig(blob string) (AccountConfig, error) {
	var cfg AccountConfig
	if strings.TrimSpace(blob) == "" {
		return cfg, nil
	}
	if err := json.Unmarshal([]byte(blob), &cfg); err != nil {
		return AccountConfig{}, fmt.Errorf("malformed account config: %w", err)
	}
	return cfg, nil
}

// taskFromEvent builds the task body for an event. Fields the event lacks
// are sent as null so a patch clears them.
func taskFromEvent(ev sync.Event) *gtasks.Task {
	t := &gtasks.Task{
		Title: ev.Summary,
		Notes: ev.Description,
	}
	if ev.Description == "" {
		t.NullFields = append(t.NullFields, "Notes")
	}
	if ev.Due != nil {
		t.Due = ev.Due.UTC().Format(time.RFC3339)
	} else {
		t.NullFields = append(t.NullFields, "Due")
	}
	return t
}
