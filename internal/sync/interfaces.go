package sync

import "context"

// TaskService is the capability the engine drives. Implementations own
// their credential handling: Authenticate may refresh, and any later call
// may refresh again. A failed refresh surfaces as an *AuthError.
type TaskService interface {
	// Authenticate loads the stored credential blob and account config.
	Authenticate(ctx context.Context, credentials, config string) error

	// CreateTask returns the external id of the new task.
	CreateTask(ctx context.Context, event Event) (string, error)

	// UpdateTask returns ErrNotFound when the task is gone.
	UpdateTask(ctx context.Context, taskID string, event Event) error

	// DeleteTask returns ErrNotFound when the task is already gone.
	DeleteTask(ctx context.Context, taskID string) error

	// UpdatedCredentials returns the current credential blob and whether
	// it differs from the one passed to Authenticate.
	UpdatedCredentials() (string, bool)
}

// EventSource fetches and parses a calendar feed.
type EventSource interface {
	FetchEvents(ctx context.Context, url string) ([]Event, error)
}

// RecordStore is the persisted sync state.
type RecordStore interface {
	ListRecords(ctx context.Context, calendarID, accountID string) ([]Record, error)
	UpsertRecord(ctx context.Context, rec Record) error
	DeleteRecord(ctx context.Context, calendarID, accountID, eventUID string) error
}

// Store is everything the engine reads and writes.
type Store interface {
	RecordStore

	GetCalendar(ctx context.Context, id string) (Calendar, error)
	ListCalendars(ctx context.Context, username string) ([]Calendar, error)
	GetAccount(ctx context.Context, id string) (Account, error)
	GetAccountByUser(ctx context.Context, username string) (Account, error)
	UpdateCredentials(ctx context.Context, accountID, credentials string) error
	ListTargets(ctx context.Context) ([]Target, error)
}
