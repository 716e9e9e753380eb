package sync

import (
	"context"
	"errors"
	"log/slog"
	stdsync "sync"
	"time"

	"github.com/teemow/duety/internal/instrumentation"
	"github.com/teemow/duety/internal/logging"
)

// Options configures an Engine. Zero values are usable.
type Options struct {
	OperationTimeout time.Duration
	Logger           *slog.Logger
	Metrics          *instrumentation.Metrics
	Auditor          *instrumentation.SyncAuditor
	Now              func() time.Time
}

// Engine runs reconciliation for calendar and account pairs. Runs for the
// same pair are serialized; runs for different pairs may proceed in parallel.
type Engine struct {
	store    Store
	source   EventSource
	registry *Registry
	exec     *Executor
	logger   *slog.Logger
	metrics  *instrumentation.Metrics
	auditor  *instrumentation.SyncAuditor
	locks    *keyedMutex
}

// RunResult is the outcome of one target within a sweep.
type RunResult struct {
	Target Target
	Stats  *Stats
}

// NewEngine creates an engine.
func NewEngine(store Store, source EventSource, registry *Registry, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	exec := NewExecutor(store, opts.OperationTimeout, logger, opts.Metrics)
	exec.now = now

	return &Engine{
		store:    store,
		source:   source,
		registry: registry,
		exec:     exec,
		logger:   logger,
		metrics:  opts.Metrics,
		auditor:  opts.Auditor,
		locks:    newKeyedMutex(),
	}
}

// RunOnce performs one reconciliation run for target. Failures are
// reported in the returned stats, never as a Go error.
func (e *Engine) RunOnce(ctx context.Context, trigger Trigger, target Target) *Stats {
	unlock := e.locks.Lock(target.Key())
	defer unlock()

	start := time.Now()
	ctx, span := instrumentation.StartSyncSpan(ctx, string(trigger), target.Username, target.CalendarID, target.AccountID)
	defer span.End()

	stats := e.run(ctx, target)
	duration := time.Since(start)

	status := instrumentation.StatusSuccess
	if !stats.Success() {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, errors.New(stats.ErrorMessages[0]))
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	e.metrics.RecordSyncRun(ctx, string(trigger), status, duration)
	e.auditor.LogSyncRun(ctx, &instrumentation.SyncRun{
		Trigger:       string(trigger),
		Username:      target.Username,
		CalendarID:    target.CalendarID,
		AccountID:     target.AccountID,
		Created:       stats.Created,
		Updated:       stats.Updated,
		Deleted:       stats.Deleted,
		Errors:        stats.Errors,
		ErrorMessages: stats.ErrorMessages,
		StartTime:     start,
		Duration:      duration,
	})

	return stats
}

func (e *Engine) run(ctx context.Context, target Target) *Stats {
	stats := NewStats()
	logger := logging.WithTarget(e.logger, target.Username, target.CalendarID, target.AccountID)

	account, err := e.store.GetAccount(ctx, target.AccountID)
	if errors.Is(err, ErrNotFound) {
		stats.Fail("No task service account connected")
		return stats
	}
	if err != nil {
		stats.Fail("Failed to load task service account: %v", &StoreError{Op: "get account", Err: err})
		return stats
	}
	if account.Credentials == "" {
		stats.Fail("No task service account connected")
		return stats
	}
	if !account.Enabled {
		stats.Fail("Task service account is disabled")
		return stats
	}

	cal, err := e.store.GetCalendar(ctx, target.CalendarID)
	if errors.Is(err, ErrNotFound) {
		stats.Fail("Calendar not found")
		return stats
	}
	if err != nil {
		stats.Fail("Failed to load calendar: %v", &StoreError{Op: "get calendar", Err: err})
		return stats
	}

	svc, err := e.registry.New(account.ServiceType)
	if err != nil {
		stats.Fail("Failed to initialize task service: %v", err)
		return stats
	}

	err = e.exec.call(ctx, func(opCtx context.Context) error {
		return svc.Authenticate(opCtx, account.Credentials, account.Config)
	})
	if err != nil {
		stats.Fail("Failed to authenticate with task service: %v", err)
		logger.Warn("task service authentication failed", logging.Err(err))
		return stats
	}
	// Credentials refreshed during Authenticate are kept even if the
	// run aborts below.
	defer e.persistCredentials(ctx, logger, account.ID, svc, stats)

	events, err := e.source.FetchEvents(ctx, cal.URL)
	if err != nil {
		srcErr := &SourceError{URL: logging.RedactURL(cal.URL), Err: err}
		stats.Fail("Failed to fetch calendar: %v", srcErr)
		logger.Warn("calendar fetch failed", logging.Err(srcErr))
		return stats
	}

	records, err := e.store.ListRecords(ctx, target.CalendarID, target.AccountID)
	if err != nil {
		stats.Fail("Failed to load sync records: %v", &StoreError{Op: "list records", Err: err})
		return stats
	}

	stats.Merge(e.exec.Reconcile(ctx, target, events, records, svc))
	logger.Info("sync run finished",
		slog.Int("events", len(events)),
		slog.Int("created", stats.Created),
		slog.Int("updated", stats.Updated),
		slog.Int("deleted", stats.Deleted),
		slog.Int("errors", stats.Errors))
	return stats
}

func (e *Engine) persistCredentials(ctx context.Context, logger *slog.Logger, accountID string, svc TaskService, stats *Stats) {
	creds, changed := svc.UpdatedCredentials()
	if !changed {
		return
	}
	// Saved even if the run was cancelled; the old refresh token may
	// already be invalid.
	if err := e.store.UpdateCredentials(context.WithoutCancel(ctx), accountID, creds); err != nil {
		stats.Fail("Failed to save refreshed credentials: %v", &StoreError{Op: "update credentials", Err: err})
		logger.Error("refreshed credentials not saved", logging.Err(err))
		return
	}
	logger.Info("refreshed credentials saved")
}

// RunForUser runs every calendar of username against the user's account
// and returns the merged stats.
func (e *Engine) RunForUser(ctx context.Context, trigger Trigger, username string) *Stats {
	stats := NewStats()

	account, err := e.store.GetAccountByUser(ctx, username)
	if errors.Is(err, ErrNotFound) {
		stats.Fail("No task service account connected")
		return stats
	}
	if err != nil {
		stats.Fail("Failed to load task service account: %v", &StoreError{Op: "get account", Err: err})
		return stats
	}

	calendars, err := e.store.ListCalendars(ctx, username)
	if err != nil {
		stats.Fail("Failed to list calendars: %v", &StoreError{Op: "list calendars", Err: err})
		return stats
	}
	if len(calendars) == 0 {
		stats.Fail("No calendar found for user")
		return stats
	}

	for _, cal := range calendars {
		if err := ctx.Err(); err != nil {
			stats.Fail("Sync cancelled: %v", err)
			break
		}
		stats.Merge(e.RunOnce(ctx, trigger, Target{
			CalendarID: cal.ID,
			AccountID:  account.ID,
			Username:   username,
		}))
	}
	return stats
}

// RunAll runs every known target sequentially. A failing target does not
// stop the sweep. The error is non-nil only if the targets cannot be listed
// or ctx is cancelled between targets.
func (e *Engine) RunAll(ctx context.Context, trigger Trigger) ([]RunResult, error) {
	targets, err := e.store.ListTargets(ctx)
	if err != nil {
		return nil, &StoreError{Op: "list targets", Err: err}
	}

	results := make([]RunResult, 0, len(targets))
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, RunResult{Target: t, Stats: e.RunOnce(ctx, trigger, t)})
	}
	return results, nil
}

// keyedMutex hands out one mutex per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    stdsync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   stdsync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock blocks until key is free and returns the matching unlock func.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
