package sync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/teemow/duety/internal/instrumentation"
	"github.com/teemow/duety/internal/logging"
)

// Operation names used in logs, metrics and AdapterError.Op.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// DefaultOperationTimeout bounds a single task service call.
const DefaultOperationTimeout = 30 * time.Second

var errNoTaskID = errors.New("no task id returned")

// Executor applies a Plan against a task service and the record store.
type Executor struct {
	store   RecordStore
	logger  *slog.Logger
	metrics *instrumentation.Metrics
	timeout time.Duration
	now     func() time.Time
}

// NewExecutor creates an executor. A non-positive timeout uses
// DefaultOperationTimeout.
func NewExecutor(store RecordStore, timeout time.Duration, logger *slog.Logger, metrics *instrumentation.Metrics) *Executor {
	if timeout <= 0 {
		timeout = DefaultOperationTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		store:   store,
		logger:  logger,
		metrics: metrics,
		timeout: timeout,
		now:     time.Now,
	}
}

// Reconcile brings the task service in line with events for one target.
// Creates and updates run before deletes. A failed operation is recorded
// in the returned stats and the run moves on to the next one; only an
// authentication failure or cancellation of ctx stops the run early.
func (x *Executor) Reconcile(ctx context.Context, target Target, events []Event, records []Record, svc TaskService) *Stats {
	stats := NewStats()
	logger := logging.WithTarget(x.logger, target.Username, target.CalendarID, target.AccountID)

	plan := BuildPlan(events, records)
	for _, uid := range plan.Duplicates {
		logger.Warn("duplicate event uid in feed, keeping first occurrence", logging.EventUID(uid))
	}
	logger.Debug("reconcile plan",
		slog.Int("updates", len(plan.Updates)),
		slog.Int("unchanged", plan.Unchanged),
		slog.Int("creates", len(plan.Creates)),
		slog.Int("deletes", len(plan.Deletes)))

	for _, u := range plan.Updates {
		if x.stopped(ctx, stats) || !x.update(ctx, logger, target, u, svc, stats) {
			return stats
		}
	}
	for _, ev := range plan.Creates {
		if x.stopped(ctx, stats) || !x.create(ctx, logger, target, ev, svc, stats) {
			return stats
		}
	}
	for _, rec := range plan.Deletes {
		if x.stopped(ctx, stats) || !x.remove(ctx, logger, rec, svc, stats) {
			return stats
		}
	}

	return stats
}

// update returns false when the run must stop.
func (x *Executor) update(ctx context.Context, logger *slog.Logger, target Target, u Update, svc TaskService, stats *Stats) bool {
	err := x.call(ctx, func(opCtx context.Context) error {
		return svc.UpdateTask(opCtx, u.Record.ExternalTaskID, u.Event)
	})

	if errors.Is(err, ErrNotFound) {
		// The task was removed in the task service; recreate it.
		logger.Info("task missing, recreating", logging.EventUID(u.Event.UID))
		x.metrics.RecordSyncOperation(ctx, OpUpdate, instrumentation.StatusError)
		return x.create(ctx, logger, target, u.Event, svc, stats)
	}
	if err != nil {
		x.metrics.RecordSyncOperation(ctx, OpUpdate, instrumentation.StatusError)
		return x.fail(logger, OpUpdate, u.Event.UID, err, stats)
	}
	x.metrics.RecordSyncOperation(ctx, OpUpdate, instrumentation.StatusSuccess)

	stats.Updated++
	rec := u.Record
	rec.Fingerprint = u.Event.Fingerprint()
	rec.LastSyncedAt = x.now()
	if err := x.store.UpsertRecord(ctx, rec); err != nil {
		stats.Fail("Task updated for event %s but record not saved: %v", u.Event.UID, &StoreError{Op: "upsert record", Err: err})
		logger.Error("record not saved after update", logging.EventUID(u.Event.UID), logging.Err(err))
		return true
	}
	logger.Debug("task updated", logging.EventUID(u.Event.UID))
	return true
}

func (x *Executor) create(ctx context.Context, logger *slog.Logger, target Target, ev Event, svc TaskService, stats *Stats) bool {
	var taskID string
	err := x.call(ctx, func(opCtx context.Context) error {
		var err error
		taskID, err = svc.CreateTask(opCtx, ev)
		return err
	})
	if err == nil && taskID == "" {
		err = errNoTaskID
	}
	if err != nil {
		x.metrics.RecordSyncOperation(ctx, OpCreate, instrumentation.StatusError)
		return x.fail(logger, OpCreate, ev.UID, err, stats)
	}
	x.metrics.RecordSyncOperation(ctx, OpCreate, instrumentation.StatusSuccess)

	stats.Created++
	rec := Record{
		CalendarID:     target.CalendarID,
		AccountID:      target.AccountID,
		EventUID:       ev.UID,
		ExternalTaskID: taskID,
		Fingerprint:    ev.Fingerprint(),
		LastSyncedAt:   x.now(),
	}
	if err := x.store.UpsertRecord(ctx, rec); err != nil {
		stats.Fail("Task created for event %s but record not saved: %v", ev.UID, &StoreError{Op: "upsert record", Err: err})
		logger.Error("record not saved after create", logging.EventUID(ev.UID), slog.String("task_id", taskID), logging.Err(err))
		return true
	}
	logger.Debug("task created", logging.EventUID(ev.UID))
	return true
}

func (x *Executor) remove(ctx context.Context, logger *slog.Logger, rec Record, svc TaskService, stats *Stats) bool {
	err := x.call(ctx, func(opCtx context.Context) error {
		return svc.DeleteTask(opCtx, rec.ExternalTaskID)
	})
	if errors.Is(err, ErrNotFound) {
		err = nil
	}
	if err != nil {
		x.metrics.RecordSyncOperation(ctx, OpDelete, instrumentation.StatusError)
		return x.fail(logger, OpDelete, rec.EventUID, err, stats)
	}
	x.metrics.RecordSyncOperation(ctx, OpDelete, instrumentation.StatusSuccess)

	stats.Deleted++
	if err := x.store.DeleteRecord(ctx, rec.CalendarID, rec.AccountID, rec.EventUID); err != nil {
		stats.Fail("Task deleted for event %s but record not removed: %v", rec.EventUID, &StoreError{Op: "delete record", Err: err})
		logger.Error("record not removed after delete", logging.EventUID(rec.EventUID), logging.Err(err))
		return true
	}
	logger.Debug("task deleted", logging.EventUID(rec.EventUID))
	return true
}

// fail records a failed adapter call. It returns false when the failure
// means no further calls can succeed.
func (x *Executor) fail(logger *slog.Logger, op, uid string, err error, stats *Stats) bool {
	if IsAuthError(err) {
		stats.Fail("Failed to authenticate with task service: %v", err)
		logger.Error("task service authentication failed, stopping run", logging.EventUID(uid), logging.Err(err))
		return false
	}
	adapterErr := &AdapterError{Op: op, EventUID: uid, Err: err}
	stats.Fail("Failed to %v", adapterErr)
	logger.Warn("task operation failed", logging.Operation(op), logging.EventUID(uid), logging.Err(err))
	return true
}

// stopped records a single error and returns true once ctx is done.
func (x *Executor) stopped(ctx context.Context, stats *Stats) bool {
	if err := ctx.Err(); err != nil {
		stats.Fail("Sync cancelled: %v", err)
		return true
	}
	return false
}

// call runs fn under its own deadline.
func (x *Executor) call(ctx context.Context, fn func(context.Context) error) error {
	opCtx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()
	return fn(opCtx)
}
