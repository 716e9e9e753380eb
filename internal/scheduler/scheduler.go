package scheduler

import (
	"context"
	"log/slog"
	stdsync "sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/teemow/duety/internal/instrumentation"
	"github.com/teemow/duety/internal/logging"
	"github.com/teemow/duety/internal/sync"
)

// DefaultIntervalMinutes is used when no valid interval is configured.
const DefaultIntervalMinutes = 60

// Config is the polling configuration.
type Config struct {
	IntervalMinutes int  `json:"intervalMinutes"`
	Enabled         bool `json:"enabled"`
}

// Interval returns the sweep interval, falling back to the default for
// non-positive values.
func (c Config) Interval() time.Duration {
	if c.IntervalMinutes <= 0 {
		return DefaultIntervalMinutes * time.Minute
	}
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// Sweeper reconciles every known calendar and account pair.
type Sweeper interface {
	RunAll(ctx context.Context, trigger sync.Trigger) ([]sync.RunResult, error)
}

// Scheduler drives periodic sweeps.
type Scheduler struct {
	cfg      Config
	interval time.Duration
	sweeper  Sweeper
	logger   *slog.Logger
	metrics  *instrumentation.Metrics

	mu      stdsync.Mutex
	running bool
	cron    *cron.Cron
	job     cron.Job
	cancel  context.CancelFunc
	wg      stdsync.WaitGroup
}

// New creates a stopped scheduler.
func New(cfg Config, sweeper Sweeper, logger *slog.Logger, metrics *instrumentation.Metrics) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.IntervalMinutes <= 0 {
		cfg.IntervalMinutes = DefaultIntervalMinutes
	}
	return &Scheduler{
		cfg:      cfg,
		interval: cfg.Interval(),
		sweeper:  sweeper,
		logger:   logging.WithOperation(logger, "scheduler"),
		metrics:  metrics,
	}
}

// Start runs one sweep right away and then one per interval. It is a
// no-op when the scheduler is disabled or already running. Sweeps run
// under a context derived from ctx; Stop cancels it.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Info("scheduler already running")
		return
	}
	if !s.cfg.Enabled {
		s.logger.Info("polling disabled, set SYNC_POLLING_ENABLED=true to enable")
		return
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	cronLogger := logging.NewCronLogger(s.logger)

	// One guarded job serves both the immediate sweep and the ticks, so
	// they share the same skip-if-running state.
	s.job = cron.NewChain(
		cron.Recover(cronLogger),
		cron.SkipIfStillRunning(&skipLogger{CronLogger: cronLogger, onSkip: s.skipped}),
	).Then(cron.FuncJob(func() { s.sweep(sweepCtx) }))

	s.cron = cron.New(cron.WithLogger(cronLogger))
	s.cron.Schedule(cron.Every(s.interval), s.job)
	s.cancel = cancel
	s.running = true

	s.logger.Info("starting scheduler", slog.Int("interval_minutes", s.cfg.IntervalMinutes))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.job.Run()
	}()
	s.cron.Start()
}

// Stop cancels the running sweep, stops the timer and waits for the
// in-flight sweep to return. It is idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	done := s.cron.Stop()
	s.mu.Unlock()

	<-done.Done()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// IsActive reports whether the scheduler is running.
func (s *Scheduler) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Config returns the effective configuration.
func (s *Scheduler) Config() Config {
	return s.cfg
}

func (s *Scheduler) sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	s.logger.Info("starting scheduled sync")

	results, err := s.sweeper.RunAll(ctx, sync.TriggerScheduled)
	for _, r := range results {
		logger := logging.WithTarget(s.logger, r.Target.Username, r.Target.CalendarID, r.Target.AccountID)
		logger.Info("sync finished",
			slog.Int("created", r.Stats.Created),
			slog.Int("updated", r.Stats.Updated),
			slog.Int("deleted", r.Stats.Deleted),
			slog.Int("errors", r.Stats.Errors))
		if len(r.Stats.ErrorMessages) > 0 {
			logger.Warn("sync reported errors", slog.Any("error_messages", r.Stats.ErrorMessages))
		}
	}

	if err != nil {
		s.logger.Error("scheduled sync failed", logging.Err(err), slog.Int("targets", len(results)))
		s.metrics.RecordSchedulerSweep(ctx, instrumentation.SweepFailed)
		return
	}
	s.logger.Info("scheduled sync completed",
		slog.Int("targets", len(results)),
		slog.Duration(logging.KeyDuration, time.Since(start)))
	s.metrics.RecordSchedulerSweep(ctx, instrumentation.SweepCompleted)
}

func (s *Scheduler) skipped() {
	s.logger.Warn("previous sync still running, skipping this tick")
	s.metrics.RecordSchedulerSweep(context.Background(), instrumentation.SweepSkipped)
}

// skipLogger observes the "skip" message cron.SkipIfStillRunning emits.
type skipLogger struct {
	*logging.CronLogger
	onSkip func()
}

func (l *skipLogger) Info(msg string, keysAndValues ...interface{}) {
	if msg == "skip" {
		l.onSkip()
		return
	}
	l.CronLogger.Info(msg, keysAndValues...)
}
