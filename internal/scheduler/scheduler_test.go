package scheduler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/duety/internal/sync"
)

// fakeSweeper counts sweeps and optionally blocks until released.
type fakeSweeper struct {
	mu       stdsync.Mutex
	calls    int
	triggers []sync.Trigger
	results  []sync.RunResult
	err      error

	started chan struct{}
	release chan struct{}
	ctxErr  error
}

func (f *fakeSweeper) RunAll(ctx context.Context, trigger sync.Trigger) ([]sync.RunResult, error) {
	f.mu.Lock()
	f.calls++
	f.triggers = append(f.triggers, trigger)
	started, release := f.started, f.release
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			f.mu.Lock()
			f.ctxErr = ctx.Err()
			f.mu.Unlock()
		}
	}
	return f.results, f.err
}

func (f *fakeSweeper) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type syncBuffer struct {
	mu  stdsync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestScheduler(cfg Config, sweeper Sweeper) (*Scheduler, *syncBuffer) {
	buf := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return New(cfg, sweeper, logger, nil), buf
}

func TestConfig_Interval(t *testing.T) {
	assert.Equal(t, 15*time.Minute, Config{IntervalMinutes: 15}.Interval())
	assert.Equal(t, time.Hour, Config{}.Interval())
	assert.Equal(t, time.Hour, Config{IntervalMinutes: -5}.Interval())
}

func TestNew_DefaultsInterval(t *testing.T) {
	s, _ := newTestScheduler(Config{Enabled: true}, &fakeSweeper{})
	assert.Equal(t, Config{IntervalMinutes: DefaultIntervalMinutes, Enabled: true}, s.Config())
	assert.False(t, s.IsActive())
}

func TestStart_Disabled(t *testing.T) {
	sweeper := &fakeSweeper{}
	s, logs := newTestScheduler(Config{IntervalMinutes: 5}, sweeper)

	s.Start(context.Background())
	assert.False(t, s.IsActive())
	assert.Zero(t, sweeper.count())
	assert.Contains(t, logs.String(), "SYNC_POLLING_ENABLED")

	s.Stop()
	assert.False(t, s.IsActive())
}

func TestStart_SweepsImmediately(t *testing.T) {
	sweeper := &fakeSweeper{}
	s, _ := newTestScheduler(Config{IntervalMinutes: 60, Enabled: true}, sweeper)

	s.Start(context.Background())
	defer s.Stop()

	assert.True(t, s.IsActive())
	require.Eventually(t, func() bool { return sweeper.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []sync.Trigger{sync.TriggerScheduled}, sweeper.triggers)

	// A second Start does not sweep again.
	s.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, sweeper.count())
}

func TestStart_Ticks(t *testing.T) {
	sweeper := &fakeSweeper{}
	s, _ := newTestScheduler(Config{IntervalMinutes: 1, Enabled: true}, sweeper)
	s.interval = time.Second

	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool { return sweeper.count() >= 2 }, 3*time.Second, 10*time.Millisecond)
}

func TestStop_Idempotent(t *testing.T) {
	s, _ := newTestScheduler(Config{IntervalMinutes: 60, Enabled: true}, &fakeSweeper{})

	s.Start(context.Background())
	s.Stop()
	s.Stop()
	assert.False(t, s.IsActive())
}

func TestStop_CancelsInFlightSweep(t *testing.T) {
	sweeper := &fakeSweeper{started: make(chan struct{}, 1), release: make(chan struct{})}
	s, _ := newTestScheduler(Config{IntervalMinutes: 60, Enabled: true}, sweeper)

	s.Start(context.Background())
	<-sweeper.started

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
	assert.ErrorIs(t, sweeper.ctxErr, context.Canceled)
}

func TestSweep_SkipsWhileRunning(t *testing.T) {
	sweeper := &fakeSweeper{started: make(chan struct{}, 1), release: make(chan struct{})}
	s, logs := newTestScheduler(Config{IntervalMinutes: 60, Enabled: true}, sweeper)

	s.Start(context.Background())
	defer s.Stop()
	<-sweeper.started

	// A tick while the immediate sweep runs is dropped, not queued.
	s.job.Run()
	assert.Equal(t, 1, sweeper.count())
	assert.Contains(t, logs.String(), "skipping")

	close(sweeper.release)
	sweeper.mu.Lock()
	sweeper.started = nil
	sweeper.release = nil
	sweeper.mu.Unlock()

	require.Eventually(t, func() bool {
		s.job.Run()
		return sweeper.count() == 2
	}, time.Second, 10*time.Millisecond)
}

func TestSweep_LogsPerTargetStats(t *testing.T) {
	stats := sync.NewStats()
	stats.Created = 2
	stats.Fail("Failed to fetch calendar: boom")
	sweeper := &fakeSweeper{results: []sync.RunResult{
		{Target: sync.Target{CalendarID: "c1", AccountID: "a1", Username: "alice"}, Stats: stats},
	}}
	s, logs := newTestScheduler(Config{IntervalMinutes: 60, Enabled: true}, sweeper)

	s.sweep(context.Background())

	out := logs.String()
	assert.Contains(t, out, "user=alice")
	assert.Contains(t, out, "created=2")
	assert.Contains(t, out, "Failed to fetch calendar")
	assert.Contains(t, out, "scheduled sync completed")
}

func TestSweep_ListFailure(t *testing.T) {
	sweeper := &fakeSweeper{err: errors.New("database is locked")}
	s, logs := newTestScheduler(Config{IntervalMinutes: 60, Enabled: true}, sweeper)

	s.sweep(context.Background())
	assert.Contains(t, logs.String(), "scheduled sync failed")
	assert.Contains(t, logs.String(), "database is locked")
}

func TestSweep_RecoversPanics(t *testing.T) {
	s, logs := newTestScheduler(Config{IntervalMinutes: 60, Enabled: true}, panicSweeper{})

	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(logs.String()), []byte("panic"))
	}, time.Second, 5*time.Millisecond)
	assert.True(t, s.IsActive())
}

type panicSweeper struct{}

func (panicSweeper) RunAll(context.Context, sync.Trigger) ([]sync.RunResult, error) {
	panic("sweeper exploded")
}

func TestRestart(t *testing.T) {
	sweeper := &fakeSweeper{}
	s, _ := newTestScheduler(Config{IntervalMinutes: 60, Enabled: true}, sweeper)

	s.Start(context.Background())
	require.Eventually(t, func() bool { return sweeper.count() == 1 }, time.Second, 5*time.Millisecond)
	s.Stop()

	s.Start(context.Background())
	defer s.Stop()
	require.Eventually(t, func() bool { return sweeper.count() == 2 }, time.Second, 5*time.Millisecond)
}
