package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/teemow/duety/internal/calendar"
	"github.com/teemow/duety/internal/config"
	"github.com/teemow/duety/internal/google"
	"github.com/teemow/duety/internal/instrumentation"
	"github.com/teemow/duety/internal/logging"
	"github.com/teemow/duety/internal/store"
	"github.com/teemow/duety/internal/sync"
	"github.com/teemow/duety/internal/tasks"
)

// app holds the components shared by serve and sync.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	provider *instrumentation.Provider
	metrics  *instrumentation.Metrics
	store    *store.Store
	oauth    *google.OAuth
	engine   *sync.Engine
}

// loadConfig resolves the config file from the flag or DUETY_CONFIG and
// applies the log flags on top.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv(config.EnvConfig)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	return cfg, nil
}

// newApp loads the configuration and wires the store, the Google clients
// and the reconciliation engine. Logs go to logOut.
func newApp(ctx context.Context, logOut io.Writer) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, logOut)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	metrics := provider.Metrics()

	st, err := store.Open(ctx, cfg.Database.Path, logger)
	if err != nil {
		_ = provider.Shutdown(ctx)
		return nil, err
	}

	if !cfg.GoogleConfigured() {
		logger.Warn("google oauth client not configured; accounts cannot be connected or refreshed",
			slog.String("env", config.EnvGoogleClientID))
	}
	oauth := google.NewOAuth(cfg.Google.ClientID, cfg.Google.ClientSecret, google.WithMetrics(metrics))

	registry := sync.NewRegistry()
	registry.Register(sync.ServiceGoogleTasks, tasks.Constructor(tasks.Options{
		OAuth:             oauth,
		DefaultTaskListID: cfg.Google.TaskListID,
		Metrics:           metrics,
		Logger:            logger,
	}))

	fetcher := calendar.NewFetcher(calendar.Options{Logger: logger})

	engine := sync.NewEngine(st, fetcher, registry, sync.Options{
		OperationTimeout: cfg.Sync.OperationTimeout.Duration,
		Logger:           logger,
		Metrics:          metrics,
		Auditor:          instrumentation.NewSyncAuditor(logger, instrConfig.AuditLogging),
	})

	return &app{
		cfg:      cfg,
		logger:   logger,
		provider: provider,
		metrics:  metrics,
		store:    st,
		oauth:    oauth,
		engine:   engine,
	}, nil
}

// Close flushes telemetry and closes the database.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if err := a.provider.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("instrumentation shutdown: %w", err))
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing database: %w", err))
	}
	return errors.Join(errs...)
}
