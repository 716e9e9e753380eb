package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/teemow/duety/internal/logging"
	"github.com/teemow/duety/internal/scheduler"
	"github.com/teemow/duety/internal/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the polling scheduler",
		Long: `Start the duety service.

The HTTP API lets users register calendar feeds, connect a Google Tasks
account and trigger a sync. When SYNC_POLLING_ENABLED=true a scheduler
reconciles every connected calendar at SYNC_INTERVAL_MINUTES. Prometheus
metrics are served on a separate port when METRICS_ENABLED is set.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, os.Stderr)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			a.logger.Error("shutdown cleanup failed", logging.Err(err))
		}
	}()

	poller := scheduler.New(scheduler.Config{
		IntervalMinutes: a.cfg.Sync.IntervalMinutes,
		Enabled:         a.cfg.Sync.Enabled,
	}, a.engine, a.logger, a.metrics)

	srv, err := server.New(server.Config{
		Addr:    a.cfg.Server.Addr,
		BaseURL: a.cfg.Server.BaseURL,
		Store:   a.store,
		Syncer:  a.engine,
		Poller:  poller,
		OAuth:   a.oauth,
		Health:  server.NewHealthChecker(a.store),
		Logger:  a.logger,
		Metrics: a.metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	var metricsServer *server.MetricsServer
	switch {
	case !a.cfg.Metrics.Enabled:
	case !a.provider.ServesPrometheus():
		a.logger.Info("metrics server not started: instrumentation does not export prometheus metrics")
	default:
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    a.cfg.Metrics.Addr,
			Enabled:                 true,
			InstrumentationProvider: a.provider,
			Logger:                  a.logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if metricsServer != nil {
		g.Go(func() error {
			if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	poller.Start(gctx)

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutdown signal received, stopping duety")

		// Stop the scheduler first so no sweep starts against a closing store.
		poller.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http server shutdown: %w", err))
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
			}
		}
		return errors.Join(errs...)
	})

	a.logger.Info("duety started",
		slog.String("version", version),
		slog.String("addr", srv.Addr()),
		slog.Bool("polling", a.cfg.Sync.Enabled))

	return g.Wait()
}
