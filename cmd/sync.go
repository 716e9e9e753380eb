package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teemow/duety/internal/logging"
	"github.com/teemow/duety/internal/sync"
)

// errSyncFailed makes the process exit non-zero after the report is printed.
var errSyncFailed = errors.New("sync finished with errors")

// targetReport is the outcome of one calendar in a --all run.
type targetReport struct {
	Username   string      `json:"username"`
	CalendarID string      `json:"calendarId"`
	AccountID  string      `json:"accountId"`
	Stats      *sync.Stats `json:"stats"`
}

// sweepReport is printed by sync --all.
type sweepReport struct {
	Targets []targetReport `json:"targets"`
	Total   *sync.Stats    `json:"total"`
}

func newSyncCmd() *cobra.Command {
	var (
		user string
		all  bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile calendars into Google Tasks once",
		Long: `Run one reconciliation pass and print the resulting stats as JSON.

Use --user to sync every calendar of one user, or --all to sync every
calendar that has a connected and enabled account. The command exits with
status 1 when any error was reported.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd.Context(), cmd.OutOrStdout(), user, all)
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Sync the calendars of this user")
	cmd.Flags().BoolVar(&all, "all", false, "Sync every connected calendar")
	cmd.MarkFlagsMutuallyExclusive("user", "all")
	cmd.MarkFlagsOneRequired("user", "all")

	return cmd
}

func runSync(parent context.Context, out io.Writer, user string, all bool) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, os.Stderr)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(context.WithoutCancel(ctx)); err != nil {
			a.logger.Error("shutdown cleanup failed", logging.Err(err))
		}
	}()

	var (
		report any
		stats  *sync.Stats
	)
	if all {
		results, err := a.engine.RunAll(ctx, sync.TriggerCLI)
		if err != nil && results == nil {
			return fmt.Errorf("sync sweep failed: %w", err)
		}
		sweep := buildSweepReport(results)
		if err != nil {
			sweep.Total.Fail("Sync cancelled: %v", err)
		}
		report, stats = sweep, sweep.Total
	} else {
		stats = a.engine.RunForUser(ctx, sync.TriggerCLI, user)
		report = stats
	}

	if err := writeReport(out, report); err != nil {
		return err
	}
	if !stats.Success() {
		return errSyncFailed
	}
	return nil
}

func buildSweepReport(results []sync.RunResult) sweepReport {
	report := sweepReport{
		Targets: make([]targetReport, 0, len(results)),
		Total:   sync.NewStats(),
	}
	for _, r := range results {
		report.Targets = append(report.Targets, targetReport{
			Username:   r.Target.Username,
			CalendarID: r.Target.CalendarID,
			AccountID:  r.Target.AccountID,
			Stats:      r.Stats,
		})
		report.Total.Merge(r.Stats)
	}
	return report
}

func writeReport(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
