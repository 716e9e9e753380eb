package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// version will be set by main
var version = "dev"

// Global flags shared by all commands.
var (
	configPath string
	logLevel   string
	logFormat  string
)

// SetVersion sets the version reported by the CLI
func SetVersion(v string) {
	version = v
}

// newRootCmd builds the base command for the duety application
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "duety",
		Short: "Keeps a Google Tasks list in sync with an ICS calendar feed",
		Long: `duety turns the events of a calendar feed into tasks with due dates.

It can run as:
  - A long-running service with an HTTP API and a polling scheduler (serve)
  - A one-shot reconciliation from the command line (sync)`,
		Version:      version,
		SilenceUsage: true,
	}
	rootCmd.SetVersionTemplate(`{{printf "duety version %s\n" .Version}}`)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a TOML config file. Can also use DUETY_CONFIG env var.")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error. Overrides LOG_LEVEL.")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json. Overrides LOG_FORMAT.")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// Execute is the main entry point for the CLI application
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
