// Package cmd implements the command-line interface for duety.
//
// This package provides the following commands:
//   - serve: Run the HTTP API, the metrics server and the polling scheduler
//   - sync: Run one reconciliation pass for a user or for every target
//   - version: Display version information
//
// Configuration is read from the file named by --config or DUETY_CONFIG,
// then overridden by environment variables. See internal/config.
package cmd
