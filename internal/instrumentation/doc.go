// Package instrumentation provides OpenTelemetry instrumentation for duety.
//
// # Metrics
//
// Server/HTTP Metrics:
//   - http_requests_total: Counter of HTTP requests by method, path, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//
// Google API Metrics:
//   - google_api_operations_total: Counter of Google API operations by service, operation, status
//   - google_api_operation_duration_seconds: Histogram of Google API operation durations
//
// OAuth Metrics:
//   - oauth_auth_total: Counter of authorization code exchanges by result
//   - oauth_token_refresh_total: Counter of token refresh attempts by result
//
// Sync Metrics:
//   - sync_runs_total: Counter of reconciliation runs by trigger and status
//   - sync_run_duration_seconds: Histogram of reconciliation run durations
//   - sync_operations_total: Counter of task creates, updates and deletes by result
//   - scheduler_sweeps_total: Counter of scheduler sweeps by result
//
// # Tracing
//
// Spans are created for each reconciliation run (sync.run) and for each
// Google API call (google.<service>.<operation>).
//
// # Configuration
//
// Instrumentation is configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: prometheus, otlp, stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout, none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: duety)
//   - AUDIT_LOGGING_ENABLED, AUDIT_LOGGING_INCLUDE_ERRORS
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	provider.Metrics().RecordSyncRun(ctx, "scheduled", instrumentation.StatusSuccess, time.Since(start))
package instrumentation
