// Package server exposes duety's HTTP API.
//
// # Endpoints
//
// All /api routes require the X-Forwarded-User header set by the
// authenticating reverse proxy in front of duety. The user row is created
// on first sight.
//
//   - POST /api/sync: reconcile all of the user's calendars now
//   - GET /api/sync/status: polling scheduler state
//   - GET, POST /api/calendars and GET, DELETE /api/calendars/{id}
//   - GET /api/google-tasks/auth, /callback, /status and
//     DELETE /api/google-tasks/disconnect: connect a Google Tasks account
//
// /healthz and /readyz serve liveness and readiness probes. Prometheus
// metrics are served by MetricsServer on a separate port.
package server
