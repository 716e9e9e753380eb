package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/teemow/duety/internal/google"
	"github.com/teemow/duety/internal/instrumentation"
	"github.com/teemow/duety/internal/scheduler"
	"github.com/teemow/duety/internal/sync"
)

const (
	// DefaultReadHeaderTimeout bounds reading request headers.
	DefaultReadHeaderTimeout = 10 * time.Second

	// DefaultIdleTimeout closes idle keep-alive connections.
	DefaultIdleTimeout = 120 * time.Second

	// maxRequestBody caps JSON request bodies.
	maxRequestBody = 64 << 10
)

// Store is the persistence the API needs.
type Store interface {
	EnsureUser(ctx context.Context, username string) error

	CreateCalendar(ctx context.Context, username, url, name string) (sync.Calendar, error)
	ListCalendars(ctx context.Context, username string) ([]sync.Calendar, error)
	GetCalendar(ctx context.Context, id string) (sync.Calendar, error)
	DeleteCalendar(ctx context.Context, username, id string) error

	UpsertAccount(ctx context.Context, acct sync.Account) (sync.Account, error)
	GetAccountByUser(ctx context.Context, username string) (sync.Account, error)
	DeleteAccountByUser(ctx context.Context, username string) error
}

// Syncer runs on-demand reconciliation.
type Syncer interface {
	RunForUser(ctx context.Context, trigger sync.Trigger, username string) *sync.Stats
}

// Poller reports the polling scheduler state.
type Poller interface {
	IsActive() bool
	Config() scheduler.Config
}

// OAuthClient is the Google OAuth client used to connect accounts.
type OAuthClient interface {
	Configured() bool
	AuthCodeURL(state, redirectURL string) string
	Exchange(ctx context.Context, code, redirectURL string) (google.Credentials, error)
}

// Config configures the API server.
type Config struct {
	Addr string

	// BaseURL is the external URL of the service. The OAuth redirect URL
	// is derived from the request when empty.
	BaseURL string

	Store  Store
	Syncer Syncer
	Poller Poller
	OAuth  OAuthClient

	// Health is optional; a checker without dependencies is created when nil.
	Health *HealthChecker

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// Server is the HTTP API server.
type Server struct {
	cfg        Config
	logger     *slog.Logger
	health     *HealthChecker
	httpServer *http.Server
}

// New creates the API server.
func New(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Syncer == nil {
		return nil, errors.New("syncer is required")
	}
	if cfg.Poller == nil {
		return nil, errors.New("poller is required")
	}
	if cfg.OAuth == nil {
		return nil, errors.New("oauth client is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	health := cfg.Health
	if health == nil {
		health = NewHealthChecker(nil)
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
		health: health,
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		IdleTimeout:       DefaultIdleTimeout,
	}
	return s, nil
}

// Handler returns the complete routing tree with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.health.RegisterHealthEndpoints(mux)

	mux.Handle("POST /api/sync", s.requireUser(s.handleSync))
	mux.Handle("GET /api/sync/status", s.requireUser(s.handleSyncStatus))

	mux.Handle("GET /api/calendars", s.requireUser(s.handleListCalendars))
	mux.Handle("POST /api/calendars", s.requireUser(s.handleCreateCalendar))
	mux.Handle("GET /api/calendars/{id}", s.requireUser(s.handleGetCalendar))
	mux.Handle("DELETE /api/calendars/{id}", s.requireUser(s.handleDeleteCalendar))

	mux.Handle("GET /api/google-tasks/auth", s.requireUser(s.handleGoogleAuth))
	mux.Handle("GET /api/google-tasks/callback", s.requireUser(s.handleGoogleCallback))
	mux.Handle("GET /api/google-tasks/status", s.requireUser(s.handleGoogleStatus))
	mux.Handle("DELETE /api/google-tasks/disconnect", s.requireUser(s.handleGoogleDisconnect))

	return s.recoverPanics(s.instrument(mux))
}

// Start serves until Shutdown is called. It returns http.ErrServerClosed
// after a graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting http server", slog.String("addr", s.cfg.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown fails readiness and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.SetShuttingDown()
	s.logger.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.cfg.Addr
}
