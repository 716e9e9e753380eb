package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gtasks "google.golang.org/api/tasks/v1"

	"github.com/teemow/duety/internal/google"
	"github.com/teemow/duety/internal/instrumentation"
	"github.com/teemow/duety/internal/logging"
	"github.com/teemow/duety/internal/sync"
)

// Options configures Google Tasks services.
type Options struct {
	OAuth *google.OAuth

	// DefaultTaskListID is used when the account config names no list.
	DefaultTaskListID string

	// Endpoint overrides the API base URL. Used by tests.
	Endpoint string

	// BaseTransport is the transport under the OAuth transport.
	BaseTransport http.RoundTripper

	Metrics *instrumentation.Metrics
	Logger  *slog.Logger
}

// Service implements sync.TaskService for Google Tasks. A Service is
// bound to one account by Authenticate.
type Service struct {
	opts   Options
	logger *slog.Logger

	creds  *google.CredentialManager
	api    *gtasks.Service
	listID string
}

var _ sync.TaskService = (*Service)(nil)

// New returns an unauthenticated service.
func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{opts: opts, logger: logging.WithService(logger, instrumentation.ServiceTasks)}
}

// Constructor returns a registry constructor for opts.
func Constructor(opts Options) sync.Constructor {
	return func() sync.TaskService { return New(opts) }
}

// Authenticate decodes the stored credentials and account config and
// refreshes the access token if it is about to expire.
func (s *Service) Authenticate(ctx context.Context, credentials, config string) error {
	cfg, err := parseAccountConfig(config)
	if err != nil {
		return &sync.AuthError{Op: "decode config", Err: err}
	}

	creds, err := s.opts.OAuth.NewCredentialManager(credentials)
	if err != nil {
		return &sync.AuthError{Op: "decode credentials", Err: err}
	}
	if _, err := creds.Ensure(ctx); err != nil {
		return &sync.AuthError{Op: "refresh", Err: err}
	}

	// The token source outlives ctx, which only bounds Authenticate.
	baseCtx := context.WithoutCancel(ctx)
	if s.opts.BaseTransport != nil {
		baseCtx = context.WithValue(baseCtx, oauth2.HTTPClient, &http.Client{Transport: s.opts.BaseTransport})
	}
	clientOpts := []option.ClientOption{
		option.WithHTTPClient(oauth2.NewClient(baseCtx, creds.TokenSource(baseCtx))),
	}
	if s.opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(s.opts.Endpoint))
	}

	api, err := gtasks.NewService(ctx, clientOpts...)
	if err != nil {
		return fmt.Errorf("failed to create Tasks service: %w", err)
	}

	s.creds = creds
	s.api = api
	s.listID = cfg.TaskListID
	if s.listID == "" {
		s.listID = s.opts.DefaultTaskListID
	}
	if s.listID == "" {
		s.listID = DefaultTaskListID
	}
	return nil
}

// CreateTask inserts a task for ev and returns its id.
func (s *Service) CreateTask(ctx context.Context, ev sync.Event) (string, error) {
	var id string
	err := s.do(ctx, "insert", func(ctx context.Context) error {
		created, err := s.api.Tasks.Insert(s.listID, taskFromEvent(ev)).Context(ctx).Do()
		if err != nil {
			return err
		}
		id = created.Id
		return nil
	})
	return id, err
}

// UpdateTask patches the task's title, notes and due date.
func (s *Service) UpdateTask(ctx context.Context, taskID string, ev sync.Event) error {
	return s.do(ctx, "patch", func(ctx context.Context) error {
		_, err := s.api.Tasks.Patch(s.listID, taskID, taskFromEvent(ev)).Context(ctx).Do()
		return err
	})
}

// DeleteTask deletes a task. A task that is already gone yields
// sync.ErrNotFound.
func (s *Service) DeleteTask(ctx context.Context, taskID string) error {
	return s.do(ctx, "delete", func(ctx context.Context) error {
		return s.api.Tasks.Delete(s.listID, taskID).Context(ctx).Do()
	})
}

// UpdatedCredentials returns the refreshed credential blob, if any.
func (s *Service) UpdatedCredentials() (string, bool) {
	if s.creds == nil {
		return "", false
	}
	blob, changed, err := s.creds.Encoded()
	if err != nil || !changed {
		return "", false
	}
	return blob, true
}

// do refreshes credentials if needed, then runs one API call with a span
// and metrics.
func (s *Service) do(ctx context.Context, operation string, call func(context.Context) error) error {
	if s.api == nil {
		return &sync.AuthError{Op: operation, Err: errors.New("not authenticated")}
	}
	if _, err := s.creds.Ensure(ctx); err != nil {
		return &sync.AuthError{Op: "refresh", Err: err}
	}

	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceTasks, operation)
	defer span.End()

	start := time.Now()
	err := mapError(operation, call(ctx))

	status := instrumentation.StatusSuccess
	if err != nil && !errors.Is(err, sync.ErrNotFound) {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
		s.logger.Debug("tasks api call failed", logging.Operation(operation), logging.Err(err))
	}
	s.opts.Metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceTasks, operation, status, time.Since(start))
	return err
}

// mapError translates API errors into the sync error taxonomy.
func mapError(operation string, err error) error {
	if err == nil {
		return nil
	}

	var refreshErr *google.RefreshError
	if errors.As(err, &refreshErr) {
		return &sync.AuthError{Op: "refresh", Err: refreshErr}
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusNotFound, http.StatusGone:
			return fmt.Errorf("%s: %w", operation, sync.ErrNotFound)
		case http.StatusUnauthorized:
			return &sync.AuthError{Op: operation, Err: err}
		}
	}
	return err
}
