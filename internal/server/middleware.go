package server

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"
	"runtime/debug"
	"time"

	"github.com/teemow/duety/internal/logging"
)

// UserHeader carries the authenticated username from the reverse proxy.
const UserHeader = "X-Forwarded-User"

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{1,32}$`)

type userKey struct{}

// UserFromContext returns the username set by requireUser.
func UserFromContext(ctx context.Context) (string, bool) {
	u, ok := ctx.Value(userKey{}).(string)
	return u, ok
}

func withUser(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, userKey{}, username)
}

// requireUser rejects requests without a valid user header and makes sure
// the user row exists.
func (s *Server) requireUser(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username := r.Header.Get(UserHeader)
		if !usernamePattern.MatchString(username) {
			writeError(w, http.StatusUnauthorized, "Unauthorized: Missing or invalid X-Forwarded-User header")
			return
		}

		if err := s.cfg.Store.EnsureUser(r.Context(), username); err != nil {
			s.logger.Error("failed to ensure user", logging.User(username), logging.Err(err))
			writeError(w, http.StatusInternalServerError, "Failed to load user")
			return
		}

		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), username)))
	})
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// instrument records request count and duration by route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		s.cfg.Metrics.RecordHTTPRequest(r.Context(), r.Method, routeLabel(r), rec.status, duration)
		s.logger.Debug("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int(logging.KeyStatus, rec.status),
			slog.Duration(logging.KeyDuration, duration))
	})
}

// routeLabel is the matched route pattern so ids do not become labels.
func routeLabel(r *http.Request) string {
	if r.Pattern != "" {
		return r.Pattern
	}
	return "unmatched"
}

func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				s.logger.Error("panic in http handler",
					slog.Any("panic", v),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())))
				writeError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
