package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/teemow/duety/internal/logging"
	"github.com/teemow/duety/internal/sync"
)

const callbackPath = "/api/google-tasks/callback"

type googleStatusResponse struct {
	Connected bool `json:"connected"`
	Enabled   bool `json:"enabled"`
}

func (s *Server) handleGoogleAuth(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.OAuth.Configured() {
		writeError(w, http.StatusServiceUnavailable, "Google Tasks integration is not configured")
		return
	}
	// The username doubles as state. The callback checks it against the
	// proxy-asserted user.
	http.Redirect(w, r, s.cfg.OAuth.AuthCodeURL(mustUser(r), s.redirectURL(r)), http.StatusFound)
}

func (s *Server) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	username := mustUser(r)
	q := r.URL.Query()

	if errParam := q.Get("error"); errParam != "" {
		s.logger.Warn("google consent denied", logging.User(username), logging.Status(errParam))
		writeError(w, http.StatusBadRequest, "Authorization denied")
		return
	}

	code, state := q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		writeError(w, http.StatusBadRequest, "Missing code or state")
		return
	}
	if state != username {
		writeError(w, http.StatusBadRequest, "Invalid state")
		return
	}

	creds, err := s.cfg.OAuth.Exchange(r.Context(), code, s.redirectURL(r))
	if err != nil {
		s.logger.Error("oauth exchange failed", logging.User(username), logging.Err(err))
		writeError(w, http.StatusInternalServerError, "OAuth exchange failed")
		return
	}
	blob, err := creds.Encode()
	if err != nil {
		s.logger.Error("failed to encode credentials", logging.User(username), logging.Err(err))
		writeError(w, http.StatusInternalServerError, "OAuth exchange failed")
		return
	}

	acct := sync.Account{
		Username:    username,
		ServiceType: sync.ServiceGoogleTasks,
		Credentials: blob,
		Enabled:     true,
	}
	existing, err := s.cfg.Store.GetAccountByUser(r.Context(), username)
	switch {
	case err == nil:
		acct.Config = existing.Config
		acct.Enabled = existing.Enabled
	case !errors.Is(err, sync.ErrNotFound):
		s.logger.Error("failed to load account", logging.User(username), logging.Err(err))
		writeError(w, http.StatusInternalServerError, "Failed to save account")
		return
	}

	if _, err := s.cfg.Store.UpsertAccount(r.Context(), acct); err != nil {
		s.logger.Error("failed to save account", logging.User(username), logging.Err(err))
		writeError(w, http.StatusInternalServerError, "Failed to save account")
		return
	}

	s.logger.Info("google tasks account connected", logging.User(username))
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleGoogleStatus(w http.ResponseWriter, r *http.Request) {
	acct, err := s.cfg.Store.GetAccountByUser(r.Context(), mustUser(r))
	if errors.Is(err, sync.ErrNotFound) {
		writeJSON(w, http.StatusOK, googleStatusResponse{})
		return
	}
	if err != nil {
		s.logger.Error("failed to load account", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "Failed to load account")
		return
	}
	writeJSON(w, http.StatusOK, googleStatusResponse{
		Connected: acct.Credentials != "",
		Enabled:   acct.Enabled,
	})
}

func (s *Server) handleGoogleDisconnect(w http.ResponseWriter, r *http.Request) {
	username := mustUser(r)
	err := s.cfg.Store.DeleteAccountByUser(r.Context(), username)
	if err != nil && !errors.Is(err, sync.ErrNotFound) {
		s.logger.Error("failed to disconnect account", logging.User(username), logging.Err(err))
		writeError(w, http.StatusInternalServerError, "Failed to disconnect account")
		return
	}
	s.logger.Info("google tasks account disconnected", logging.User(username))
	w.WriteHeader(http.StatusNoContent)
}

// redirectURL is the OAuth callback URL as seen by the browser.
func (s *Server) redirectURL(r *http.Request) string {
	if s.cfg.BaseURL != "" {
		return strings.TrimRight(s.cfg.BaseURL, "/") + callbackPath
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}
	return scheme + "://" + r.Host + callbackPath
}
