package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/teemow/duety/internal/logging"
	"github.com/teemow/duety/internal/store"
	"github.com/teemow/duety/internal/sync"
)

type createCalendarRequest struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

func (s *Server) handleListCalendars(w http.ResponseWriter, r *http.Request) {
	cals, err := s.cfg.Store.ListCalendars(r.Context(), mustUser(r))
	if err != nil {
		s.logger.Error("failed to list calendars", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "Failed to list calendars")
		return
	}
	writeJSON(w, http.StatusOK, cals)
}

func (s *Server) handleCreateCalendar(w http.ResponseWriter, r *http.Request) {
	username := mustUser(r)

	var req createCalendarRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "URL is required")
		return
	}
	if !validFeedURL(req.URL) {
		writeError(w, http.StatusBadRequest, "Invalid URL format")
		return
	}

	cal, err := s.cfg.Store.CreateCalendar(r.Context(), username, req.URL, strings.TrimSpace(req.Name))
	if errors.Is(err, store.ErrDuplicate) {
		writeError(w, http.StatusConflict, "Calendar already registered")
		return
	}
	if err != nil {
		s.logger.Error("failed to create calendar", logging.User(username), logging.Err(err))
		writeError(w, http.StatusInternalServerError, "Failed to create calendar")
		return
	}

	s.logger.Info("calendar registered", logging.User(username), slog.String(logging.KeyCalendar, cal.ID))
	writeJSON(w, http.StatusCreated, cal)
}

func (s *Server) handleGetCalendar(w http.ResponseWriter, r *http.Request) {
	cal, ok := s.ownedCalendar(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, cal)
}

func (s *Server) handleDeleteCalendar(w http.ResponseWriter, r *http.Request) {
	username := mustUser(r)
	cal, ok := s.ownedCalendar(w, r)
	if !ok {
		return
	}

	err := s.cfg.Store.DeleteCalendar(r.Context(), username, cal.ID)
	if errors.Is(err, sync.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Calendar not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to delete calendar", logging.User(username), logging.Err(err))
		writeError(w, http.StatusInternalServerError, "Failed to delete calendar")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ownedCalendar loads the {id} calendar and answers 404 unless it belongs
// to the requesting user.
func (s *Server) ownedCalendar(w http.ResponseWriter, r *http.Request) (sync.Calendar, bool) {
	cal, err := s.cfg.Store.GetCalendar(r.Context(), r.PathValue("id"))
	if errors.Is(err, sync.ErrNotFound) || (err == nil && cal.Username != mustUser(r)) {
		writeError(w, http.StatusNotFound, "Calendar not found")
		return sync.Calendar{}, false
	}
	if err != nil {
		s.logger.Error("failed to load calendar", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "Failed to load calendar")
		return sync.Calendar{}, false
	}
	return cal, true
}

// validFeedURL accepts absolute http, https and webcal URLs with a host.
func validFeedURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	if err != nil || u.Host == "" {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "webcal":
		return true
	}
	return false
}
