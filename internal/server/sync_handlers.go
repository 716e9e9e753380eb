package server

import (
	"log/slog"
	"net/http"

	"github.com/teemow/duety/internal/logging"
	"github.com/teemow/duety/internal/sync"
)

type syncResponse struct {
	Success bool        `json:"success"`
	Stats   *sync.Stats `json:"stats"`
}

type syncStatusResponse struct {
	PollingEnabled  bool `json:"pollingEnabled"`
	PollingActive   bool `json:"pollingActive"`
	IntervalMinutes int  `json:"intervalMinutes"`
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	username := mustUser(r)

	stats := s.cfg.Syncer.RunForUser(r.Context(), sync.TriggerManual, username)
	if !stats.Success() {
		s.logger.Warn("manual sync finished with errors", logging.User(username), slog.Int("errors", stats.Errors))
	}
	writeJSON(w, http.StatusOK, syncResponse{Success: stats.Success(), Stats: stats})
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, _ *http.Request) {
	cfg := s.cfg.Poller.Config()
	writeJSON(w, http.StatusOK, syncStatusResponse{
		PollingEnabled:  cfg.Enabled,
		PollingActive:   s.cfg.Poller.IsActive(),
		IntervalMinutes: cfg.IntervalMinutes,
	})
}
