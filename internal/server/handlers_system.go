package server

import (
	"net/http"
	"time"

	"github.com/lfmartins/carteira/internal/common"
)

// handleHealth handles GET /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": common.GetVersion(),
		"uptime":  time.Since(s.app.StartupTime).Round(time.Second).String(),
	})
}

// handleVersion handles GET /api/version.
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"commit":  common.GetGitCommit(),
	})
}
