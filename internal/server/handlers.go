package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/marcus/mailgrab/internal/fetch"
	"github.com/marcus/mailgrab/internal/provider"
	"github.com/marcus/mailgrab/pkg/types"
)

// handleFetch drives one fetch request end to end: validate, resolve the
// provider, run the session, map the outcome to an HTTP response. All
// validation happens before any network activity.
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST", "", 0)
		return
	}

	var req types.FetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON", "", 0)
		return
	}

	if missing := missingFields(req); len(missing) > 0 {
		writeError(w, http.StatusBadRequest, "invalid_request",
			"missing required fields: "+strings.Join(missing, ", "), "", 0)
		return
	}

	cfg, err := provider.Resolve(req.Provider, req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown_provider",
			"provider must be one of: "+strings.Join(provider.Names(), ", "), "", 0)
		return
	}

	start := time.Now()
	out := s.fetcher.Fetch(r.Context(), cfg, req.Subject)
	elapsed := time.Since(start)

	if s.history != nil {
		if err := s.history.Record(cfg.Name, out.Kind.String(), elapsed); err != nil {
			s.logger.WithError(err).Warn("Failed to record fetch history")
		}
	}

	switch out.Kind {
	case fetch.OutcomeFound:
		writeJSON(w, http.StatusOK, types.FetchResponse{
			Success: true,
			Data:    out.Message,
			Meta:    types.ResponseMeta{DurationSeconds: roundSeconds(elapsed)},
		})
	case fetch.OutcomeTimedOut, fetch.OutcomeCanceled:
		// A canceled request has no caller left to read this, but the
		// journal above still distinguishes it from a real timeout.
		writeError(w, http.StatusRequestTimeout, "timeout",
			"the mailbox did not answer in time; try a more specific subject", "", elapsed)
	case fetch.OutcomeAuthFailed:
		writeError(w, http.StatusUnauthorized, "authentication_failed",
			"the server rejected the credentials; "+cfg.Name+" requires an app-specific password",
			provider.HelpURL(cfg.Name), elapsed)
	case fetch.OutcomeNotFound:
		writeError(w, http.StatusNotFound, "not_found",
			"no message found with subject containing "+strconv.Quote(req.Subject), "", elapsed)
	default:
		// Only the error's text crosses the boundary, never the
		// transport library's error values.
		msg := "fetch failed"
		if out.Err != nil {
			msg = out.Err.Error()
		}
		writeError(w, http.StatusInternalServerError, "fetch_failed", msg, "", elapsed)
	}
}

func missingFields(req types.FetchRequest) []string {
	var missing []string
	if req.Provider == "" {
		missing = append(missing, "provider")
	}
	if req.Username == "" {
		missing = append(missing, "username")
	}
	if req.Password == "" {
		missing = append(missing, "password")
	}
	if req.Subject == "" {
		missing = append(missing, "subject")
	}
	return missing
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET", "", 0)
		return
	}
	if s.history == nil {
		writeError(w, http.StatusNotFound, "not_found", "history journal is disabled", "", 0)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer", "", 0)
			return
		}
		limit = n
	}

	entries, err := s.history.Recent(limit)
	if err != nil {
		s.logger.WithError(err).Error("Failed to read fetch history")
		writeError(w, http.StatusInternalServerError, "history_failed", "failed to read history", "", 0)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    entries,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"service": "mailgrab",
	})
}

// handleRoot serves the static API documentation at "/" and a JSON 404 for
// every unrouted path.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not_found", "no such endpoint: "+r.URL.Path, "", 0)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":     "mailgrab",
		"description": "fetch the most recent email matching a subject from a hosted mailbox",
		"providers":   provider.Names(),
		"endpoints": map[string]string{
			"POST /api/fetch":  "fetch one message; body: {provider, username, password, subject}",
			"GET /api/history": "recent fetch attempts (metadata only)",
			"GET /health":      "service health",
		},
		"notes": []string{
			"all providers require an app-specific password, not the account password",
			"the most recent match is the last message in the server's search order",
		},
	})
}
