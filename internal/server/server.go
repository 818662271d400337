// Package server exposes the fetch core over HTTP/JSON.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/marcus/mailgrab/internal/config"
	"github.com/marcus/mailgrab/internal/fetch"
	"github.com/marcus/mailgrab/internal/provider"
	"github.com/marcus/mailgrab/pkg/types"
)

// Fetcher runs one mailbox session per request.
type Fetcher interface {
	Fetch(ctx context.Context, cfg provider.Config, subject string) fetch.Outcome
}

// Historian records and lists fetch attempts. May be nil when the journal
// is disabled.
type Historian interface {
	Record(provider, outcome string, duration time.Duration) error
	Recent(limit int) ([]types.HistoryEntry, error)
}

// Server is the HTTP front of the service.
type Server struct {
	cfg     *config.Config
	fetcher Fetcher
	history Historian
	logger  *logrus.Logger
	mux     *http.ServeMux
}

// New creates a server. history may be nil.
func New(cfg *config.Config, fetcher Fetcher, history Historian, logger *logrus.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		fetcher: fetcher,
		history: history,
		logger:  logger,
		mux:     http.NewServeMux(),
	}

	s.mux.HandleFunc("/", s.handleRoot)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/fetch", s.handleFetch)
	s.mux.HandleFunc("/api/history", s.handleHistory)

	return s
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.accessLog(s.cors(s.limitBody(s.mux)))
}

// cors answers preflight requests and marks every response as
// cross-origin-accessible.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// limitBody caps request bodies so a misbehaving client cannot hold a
// connection open streaming an unbounded payload.
func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		}).Info("Request handled")
	})
}
