// Package health serves run progress and prometheus metrics over HTTP while a
// bulk delete is in progress.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jatinvaidya/auth0-bulk-delete/internal/bulk/runner"
)

// Status is the coarse state reported by /health.
type Status string

const (
	StatusRunning  Status = "running"
	StatusIdle     Status = "idle"
	StatusDegraded Status = "degraded"
)

// ProgressSource reports the state of the current run.
type ProgressSource interface {
	Progress() runner.Progress
}

// Server provides HTTP endpoints for run monitoring.
type Server struct {
	source ProgressSource
	server *http.Server
	log    *slog.Logger
}

// NewServer creates a new health server listening on port.
func NewServer(source ProgressSource, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		source: source,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: slog.Default().With("component", "health"),
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/detailed", s.handleDetailed)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Start serves in the background until Stop is called.
func (s *Server) Start() {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Health server failed", "error", err)
		}
	}()
	s.log.Info("Health server listening", "addr", s.server.Addr)
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the routes, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// degradedMinSettled is how many jobs must settle before a run can be
// reported degraded.
const degradedMinSettled = 10

// status derives the coarse state. 404s are ids that are already gone and do
// not count against the run.
func status(p runner.Progress) Status {
	failing := p.Failed - p.NotFound
	switch {
	case !p.Running:
		return StatusIdle
	case p.Succeeded+p.Failed >= degradedMinSettled && failing > 0 && failing >= p.Succeeded:
		// more failures than deletions usually means a bad token or wrong mode
		return StatusDegraded
	default:
		return StatusRunning
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	p := s.source.Progress()
	response := map[string]string{"status": string(status(p))}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	p := s.source.Progress()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Status Status `json:"status"`
		runner.Progress
	}{status(p), p})
}
