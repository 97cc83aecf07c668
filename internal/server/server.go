// Package server exposes SmokePing samples over HTTP as JSON, shaped for
// Home Assistant REST sensors and similar local-network consumers.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"sort"
	"time"

	"github.com/ryanplanchart/smokeping-api/internal/metrics"
	"github.com/ryanplanchart/smokeping-api/internal/rrd"
)

var targetNameRE = regexp.MustCompile(`^[\w-]+$`)

type HealthResponse struct {
	Status   string `json:"status"`
	Hostname string `json:"hostname"`
	ISP      string `json:"isp"`
}

// OverviewResponse carries the latest sample for every configured target.
type OverviewResponse struct {
	Targets     map[string]rrd.Sample `json:"targets"`
	ISP         string                `json:"isp"`
	Hostname    string                `json:"hostname"`
	CollectedAt string                `json:"collected_at"`
}

type TargetSample struct {
	rrd.Sample
	Target string `json:"target"`
	ISP    string `json:"isp"`
}

type unknownTargetResponse struct {
	Error     string   `json:"error"`
	Available []string `json:"available"`
}

type notFoundResponse struct {
	Error     string   `json:"error"`
	Endpoints []string `json:"endpoints"`
}

type Server struct {
	log     *slog.Logger
	cfg     *Config
	handler http.Handler
}

func New(cfg *Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{log: cfg.Logger, cfg: cfg}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleOverview)
	// JSON alias kept for dashboards that predate the overview path.
	mux.HandleFunc("GET /metrics", s.handleOverview)
	mux.HandleFunc("GET /target/{name}", s.handleTarget)
	mux.HandleFunc("OPTIONS /", s.handlePreflight)
	mux.HandleFunc("/", s.handleNotFound)
	s.handler = withCORS(mux)

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Serve runs the HTTP server on the listener until ctx is cancelled, then
// shuts down with a grace period.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{Handler: s}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	metrics.RequestsTotal.WithLabelValues("health").Inc()

	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:   "ok",
		Hostname: s.cfg.Hostname,
		ISP:      s.cfg.ISP,
	})
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	metrics.RequestsTotal.WithLabelValues("overview").Inc()

	results := make(map[string]rrd.Sample, len(s.cfg.Targets))
	for name, path := range s.cfg.Targets {
		results[name] = s.cfg.Reader.Fetch(r.Context(), name, path)
	}

	s.writeJSON(w, http.StatusOK, OverviewResponse{
		Targets:     results,
		ISP:         s.cfg.ISP,
		Hostname:    s.cfg.Hostname,
		CollectedAt: s.cfg.Clock.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleTarget(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !targetNameRE.MatchString(name) {
		s.handleNotFound(w, r)
		return
	}
	metrics.RequestsTotal.WithLabelValues("target").Inc()

	path, ok := s.cfg.Targets[name]
	if !ok {
		s.writeJSON(w, http.StatusNotFound, unknownTargetResponse{
			Error:     "Unknown target: " + name,
			Available: s.targetNames(),
		})
		return
	}

	// Read failures still answer 200; the error travels in the body and
	// callers must inspect it.
	sample := s.cfg.Reader.Fetch(r.Context(), name, path)
	s.writeJSON(w, http.StatusOK, TargetSample{
		Sample: sample,
		Target: name,
		ISP:    s.cfg.ISP,
	})
}

func (s *Server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	metrics.RequestsTotal.WithLabelValues("not_found").Inc()

	s.writeJSON(w, http.StatusNotFound, notFoundResponse{
		Error:     "Not found",
		Endpoints: []string{"/", "/health", "/target/<name>"},
	})
}

func (s *Server) targetNames() []string {
	names := make([]string, 0, len(s.cfg.Targets))
	for name := range s.cfg.Targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		s.log.Error("failed to write response", "error", err)
	}
}

// withCORS allows cross-origin reads from any origin; reachability is
// gated at the network level, not here.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		next.ServeHTTP(w, r)
	})
}
