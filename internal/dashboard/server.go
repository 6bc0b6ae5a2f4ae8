// Package dashboard serves collected run data over HTTP, replacing the
// spreadsheet-only hand-off with a small read-only JSON API plus Prometheus
// metrics. It reads the latest stored snapshot on every request; it never
// triggers collection itself.
package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/repopulse/repopulse/internal/report"
)

// SnapshotStore is the slice of the database the dashboard reads.
type SnapshotStore interface {
	LatestSnapshot() (report.Snapshot, bool, error)
}

// Server is the dashboard HTTP server.
type Server struct {
	store  SnapshotStore
	logger *zap.Logger
	http   *http.Server
}

// New builds a server listening on addr.
func New(addr string, store SnapshotStore, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{store: store, logger: logger}

	router := chi.NewRouter()
	router.Use(s.logRequests)
	router.Get("/healthz", s.handleHealthz)
	router.Handle("/metrics", promhttp.Handler())
	router.Route("/api", func(r chi.Router) {
		r.Get("/summary", s.handleSummary)
		r.Get("/activity", s.handleActivity)
		r.Get("/contributors", s.handleContributors)
		r.Get("/commits", s.handleCommits)
	})

	s.http = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.logger.Info("dashboard listening", zap.String("addr", s.http.Addr))
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		requestsTotal.WithLabelValues(r.URL.Path, strconv.Itoa(rec.status)).Inc()
		s.logger.Info("request finished",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("latency", time.Since(start)))
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// loadSnapshot fetches the latest snapshot, writing the error response
// itself when there is nothing to serve.
func (s *Server) loadSnapshot(w http.ResponseWriter) (report.Snapshot, bool) {
	snap, ok, err := s.store.LatestSnapshot()
	if err != nil {
		s.logger.Error("failed to load snapshot", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load snapshot"})
		return report.Snapshot{}, false
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no runs stored yet"})
		return report.Snapshot{}, false
	}
	snapshotLoadsTotal.Inc()
	return snap, true
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.loadSnapshot(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"organization":      snap.Organization,
		"start_date":        snap.StartDate,
		"end_date":          snap.EndDate,
		"generated_at":      snap.GeneratedAt,
		"pr_threshold_days": snap.PRThresholdDays,
		"max_labels":        snap.MaxLabels,
		"summary":           snap.Summary,
	})
}

func (s *Server) handleActivity(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.loadSnapshot(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snap.Activity)
}

func (s *Server) handleContributors(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.loadSnapshot(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snap.Contributors)
}

func (s *Server) handleCommits(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.loadSnapshot(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snap.Commits)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
