package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yakey01/dokterku-sub007/internal/core/domain"
	"github.com/yakey01/dokterku-sub007/internal/fetch"
	"github.com/yakey01/dokterku-sub007/internal/manager"
	"github.com/yakey01/dokterku-sub007/internal/recovery"
)

// Fetcher serves ad-hoc data requests.
type Fetcher interface {
	Fetch(ctx context.Context, variant domain.Variant, period string, opts fetch.Options) (*fetch.Result, error)
	Summary(ctx context.Context, variant domain.Variant, period string, opts fetch.Options) (*fetch.SummaryResult, error)
}

// Options wires the API endpoints.
type Options struct {
	Port     int
	Fetcher  Fetcher
	Managers map[domain.Variant]*manager.Manager
	Tracker  *recovery.Tracker
}

// Server provides HTTP endpoints for health monitoring and data access.
type Server struct {
	monitor *Monitor
	opts    Options
	server  *http.Server
	log     *slog.Logger
}

// NewServer creates a new health server.
func NewServer(monitor *Monitor, opts Options) *Server {
	mux := http.NewServeMux()
	s := &Server{
		monitor: monitor,
		opts:    opts,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", opts.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: slog.Default().With("component", "http"),
	}

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/detailed", s.handleDetailed)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/jaspel/{variant}", s.handleJaspel)
	mux.HandleFunc("GET /api/summary/{variant}", s.handleSummary)
	mux.HandleFunc("GET /api/dashboard/{variant}", s.handleDashboard)
	mux.HandleFunc("GET /api/achievements/{variant}", s.handleAchievements)
	mux.HandleFunc("GET /api/metrics/{variant}", s.handleMetrics)
	mux.HandleFunc("GET /api/notifications/{variant}", s.handleNotifications)
	mux.HandleFunc("DELETE /api/cache/{variant}", s.handleClearCache)
	mux.HandleFunc("GET /api/errors", s.handleErrors)

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info("HTTP server listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := Aggregate(s.monitor.CheckHealth())

	code := http.StatusOK
	if status == StatusCritical {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": string(status)})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	variants := s.monitor.CheckHealth()
	writeJSON(w, http.StatusOK, Report{SystemStatus: Aggregate(variants), Variants: variants})
}

func (s *Server) handleJaspel(w http.ResponseWriter, r *http.Request) {
	variant, period, opts, ok := dataRequest(w, r)
	if !ok {
		return
	}
	res, err := s.opts.Fetcher.Fetch(r.Context(), variant, period, opts)
	if err != nil {
		s.writeFetchError(w, variant, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	variant, period, opts, ok := dataRequest(w, r)
	if !ok {
		return
	}
	res, err := s.opts.Fetcher.Summary(r.Context(), variant, period, opts)
	if err != nil {
		s.writeFetchError(w, variant, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// dataRequest parses the variant path value and the period, user and refresh query
// parameters shared by the data endpoints.
func dataRequest(w http.ResponseWriter, r *http.Request) (domain.Variant, string, fetch.Options, bool) {
	variant, err := domain.ParseVariant(r.PathValue("variant"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return "", "", fetch.Options{}, false
	}

	q := r.URL.Query()
	period := q.Get("period")
	if period == "" {
		period = time.Now().Format(manager.PeriodLayout)
	} else if _, err := time.Parse(manager.PeriodLayout, period); err != nil {
		writeError(w, http.StatusBadRequest, "period must be YYYY-MM")
		return "", "", fetch.Options{}, false
	}
	refresh, _ := strconv.ParseBool(q.Get("refresh"))
	return variant, period, fetch.Options{ForceRefresh: refresh, UserID: q.Get("user")}, true
}

func (s *Server) writeFetchError(w http.ResponseWriter, variant domain.Variant, err error) {
	var cerr *domain.ClassifiedError
	switch {
	case errors.Is(err, fetch.ErrNoEndpoints):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &cerr):
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": cerr})
	default:
		s.log.Warn("Fetch request failed", "variant", variant, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	m, ok := s.manager(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, m.Dashboard())
}

func (s *Server) handleAchievements(w http.ResponseWriter, r *http.Request) {
	m, ok := s.manager(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, m.Achievements())
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	m, ok := s.manager(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, m.GetMetrics())
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	m, ok := s.manager(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, m.Notifications())
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	m, ok := s.manager(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": m.ClearCache()})
}

func (s *Server) handleErrors(w http.ResponseWriter, r *http.Request) {
	if s.opts.Tracker == nil {
		writeJSON(w, http.StatusOK, map[string]any{"recent": []any{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"recent": s.opts.Tracker.Recent(),
		"stats":  s.opts.Tracker.Stats(),
	})
}

func (s *Server) manager(w http.ResponseWriter, r *http.Request) (*manager.Manager, bool) {
	variant, err := domain.ParseVariant(r.PathValue("variant"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	m, ok := s.opts.Managers[variant]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("variant %q is not served", variant))
		return nil, false
	}
	return m, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
