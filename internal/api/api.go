// Package api exposes the HTTP and WebSocket surface: lecture CRUD and
// export, on-demand deep research, live session streaming, health probes, and
// Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lectern-ai/lectern/internal/analysis"
	"github.com/lectern-ai/lectern/internal/health"
	"github.com/lectern-ai/lectern/internal/lecture"
	"github.com/lectern-ai/lectern/internal/observe"
	"github.com/lectern-ai/lectern/internal/session"
)

// SessionStarter is the slice of the session manager the API needs.
// Implemented by app.SessionManager.
type SessionStarter interface {
	// StartSession opens a live session for the lecture. Returns an error
	// when the lecture already has one.
	StartSession(ctx context.Context, lectureID string) (*session.Runtime, error)

	// Get returns the live session for a lecture, if any.
	Get(lectureID string) (*session.Runtime, bool)
}

// Config holds the HTTP surface settings.
type Config struct {
	// AllowedOrigins lists the origins allowed for CORS and WebSocket
	// upgrades. "*" allows any origin.
	AllowedOrigins []string
}

// Deps are the backends the API serves.
type Deps struct {
	Store    lecture.Store
	Sessions SessionStarter
	Analyzer analysis.Analyzer
}

// Server routes HTTP traffic to the lecture store, the analyzer, and the
// session manager.
type Server struct {
	store    lecture.Store
	sessions SessionStarter
	analyzer analysis.Analyzer
	cfg      Config
	metrics  *observe.Metrics
	log      *slog.Logger
	mux      *http.ServeMux
}

// New builds the API server and registers all routes.
func New(deps Deps, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:    deps.Store,
		sessions: deps.Sessions,
		analyzer: deps.Analyzer,
		cfg:      cfg,
		metrics:  observe.DefaultMetrics(),
		log:      logger.With("component", "api"),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	mux := http.NewServeMux()

	h := health.New(health.Checker{Name: "store", Check: s.store.Ping})
	h.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/lectures", s.handleListLectures)
	mux.HandleFunc("POST /api/lectures", s.handleCreateLecture)
	mux.HandleFunc("GET /api/lectures/{id}", s.handleGetLecture)
	mux.HandleFunc("PATCH /api/lectures/{id}", s.handleUpdateLecture)
	mux.HandleFunc("DELETE /api/lectures/{id}", s.handleDeleteLecture)
	mux.HandleFunc("GET /api/lectures/{id}/cards", s.handleListCards)
	mux.HandleFunc("GET /api/lectures/{id}/takeaways", s.handleListTakeaways)
	mux.HandleFunc("GET /api/lectures/{id}/export", s.handleExportLecture)

	mux.HandleFunc("POST /api/research/deep", s.handleDeepResearch)

	mux.HandleFunc("GET /ws/{id}", s.handleSession)

	s.mux = mux
}

// Handler returns the fully wrapped HTTP handler: routes behind CORS and the
// request metrics middleware.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = s.cors(h)
	h = observe.Middleware(s.metrics)(h)
	return h
}

// cors applies the configured origin allowlist and answers preflights.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	return slices.Contains(s.cfg.AllowedOrigins, "*") ||
		slices.Contains(s.cfg.AllowedOrigins, origin)
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "err", err)
	}
}

// writeError sends a JSON error body with the given status.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
