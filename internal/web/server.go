// Package web provides the operational HTTP surface of the worker: liveness,
// readiness, and validation limiter status.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/robodata/internal/core"
	weblog "github.com/JonMunkholm/robodata/internal/web/middleware"
)

// StatusSource is the part of core.Service the health server reports on.
type StatusSource interface {
	BrokerConnected(ctx context.Context) bool
	Limiter() *core.ValidationLimiter
}

// Check is one readiness dependency. Ping returns nil when healthy.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// checkTimeout bounds each readiness probe.
const checkTimeout = 3 * time.Second

// Server is the health HTTP server.
type Server struct {
	source StatusSource
	checks []Check
	router *chi.Mux
	server *http.Server
}

// NewServer creates a Server reporting on source and checks.
func NewServer(source StatusSource, checks ...Check) *Server {
	s := &Server{
		source: source,
		checks: checks,
		router: chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(weblog.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))
	s.router.Use(securityHeaders)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleReady)
	s.router.Get("/status/limiter", s.handleLimiterStatus)

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, errRouteNotFound, http.StatusNotFound)
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, errMethodNotAllowed, http.StatusMethodNotAllowed)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	slog.Info("health server listening", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CheckResult is one dependency's readiness outcome.
type CheckResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Code   string `json:"code,omitempty"`
}

// ReadinessResponse is the /readyz body.
type ReadinessResponse struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`

	// Dispatch is "queued" when the broker is reachable and "inline" otherwise.
	// Inline dispatch still works, so it does not affect Status.
	Dispatch core.DispatchMode `json:"dispatch"`
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := ReadinessResponse{
		Status:   "ready",
		Checks:   make(map[string]CheckResult, len(s.checks)),
		Dispatch: core.ModeInline,
	}

	for _, c := range s.checks {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := c.Ping(checkCtx)
		cancel()

		if err == nil {
			resp.Checks[c.Name] = CheckResult{Status: "ok"}
			continue
		}
		msg := core.MapError(err)
		resp.Status = "unavailable"
		resp.Checks[c.Name] = CheckResult{Status: "error", Error: msg.Message, Code: msg.Code}
		slog.Warn("readiness check failed", "check", c.Name, "error", err, "code", msg.Code)
	}

	if s.source.BrokerConnected(ctx) {
		resp.Dispatch = core.ModeQueued
	}

	status := http.StatusOK
	if resp.Status != "ready" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleLimiterStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.source.Limiter().Status())
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
