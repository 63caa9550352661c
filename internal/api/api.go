package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/daimoniac/securevision/internal/config"
	"github.com/daimoniac/securevision/internal/dashboard"
	"github.com/daimoniac/securevision/internal/errors"
	"github.com/daimoniac/securevision/internal/metrics"
	"github.com/daimoniac/securevision/internal/snapshot"
	"github.com/daimoniac/securevision/internal/statestore"
	"github.com/gorilla/websocket"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/daimoniac/securevision/internal/api/docs" // Register swagger docs
)

// @title securevision API
// @version 1.0
// @description Read-only REST API exposing the polled security posture snapshot, its history and a live websocket stream.

// @contact.name securevision
// @license.name Apache 2.0
// @license.url https://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api/v1

// Dashboard is the session state served by the API
type Dashboard interface {
	View() dashboard.View
	Metrics() *snapshot.Cell[metrics.SecurityMetrics]
	Timeline() []metrics.ThreatSample
	Vulnerabilities() []metrics.VulnerabilityBucket
	// Subscribe notifies after each applied metrics snapshot
	Subscribe() (<-chan time.Time, func())
	// History returns nil when no store is configured
	History() statestore.StateStore
}

// APIServer serves the dashboard over HTTP
type APIServer struct {
	config    *config.APIConfig
	dashboard Dashboard
	router    *http.ServeMux
	server    *http.Server
	upgrader  websocket.Upgrader
	logger    *slog.Logger

	// closing is closed on shutdown; hijacked stream connections are not
	// tracked by http.Server
	closing     chan struct{}
	closingOnce sync.Once
}

// NewAPIServer creates a new API server instance
func NewAPIServer(cfg *config.APIConfig, dash Dashboard, logger *slog.Logger) *APIServer {
	api := &APIServer{
		config:    cfg,
		dashboard: dash,
		router:    http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:  logger,
		closing: make(chan struct{}),
	}

	api.setupRoutes()

	api.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     api.router,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: it would cut long-lived stream connections
		IdleTimeout: 60 * time.Second,
	}
	api.server.RegisterOnShutdown(api.closeStreams)

	return api
}

// closeStreams tells every open stream handler to close its connection
func (s *APIServer) closeStreams() {
	s.closingOnce.Do(func() {
		close(s.closing)
	})
}

// Handler returns the router, for tests and embedding
func (s *APIServer) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all API routes
func (s *APIServer) setupRoutes() {
	s.router.HandleFunc("/api/v1/dashboard", s.corsMiddleware(s.handleDashboard))
	s.router.HandleFunc("/api/v1/metrics", s.corsMiddleware(s.handleMetrics))
	s.router.HandleFunc("/api/v1/metrics/history", s.corsMiddleware(s.handleHistory))
	s.router.HandleFunc("/api/v1/timeline", s.corsMiddleware(s.handleTimeline))
	s.router.HandleFunc("/api/v1/vulnerabilities", s.corsMiddleware(s.handleVulnerabilities))
	s.router.HandleFunc("/api/v1/stream", s.handleStream)

	// Swagger documentation
	s.router.HandleFunc("/swagger/", httpSwagger.WrapHandler)

	// Redirect root to swagger
	s.router.HandleFunc("/", s.handleRootRedirect)
}

// corsMiddleware adds CORS headers to allow cross-origin requests
func (s *APIServer) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "3600")

		// Handle preflight OPTIONS request
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

// Start starts the API server and blocks until ctx is cancelled
func (s *APIServer) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("API server is disabled")
		return nil
	}

	s.logger.Info("starting API server",
		"port", s.config.Port)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("API server error",
				"error", err.Error())
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info("shutting down API server")
	return s.server.Shutdown(shutdownCtx)
}

// Shutdown gracefully shuts down the API server
func (s *APIServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// respondJSON sends a JSON response
func (s *APIServer) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("error encoding JSON response",
			"error", err.Error())
	}
}

// statusForError maps error sentinels to HTTP status codes
func statusForError(err error) int {
	switch {
	case stderrors.Is(err, errors.ErrInvalidInput):
		return http.StatusBadRequest
	case stderrors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondError sends an error response
func (s *APIServer) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// parseQueryParamInt extracts an integer query parameter
func parseQueryParamInt(r *http.Request, key string, defaultValue int) (int, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue, nil
	}
	var intValue int
	if _, err := fmt.Sscanf(value, "%d", &intValue); err != nil || fmt.Sprint(intValue) != value {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", errors.ErrInvalidInput, key, value)
	}
	return intValue, nil
}

// handleRootRedirect redirects / to /swagger/
func (s *APIServer) handleRootRedirect(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.respondError(w, http.StatusNotFound, "not found")
		return
	}
	http.Redirect(w, r, "/swagger/", http.StatusMovedPermanently)
}
