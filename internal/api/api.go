package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cfarm/ccp-test/internal/config"
	"github.com/cfarm/ccp-test/internal/policy"
	"github.com/cfarm/ccp-test/internal/queue"
	"github.com/cfarm/ccp-test/internal/report"
	"github.com/cfarm/ccp-test/internal/statestore"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/cfarm/ccp-test/build/swagger" // Import generated docs
)

// @title ccp-test API
// @version 1.0
// @description REST API for querying dependency scan processing runs, managing policy suppressions, and triggering reprocessing.
// @description
// @description ## Features
// @description - Query processing runs and finding data
// @description - List applied suppressions and expiry status
// @description - Inspect the current policy document
// @description - Generate policy stubs for unsuppressed findings
// @description - Trigger reprocessing of reports
// @description - Health checks and metrics

// @contact.name ccp-test
// @license.name Apache 2.0
// @license.url https://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Enter your API key (with or without "Bearer " prefix)

// APIServer provides HTTP API for querying run results and triggering operations
type APIServer struct {
	config      *config.APIConfig
	stateStore  statestore.StateStore
	taskQueue   queue.TaskQueue
	policyStore *policy.Store
	source      report.Source
	router      *http.ServeMux
	server      *http.Server
	logger      *slog.Logger
}

// NewAPIServer creates a new API server instance
func NewAPIServer(cfg *config.APIConfig, store statestore.StateStore, queue queue.TaskQueue, policyStore *policy.Store, source report.Source, logger *slog.Logger) *APIServer {
	api := &APIServer{
		config:      cfg,
		stateStore:  store,
		taskQueue:   queue,
		policyStore: policyStore,
		source:      source,
		router:      http.NewServeMux(),
		logger:      logger,
	}

	api.setupRoutes()

	api.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return api
}

// setupRoutes configures all API routes
func (s *APIServer) setupRoutes() {
	// Query endpoints (GET)
	s.router.HandleFunc("/api/v1/runs", s.corsMiddleware(s.authMiddleware(s.handleListRuns, false)))
	s.router.HandleFunc("/api/v1/runs/", s.corsMiddleware(s.authMiddleware(s.handleGetRun, false)))
	s.router.HandleFunc("/api/v1/findings", s.corsMiddleware(s.authMiddleware(s.handleQueryFindings, false)))
	s.router.HandleFunc("/api/v1/vulnerabilities/", s.corsMiddleware(s.authMiddleware(s.handleReportsByVuln, false)))
	s.router.HandleFunc("/api/v1/suppressions", s.corsMiddleware(s.authMiddleware(s.handleListSuppressions, false)))
	s.router.HandleFunc("/api/v1/policy", s.corsMiddleware(s.authMiddleware(s.handleGetPolicy, false)))
	s.router.HandleFunc("/api/v1/policy/stub", s.corsMiddleware(s.authMiddleware(s.handleGetPolicyStub, false)))

	// Action endpoints (POST)
	s.router.HandleFunc("/api/v1/runs/trigger", s.corsMiddleware(s.authMiddleware(s.handleTriggerRun, true)))

	// Health and metrics
	s.router.HandleFunc("/health", s.corsMiddleware(s.handleHealth))
	s.router.HandleFunc("/metrics", s.corsMiddleware(s.handleMetrics))

	// Swagger documentation
	s.router.HandleFunc("/swagger/", httpSwagger.WrapHandler)

	// Redirect root to swagger
	s.router.HandleFunc("/", s.handleRootRedirect)
}

// corsMiddleware adds CORS headers to allow cross-origin requests
func (s *APIServer) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Set CORS headers
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		// Handle preflight OPTIONS request
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		// Call the next handler
		next(w, r)
	}
}

// authMiddleware provides optional API key authentication
// requireWrite indicates if this is a write operation that should be blocked in read-only mode
func (s *APIServer) authMiddleware(next http.HandlerFunc, requireWrite bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Check if write operation is allowed
		if requireWrite && s.config.ReadOnly {
			s.respondError(w, http.StatusForbidden, "API is in read-only mode")
			return
		}

		// If API key is configured, validate it
		if s.config.APIKey != "" {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				s.respondError(w, http.StatusUnauthorized, "Authorization header required")
				return
			}

			// Extract token - accept both "Bearer <token>" and just "<token>"
			token := authHeader
			if strings.HasPrefix(authHeader, "Bearer ") {
				token = strings.TrimPrefix(authHeader, "Bearer ")
			}

			if token != s.config.APIKey {
				s.respondError(w, http.StatusUnauthorized, "Invalid API key")
				return
			}
		}

		// Authentication passed, call the handler
		next(w, r)
	}
}

// Start starts the API server
func (s *APIServer) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("API server is disabled")
		return nil
	}

	s.logger.Info("starting API server",
		"port", s.config.Port)

	// Start server in a goroutine
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("API server error",
				"error", err.Error())
		}
	}()

	// Wait for context cancellation
	<-ctx.Done()

	// Graceful shutdown
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

// respondError sends an error response
func (s *APIServer) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// parseQueryParam extracts a query parameter from the request
func parseQueryParam(r *http.Request, key string) string {
	return r.URL.Query().Get(key)
}

// parseQueryParamInt extracts an integer query parameter
func parseQueryParamInt(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}
	var intValue int
	if _, err := fmt.Sscanf(value, "%d", &intValue); err == nil {
		return intValue
	}
	return defaultValue
}

// parseQueryParamBool extracts a boolean query parameter
func parseQueryParamBool(r *http.Request, key string) *bool {
	value := r.URL.Query().Get(key)
	if value == "" {
		return nil
	}
	boolValue := value == "true" || value == "1" || value == "yes"
	return &boolValue
}

// handleRootRedirect redirects / to /swagger/
func (s *APIServer) handleRootRedirect(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.respondError(w, http.StatusNotFound, "not found")
		return
	}
	http.Redirect(w, r, "/swagger/", http.StatusMovedPermanently)
}

// handleMetrics exposes prometheus metrics on the API port
// @Summary Prometheus metrics
// @Description Expose Prometheus-compatible metrics
// @Tags Health
// @Produce plain
// @Success 200 {string} string "Prometheus metrics"
// @Router /metrics [get]
func (s *APIServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	promhttp.Handler().ServeHTTP(w, r)
}
