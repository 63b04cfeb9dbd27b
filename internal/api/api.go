package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/daimoniac/vesselfit/internal/api/docs" // Import generated docs
	"github.com/daimoniac/vesselfit/internal/assessment"
	"github.com/daimoniac/vesselfit/internal/audit"
	"github.com/daimoniac/vesselfit/internal/config"
	"github.com/daimoniac/vesselfit/internal/materials"
	"github.com/daimoniac/vesselfit/internal/queue"
	"github.com/daimoniac/vesselfit/internal/statestore"
)

// @title vesselfit API
// @version 1.0
// @description REST API for pressure vessel fitness-for-service calculations and the tamper-evident audit trail.
// @description
// @description ## Features
// @description - Calculate minimum thickness, MAWP, corrosion rates and remaining life per component
// @description - Assess whole vessels and find the governing MAWP
// @description - Look up allowable stress and validate material designations
// @description - Query, export and verify the audit trail
// @description - Queue inspection recalculations

// @contact.name vesselfit
// @license.name Apache 2.0
// @license.url https://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Enter your API key (with or without "Bearer " prefix)

// Headers carrying the caller identity recorded in the audit trail.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserName = "X-User-Name"
)

// Submitter enqueues a recalculation. *worker.RecalculationWorker satisfies it.
type Submitter interface {
	Submit(ctx context.Context, task *queue.RecalculationTask) (*statestore.RecalculationRun, error)
}

// APIServer exposes calculations, material lookups and the audit trail over HTTP
type APIServer struct {
	config     *config.APIConfig
	assessment *assessment.Service
	resolver   *materials.Resolver
	audit      *audit.Service
	submitter  Submitter
	runs       statestore.RunStore
	limiter    *clientLimiter
	router     *http.ServeMux
	server     *http.Server
	logger     *slog.Logger
}

// NewAPIServer creates a new API server instance. submitter and runs may be
// nil, in which case the recalculation endpoints answer 503.
func NewAPIServer(cfg *config.APIConfig, svc *assessment.Service, resolver *materials.Resolver, auditSvc *audit.Service, submitter Submitter, runs statestore.RunStore, logger *slog.Logger) *APIServer {
	if logger == nil {
		logger = slog.Default()
	}
	api := &APIServer{
		config:     cfg,
		assessment: svc,
		resolver:   resolver,
		audit:      auditSvc,
		submitter:  submitter,
		runs:       runs,
		router:     http.NewServeMux(),
		logger:     logger,
	}
	if cfg.RateLimit > 0 && cfg.RateBurst > 0 {
		api.limiter = newClientLimiter(cfg.RateLimit, cfg.RateBurst)
	}

	api.setupRoutes()

	api.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return api
}

// Handler returns the router, for tests and embedding
func (s *APIServer) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all API routes
func (s *APIServer) setupRoutes() {
	// Calculations (POST, but they only write audit entries, so allowed in read-only mode)
	s.router.HandleFunc("/api/v1/calculations", s.wrap(s.handleCalculate, false))
	s.router.HandleFunc("/api/v1/calculations/validate", s.wrap(s.handleValidateInput, false))
	s.router.HandleFunc("/api/v1/vessels/assess", s.wrap(s.handleAssessVessel, false))

	// Materials
	s.router.HandleFunc("/api/v1/materials/stress", s.wrap(s.handleAllowableStress, false))
	s.router.HandleFunc("/api/v1/materials/validate", s.wrap(s.handleValidateMaterial, false))

	// Audit trail
	s.router.HandleFunc("/api/v1/audit", s.wrap(s.handleQueryAudit, false))
	s.router.HandleFunc("/api/v1/audit/export", s.wrap(s.handleExportAudit, false))
	s.router.HandleFunc("/api/v1/audit/verify", s.wrap(s.handleVerifyChain, false))
	s.router.HandleFunc("/api/v1/audit/changes", s.wrap(s.handleLogDataChange, true))
	s.router.HandleFunc("/api/v1/inspections/{id}/audit-report", s.wrap(s.handleAuditReport, false))

	// Recalculation
	s.router.HandleFunc("/api/v1/inspections/recalculate", s.wrap(s.handleRecalculate, true))
	s.router.HandleFunc("/api/v1/inspections/{id}/runs", s.wrap(s.handleListRuns, false))

	// Swagger documentation
	s.router.HandleFunc("/swagger/", httpSwagger.WrapHandler)

	// Redirect root to swagger
	s.router.HandleFunc("/", s.handleRootRedirect)
}

// wrap applies the middleware chain shared by all API routes
func (s *APIServer) wrap(next http.HandlerFunc, requireWrite bool) http.HandlerFunc {
	return s.corsMiddleware(s.rateLimitMiddleware(s.authMiddleware(next, requireWrite)))
}

// corsMiddleware adds CORS headers to allow cross-origin requests
func (s *APIServer) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+HeaderUserID+", "+HeaderUserName)
		w.Header().Set("Access-Control-Max-Age", "3600")

		// Handle preflight OPTIONS request
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

// rateLimitMiddleware enforces a token bucket per client address
func (s *APIServer) rateLimitMiddleware(next http.HandlerFunc) http.HandlerFunc {
	if s.limiter == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ok, retryAfter := s.limiter.allow(clientIP(r))
		if !ok {
			s.limiter.rejected()
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			s.respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r)
	}
}

// authMiddleware provides optional API key authentication
// requireWrite indicates if this is a write operation that should be blocked in read-only mode
func (s *APIServer) authMiddleware(next http.HandlerFunc, requireWrite bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if requireWrite && s.config.ReadOnly {
			s.respondError(w, http.StatusForbidden, "API is in read-only mode")
			return
		}

		if s.config.APIKey != "" {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				s.respondError(w, http.StatusUnauthorized, "Authorization header required")
				return
			}

			// Accept both "Bearer <token>" and just "<token>"
			token := strings.TrimPrefix(authHeader, "Bearer ")
			if token != s.config.APIKey {
				s.respondError(w, http.StatusUnauthorized, "Invalid API key")
				return
			}
		}

		next(w, r)
	}
}

// actorFromRequest reads the caller identity. Requests without one are
// recorded as the system user.
func actorFromRequest(r *http.Request) assessment.Actor {
	return assessment.Actor{
		UserID:   strings.TrimSpace(r.Header.Get(HeaderUserID)),
		UserName: strings.TrimSpace(r.Header.Get(HeaderUserName)),
	}
}

// Start starts the API server
func (s *APIServer) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("API server is disabled")
		return nil
	}

	s.logger.Info("starting API server",
		"port", s.config.Port,
		"read_only", s.config.ReadOnly,
		"auth", s.config.APIKey != "")

	if s.limiter != nil {
		go s.limiter.sweep(ctx, 5*time.Minute, 10*time.Minute)
	}

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
func (s *APIServer) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("error encoding JSON response",
			"error", err.Error())
	}
}

// respondError sends an error response
func (s *APIServer) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{Error: message})
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
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	return defaultValue
}

// parseQueryParamTime extracts an RFC 3339 timestamp or a YYYY-MM-DD date
func parseQueryParamTime(r *http.Request, key string) (*time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return nil, fmt.Errorf("%s must be an RFC 3339 timestamp or YYYY-MM-DD date", key)
	}
	return &t, nil
}

// handleRootRedirect redirects / to /swagger/
func (s *APIServer) handleRootRedirect(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.respondError(w, http.StatusNotFound, "not found")
		return
	}
	http.Redirect(w, r, "/swagger/", http.StatusMovedPermanently)
}
