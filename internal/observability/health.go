package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"
)

// ComponentStatus represents the health status of a component
type ComponentStatus string

const (
	StatusHealthy   ComponentStatus = "healthy"
	StatusDegraded  ComponentStatus = "degraded"
	StatusUnhealthy ComponentStatus = "unhealthy"
	StatusUnknown   ComponentStatus = "unknown"
)

// ComponentHealth represents the health of a single component. Optional
// components degrade the service instead of failing it: calculations and
// the audit trail keep working without them.
type ComponentHealth struct {
	Status    ComponentStatus `json:"status"`
	Optional  bool            `json:"optional,omitempty"`
	Message   string          `json:"message,omitempty"`
	LastCheck time.Time       `json:"last_check"`
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status     ComponentStatus            `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	// Failing lists components that are not healthy, sorted by name
	Failing   []string  `json:"failing,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Serving reports whether requests can be served: the service is healthy or
// only optional components are failing.
func (s HealthStatus) Serving() bool {
	return s.Status == StatusHealthy || s.Status == StatusDegraded
}

// HealthChecker tracks the health of the audit store, the stress table and
// the background components.
type HealthChecker struct {
	mu         sync.RWMutex
	components map[string]ComponentHealth
	logger     *slog.Logger
	now        func() time.Time
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(logger *slog.Logger) *HealthChecker {
	return &HealthChecker{
		components: make(map[string]ComponentHealth),
		logger:     logger,
		now:        time.Now,
	}
}

// RegisterComponent registers a required component. Until its first update
// it is unknown, which keeps the service not ready.
func (h *HealthChecker) RegisterComponent(name string) {
	h.register(name, false)
}

// RegisterOptionalComponent registers a component whose failure only
// degrades the service, such as the inspection drop-directory watcher.
func (h *HealthChecker) RegisterOptionalComponent(name string) {
	h.register(name, true)
}

func (h *HealthChecker) register(name string, optional bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.components[name] = ComponentHealth{
		Status:    StatusUnknown,
		Optional:  optional,
		LastCheck: h.now(),
	}
}

// UpdateComponentHealth updates the health status of a component. Unknown
// names are registered as required.
func (h *HealthChecker) UpdateComponentHealth(name string, status ComponentStatus, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := h.components[name]
	if prev.Status != "" && prev.Status != status && prev.Status != StatusUnknown {
		h.logger.Info("component health changed",
			"component", name,
			"from", prev.Status,
			"to", status)
	}
	h.components[name] = ComponentHealth{
		Status:    status,
		Optional:  prev.Optional,
		Message:   message,
		LastCheck: h.now(),
	}
}

// GetHealth returns the current health status. Any failing required
// component makes the service unhealthy; failing optional components make
// it degraded.
func (h *HealthChecker) GetHealth() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	components := make(map[string]ComponentHealth, len(h.components))
	status := StatusHealthy
	var failing []string

	for name, c := range h.components {
		components[name] = c
		if c.Status == StatusHealthy {
			continue
		}
		failing = append(failing, name)
		if !c.Optional {
			status = StatusUnhealthy
		} else if status == StatusHealthy {
			status = StatusDegraded
		}
	}
	sort.Strings(failing)

	return HealthStatus{
		Status:     status,
		Components: components,
		Failing:    failing,
		Timestamp:  h.now(),
	}
}

// HealthCheckFunc is a function that checks the health of a component
type HealthCheckFunc func(ctx context.Context) error

// Pinger is implemented by stores that can report their availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck adapts a Pinger to a HealthCheckFunc with a short deadline.
func PingCheck(p Pinger) HealthCheckFunc {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("ping failed: %w", err)
		}
		return nil
	}
}

// CheckComponent runs a health check function and updates the component status
func (h *HealthChecker) CheckComponent(ctx context.Context, name string, checkFunc HealthCheckFunc) {
	err := checkFunc(ctx)
	if err != nil {
		h.UpdateComponentHealth(name, StatusUnhealthy, err.Error())
		h.logger.Warn("component health check failed",
			"component", name,
			"error", err.Error())
	} else {
		h.UpdateComponentHealth(name, StatusHealthy, "")
	}
}

// StartPeriodicChecks runs checks immediately and then every interval until
// ctx is cancelled.
func (h *HealthChecker) StartPeriodicChecks(ctx context.Context, interval time.Duration, checks map[string]HealthCheckFunc) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		for name, checkFunc := range checks {
			h.CheckComponent(ctx, name, checkFunc)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// HealthHandler returns an HTTP handler for the health endpoint. A degraded
// service still answers 200.
func (h *HealthChecker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := h.GetHealth()

		w.Header().Set("Content-Type", "application/json")
		if health.Serving() {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		if err := json.NewEncoder(w).Encode(health); err != nil {
			h.logger.Error("failed to encode health response",
				"error", err.Error())
		}
	}
}

// ReadyHandler returns an HTTP handler for the readiness endpoint
func (h *HealthChecker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := h.GetHealth()

		w.Header().Set("Content-Type", "application/json")
		if health.Serving() {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, `{"status":"ready"}`)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, `{"status":"not_ready"}`)
		}
	}
}
