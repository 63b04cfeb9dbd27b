package observability

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/daimoniac/vesselfit/internal/errors"
)

// Endpoint names accepted by Server.Addr.
const (
	EndpointMetrics = "metrics"
	EndpointHealth  = "health"
)

type endpoint struct {
	names  []string
	server *http.Server
	ln     net.Listener
}

// Server serves /metrics and the /health and /ready endpoints. When both ports
// are equal a single listener serves all three paths.
type Server struct {
	endpoints []*endpoint
	logger    *slog.Logger
	ready     chan struct{}
	mu        sync.Mutex
}

// NewServer creates the observability server. Port 0 picks a free port,
// reported by Addr once Ready is closed.
func NewServer(metricsPort, healthPort int, logger *slog.Logger, healthChecker *HealthChecker) *Server {
	metrics := promhttp.InstrumentMetricHandler(prometheus.DefaultRegisterer,
		promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
			EnableOpenMetrics: true,
		}))

	s := &Server{logger: logger, ready: make(chan struct{})}

	if metricsPort == healthPort && metricsPort != 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics)
		mountHealth(mux, healthChecker)
		s.endpoints = append(s.endpoints, newEndpoint(metricsPort, mux, EndpointMetrics, EndpointHealth))
		return s
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics)
	healthMux := http.NewServeMux()
	mountHealth(healthMux, healthChecker)

	s.endpoints = append(s.endpoints,
		newEndpoint(metricsPort, metricsMux, EndpointMetrics),
		newEndpoint(healthPort, healthMux, EndpointHealth))
	return s
}

func mountHealth(mux *http.ServeMux, hc *HealthChecker) {
	mux.HandleFunc("/health", hc.HealthHandler())
	mux.HandleFunc("/ready", hc.ReadyHandler())
}

func newEndpoint(port int, handler http.Handler, names ...string) *endpoint {
	return &endpoint{
		names: names,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       15 * time.Second,
		},
	}
}

// Start binds every listener, serves until ctx is cancelled and then shuts
// down. A port that cannot be bound is returned as an error before anything
// is served.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	for i, ep := range s.endpoints {
		ln, err := net.Listen("tcp", ep.server.Addr)
		if err != nil {
			for _, opened := range s.endpoints[:i] {
				opened.ln.Close()
				opened.ln = nil
			}
			s.mu.Unlock()
			return errors.NewPermanentf("failed to listen for %v on %s: %w", ep.names, ep.server.Addr, err)
		}
		ep.ln = ln
	}
	s.mu.Unlock()
	close(s.ready)

	for _, ep := range s.endpoints {
		go func(ep *endpoint) {
			s.logger.Info("starting observability listener",
				"serves", ep.names,
				"addr", ep.ln.Addr().String())
			if err := ep.server.Serve(ep.ln); err != nil && err != http.ErrServerClosed {
				s.logger.Error("observability listener error",
					"serves", ep.names,
					"error", err.Error())
			}
		}(ep)
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("observability shutdown error",
			"error", err.Error())
	}
	return nil
}

// Ready is closed once every listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound address serving name, or "" before Ready.
func (s *Server) Addr(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ep := range s.endpoints {
		for _, n := range ep.names {
			if n == name && ep.ln != nil {
				return ep.ln.Addr().String()
			}
		}
	}
	return ""
}

// Shutdown gracefully stops every listener. It is safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down observability servers")

	var firstErr error
	for _, ep := range s.endpoints {
		if err := ep.server.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = errors.NewTransientf("%v server shutdown: %w", ep.names, err)
		}
	}
	return firstErr
}
