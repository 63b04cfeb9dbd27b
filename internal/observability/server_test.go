package observability

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"
)

func startServer(t *testing.T, s *Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	select {
	case <-s.Ready():
	case err := <-done:
		t.Fatalf("server failed to start: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not become ready")
	}

	t.Cleanup(func() {
		cancel()
		<-done
	})
}

// local rewrites a wildcard listen address to loopback
func local(t *testing.T, addr string) string {
	t.Helper()
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("bad address %q: %v", addr, err)
	}
	return "http://" + net.JoinHostPort("127.0.0.1", port)
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response: %v", err)
	}
	return resp.StatusCode, string(body)
}

func TestServer_SeparatePorts(t *testing.T) {
	logger := NewLogger("error")
	hc := NewHealthChecker(logger)
	hc.RegisterComponent("audit_store")
	hc.UpdateComponentHealth("audit_store", StatusHealthy, "")

	// Touch the registry so vesselfit metrics are exported
	GetMetrics().CalculationDuration.Observe(0.01)

	s := NewServer(0, 0, logger, hc)
	startServer(t, s)

	metricsAddr := s.Addr(EndpointMetrics)
	healthAddr := s.Addr(EndpointHealth)
	if metricsAddr == "" || healthAddr == "" || metricsAddr == healthAddr {
		t.Fatalf("expected two listeners, got %q and %q", metricsAddr, healthAddr)
	}

	status, body := get(t, local(t, metricsAddr)+"/metrics")
	if status != http.StatusOK {
		t.Errorf("expected metrics status 200, got %d", status)
	}
	if !strings.Contains(body, "vesselfit_calculation_duration_seconds") {
		t.Error("expected calculation duration histogram in metrics output")
	}

	status, body = get(t, local(t, healthAddr)+"/health")
	if status != http.StatusOK || !strings.Contains(body, "audit_store") {
		t.Errorf("unexpected health response %d: %s", status, body)
	}

	// Health paths are not served on the metrics listener
	if status, _ := get(t, local(t, metricsAddr)+"/ready"); status != http.StatusNotFound {
		t.Errorf("expected 404 for /ready on metrics listener, got %d", status)
	}

	hc.UpdateComponentHealth("audit_store", StatusUnhealthy, "database is locked")
	if status, body := get(t, local(t, healthAddr)+"/ready"); status != http.StatusServiceUnavailable || !strings.Contains(body, "not_ready") {
		t.Errorf("expected not ready, got %d: %s", status, body)
	}
}

func TestServer_SharedPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	logger := NewLogger("error")
	hc := NewHealthChecker(logger)
	s := NewServer(port, port, logger, hc)
	startServer(t, s)

	if s.Addr(EndpointMetrics) != s.Addr(EndpointHealth) {
		t.Fatal("expected one listener for both endpoints")
	}

	base := local(t, s.Addr(EndpointMetrics))
	if status, _ := get(t, base+"/metrics"); status != http.StatusOK {
		t.Errorf("expected metrics status 200, got %d", status)
	}
	if status, _ := get(t, base+"/health"); status != http.StatusOK {
		t.Errorf("expected health status 200 with no components, got %d", status)
	}
}

func TestServer_PortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	logger := NewLogger("error")
	s := NewServer(0, port, logger, NewHealthChecker(logger))

	err = s.Start(context.Background())
	if err == nil {
		t.Fatal("expected an error for a port in use")
	}
	if !strings.Contains(err.Error(), "health") {
		t.Errorf("expected the failing endpoint in the error, got %v", err)
	}
	if s.Addr(EndpointMetrics) != "" {
		t.Error("expected no address after a failed start")
	}
}
