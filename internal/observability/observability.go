// Package observability provides structured logging, Prometheus metrics,
// and health checking capabilities for vesselfit.
//
// Key features:
// - Structured JSON logging with configurable log levels
// - Prometheus metrics for calculations, validation, the audit log and the queue
// - A collector exposing audit store statistics
// - HTTP endpoints for /metrics, /health, and /ready
package observability
