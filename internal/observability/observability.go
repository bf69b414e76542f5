// Package observability provides structured logging, Prometheus metrics,
// and health checking capabilities for ccp-test.
//
// Key features:
// - Structured JSON logging with configurable log levels
// - Prometheus metrics for monitoring report processing, queue, gate, and policy state
// - Health checks for component status monitoring
// - HTTP endpoints for /metrics, /health, and /ready
package observability
