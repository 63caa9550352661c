// Package observability provides structured logging, Prometheus metrics,
// and health checking capabilities for securevision.
//
// Key features:
// - Structured JSON logging with configurable log levels
// - Prometheus metrics for poll cycles, failures and the current posture snapshot
// - Health checks for component status monitoring
// - HTTP endpoints for /metrics, /health, and /ready
package observability
