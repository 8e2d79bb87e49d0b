// Package observability exposes Prometheus metrics, a health probe and optional pprof
// handlers on a small HTTP server.
package observability
