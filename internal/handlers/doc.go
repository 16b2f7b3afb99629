// Package handlers provides the HTTP handlers of the status server.
//
// It includes handlers for:
//   - Health, liveness and readiness checks
//   - Version and build information
//   - Cache statistics and latency quantiles
//   - Manifest entry lookup
//   - Prometheus metrics
package handlers
