// Package http provides the HTTP REST API.
//
// The server exposes synchronous turn execution, flow validation,
// asynchronous turn submission, health checks and Prometheus metrics.
package http
