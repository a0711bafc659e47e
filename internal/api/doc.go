// Package api exposes the processor's operational HTTP surface:
// liveness (/healthz), readiness (/readyz), and prometheus metrics
// (/metrics).
//
// There is no data API: the pipeline is push-driven and has no
// synchronous callers. These endpoints exist for the supervisor and
// for scrapers only.
package api
