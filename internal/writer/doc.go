// Package writer implements the shared batching sink of the pipeline.
//
// All producers (normalized records, anomaly events, health samples)
// submit items yielding InfluxDB points. The writer accumulates them
// into one batch, flushes on size or age, retries failed flushes with
// exponential backoff, and drops the batch once the retry budget is
// exhausted. Bounded loss during a store outage is the explicit trade
// against unbounded memory growth.
//
// The writer also tracks the outcome of recent flushes; the readiness
// endpoint consults this window.
package writer
