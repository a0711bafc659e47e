// Package pipeline wires the processing stages together: a fixed-size
// worker pool consumes the bounded ingest channel, normalizes each
// message, evaluates it for anomalies, and submits the results to the
// shared batch writer.
package pipeline
