// Package influxdb provides the InfluxDB v2 client wrapper for Millstream.
//
// The wrapper manages connection lifecycle (connect, ping, close) and
// exposes a blocking batch write surface. Unlike the upstream client's
// async write API, every WritePoints call reports success or failure to
// the caller; the writer package builds batching, retry, and drop policy
// on top of that signal.
//
// Sentinel errors (ErrNotConnected, ErrConnectionFailed, ErrWriteFailed)
// support errors.Is() checks by callers that need to distinguish
// connection problems from rejected writes.
package influxdb
