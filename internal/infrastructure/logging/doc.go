// Package logging provides structured logging for the Millstream processor.
//
// It wraps the standard library's log/slog with configuration-driven
// handler selection (JSON or text), level filtering, and default service
// attributes attached to every record.
//
// The pipeline is push-driven with no synchronous caller, so logs and
// counters are the primary operator-visible failure surface. Components
// receive a child logger via With("component", ...) so records can be
// filtered per stage.
package logging
