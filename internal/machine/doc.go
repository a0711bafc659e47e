// Package machine holds the machine registry: the plant-floor metadata
// (type, location) used to enrich incoming telemetry.
//
// The registry layers an in-memory cache over a SQLite repository. The
// cache is loaded once at startup and consulted on every message; cache
// misses fall through to the repository and finally to name-pattern
// inference, so a machine that was never registered still gets
// best-effort metadata instead of dropped telemetry.
package machine
