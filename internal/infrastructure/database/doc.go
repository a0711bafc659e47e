// Package database provides the SQLite connection layer for the machine
// registry.
//
// The database holds slowly-changing plant metadata (machine identities,
// types, locations), not telemetry. Telemetry goes to InfluxDB; SQLite is
// the authoritative source the transformer consults when enriching
// incoming events.
//
// Connections are opened with WAL mode and a busy timeout, and the pool
// is capped at a single connection to match SQLite's single-writer model.
// Schema migrations are embedded via the migrations package and applied
// on startup.
package database
