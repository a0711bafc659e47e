// Package ingest connects MQTT subscriptions to the processing pipeline.
//
// It subscribes the plant topic families, wraps each delivery in a
// RawMessage stamped with its arrival time, and pushes it into a bounded
// channel consumed by the pipeline workers. A full channel blocks the
// delivery callback, which is deliberate: broker-side queueing is the
// overload behavior, not unbounded process memory.
package ingest
