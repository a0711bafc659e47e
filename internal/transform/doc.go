// Package transform turns raw MQTT payloads into normalized records.
//
// Each topic family has an explicit payload schema. Validation is
// per-message: a bad payload yields a *ValidationError carrying a
// stable reason token (malformed, missing_field, out_of_range) and is
// counted, never fatal. Valid payloads are enriched with machine
// registry metadata, piece material, and station distance estimates
// before they reach the detector and the batch writer.
package transform
