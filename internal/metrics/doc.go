// Package metrics holds the processor's operational counters and their
// prometheus export.
package metrics
