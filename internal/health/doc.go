// Package health samples process resource usage and error counters on
// a fixed period and feeds the samples into the batch writer as
// system_tracking points.
//
// Resource reads go through the ResourceProbe interface; the shipped
// implementation reads /proc via prometheus/procfs. A failing probe
// degrades the sample (field omitted), it never suppresses it.
package health
