// Package anomaly implements threshold-based anomaly detection over
// normalized records.
//
// The detector is stateless: each record is evaluated against the
// configured warning/critical pairs independently, and each metric in a
// record can produce its own event. Events flow into the shared batch
// writer as alert points with a severity tag, one measurement per
// metric family.
package anomaly
