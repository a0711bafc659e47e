// Package record defines the normalized telemetry record that flows
// between the transformer, the anomaly detector, and the batch writer.
//
// A NormalizedRecord is the post-validation shape of an incoming MQTT
// message: categorized, enriched with registry metadata, and carrying a
// resolved timestamp. Each category maps to one InfluxDB measurement
// (sensor_data, machine_events, piece_tracking).
package record
