package record

import (
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Category classifies an incoming message by its topic family.
type Category string

// Message categories.
const (
	CategorySensor   Category = "sensor"
	CategoryEvent    Category = "event"
	CategoryTracking Category = "tracking"
)

// Measurement names per category.
const (
	MeasurementSensorData    = "sensor_data"
	MeasurementMachineEvents = "machine_events"
	MeasurementPieceTracking = "piece_tracking"
)

// Measurement returns the InfluxDB measurement this category maps to.
func (c Category) Measurement() string {
	switch c {
	case CategorySensor:
		return MeasurementSensorData
	case CategoryEvent:
		return MeasurementMachineEvents
	case CategoryTracking:
		return MeasurementPieceTracking
	default:
		return string(c)
	}
}

// Valid reports whether the category is one of the known families.
func (c Category) Valid() bool {
	switch c {
	case CategorySensor, CategoryEvent, CategoryTracking:
		return true
	}
	return false
}

// NormalizedRecord is a validated, enriched telemetry record ready for
// persistence. Tags identify the source (machine, event type, piece);
// Fields carry the numeric and string values.
type NormalizedRecord struct {
	Category  Category
	Tags      map[string]string
	Fields    map[string]interface{}
	Timestamp time.Time
}

// Point converts the record into an InfluxDB point.
func (r *NormalizedRecord) Point() *write.Point {
	return influxdb2.NewPoint(r.Category.Measurement(), r.Tags, r.Fields, r.Timestamp)
}

// Machine returns the machine tag, or "" for records without one
// (piece tracking events are piece-scoped).
func (r *NormalizedRecord) Machine() string {
	return r.Tags["machine"]
}

// Field returns a float field value and whether it is present and numeric.
func (r *NormalizedRecord) Field(name string) (float64, bool) {
	v, ok := r.Fields[name]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}
