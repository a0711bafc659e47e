package anomaly

import (
	"fmt"
	"sort"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/millworks/millstream-core/internal/infrastructure/config"
	"github.com/millworks/millstream-core/internal/record"
)

// Tier classifies the severity of a threshold crossing.
type Tier string

// Severity tiers.
const (
	TierWarning  Tier = "warning"
	TierCritical Tier = "critical"
)

// Alert measurement names. Metrics map by name: temperature metrics to
// temperature_alerts, vibration metrics to vibration_alerts, everything
// else to system_alerts.
const (
	MeasurementTemperatureAlerts = "temperature_alerts"
	MeasurementVibrationAlerts   = "vibration_alerts"
	MeasurementSystemAlerts      = "system_alerts"
)

// Event is one threshold crossing found in a normalized record.
type Event struct {
	Machine   string
	Metric    string
	Value     float64
	Tier      Tier
	Message   string
	Timestamp time.Time
}

// Point converts the event into an InfluxDB alert point.
func (e *Event) Point() *write.Point {
	return influxdb2.NewPoint(
		alertMeasurement(e.Metric),
		map[string]string{
			"machine":    e.Machine,
			"severity":   string(e.Tier),
			"alert_type": "anomaly",
		},
		map[string]interface{}{
			"message":  e.Message,
			"value":    e.Value,
			"resolved": false,
		},
		e.Timestamp,
	)
}

// Detector evaluates records against configured thresholds.
//
// Evaluation is a pure function of the record and the threshold table:
// no history, no hysteresis. A value oscillating around a threshold
// produces a new event on every crossing.
type Detector struct {
	thresholds config.ThresholdsConfig
}

// NewDetector creates a Detector with the given threshold table.
func NewDetector(thresholds config.ThresholdsConfig) *Detector {
	return &Detector{thresholds: thresholds}
}

// Evaluate checks every numeric field that has a configured threshold
// pair and returns zero or more events, ordered by metric name.
//
//	value >= critical          -> critical
//	warning <= value < critical -> warning
//	value < warning            -> no event
//
// Metrics without a configured pair are skipped. Multiple metrics in
// one record may each produce an event.
func (d *Detector) Evaluate(rec *record.NormalizedRecord) []Event {
	metrics := make([]string, 0, len(rec.Fields))
	for metric := range rec.Fields {
		if _, ok := d.thresholds[metric]; ok {
			metrics = append(metrics, metric)
		}
	}
	sort.Strings(metrics)

	var events []Event
	for _, metric := range metrics {
		value, ok := rec.Field(metric)
		if !ok {
			continue
		}

		pair := d.thresholds[metric]
		var tier Tier
		switch {
		case value >= pair.Critical:
			tier = TierCritical
		case value >= pair.Warning:
			tier = TierWarning
		default:
			continue
		}

		events = append(events, Event{
			Machine:   rec.Machine(),
			Metric:    metric,
			Value:     value,
			Tier:      tier,
			Message:   alertMessage(tier, metric, value),
			Timestamp: rec.Timestamp,
		})
	}

	return events
}

// metricUnits maps known metrics to their display units.
var metricUnits = map[string]string{
	"temperature":     "°C",
	"vibration_level": "g",
	"power":           "kW",
}

// alertMessage builds the human-readable alert text.
func alertMessage(tier Tier, metric string, value float64) string {
	qualifier := "High"
	if tier == TierCritical {
		qualifier = "Critical"
	}
	return fmt.Sprintf("%s %s: %g%s", qualifier, metric, value, metricUnits[metric])
}

// alertMeasurement routes a metric to its alert measurement.
func alertMeasurement(metric string) string {
	switch {
	case strings.Contains(metric, "temperature"):
		return MeasurementTemperatureAlerts
	case strings.Contains(metric, "vibration"):
		return MeasurementVibrationAlerts
	default:
		return MeasurementSystemAlerts
	}
}
