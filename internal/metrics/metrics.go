package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Counters holds the processor's operational counters.
//
// Counters are plain atomics rather than prometheus primitives because
// the health monitor reads them back at runtime (the errors field of
// system_tracking samples); prometheus counters are write-only from the
// application's point of view. Register() exposes them to scrapes via
// CounterFunc collectors, so both consumers see the same numbers.
type Counters struct {
	// MessagesReceived counts raw MQTT messages accepted for processing.
	MessagesReceived atomic.Int64

	// ConnectionErrors counts broker connection losses.
	ConnectionErrors atomic.Int64

	// ValidationFailures counts messages rejected by the transformer.
	ValidationFailures atomic.Int64

	// RecordsProcessed counts successfully normalized records.
	RecordsProcessed atomic.Int64

	// AnomaliesDetected counts threshold crossings found by the detector.
	AnomaliesDetected atomic.Int64

	// BatchesFlushed counts successful batch writes to the store.
	BatchesFlushed atomic.Int64

	// PointsWritten counts points persisted across all flushed batches.
	PointsWritten atomic.Int64

	// BatchesDropped counts batches discarded after retry exhaustion.
	BatchesDropped atomic.Int64
}

// New creates a zeroed counter set.
func New() *Counters {
	return &Counters{}
}

// Errors returns the total error count across failure classes. The
// health monitor reports this in its periodic samples.
func (c *Counters) Errors() int64 {
	return c.ConnectionErrors.Load() + c.ValidationFailures.Load() + c.BatchesDropped.Load()
}

// Register registers prometheus collectors for every counter on the
// given registry. Collectors read the atomics on scrape, so there is a
// single source of truth.
func (c *Counters) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		counterFunc("millstream_messages_received_total",
			"Raw MQTT messages accepted for processing.", &c.MessagesReceived),
		counterFunc("millstream_connection_errors_total",
			"Broker connection losses.", &c.ConnectionErrors),
		counterFunc("millstream_validation_failures_total",
			"Messages rejected by validation.", &c.ValidationFailures),
		counterFunc("millstream_records_processed_total",
			"Successfully normalized records.", &c.RecordsProcessed),
		counterFunc("millstream_anomalies_detected_total",
			"Threshold crossings detected.", &c.AnomaliesDetected),
		counterFunc("millstream_batches_flushed_total",
			"Successful batch writes to the store.", &c.BatchesFlushed),
		counterFunc("millstream_points_written_total",
			"Points persisted across flushed batches.", &c.PointsWritten),
		counterFunc("millstream_batches_dropped_total",
			"Batches discarded after retry exhaustion.", &c.BatchesDropped),
	}

	for _, col := range collectors {
		if err := reg.Register(col); err != nil {
			return err
		}
	}
	return nil
}

func counterFunc(name, help string, v *atomic.Int64) prometheus.Collector {
	return prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: name,
		Help: help,
	}, func() float64 {
		return float64(v.Load())
	})
}
