package health

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/millworks/millstream-core/internal/infrastructure/logging"
	"github.com/millworks/millstream-core/internal/metrics"
	"github.com/millworks/millstream-core/internal/writer"
)

// MeasurementSystemTracking is the measurement health samples land in.
const MeasurementSystemTracking = "system_tracking"

// Sample is one periodic health reading. CPU and memory are pointers:
// a failed probe read omits the field rather than dropping the sample.
type Sample struct {
	Component         string
	CPUPercent        *float64
	MemoryUsedPercent *float64
	ErrorCount        int64
	UptimeSeconds     float64
	Timestamp         time.Time
}

// Point converts the sample into an InfluxDB point.
func (s Sample) Point() *write.Point {
	fields := map[string]interface{}{
		"errors":         s.ErrorCount,
		"uptime_seconds": s.UptimeSeconds,
	}
	if s.CPUPercent != nil {
		fields["cpu"] = *s.CPUPercent
	}
	if s.MemoryUsedPercent != nil {
		fields["memory_used_percent"] = *s.MemoryUsedPercent
	}

	return influxdb2.NewPoint(
		MeasurementSystemTracking,
		map[string]string{"component": s.Component},
		fields,
		s.Timestamp,
	)
}

// Sink receives samples; satisfied by the batch writer.
type Sink interface {
	Submit(item writer.Item)
}

// Monitor samples process resources and error counters on a fixed
// period, independent of message traffic.
type Monitor struct {
	probe     ResourceProbe
	sink      Sink
	counters  *metrics.Counters
	component string
	interval  time.Duration
	logger    *logging.Logger
	started   time.Time
}

// NewMonitor creates a Monitor. A nil probe is allowed: samples then
// carry only counters and uptime.
func NewMonitor(probe ResourceProbe, sink Sink, counters *metrics.Counters, component string, interval time.Duration, logger *logging.Logger) *Monitor {
	return &Monitor{
		probe:     probe,
		sink:      sink,
		counters:  counters,
		component: component,
		interval:  interval,
		logger:    logger,
	}
}

// Run samples on the configured period until the context is cancelled.
// Call from its own goroutine.
func (m *Monitor) Run(ctx context.Context) {
	m.started = time.Now()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sink.Submit(m.sample())
		case <-ctx.Done():
			return
		}
	}
}

// sample builds one Sample, degrading gracefully on probe errors.
func (m *Monitor) sample() Sample {
	s := Sample{
		Component:     m.component,
		ErrorCount:    m.counters.Errors(),
		UptimeSeconds: time.Since(m.started).Seconds(),
		Timestamp:     time.Now().UTC(),
	}

	if m.probe == nil {
		return s
	}

	if cpu, err := m.probe.CPUPercent(); err != nil {
		m.logger.Warn("cpu probe failed", "error", err)
	} else {
		s.CPUPercent = &cpu
	}

	if mem, err := m.probe.MemoryUsedPercent(); err != nil {
		m.logger.Warn("memory probe failed", "error", err)
	} else {
		s.MemoryUsedPercent = &mem
	}

	return s
}
