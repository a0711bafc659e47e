package transform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/millworks/millstream-core/internal/infrastructure/logging"
	"github.com/millworks/millstream-core/internal/ingest"
	"github.com/millworks/millstream-core/internal/machine"
	"github.com/millworks/millstream-core/internal/metrics"
	"github.com/millworks/millstream-core/internal/record"
)

// Topic family markers.
const (
	topicDataMarker     = "/plant/data/"
	topicTrackingMarker = "/plant/tracking/"
)

// pieceEntity marks tracking payloads that describe a piece rather
// than a machine.
const pieceEntity = "piece"

// envelope is the common shape of all plant messages.
type envelope struct {
	Entity    string                 `json:"entity"`
	Event     string                 `json:"event"`
	Data      map[string]interface{} `json:"data"`
	Timestamp string                 `json:"timestamp"`
}

// Normalizer validates raw messages and produces normalized records.
//
// Validation failures are returned as *ValidationError and counted;
// they never stop the pipeline.
type Normalizer struct {
	registry *machine.Registry
	counters *metrics.Counters
	logger   *logging.Logger
}

// New creates a Normalizer backed by the given machine registry.
func New(registry *machine.Registry, counters *metrics.Counters, logger *logging.Logger) *Normalizer {
	return &Normalizer{
		registry: registry,
		counters: counters,
		logger:   logger,
	}
}

// Normalize validates and enriches one raw message.
//
// On success the returned record is complete and safe to persist. On
// failure the error is a *ValidationError (payload problems) or
// ErrUnknownCategory (unroutable topic), counted as a validation
// failure; any other error is an infrastructure fault and is logged
// without touching the validation counter. Either way the caller
// should move on to the next message.
func (n *Normalizer) Normalize(ctx context.Context, raw ingest.RawMessage) (*record.NormalizedRecord, error) {
	rec, err := n.normalize(ctx, raw)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) || errors.Is(err, ErrUnknownCategory) {
			n.counters.ValidationFailures.Add(1)
			n.logger.Debug("message rejected", "topic", raw.Topic, "error", err)
		} else {
			// Infrastructure fault, not bad data. The message is still
			// dropped, but not held against the payload.
			n.logger.Warn("message dropped", "topic", raw.Topic, "error", err)
		}
		return nil, err
	}
	n.counters.RecordsProcessed.Add(1)
	return rec, nil
}

func (n *Normalizer) normalize(ctx context.Context, raw ingest.RawMessage) (*record.NormalizedRecord, error) {
	var env envelope
	if err := json.Unmarshal(raw.Payload, &env); err != nil {
		return nil, malformed("invalid JSON: %v", err)
	}

	ts, err := resolveTimestamp(env.Timestamp, raw.ReceivedAt)
	if err != nil {
		return nil, err
	}

	switch {
	case strings.Contains(raw.Topic, topicDataMarker):
		return n.normalizeSensor(ctx, env, ts)
	case strings.Contains(raw.Topic, topicTrackingMarker):
		if env.Entity == pieceEntity {
			return normalizeTracking(env, ts)
		}
		return n.normalizeEvent(ctx, env, ts)
	default:
		return nil, ErrUnknownCategory
	}
}

// normalizeSensor handles /plant/data/ payloads:
// {"entity": "Milling1", "data": {...}, "timestamp": "..."}.
func (n *Normalizer) normalizeSensor(ctx context.Context, env envelope, ts time.Time) (*record.NormalizedRecord, error) {
	if env.Entity == "" {
		return nil, missingField("entity")
	}
	if len(env.Data) == 0 {
		return nil, missingField("data")
	}

	fields := make(map[string]interface{}, len(env.Data))
	for key, value := range env.Data {
		f, ok := value.(float64)
		if !ok {
			continue // non-numeric readings are ignored, not fatal
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, outOfRange("%s is not a finite number", key)
		}
		fields[key] = f
	}
	if len(fields) == 0 {
		return nil, missingField("data (no numeric readings)")
	}

	m, err := n.registry.Lookup(ctx, env.Entity)
	if err != nil {
		return nil, fmt.Errorf("machine lookup: %w", err)
	}

	return &record.NormalizedRecord{
		Category: record.CategorySensor,
		Tags: map[string]string{
			"machine":      env.Entity,
			"machine_type": string(m.Type),
			"location":     m.Location,
		},
		Fields:    fields,
		Timestamp: ts,
	}, nil
}

// normalizeEvent handles machine events on /plant/tracking/:
// {"entity": "Milling1", "event": "setup_start", "data": {...}, "timestamp": "..."}.
func (n *Normalizer) normalizeEvent(ctx context.Context, env envelope, ts time.Time) (*record.NormalizedRecord, error) {
	if env.Entity == "" {
		return nil, missingField("entity")
	}
	if env.Event == "" {
		return nil, missingField("event")
	}

	m, err := n.registry.Lookup(ctx, env.Entity)
	if err != nil {
		return nil, fmt.Errorf("machine lookup: %w", err)
	}

	tags := map[string]string{
		"machine":      env.Entity,
		"machine_type": string(m.Type),
		"event_type":   env.Event,
	}
	if pieceID, ok := env.Data["piece_id"].(string); ok {
		tags["piece_id"] = pieceID
	}
	if tool, ok := env.Data["tool"].(string); ok {
		tags["tool"] = tool
	}

	fields := map[string]interface{}{}

	duration, err := eventDuration(env.Event, env.Data)
	if err != nil {
		return nil, err
	}
	if duration != nil {
		fields["duration"] = *duration
	}

	fields["status"] = eventStatus(env.Event, env.Data)

	if wear, ok := env.Data["tool_wear"].(float64); ok {
		fields["tool_wear"] = wear
	}
	if env.Event == "processing_end" {
		if cycle, ok := env.Data["cycle_time"].(float64); ok {
			fields["cycle_time"] = cycle
		}
	}

	return &record.NormalizedRecord{
		Category:  record.CategoryEvent,
		Tags:      tags,
		Fields:    fields,
		Timestamp: ts,
	}, nil
}

// normalizeTracking handles piece movements on /plant/tracking/:
// {"entity": "piece", "event": "move_start", "data": {...}, "timestamp": "..."}.
func normalizeTracking(env envelope, ts time.Time) (*record.NormalizedRecord, error) {
	if env.Event == "" {
		return nil, missingField("event")
	}
	if len(env.Data) == 0 {
		return nil, missingField("data")
	}

	pieceID, ok := env.Data["piece_id"].(string)
	if !ok || pieceID == "" {
		return nil, missingField("piece_id")
	}

	tags := map[string]string{
		"piece_id":   pieceID,
		"event_type": env.Event,
	}

	from, hasFrom := env.Data["from"].(string)
	to, hasTo := env.Data["to"].(string)
	if hasFrom {
		tags["from_station"] = from
	}
	if hasTo {
		tags["to_station"] = to
	}
	if material := pieceMaterial(pieceID); material != "" {
		tags["material"] = material
	}

	fields := map[string]interface{}{}

	duration, err := eventDuration(env.Event, env.Data)
	if err != nil {
		return nil, err
	}
	if duration != nil {
		fields["duration"] = *duration
	}

	if hasFrom && hasTo {
		fields["distance"] = stationDistance(from, to)
	}

	priority := 3.0 // 1-5 scale, 3 = normal
	if p, ok := env.Data["priority"].(float64); ok {
		priority = p
	}
	fields["priority"] = priority

	return &record.NormalizedRecord{
		Category:  record.CategoryTracking,
		Tags:      tags,
		Fields:    fields,
		Timestamp: ts,
	}, nil
}

// eventDuration extracts the duration field. Start events default to
// zero; other events without a duration omit the field. Negative or
// non-finite durations are rejected.
func eventDuration(eventType string, data map[string]interface{}) (*float64, error) {
	if v, ok := data["duration"]; ok {
		f, ok := v.(float64)
		if !ok {
			return nil, outOfRange("duration is not numeric")
		}
		if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
			return nil, outOfRange("duration %v is invalid", f)
		}
		return &f, nil
	}

	if strings.Contains(eventType, "start") {
		zero := 0.0
		return &zero, nil
	}
	return nil, nil
}

// eventStatus derives the status field from the event type.
func eventStatus(eventType string, data map[string]interface{}) string {
	switch {
	case strings.HasSuffix(eventType, "start"):
		return "active"
	case strings.HasSuffix(eventType, "end"):
		return "completed"
	default:
		if s, ok := data["status"].(string); ok {
			return s
		}
		return "unknown"
	}
}

// resolveTimestamp parses the payload timestamp, falling back to the
// message arrival time when the payload omits one. An unparseable
// timestamp rejects the message rather than silently rewriting history.
func resolveTimestamp(raw string, receivedAt time.Time) (time.Time, error) {
	if raw == "" {
		return receivedAt, nil
	}

	if strings.Contains(raw, "T") {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			return ts, nil
		}
		// ISO-8601 without zone: interpret as UTC.
		if ts, err := time.Parse("2006-01-02T15:04:05", raw); err == nil {
			return ts.UTC(), nil
		}
	} else if ts, err := time.Parse("2006-01-02 15:04:05", raw); err == nil {
		return ts.UTC(), nil
	}

	return time.Time{}, malformed("unparseable timestamp %q", raw)
}
