package transform

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/millworks/millstream-core/internal/infrastructure/logging"
	"github.com/millworks/millstream-core/internal/ingest"
	"github.com/millworks/millstream-core/internal/machine"
	"github.com/millworks/millstream-core/internal/metrics"
	"github.com/millworks/millstream-core/internal/record"
)

// stubRepo is an in-memory machine.Repository for tests.
type stubRepo struct {
	machines map[string]machine.Machine
}

func (s *stubRepo) GetByID(_ context.Context, id string) (*machine.Machine, error) {
	if m, ok := s.machines[id]; ok {
		return &m, nil
	}
	return nil, machine.ErrNotFound
}

func (s *stubRepo) List(_ context.Context) ([]machine.Machine, error) {
	var out []machine.Machine
	for _, m := range s.machines {
		out = append(out, m)
	}
	return out, nil
}

func (s *stubRepo) Upsert(_ context.Context, _ *machine.Machine) error { return nil }

var testReceivedAt = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func testNormalizer() (*Normalizer, *metrics.Counters) {
	repo := &stubRepo{machines: map[string]machine.Machine{
		"Milling1": {ID: "Milling1", Type: machine.TypeMilling, Location: "workshop_A"},
	}}
	counters := metrics.New()
	return New(machine.NewRegistry(repo), counters, logging.Default()), counters
}

func raw(topic, payload string) ingest.RawMessage {
	return ingest.RawMessage{
		Topic:      topic,
		Payload:    []byte(payload),
		ReceivedAt: testReceivedAt,
	}
}

// =============================================================================
// Sensor Data
// =============================================================================

func TestNormalizeSensor(t *testing.T) {
	n, counters := testNormalizer()

	rec, err := n.Normalize(context.Background(), raw("/plant/data/Milling1",
		`{"entity":"Milling1","data":{"temperature":72.5,"vibration_level":0.8,"note":"ok"},"timestamp":"2026-03-14T09:29:58Z"}`))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if rec.Category != record.CategorySensor {
		t.Errorf("Category = %q, want sensor", rec.Category)
	}
	if rec.Tags["machine"] != "Milling1" || rec.Tags["machine_type"] != "milling" || rec.Tags["location"] != "workshop_A" {
		t.Errorf("Tags = %v, missing enrichment", rec.Tags)
	}
	if got, _ := rec.Field("temperature"); got != 72.5 {
		t.Errorf("temperature = %v, want 72.5", got)
	}
	if _, ok := rec.Fields["note"]; ok {
		t.Error("non-numeric reading should be dropped from fields")
	}
	if want := time.Date(2026, 3, 14, 9, 29, 58, 0, time.UTC); !rec.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", rec.Timestamp, want)
	}
	if counters.RecordsProcessed.Load() != 1 {
		t.Errorf("RecordsProcessed = %d, want 1", counters.RecordsProcessed.Load())
	}
}

func TestNormalizeSensorUnknownMachine(t *testing.T) {
	n, _ := testNormalizer()

	rec, err := n.Normalize(context.Background(), raw("/plant/data/Saw7",
		`{"entity":"Saw7","data":{"power":1.2}}`))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	// Unregistered machine: type inferred from the name, default location.
	if rec.Tags["machine_type"] != "saw" {
		t.Errorf("machine_type = %q, want saw (inferred)", rec.Tags["machine_type"])
	}
	if rec.Tags["location"] != "workshop_A" {
		t.Errorf("location = %q, want workshop_A", rec.Tags["location"])
	}
}

// faultRepo fails every call, simulating a sqlite outage.
type faultRepo struct{}

func (faultRepo) GetByID(_ context.Context, _ string) (*machine.Machine, error) {
	return nil, errors.New("database is locked")
}

func (faultRepo) List(_ context.Context) ([]machine.Machine, error) {
	return nil, errors.New("database is locked")
}

func (faultRepo) Upsert(_ context.Context, _ *machine.Machine) error {
	return errors.New("database is locked")
}

func TestNormalizeRegistryFaultNotValidation(t *testing.T) {
	counters := metrics.New()
	n := New(machine.NewRegistry(faultRepo{}), counters, logging.Default())

	// A registry store fault degrades enrichment to inference; the
	// message survives and is never counted against the payload.
	rec, err := n.Normalize(context.Background(), raw("/plant/data/Milling1",
		`{"entity":"Milling1","data":{"temperature":72.5}}`))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if rec.Tags["machine_type"] != "milling" {
		t.Errorf("machine_type = %q, want milling (inferred)", rec.Tags["machine_type"])
	}

	if got := counters.ValidationFailures.Load(); got != 0 {
		t.Errorf("ValidationFailures = %d, want 0", got)
	}
	if got := counters.RecordsProcessed.Load(); got != 1 {
		t.Errorf("RecordsProcessed = %d, want 1", got)
	}
}

func TestNormalizeRejections(t *testing.T) {
	tests := []struct {
		name       string
		topic      string
		payload    string
		wantReason string
	}{
		{"invalid json", "/plant/data/Milling1", `{"entity":`, ReasonMalformed},
		{"missing entity", "/plant/data/Milling1", `{"data":{"temperature":70}}`, ReasonMissingField},
		{"missing data", "/plant/data/Milling1", `{"entity":"Milling1"}`, ReasonMissingField},
		{"no numeric readings", "/plant/data/Milling1", `{"entity":"Milling1","data":{"note":"hi"}}`, ReasonMissingField},
		{"bad timestamp", "/plant/data/Milling1", `{"entity":"Milling1","data":{"power":1},"timestamp":"yesterday"}`, ReasonMalformed},
		{"event missing type", "/plant/tracking/Milling1", `{"entity":"Milling1","data":{}}`, ReasonMissingField},
		{"negative duration", "/plant/tracking/Milling1", `{"entity":"Milling1","event":"setup_end","data":{"duration":-4}}`, ReasonOutOfRange},
		{"non-numeric duration", "/plant/tracking/Milling1", `{"entity":"Milling1","event":"setup_end","data":{"duration":"long"}}`, ReasonOutOfRange},
		{"tracking missing piece", "/plant/tracking/piece", `{"entity":"piece","event":"move_start","data":{"from":"Warehouse"}}`, ReasonMissingField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, counters := testNormalizer()

			_, err := n.Normalize(context.Background(), raw(tt.topic, tt.payload))
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Normalize() error = %v, want *ValidationError", err)
			}
			if verr.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", verr.Reason, tt.wantReason)
			}
			if counters.ValidationFailures.Load() != 1 {
				t.Errorf("ValidationFailures = %d, want 1", counters.ValidationFailures.Load())
			}
			if counters.RecordsProcessed.Load() != 0 {
				t.Errorf("RecordsProcessed = %d, want 0", counters.RecordsProcessed.Load())
			}
		})
	}
}

func TestNormalizeUnknownTopic(t *testing.T) {
	n, _ := testNormalizer()

	_, err := n.Normalize(context.Background(), raw("/plant/alerts/Milling1", `{"entity":"Milling1"}`))
	if !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("Normalize() error = %v, want ErrUnknownCategory", err)
	}
}

func TestNormalizeTimestampFallback(t *testing.T) {
	n, _ := testNormalizer()

	rec, err := n.Normalize(context.Background(), raw("/plant/data/Milling1",
		`{"entity":"Milling1","data":{"power":2.0}}`))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if !rec.Timestamp.Equal(testReceivedAt) {
		t.Errorf("Timestamp = %v, want ReceivedAt %v", rec.Timestamp, testReceivedAt)
	}
}

// =============================================================================
// Machine Events
// =============================================================================

func TestNormalizeEventStart(t *testing.T) {
	n, _ := testNormalizer()

	rec, err := n.Normalize(context.Background(), raw("/plant/tracking/Milling1",
		`{"entity":"Milling1","event":"setup_start","data":{"piece_id":"PZ0042","tool":"T12"}}`))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if rec.Category != record.CategoryEvent {
		t.Errorf("Category = %q, want event", rec.Category)
	}
	if rec.Tags["event_type"] != "setup_start" || rec.Tags["piece_id"] != "PZ0042" || rec.Tags["tool"] != "T12" {
		t.Errorf("Tags = %v", rec.Tags)
	}
	if got, _ := rec.Field("duration"); got != 0.0 {
		t.Errorf("duration = %v, want 0 for start event", got)
	}
	if rec.Fields["status"] != "active" {
		t.Errorf("status = %v, want active", rec.Fields["status"])
	}
}

func TestNormalizeEventEnd(t *testing.T) {
	n, _ := testNormalizer()

	rec, err := n.Normalize(context.Background(), raw("/plant/tracking/Milling1",
		`{"entity":"Milling1","event":"processing_end","data":{"duration":42.5,"cycle_time":44.1,"tool_wear":0.07}}`))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if rec.Fields["status"] != "completed" {
		t.Errorf("status = %v, want completed", rec.Fields["status"])
	}
	if got, _ := rec.Field("duration"); got != 42.5 {
		t.Errorf("duration = %v, want 42.5", got)
	}
	if got, _ := rec.Field("cycle_time"); got != 44.1 {
		t.Errorf("cycle_time = %v, want 44.1", got)
	}
	if got, _ := rec.Field("tool_wear"); got != 0.07 {
		t.Errorf("tool_wear = %v, want 0.07", got)
	}
}

func TestNormalizeEventNoDuration(t *testing.T) {
	n, _ := testNormalizer()

	// Non-start event without duration: field omitted, status from data.
	rec, err := n.Normalize(context.Background(), raw("/plant/tracking/Milling1",
		`{"entity":"Milling1","event":"tool_change","data":{"status":"paused"}}`))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if _, ok := rec.Fields["duration"]; ok {
		t.Error("duration should be omitted for non-start events without one")
	}
	if rec.Fields["status"] != "paused" {
		t.Errorf("status = %v, want paused", rec.Fields["status"])
	}
}

// =============================================================================
// Piece Tracking
// =============================================================================

func TestNormalizeTracking(t *testing.T) {
	n, _ := testNormalizer()

	rec, err := n.Normalize(context.Background(), raw("/plant/tracking/piece",
		`{"entity":"piece","event":"move_start","data":{"piece_id":"PZ0007","from":"Warehouse","to":"Saw1"}}`))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if rec.Category != record.CategoryTracking {
		t.Errorf("Category = %q, want tracking", rec.Category)
	}
	if rec.Tags["piece_id"] != "PZ0007" || rec.Tags["from_station"] != "Warehouse" || rec.Tags["to_station"] != "Saw1" {
		t.Errorf("Tags = %v", rec.Tags)
	}
	if rec.Tags["material"] != "steel" {
		t.Errorf("material = %q, want steel for PZ00 series", rec.Tags["material"])
	}
	if got, _ := rec.Field("distance"); got != 30.0 {
		t.Errorf("distance = %v, want 30.0", got)
	}
	if got, _ := rec.Field("duration"); got != 0.0 {
		t.Errorf("duration = %v, want 0 for move_start", got)
	}
	if got, _ := rec.Field("priority"); got != 3.0 {
		t.Errorf("priority = %v, want default 3", got)
	}
}

func TestNormalizeTrackingMaterialAndPriority(t *testing.T) {
	n, _ := testNormalizer()

	rec, err := n.Normalize(context.Background(), raw("/plant/tracking/piece",
		`{"entity":"piece","event":"move_end","data":{"piece_id":"PZ0150","duration":12.0,"priority":5}}`))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if rec.Tags["material"] != "alu" {
		t.Errorf("material = %q, want alu for PZ01 series", rec.Tags["material"])
	}
	if got, _ := rec.Field("priority"); got != 5.0 {
		t.Errorf("priority = %v, want 5", got)
	}
	if _, ok := rec.Fields["distance"]; ok {
		t.Error("distance should be omitted without both stations")
	}
}

func TestStationDistance(t *testing.T) {
	tests := []struct {
		from, to string
		want     float64
	}{
		{"Warehouse", "Saw1", 30.0},
		{"Saw1", "Warehouse", 30.0}, // reverse direction
		{"Saw1", "Lathe1", 40.0},
		{"Lathe1", "Milling2", defaultStationDistance}, // unknown pair
	}

	for _, tt := range tests {
		if got := stationDistance(tt.from, tt.to); got != tt.want {
			t.Errorf("stationDistance(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestPieceMaterial(t *testing.T) {
	tests := []struct {
		pieceID string
		want    string
	}{
		{"PZ0001", "steel"},
		{"PZ0142", "alu"},
		{"PZ0900", ""},
		{"XY123", ""},
	}

	for _, tt := range tests {
		if got := pieceMaterial(tt.pieceID); got != tt.want {
			t.Errorf("pieceMaterial(%q) = %q, want %q", tt.pieceID, got, tt.want)
		}
	}
}
