package seed

import (
	"encoding/json"
	"testing"
	"time"

	"honeytrail/internal/pipeline"
	"honeytrail/internal/sensor"
	"honeytrail/internal/sessionize"
	"honeytrail/pkg/models"
)

func TestGenerator_Deterministic(t *testing.T) {
	cfg := Config{Sessions: 6, Seed: 42, Start: time.Date(2025, 11, 11, 0, 0, 0, 0, time.UTC), Span: 6 * time.Hour}
	a, err := NewGenerator(cfg).Hits()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := NewGenerator(cfg).Hits()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("expected same hit count, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if string(a[i]) != string(b[i]) {
			t.Fatalf("expected identical hit %d", i)
		}
	}
}

func TestGenerator_HitsNormalizeIntoSessions(t *testing.T) {
	cfg := Config{Sessions: 8, Seed: 7, Start: time.Date(2025, 11, 11, 0, 0, 0, 0, time.UTC), Span: 8 * time.Hour}
	hits, err := NewGenerator(cfg).Hits()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reg := sensor.NewRegistry(sensor.DefaultWindows())
	bySensor := make(map[models.SensorKind][]*models.NormalizedEvent)
	for _, h := range hits {
		var raw models.Raw
		if err := json.Unmarshal(h, &raw); err != nil {
			t.Fatalf("invalid hit json: %v", err)
		}
		if raw.String("_index") == "" || raw.String("_id") == "" {
			t.Fatalf("expected search hit envelope, got %s", h)
		}
		ev, err := reg.Normalize(pipeline.ExtractSource(raw))
		if err != nil {
			t.Fatalf("generated hit did not normalize: %v (%s)", err, h)
		}
		bySensor[ev.Sensor] = append(bySensor[ev.Sensor], ev)
	}

	total := 0
	for _, kind := range models.SensorKinds {
		s, _ := reg.Lookup(kind)
		sessions := sessionize.Build(s, bySensor[kind])
		if len(sessions) != 2 {
			t.Fatalf("expected 2 %s sessions, got %d", kind, len(sessions))
		}
		total += len(sessions)
	}
	if total != cfg.Sessions {
		t.Fatalf("expected %d sessions, got %d", cfg.Sessions, total)
	}
}
