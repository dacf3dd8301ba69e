package sessionize

import (
	"errors"
	"strings"
	"testing"
	"time"

	"honeytrail/internal/sensor"
	"honeytrail/pkg/models"
)

func TestSessionIDIsDeterministic(t *testing.T) {
	start := time.Date(2025, 11, 11, 13, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Minute)

	a := SessionID("cow", models.SensorCowrie, start, end, "1.2.3.4", "10.0.0.1")
	b := SessionID("cow", models.SensorCowrie, start, end, "1.2.3.4", "10.0.0.1")
	if a != b {
		t.Fatalf("expected identical ids, got %s and %s", a, b)
	}
	if !strings.HasPrefix(a, "cow-") || len(a) != len("cow-")+IDHexLen {
		t.Fatalf("unexpected id shape: %s", a)
	}

	variants := []string{
		SessionID("cow", models.SensorWordpot, start, end, "1.2.3.4", "10.0.0.1"),
		SessionID("cow", models.SensorCowrie, start.Add(time.Second), end, "1.2.3.4", "10.0.0.1"),
		SessionID("cow", models.SensorCowrie, start, end.Add(time.Second), "1.2.3.4", "10.0.0.1"),
		SessionID("cow", models.SensorCowrie, start, end, "1.2.3.5", "10.0.0.1"),
		SessionID("cow", models.SensorCowrie, start, end, "1.2.3.4", "10.0.0.2"),
	}
	for i, v := range variants {
		if v == a {
			t.Fatalf("variant %d produced the same id %s", i, v)
		}
	}
}

func TestAssembleSortsAndTakesEndpointsFromFirstEvent(t *testing.T) {
	reg := sensor.NewRegistry(sensor.DefaultWindows())
	s, _ := reg.Lookup(models.SensorDionaea)
	base := time.Date(2025, 11, 11, 9, 0, 0, 0, time.UTC)
	group := []*models.NormalizedEvent{
		{Timestamp: base.Add(time.Minute), SrcIP: models.Str("9.9.9.9")},
		{Timestamp: base, SrcIP: models.Str("1.2.3.4"), DestIP: models.Str("10.0.0.1")},
	}

	session, err := Assemble(s, group)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.SrcIP != "1.2.3.4" || session.DestIP != "10.0.0.1" {
		t.Fatalf("expected endpoints from earliest event, got %s -> %s", session.SrcIP, session.DestIP)
	}
	if !session.StartTime.Equal(base) || !session.EndTime.Equal(base.Add(time.Minute)) {
		t.Fatalf("unexpected bounds %v - %v", session.StartTime, session.EndTime)
	}
	if !strings.HasPrefix(session.SessionID, "dio-") {
		t.Fatalf("expected dio prefix, got %s", session.SessionID)
	}

	again, _ := Assemble(s, []*models.NormalizedEvent{group[1], group[0]})
	if again.SessionID != session.SessionID {
		t.Fatalf("expected id independent of input order")
	}
}

func TestAssembleEmptyGroup(t *testing.T) {
	reg := sensor.NewRegistry(sensor.DefaultWindows())
	s, _ := reg.Lookup(models.SensorCowrie)
	if _, err := Assemble(s, nil); !errors.Is(err, ErrEmptyGroup) {
		t.Fatalf("expected ErrEmptyGroup, got %v", err)
	}
}

func TestBuildSessionsPerKey(t *testing.T) {
	reg := sensor.NewRegistry(sensor.DefaultWindows())
	s, _ := reg.Lookup(models.SensorCowrie)
	base := time.Date(2025, 11, 11, 9, 0, 0, 0, time.UTC)
	events := []*models.NormalizedEvent{
		{Timestamp: base, SessionKey: models.Str("a")},
		{Timestamp: base.Add(time.Second), SessionKey: models.Str("b")},
		{Timestamp: base.Add(2 * time.Second), SessionKey: models.Str("a")},
	}

	sessions := Build(s, events)
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if len(sessions[0].Events) != 2 {
		t.Fatalf("expected first session with 2 events, got %d", len(sessions[0].Events))
	}
}
