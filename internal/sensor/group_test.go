package sensor

import (
	"testing"
	"time"

	"honeytrail/pkg/models"
)

func eventAt(ts time.Time, key string) *models.NormalizedEvent {
	return &models.NormalizedEvent{Timestamp: ts, SessionKey: models.Str(key)}
}

func TestGroupByKeyKeepsFirstAppearanceOrder(t *testing.T) {
	base := time.Date(2025, 11, 11, 13, 0, 0, 0, time.UTC)
	events := []*models.NormalizedEvent{
		eventAt(base.Add(3*time.Second), "a"),
		eventAt(base.Add(1*time.Second), "a"),
		eventAt(base.Add(2*time.Second), "b"),
	}

	groups := GroupByKey(events)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	a := groups[0]
	if len(a) != 2 || models.Deref(a[0].SessionKey) != "a" {
		t.Fatalf("expected group a first with 2 events, got %+v", a)
	}
	if !a[0].Timestamp.Equal(base.Add(time.Second)) || !a[1].Timestamp.Equal(base.Add(3*time.Second)) {
		t.Fatalf("expected group a ordered t=1,t=3, got %v,%v", a[0].Timestamp, a[1].Timestamp)
	}
}

func TestGroupByKeyBucketsMissingKeysAsUnknown(t *testing.T) {
	base := time.Date(2025, 11, 11, 13, 0, 0, 0, time.UTC)
	events := []*models.NormalizedEvent{
		eventAt(base, ""),
		eventAt(base.Add(time.Minute), "s1"),
		{Timestamp: base.Add(2 * time.Minute)},
	}

	groups := GroupByKey(events)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if len(groups[0]) != 2 {
		t.Fatalf("expected unknown bucket with 2 events, got %d", len(groups[0]))
	}
}

func TestGroupByWindow(t *testing.T) {
	base := time.Date(2025, 11, 11, 13, 0, 0, 0, time.UTC)
	at := func(minutes ...int) []*models.NormalizedEvent {
		out := make([]*models.NormalizedEvent, 0, len(minutes))
		for _, m := range minutes {
			out = append(out, &models.NormalizedEvent{Timestamp: base.Add(time.Duration(m) * time.Minute)})
		}
		return out
	}

	groups := GroupByWindow(at(0, 4, 9), 5*time.Minute)
	if len(groups) != 1 || len(groups[0]) != 3 {
		t.Fatalf("expected one group of 3 for 0,4,9, got %d groups", len(groups))
	}

	groups = GroupByWindow(at(0, 4, 10), 5*time.Minute)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups for 0,4,10, got %d", len(groups))
	}
	if len(groups[0]) != 2 || len(groups[1]) != 1 {
		t.Fatalf("expected sizes 2 and 1, got %d and %d", len(groups[0]), len(groups[1]))
	}

	groups = GroupByWindow(at(10, 0, 5), 5*time.Minute)
	if len(groups) != 1 {
		t.Fatalf("expected unsorted input at exact window gaps to form 1 group, got %d", len(groups))
	}
}

func TestGroupByWindowEdgeCases(t *testing.T) {
	if groups := GroupByWindow(nil, time.Minute); len(groups) != 0 {
		t.Fatalf("expected no groups for empty input, got %d", len(groups))
	}
	single := []*models.NormalizedEvent{{Timestamp: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}}
	if groups := GroupByWindow(single, time.Minute); len(groups) != 1 || len(groups[0]) != 1 {
		t.Fatalf("expected one singleton group")
	}
}

func TestRegistryUsesConfiguredWindows(t *testing.T) {
	reg := NewRegistry(Windows{Suricata: time.Minute})
	s, ok := reg.Lookup(models.SensorSuricata)
	if !ok {
		t.Fatalf("expected suricata sensor")
	}
	base := time.Date(2025, 11, 11, 13, 0, 0, 0, time.UTC)
	events := []*models.NormalizedEvent{
		{Timestamp: base},
		{Timestamp: base.Add(50 * time.Second)},
	}
	if groups := s.Group(events); len(groups) != 1 {
		t.Fatalf("expected 1 group with 1m window, got %d", len(groups))
	}

	w, _ := reg.Lookup(models.SensorWordpot)
	events = []*models.NormalizedEvent{{Timestamp: base}, {Timestamp: base.Add(6 * time.Minute)}}
	if groups := w.Group(events); len(groups) != 2 {
		t.Fatalf("expected default 5m wordpot window to split, got %d groups", len(groups))
	}
}
