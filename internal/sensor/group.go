package sensor

import (
	"sort"
	"time"

	"honeytrail/pkg/models"
)

// UnknownKey buckets events that carry no native session key.
const UnknownKey = "unknown"

// SortEvents returns a copy of events stably ordered by timestamp.
func SortEvents(events []*models.NormalizedEvent) []*models.NormalizedEvent {
	out := make([]*models.NormalizedEvent, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// GroupByKey partitions events by session key in order of first appearance.
func GroupByKey(events []*models.NormalizedEvent) [][]*models.NormalizedEvent {
	sorted := SortEvents(events)
	index := make(map[string]int)
	var groups [][]*models.NormalizedEvent
	for _, ev := range sorted {
		key := models.Deref(ev.SessionKey)
		if key == "" {
			key = UnknownKey
		}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], ev)
	}
	return groups
}

// GroupByWindow opens a new group whenever the gap to the previous event
// exceeds window. A gap equal to window stays in the current group.
func GroupByWindow(events []*models.NormalizedEvent, window time.Duration) [][]*models.NormalizedEvent {
	sorted := SortEvents(events)
	if len(sorted) == 0 {
		return nil
	}

	var groups [][]*models.NormalizedEvent
	current := []*models.NormalizedEvent{sorted[0]}
	for _, ev := range sorted[1:] {
		last := current[len(current)-1]
		if ev.Timestamp.Sub(last.Timestamp) <= window {
			current = append(current, ev)
			continue
		}
		groups = append(groups, current)
		current = []*models.NormalizedEvent{ev}
	}
	return append(groups, current)
}

type keyGrouping struct{}

func (keyGrouping) Group(events []*models.NormalizedEvent) [][]*models.NormalizedEvent {
	return GroupByKey(events)
}

type windowGrouping struct {
	window time.Duration
}

func (g windowGrouping) Group(events []*models.NormalizedEvent) [][]*models.NormalizedEvent {
	return GroupByWindow(events, g.window)
}
