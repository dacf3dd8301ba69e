package narrative

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"honeytrail/pkg/models"
)

const (
	// DefaultMaxEvents caps the event lines included in a digest.
	DefaultMaxEvents = 50
	maxMessageRunes  = 200
)

// Digest renders a compact plain-text view of a session.
func Digest(s *models.Session, maxEvents int) string {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Session ID: %s\n", s.SessionID)
	fmt.Fprintf(&b, "Sensor: %s\n", s.Sensor)
	fmt.Fprintf(&b, "Src IP: %s\n", s.SrcIP)
	fmt.Fprintf(&b, "Dst IP: %s\n", s.DestIP)
	fmt.Fprintf(&b, "Start: %s\n", s.StartTime.UTC().Format(time.RFC3339Nano))
	fmt.Fprintf(&b, "End:   %s\n", s.EndTime.UTC().Format(time.RFC3339Nano))
	fmt.Fprintf(&b, "Total events: %d\n", len(s.Events))
	b.WriteString("\nEvents (truncated):")

	for i, ev := range s.Events {
		if i >= maxEvents {
			fmt.Fprintf(&b, "\n... (%d more events omitted)", len(s.Events)-maxEvents)
			break
		}
		b.WriteString("\n")
		b.WriteString(eventLine(ev))
	}
	return b.String()
}

func eventLine(ev *models.NormalizedEvent) string {
	line := fmt.Sprintf("- %s | %s:%s -> %s:%s | proto=%s | event=%s",
		ev.Timestamp.UTC().Format(time.RFC3339Nano),
		models.Deref(ev.SrcIP), port(ev.SrcPort),
		models.Deref(ev.DestIP), port(ev.DestPort),
		models.Deref(ev.Protocol),
		models.Deref(ev.EventKind),
	)
	if url := models.Deref(ev.URL); url != "" {
		line += " | url=" + url
	}
	if msg := models.Deref(ev.Message); msg != "" {
		line += " | msg=" + truncate(msg, maxMessageRunes)
	}
	return line
}

func port(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
