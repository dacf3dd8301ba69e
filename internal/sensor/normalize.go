package sensor

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"honeytrail/pkg/models"
)

var (
	// ErrUnknownSensor is returned for records whose type tag is not a supported sensor.
	ErrUnknownSensor = errors.New("unknown sensor type")
	// ErrBadTimestamp is returned when a record has no parseable timestamp.
	ErrBadTimestamp = errors.New("missing or unparseable timestamp")
)

// ParseTimestamp reads @timestamp, falling back to timestamp.
func ParseTimestamp(raw models.Raw) (time.Time, error) {
	value := raw.String("@timestamp", "timestamp")
	if value == "" {
		return time.Time{}, ErrBadTimestamp
	}
	if t, ok := parseTime(value); ok {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimestamp, value)
}

func parseTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}

	for _, layout := range []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05.000000",
		"2006-01-02 15:04:05.000",
		"2006-01-02 15:04:05",
	} {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t.UTC(), true
		}
	}

	return time.Time{}, false
}

// baseEvent fills the attributes every sensor maps the same way. The
// destination IP is the first non-empty value among destPaths.
func baseEvent(kind models.SensorKind, raw models.Raw, destPaths ...string) (*models.NormalizedEvent, error) {
	ts, err := ParseTimestamp(raw)
	if err != nil {
		return nil, err
	}

	event := &models.NormalizedEvent{
		Timestamp: ts,
		Sensor:    kind,
		SrcIP:     models.Str(raw.String("src_ip")),
		DestIP:    models.Str(raw.String(destPaths...)),
		Raw:       raw,
	}
	if port, ok := raw.Int("src_port"); ok {
		event.SrcPort = models.Int(port)
	}
	if port, ok := raw.Int("dest_port"); ok {
		event.DestPort = models.Int(port)
	}
	return event, nil
}
