package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SensorKind identifies the honeypot or detector that produced an event.
type SensorKind string

const (
	SensorCowrie   SensorKind = "cowrie"
	SensorWordpot  SensorKind = "wordpot"
	SensorDionaea  SensorKind = "dionaea"
	SensorSuricata SensorKind = "suricata"
)

// SensorKinds lists every supported sensor in processing order.
var SensorKinds = []SensorKind{SensorWordpot, SensorCowrie, SensorDionaea, SensorSuricata}

// ParseSensorKind maps a raw type tag ("Cowrie", "suricata") to a SensorKind.
func ParseSensorKind(tag string) (SensorKind, bool) {
	kind := SensorKind(strings.ToLower(strings.TrimSpace(tag)))
	for _, k := range SensorKinds {
		if k == kind {
			return k, true
		}
	}
	return "", false
}

// NormalizedEvent is one observed action from one sensor.
// Nullable attributes are pointers so they serialize as explicit null.
type NormalizedEvent struct {
	Timestamp  time.Time  `json:"timestamp"`
	Sensor     SensorKind `json:"sensor"`
	SessionKey *string    `json:"session_key"`
	SrcIP      *string    `json:"src_ip"`
	SrcPort    *int       `json:"src_port"`
	DestIP     *string    `json:"dest_ip"`
	DestPort   *int       `json:"dest_port"`
	Protocol   *string    `json:"protocol"`
	EventKind  *string    `json:"event_kind"`
	Message    *string    `json:"message"`
	URL        *string    `json:"url"`
	Raw        Raw        `json:"raw"`
}

// Str returns a pointer to s, or nil when s is empty.
func Str(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Int returns a pointer to v.
func Int(v int) *int {
	return &v
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Raw is the untouched source record carried with every event.
type Raw map[string]interface{}

// Path resolves a dotted path ("connection.protocol") inside the record.
func (r Raw) Path(path string) (interface{}, bool) {
	if r == nil {
		return nil, false
	}
	var current interface{} = map[string]interface{}(r)
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, ok := m[part]
		if !ok {
			return nil, false
		}
		current = v
	}
	return current, true
}

// String returns the first non-empty value among paths rendered as a string.
func (r Raw) String(paths ...string) string {
	for _, path := range paths {
		v, ok := r.Path(path)
		if !ok {
			continue
		}
		if s := scalarString(v); s != "" {
			return s
		}
	}
	return ""
}

// Int returns the first value among paths that can be read as an integer.
func (r Raw) Int(paths ...string) (int, bool) {
	for _, path := range paths {
		v, ok := r.Path(path)
		if !ok {
			continue
		}
		switch val := v.(type) {
		case int:
			return val, true
		case int64:
			return int(val), true
		case float64:
			if val == float64(int64(val)) {
				return int(val), true
			}
		case string:
			parsed, err := strconv.Atoi(strings.TrimSpace(val))
			if err == nil {
				return parsed, true
			}
		}
	}
	return 0, false
}

// Strings returns the value at path as a string list; scalars yield one item.
func (r Raw) Strings(path string) []string {
	v, ok := r.Path(path)
	if !ok {
		return nil
	}
	if list, ok := v.([]interface{}); ok {
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s := scalarString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	if s := scalarString(v); s != "" {
		return []string{s}
	}
	return nil
}

func scalarString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		if val {
			return "true"
		}
		return "false"
	}
	return ""
}
