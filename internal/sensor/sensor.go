// Package sensor holds the per-honeypot rules for normalizing, grouping
// and extracting indicators from events.
package sensor

import (
	"time"

	"honeytrail/pkg/models"
)

// Collector receives sensor-specific indicators found in one event.
type Collector interface {
	AddCommand(command string)
	AddURL(url string)
	AddFile(path string)
	AddSignature(signature string)
}

// Sensor is the behavior attached to one sensor kind.
type Sensor interface {
	Kind() models.SensorKind
	// Code is the short prefix used in session identifiers.
	Code() string
	Normalize(raw models.Raw) (*models.NormalizedEvent, error)
	Group(events []*models.NormalizedEvent) [][]*models.NormalizedEvent
	Extract(event *models.NormalizedEvent, c Collector)
}

// Windows are the inactivity gaps used by time-window grouping.
type Windows struct {
	Wordpot  time.Duration `yaml:"wordpot" mapstructure:"wordpot"`
	Dionaea  time.Duration `yaml:"dionaea" mapstructure:"dionaea"`
	Suricata time.Duration `yaml:"suricata" mapstructure:"suricata"`
}

// DefaultWindows returns the stock grouping windows.
func DefaultWindows() Windows {
	return Windows{
		Wordpot:  5 * time.Minute,
		Dionaea:  20 * time.Minute,
		Suricata: 30 * time.Second,
	}
}

// Registry maps sensor kinds to their behavior.
type Registry struct {
	sensors map[models.SensorKind]Sensor
}

// NewRegistry builds the sensor table. Zero windows fall back to defaults.
func NewRegistry(w Windows) *Registry {
	def := DefaultWindows()
	if w.Wordpot <= 0 {
		w.Wordpot = def.Wordpot
	}
	if w.Dionaea <= 0 {
		w.Dionaea = def.Dionaea
	}
	if w.Suricata <= 0 {
		w.Suricata = def.Suricata
	}

	r := &Registry{sensors: make(map[models.SensorKind]Sensor, 4)}
	for _, s := range []Sensor{
		cowrie{},
		wordpot{windowGrouping{window: w.Wordpot}},
		dionaea{windowGrouping{window: w.Dionaea}},
		suricata{windowGrouping{window: w.Suricata}},
	} {
		r.sensors[s.Kind()] = s
	}
	return r
}

// Lookup returns the sensor for kind.
func (r *Registry) Lookup(kind models.SensorKind) (Sensor, bool) {
	s, ok := r.sensors[kind]
	return s, ok
}

// Normalize dispatches a raw hit source on its "type" tag.
func (r *Registry) Normalize(raw models.Raw) (*models.NormalizedEvent, error) {
	kind, ok := models.ParseSensorKind(raw.String("type"))
	if !ok {
		return nil, ErrUnknownSensor
	}
	s, ok := r.sensors[kind]
	if !ok {
		return nil, ErrUnknownSensor
	}
	return s.Normalize(raw)
}
