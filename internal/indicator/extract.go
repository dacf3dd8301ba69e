// Package indicator derives the deterministic indicator set of a session.
package indicator

import (
	"strings"

	"honeytrail/internal/sensor"
	"honeytrail/pkg/models"
)

// Extractor walks session events and applies generic and per-sensor rules.
type Extractor struct {
	registry *sensor.Registry
}

// NewExtractor creates an extractor backed by the sensor table.
func NewExtractor(registry *sensor.Registry) *Extractor {
	return &Extractor{registry: registry}
}

// Extract returns the indicator set for s. Only the session's own events are read.
func (e *Extractor) Extract(s *models.Session) models.IndicatorSet {
	b := newBuilder()
	var rules sensor.Sensor
	if e != nil && e.registry != nil {
		rules, _ = e.registry.Lookup(s.Sensor)
	}

	for _, ev := range sensor.SortEvents(s.Events) {
		if ev.SrcPort != nil {
			b.srcPorts.add(*ev.SrcPort)
		}
		if ev.DestPort != nil {
			b.destPorts.add(*ev.DestPort)
		}
		addText(b.protocols, models.Deref(ev.Protocol))
		b.AddURL(models.Deref(ev.URL))
		if rules != nil {
			rules.Extract(ev, b)
		}
	}

	return models.IndicatorSet{
		SrcIP:      s.SrcIP,
		DestIP:     s.DestIP,
		SrcPorts:   models.PortList(b.srcPorts.values()),
		DestPorts:  models.PortList(b.destPorts.values()),
		Protocols:  b.protocols.values(),
		Commands:   b.commands.values(),
		URLs:       b.urls.values(),
		Signatures: b.signatures.values(),
		Files:      b.files.values(),
	}
}

type orderedSet[T comparable] struct {
	seen  map[T]struct{}
	items []T
}

func newOrderedSet[T comparable]() *orderedSet[T] {
	return &orderedSet[T]{seen: make(map[T]struct{}), items: []T{}}
}

func (s *orderedSet[T]) add(v T) {
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}

func (s *orderedSet[T]) values() []T {
	return s.items
}

// addText adds v trimmed, skipping blanks.
func addText(s *orderedSet[string], v string) {
	if v = strings.TrimSpace(v); v != "" {
		s.add(v)
	}
}

// builder implements sensor.Collector.
type builder struct {
	srcPorts, destPorts *orderedSet[int]
	protocols, commands *orderedSet[string]
	urls, signatures    *orderedSet[string]
	files               *orderedSet[string]
}

func newBuilder() *builder {
	return &builder{
		srcPorts:   newOrderedSet[int](),
		destPorts:  newOrderedSet[int](),
		protocols:  newOrderedSet[string](),
		commands:   newOrderedSet[string](),
		urls:       newOrderedSet[string](),
		signatures: newOrderedSet[string](),
		files:      newOrderedSet[string](),
	}
}

func (b *builder) AddURL(url string) { addText(b.urls, url) }

func (b *builder) AddFile(path string) { addText(b.files, path) }

func (b *builder) AddSignature(signature string) { addText(b.signatures, signature) }

// AddCommand keeps the command verbatim.
func (b *builder) AddCommand(command string) {
	if strings.TrimSpace(command) != "" {
		b.commands.add(command)
	}
}
