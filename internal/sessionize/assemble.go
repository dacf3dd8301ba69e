// Package sessionize turns grouped events into session records.
package sessionize

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"honeytrail/internal/sensor"
	"honeytrail/pkg/models"
)

// IDHexLen is the number of hex characters kept from the session digest.
const IDHexLen = 16

// ErrEmptyGroup is returned when asked to assemble a group with no events.
var ErrEmptyGroup = errors.New("empty event group")

// SessionID derives the stable identifier for a session.
func SessionID(code string, kind models.SensorKind, start, end time.Time, srcIP, destIP string) string {
	material := strings.Join([]string{
		string(kind),
		start.UTC().Format(time.RFC3339Nano),
		end.UTC().Format(time.RFC3339Nano),
		srcIP,
		destIP,
	}, "|")
	sum := sha256.Sum256([]byte(material))
	return code + "-" + hex.EncodeToString(sum[:])[:IDHexLen]
}

// Assemble builds a session from one event group.
func Assemble(s sensor.Sensor, group []*models.NormalizedEvent) (*models.Session, error) {
	if len(group) == 0 {
		return nil, ErrEmptyGroup
	}
	events := sensor.SortEvents(group)
	first, last := events[0], events[len(events)-1]

	session := &models.Session{
		Sensor:    s.Kind(),
		SrcIP:     models.Deref(first.SrcIP),
		DestIP:    models.Deref(first.DestIP),
		StartTime: first.Timestamp.UTC(),
		EndTime:   last.Timestamp.UTC(),
		Events:    events,
	}
	session.SessionID = SessionID(s.Code(), session.Sensor, session.StartTime, session.EndTime, session.SrcIP, session.DestIP)
	return session, nil
}

// Build groups one sensor's events for a day and assembles every group.
func Build(s sensor.Sensor, events []*models.NormalizedEvent) []*models.Session {
	groups := s.Group(events)
	sessions := make([]*models.Session, 0, len(groups))
	for _, g := range groups {
		session, err := Assemble(s, g)
		if err != nil {
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions
}
