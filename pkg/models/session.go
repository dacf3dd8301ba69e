package models

import "time"

// Session is one attacker interaction reconstructed from grouped events.
type Session struct {
	SessionID string             `json:"session_id"`
	Sensor    SensorKind         `json:"sensor"`
	SrcIP     string             `json:"src_ip"`
	DestIP    string             `json:"dest_ip"`
	StartTime time.Time          `json:"start_time"`
	EndTime   time.Time          `json:"end_time"`
	Events    []*NormalizedEvent `json:"events"`
}

// Date returns the UTC day the session started on, formatted YYYY-MM-DD.
func (s *Session) Date() string {
	return s.StartTime.UTC().Format("2006-01-02")
}
