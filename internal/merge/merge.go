// Package merge combines a session template, a narrative result and the
// deterministic indicator set into one analysis record.
package merge

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"honeytrail/pkg/models"
)

// Template builds the analysis scaffold from session metadata alone.
func Template(s *models.Session) map[string]interface{} {
	return map[string]interface{}{
		"session_id":    s.SessionID,
		"sensor":        string(s.Sensor),
		"attack_intent": "",
		"summary":       "",
		"key_indicators": map[string]interface{}{
			"src_ip":     s.SrcIP,
			"dest_ip":    s.DestIP,
			"src_ports":  []interface{}{},
			"dest_ports": []interface{}{},
			"protocols":  []interface{}{},
			"commands":   []interface{}{},
			"urls":       []interface{}{},
			"signatures": []interface{}{},
			"files":      []interface{}{},
		},
		"confidence": 0.0,
		"risk_score": 0,
		"timestamp_range": map[string]interface{}{
			"start": s.StartTime.UTC().Format(time.RFC3339Nano),
			"end":   s.EndTime.UTC().Format(time.RFC3339Nano),
		},
	}
}

// Merge overlays onto template. When both sides hold a mapping under the
// same key the two are merged field by field with the overlay winning;
// any other overlay value replaces the template value. Nested mappings
// below that first level are replaced, not merged. Inputs are not modified.
func Merge(template, overlay map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(template)+len(overlay))
	for k, v := range template {
		out[k] = v
	}
	for k, v := range overlay {
		base, baseIsMap := out[k].(map[string]interface{})
		over, overIsMap := v.(map[string]interface{})
		if !baseIsMap || !overIsMap {
			out[k] = v
			continue
		}
		nested := make(map[string]interface{}, len(base)+len(over))
		for nk, nv := range base {
			nested[nk] = nv
		}
		for nk, nv := range over {
			nested[nk] = nv
		}
		out[k] = nested
	}
	return out
}

// Reconcile writes deterministic indicators over the record. A deterministic
// value only wins when it is non-empty, so an empty extraction never erases
// what the narrative returned.
func Reconcile(rec *models.AnalysisRecord, det models.IndicatorSet) {
	ki := &rec.KeyIndicators
	if det.SrcIP != "" {
		ki.SrcIP = det.SrcIP
	}
	if det.DestIP != "" {
		ki.DestIP = det.DestIP
	}
	if len(det.SrcPorts) > 0 {
		ki.SrcPorts = det.SrcPorts
	}
	if len(det.DestPorts) > 0 {
		ki.DestPorts = det.DestPorts
	}
	ki.Protocols = pick(det.Protocols, ki.Protocols)
	ki.Commands = pick(det.Commands, ki.Commands)
	ki.URLs = pick(det.URLs, ki.URLs)
	ki.Signatures = pick(det.Signatures, ki.Signatures)
	ki.Files = pick(det.Files, ki.Files)
}

func pick(det, current []string) []string {
	if len(det) > 0 {
		return det
	}
	return current
}

// Build produces the analysis record for s. The session identity is
// re-applied after the merge so records are always filed under their session.
func Build(s *models.Session, narrative map[string]interface{}, det models.IndicatorSet) (*models.AnalysisRecord, error) {
	merged := Merge(Template(s), dropNulls(narrative))
	data, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encode merged analysis: %w", err)
	}
	var rec models.AnalysisRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode merged analysis: %w", err)
	}
	Reconcile(&rec, det)
	rec.SessionID = s.SessionID
	rec.Sensor = s.Sensor
	rec.RiskScore = RiskScore(rec.RiskScore)
	return &rec, nil
}

// RiskScore rounds v to a whole number in [0, 10].
func RiskScore(v float64) float64 {
	return math.Min(math.Max(math.Round(v), 0), 10)
}

// dropNulls removes null values from n and from its nested mappings, so a
// field the narrative left null keeps its template value.
func dropNulls(n map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(n))
	for k, v := range n {
		switch val := v.(type) {
		case nil:
			continue
		case map[string]interface{}:
			out[k] = dropNulls(val)
		default:
			out[k] = v
		}
	}
	return out
}
