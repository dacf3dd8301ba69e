package models

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestAnalysisRecordSplitsTopLevelKeys(t *testing.T) {
	data := []byte(`{
		"session_id": "cow-1",
		"sensor": "cowrie",
		"attack_intent": "credential brute force",
		"summary": "many logins",
		"key_indicators": {"src_ip": "1.2.3.4", "dest_ports": [22, "2222", "x"], "asn": 4134},
		"confidence": 0.8,
		"risk_score": 7,
		"timestamp_range": {"start": "2025-11-11T10:00:00Z", "end": "2025-11-11T10:05:00Z"},
		"mitre_candidates": [{"tid": "T1110", "distance": 0.12}],
		"sigma_candidates": "unavailable",
		"analyst_note": "seen before"
	}`)

	var rec AnalysisRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec.SessionID != "cow-1" || rec.Sensor != SensorCowrie || rec.RiskScore != 7 {
		t.Fatalf("unexpected core fields: %+v", rec)
	}
	if !reflect.DeepEqual(rec.KeyIndicators.DestPorts, PortList{22, 2222}) {
		t.Fatalf("expected dest ports [22 2222], got %v", rec.KeyIndicators.DestPorts)
	}
	if rec.KeyIndicators.Extra["asn"] != float64(4134) {
		t.Fatalf("expected indicator extra asn, got %v", rec.KeyIndicators.Extra)
	}

	mitre := rec.Candidates["mitre_candidates"]
	if len(mitre) != 1 || mitre[0].String("tid") != "T1110" || mitre[0].Distance() != 0.12 {
		t.Fatalf("unexpected mitre candidates: %v", mitre)
	}
	if _, ok := rec.Candidates["sigma_candidates"]; ok {
		t.Fatalf("non-list candidate value should not be a candidate list")
	}
	if rec.Extra["sigma_candidates"] != "unavailable" || rec.Extra["analyst_note"] != "seen before" {
		t.Fatalf("unexpected extra: %v", rec.Extra)
	}

	out, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var flat map[string]interface{}
	if err := json.Unmarshal(out, &flat); err != nil {
		t.Fatalf("decode flat: %v", err)
	}
	for _, key := range []string{"mitre_candidates", "sigma_candidates", "analyst_note", "timestamp_range"} {
		if _, ok := flat[key]; !ok {
			t.Fatalf("expected top-level key %s in %s", key, out)
		}
	}
	ki := flat["key_indicators"].(map[string]interface{})
	if _, ok := ki["commands"].([]interface{}); !ok {
		t.Fatalf("expected empty commands list, got %v", ki["commands"])
	}
}

func TestSetCandidatesNeverStoresNil(t *testing.T) {
	var rec AnalysisRecord
	rec.SetCandidates("suricata_candidates", nil)

	out, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(out, &flat); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(flat["suricata_candidates"]) != "[]" {
		t.Fatalf("expected [], got %s", flat["suricata_candidates"])
	}
}

func TestRawPaths(t *testing.T) {
	r := Raw{
		"src_ip":     "5.6.7.8",
		"dest_port":  "445",
		"connection": map[string]interface{}{"protocol": "smbd", "count": float64(3)},
		"tags":       []interface{}{"a", "b"},
	}

	if got := r.String("missing", "connection.protocol"); got != "smbd" {
		t.Fatalf("expected smbd, got %q", got)
	}
	if n, ok := r.Int("dest_port"); !ok || n != 445 {
		t.Fatalf("expected 445, got %d %v", n, ok)
	}
	if n, ok := r.Int("connection.count"); !ok || n != 3 {
		t.Fatalf("expected 3, got %d %v", n, ok)
	}
	if _, ok := r.Path("connection.protocol.name"); ok {
		t.Fatalf("expected path through a scalar to fail")
	}
	if got := r.Strings("tags"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("expected [a b], got %v", got)
	}
}

func TestCandidateAccessors(t *testing.T) {
	c := Candidate{"sid": float64(2001219), "title": "ET SCAN", "distance": float32(0.5)}
	if got := c.String("sid"); got != "2001219" {
		t.Fatalf("expected 2001219, got %q", got)
	}
	if got := c.String("missing"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
	if got := c.Distance(); got != 0.5 {
		t.Fatalf("expected 0.5, got %v", got)
	}
	if got := (Candidate{}).Distance(); got != -1 {
		t.Fatalf("expected -1, got %v", got)
	}
}
