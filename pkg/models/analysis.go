package models

import (
	"encoding/json"
	"strings"
)

// CandidateSuffix marks top-level analysis keys holding enrichment candidates.
const CandidateSuffix = "_candidates"

// TimestampRange bounds the analyzed activity.
type TimestampRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// AnalysisRecord is the canonical per-session analysis.
// Candidates holds enrichment lists keyed by "<pass>_candidates"; Extra
// holds any other top-level key returned by the narrative generator.
type AnalysisRecord struct {
	SessionID      string         `json:"session_id"`
	Sensor         SensorKind     `json:"sensor"`
	AttackIntent   string         `json:"attack_intent"`
	Summary        string         `json:"summary"`
	KeyIndicators  IndicatorSet   `json:"key_indicators"`
	Confidence     float64        `json:"confidence"`
	RiskScore      float64        `json:"risk_score"`
	TimestampRange TimestampRange `json:"timestamp_range"`

	Candidates map[string][]Candidate `json:"-"`
	Extra      map[string]interface{} `json:"-"`
}

var analysisKeys = map[string]struct{}{
	"session_id": {}, "sensor": {}, "attack_intent": {}, "summary": {}, "key_indicators": {},
	"confidence": {}, "risk_score": {}, "timestamp_range": {},
}

type analysisRecordAlias AnalysisRecord

// SetCandidates attaches a candidate list, replacing any previous list under key.
func (r *AnalysisRecord) SetCandidates(key string, list []Candidate) {
	if r.Candidates == nil {
		r.Candidates = make(map[string][]Candidate)
	}
	if list == nil {
		list = []Candidate{}
	}
	r.Candidates[key] = list
}

// MarshalJSON flattens candidate lists and extra keys into the top level.
func (r AnalysisRecord) MarshalJSON() ([]byte, error) {
	extra := make(map[string]interface{}, len(r.Extra)+len(r.Candidates))
	for k, v := range r.Extra {
		extra[k] = v
	}
	for k, v := range r.Candidates {
		extra[k] = v
	}
	return marshalWithExtra(analysisRecordAlias(r), extra)
}

// UnmarshalJSON splits unknown top-level keys into Candidates and Extra.
func (r *AnalysisRecord) UnmarshalJSON(data []byte) error {
	var a analysisRecordAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*r = AnalysisRecord(a)
	r.Candidates = nil
	r.Extra = nil
	for k, raw := range fields {
		if _, ok := analysisKeys[k]; ok {
			continue
		}
		if strings.HasSuffix(k, CandidateSuffix) {
			var list []Candidate
			if err := json.Unmarshal(raw, &list); err == nil {
				r.SetCandidates(k, list)
				continue
			}
		}
		var v interface{}
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		if r.Extra == nil {
			r.Extra = make(map[string]interface{})
		}
		r.Extra[k] = v
	}
	return nil
}
