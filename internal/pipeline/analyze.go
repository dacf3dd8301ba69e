package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"honeytrail/internal/jsonfile"
	"honeytrail/internal/logger"
	"honeytrail/internal/merge"
	"honeytrail/internal/metrics"
	"honeytrail/pkg/models"
)

// LoadSessions reads every sessionized file for a date. Nested arrays are
// flattened; entries that are not session objects are skipped.
func (p *Pipeline) LoadSessions(date string) ([]*models.Session, error) {
	files, err := p.layout.SessionizedFiles(date)
	if err != nil {
		return nil, err
	}
	var out []*models.Session
	for _, file := range files {
		var doc json.RawMessage
		if err := jsonfile.Read(file, &doc); err != nil {
			logger.Errorf("Failed to read %s: %v", file, err)
			continue
		}
		out = flattenSessions(doc, out)
	}
	return out, nil
}

func flattenSessions(doc json.RawMessage, out []*models.Session) []*models.Session {
	trimmed := bytes.TrimSpace(doc)
	if len(trimmed) == 0 {
		return out
	}
	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return out
		}
		for _, item := range items {
			out = flattenSessions(item, out)
		}
	case '{':
		var s models.Session
		if err := json.Unmarshal(trimmed, &s); err != nil || s.SessionID == "" {
			return out
		}
		out = append(out, &s)
	}
	return out
}

// Analyze produces one analysis record per session of the day. A session
// whose narrative or write fails is reported and the rest continue.
func (p *Pipeline) Analyze(ctx context.Context, date string) (*Report, error) {
	started := time.Now()
	rep := newReport("analyze", date)
	if p.narrator == nil {
		return rep, fmt.Errorf("analyze requires a narrative generator")
	}

	sessions, err := p.LoadSessions(date)
	if err != nil {
		return rep, err
	}
	rep.Loaded = len(sessions)

	jobs := make([]job[*models.Session], 0, len(sessions))
	for _, s := range sessions {
		jobs = append(jobs, job[*models.Session]{id: s.SessionID, item: s})
	}
	forEach(ctx, rep.Stage, p.workers, jobs, rep, func(ctx context.Context, s *models.Session) error {
		rec, err := p.AnalyzeSession(ctx, s)
		if err != nil {
			return err
		}
		return jsonfile.Write(p.layout.AnalysisFile(date, s.Sensor, s.SessionID), rec)
	})
	finish(rep, started)
	return rep, nil
}

// AnalyzeSession runs the narrative generator and merges its output with the
// deterministic indicators of the session.
func (p *Pipeline) AnalyzeSession(ctx context.Context, s *models.Session) (*models.AnalysisRecord, error) {
	narrative, err := p.narrator.Generate(ctx, s)
	if err != nil {
		return nil, err
	}
	rec, err := merge.Build(s, narrative, p.extractor.Extract(s))
	if err != nil {
		return nil, err
	}
	metrics.RiskScores.Observe(rec.RiskScore)
	return rec, nil
}
