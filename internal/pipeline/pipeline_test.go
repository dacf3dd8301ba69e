package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"honeytrail/internal/jsonfile"
	"honeytrail/internal/layout"
	"honeytrail/pkg/models"
)

const day = "2025-11-11"

func testLayout(t *testing.T) layout.Layout {
	t.Helper()
	root := t.TempDir()
	return layout.Layout{
		Raw:         filepath.Join(root, "raw"),
		Normalized:  filepath.Join(root, "normalized"),
		Sessionized: filepath.Join(root, "sessionized"),
		Analysis:    filepath.Join(root, "analysis"),
		Enriched:    filepath.Join(root, "enriched"),
	}
}

type fakeNarrator struct {
	failFor string
	panicOn string
}

func (f fakeNarrator) Generate(_ context.Context, s *models.Session) (map[string]interface{}, error) {
	if s.SessionID == f.panicOn {
		panic("narrator exploded")
	}
	if s.SessionID == f.failFor {
		return nil, errors.New("model unavailable")
	}
	return map[string]interface{}{
		"attack_intent": "credential brute force",
		"summary":       "repeated ssh logins",
		"risk_score":    6,
		"confidence":    0.8,
		"analyst_note":  "kept",
	}, nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	records []*models.AnalysisRecord
	err     error
}

func (r *recordingPublisher) WriteAnalyses(records []*models.AnalysisRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, records...)
	return r.err
}

func (r *recordingPublisher) Close() error { return nil }

type tagEnricher struct{ failFor string }

func (e tagEnricher) Enrich(_ context.Context, rec *models.AnalysisRecord) error {
	if rec.SessionID == e.failFor {
		return errors.New("vector store down")
	}
	rec.SetCandidates("mitre_candidates", []models.Candidate{{"tid": "T1110", "distance": 0.1}})
	return nil
}

func session(id string, start time.Time) *models.Session {
	return &models.Session{
		SessionID: id,
		Sensor:    models.SensorCowrie,
		SrcIP:     "203.0.113.5",
		DestIP:    "198.51.100.1",
		StartTime: start,
		EndTime:   start.Add(time.Minute),
		Events: []*models.NormalizedEvent{{
			Timestamp: start,
			Sensor:    models.SensorCowrie,
			SrcIP:     models.Str("203.0.113.5"),
			DestIP:    models.Str("198.51.100.1"),
			DestPort:  models.Int(22),
			Protocol:  models.Str("ssh"),
		}},
	}
}

func writeSessions(t *testing.T, l layout.Layout, doc interface{}) {
	t.Helper()
	require.NoError(t, jsonfile.Write(l.SessionizedFile(day, models.SensorCowrie), doc))
}

func TestNormalizeThenSessionize(t *testing.T) {
	l := testLayout(t)
	raw := filepath.Join(l.Raw, "tpot_raw_20251111T140000Z.json.gz")
	hits := []map[string]interface{}{
		{"_source": map[string]interface{}{"type": "Cowrie", "@timestamp": "2025-11-11T13:36:46Z", "src_ip": "203.0.113.5", "dest_port": 22, "session": "s1", "eventid": "cowrie.login.failed"}},
		{"_source": map[string]interface{}{"type": "Cowrie", "@timestamp": "2025-11-11T13:36:50Z", "src_ip": "203.0.113.5", "dest_port": 22, "session": "s1", "eventid": "cowrie.command.input", "input": "uname -a"}},
		{"_source": map[string]interface{}{"type": "Cowrie", "@timestamp": "2025-11-11T15:00:00Z", "src_ip": "192.0.2.9", "dest_port": 23, "session": "s2", "eventid": "cowrie.session.connect"}},
		{"_source": map[string]interface{}{"type": "Honeytrap", "@timestamp": "2025-11-11T15:00:00Z"}},
		{"_source": map[string]interface{}{"type": "Cowrie", "@timestamp": "yesterday"}},
	}
	require.NoError(t, jsonfile.Write(raw, hits))

	p := New(Options{Layout: l})
	ctx := context.Background()

	rep, err := p.Normalize(ctx, []string{raw, filepath.Join(l.Raw, "missing.json")})
	require.NoError(t, err)
	assert.Equal(t, 5, rep.Loaded)
	assert.Equal(t, 3, rep.Processed)
	assert.Equal(t, 2, rep.Failed)
	assert.Equal(t, 3, rep.Counts[day+"/cowrie"])
	assert.Len(t, rep.FailedIDs, 1)

	srep, err := p.Sessionize(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 3, srep.Loaded)
	assert.Equal(t, 2, srep.Processed)

	sessions, err := p.LoadSessions(day)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	for _, s := range sessions {
		assert.Equal(t, models.SensorCowrie, s.Sensor)
		assert.NotEmpty(t, s.SessionID)
	}
}

func TestSessionize_MissingDay(t *testing.T) {
	p := New(Options{Layout: testLayout(t)})
	_, err := p.Sessionize(context.Background(), day)
	assert.ErrorIs(t, err, layout.ErrDayNotFound)
}

func TestLoadSessions_FlattensNestedArrays(t *testing.T) {
	l := testLayout(t)
	start := time.Date(2025, 11, 11, 10, 0, 0, 0, time.UTC)
	writeSessions(t, l, []interface{}{
		[]interface{}{session("cow-a", start), session("cow-b", start)},
		session("cow-c", start),
		map[string]interface{}{"note": "not a session"},
		"stray",
	})

	sessions, err := New(Options{Layout: l}).LoadSessions(day)
	require.NoError(t, err)
	var ids []string
	for _, s := range sessions {
		ids = append(ids, s.SessionID)
	}
	assert.Equal(t, []string{"cow-a", "cow-b", "cow-c"}, ids)
}

func TestAnalyze_IsolatesFailures(t *testing.T) {
	l := testLayout(t)
	start := time.Date(2025, 11, 11, 10, 0, 0, 0, time.UTC)
	writeSessions(t, l, []*models.Session{
		session("cow-1", start),
		session("cow-2", start.Add(time.Hour)),
		session("cow-3", start.Add(2*time.Hour)),
	})

	p := New(Options{Layout: l, Narrator: fakeNarrator{failFor: "cow-2"}, Workers: 2})
	rep, err := p.Analyze(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Loaded)
	assert.Equal(t, 2, rep.Processed)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, []string{"cow-2"}, rep.FailedIDs)

	for _, id := range []string{"cow-1", "cow-3"} {
		var rec models.AnalysisRecord
		require.NoError(t, jsonfile.Read(l.AnalysisFile(day, models.SensorCowrie, id), &rec))
		assert.Equal(t, id, rec.SessionID)
		assert.Equal(t, "credential brute force", rec.AttackIntent)
		assert.EqualValues(t, 6, rec.RiskScore)
		assert.Equal(t, []int{22}, []int(rec.KeyIndicators.DestPorts))
		assert.Equal(t, "kept", rec.Extra["analyst_note"])
	}
	_, err = os.Stat(l.AnalysisFile(day, models.SensorCowrie, "cow-2"))
	assert.True(t, os.IsNotExist(err))
}

func TestAnalyze_RecoversPanics(t *testing.T) {
	l := testLayout(t)
	start := time.Date(2025, 11, 11, 10, 0, 0, 0, time.UTC)
	writeSessions(t, l, []*models.Session{session("cow-1", start), session("cow-2", start)})

	p := New(Options{Layout: l, Narrator: fakeNarrator{panicOn: "cow-1"}})
	rep, err := p.Analyze(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Processed)
	assert.Equal(t, []string{"cow-1"}, rep.FailedIDs)
}

func TestAnalyze_RequiresNarrator(t *testing.T) {
	_, err := New(Options{Layout: testLayout(t)}).Analyze(context.Background(), day)
	require.Error(t, err)
}

func TestEnrich_WritesAndPublishes(t *testing.T) {
	l := testLayout(t)
	for _, id := range []string{"cow-1", "cow-2"} {
		rec := &models.AnalysisRecord{SessionID: id, Sensor: models.SensorCowrie}
		require.NoError(t, jsonfile.Write(l.AnalysisFile(day, models.SensorCowrie, id), rec))
	}

	pub := &recordingPublisher{}
	p := New(Options{Layout: l, Enricher: tagEnricher{failFor: "cow-2"}, Publisher: pub})
	rep, err := p.Enrich(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Loaded)
	assert.Equal(t, 1, rep.Processed)
	assert.Equal(t, []string{"cow-2"}, rep.FailedIDs)

	var rec models.AnalysisRecord
	require.NoError(t, jsonfile.Read(l.EnrichedFile(day, "cow-1"), &rec))
	require.Len(t, rec.Candidates["mitre_candidates"], 1)
	assert.Equal(t, "T1110", rec.Candidates["mitre_candidates"][0].String("tid"))

	require.Len(t, pub.records, 1)
	assert.Equal(t, "cow-1", pub.records[0].SessionID)
}

func TestEnrich_PublishFailureIsNotSessionFailure(t *testing.T) {
	l := testLayout(t)
	rec := &models.AnalysisRecord{SessionID: "cow-1", Sensor: models.SensorCowrie}
	require.NoError(t, jsonfile.Write(l.AnalysisFile(day, models.SensorCowrie, "cow-1"), rec))

	p := New(Options{Layout: l, Enricher: tagEnricher{}, Publisher: &recordingPublisher{err: errors.New("broker down")}})
	rep, err := p.Enrich(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Failed)
}

func TestRun_AllStages(t *testing.T) {
	l := testLayout(t)
	start := time.Date(2025, 11, 11, 9, 0, 0, 0, time.UTC)
	events := []*models.NormalizedEvent{
		{Timestamp: start, Sensor: models.SensorCowrie, SessionKey: models.Str("k1"), SrcIP: models.Str("203.0.113.5"), DestPort: models.Int(22)},
		{Timestamp: start.Add(time.Second), Sensor: models.SensorCowrie, SessionKey: models.Str("k1"), SrcIP: models.Str("203.0.113.5"), DestPort: models.Int(22)},
	}
	require.NoError(t, jsonfile.Write(l.NormalizedFile(day, models.SensorCowrie), events))

	p := New(Options{Layout: l, Narrator: fakeNarrator{}, Enricher: tagEnricher{}})
	reports, err := p.Run(context.Background(), day)
	require.NoError(t, err)
	require.Len(t, reports, 3)
	assert.Equal(t, "sessionize", reports[0].Stage)
	assert.Equal(t, 1, reports[0].Processed)
	assert.Equal(t, 1, reports[1].Processed)
	assert.Equal(t, 1, reports[2].Processed)

	files, err := l.EnrichedFiles(day)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}
