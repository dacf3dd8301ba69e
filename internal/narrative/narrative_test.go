package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"honeytrail/pkg/models"
)

func sessionWithEvents(n int) *models.Session {
	base := time.Date(2025, 11, 11, 13, 0, 0, 0, time.UTC)
	s := &models.Session{
		SessionID: "cow-0123456789abcdef",
		Sensor:    models.SensorCowrie,
		SrcIP:     "1.2.3.4",
		DestIP:    "10.0.0.1",
		StartTime: base,
		EndTime:   base.Add(time.Duration(n) * time.Second),
	}
	for i := 0; i < n; i++ {
		s.Events = append(s.Events, &models.NormalizedEvent{
			Timestamp: base.Add(time.Duration(i) * time.Second),
			SrcIP:     models.Str("1.2.3.4"),
			SrcPort:   models.Int(40000),
			DestIP:    models.Str("10.0.0.1"),
			DestPort:  models.Int(22),
			Protocol:  models.Str("ssh"),
			EventKind: models.Str("cowrie.login.failed"),
		})
	}
	return s
}

func TestDigestCapsEventLines(t *testing.T) {
	s := sessionWithEvents(55)
	digest := Digest(s, 50)

	if got := strings.Count(digest, "\n- "); got != 50 {
		t.Fatalf("expected 50 event lines, got %d", got)
	}
	if !strings.Contains(digest, "... (5 more events omitted)") {
		t.Fatalf("expected omitted note, got tail %q", digest[len(digest)-60:])
	}
	if !strings.Contains(digest, "Total events: 55") {
		t.Fatalf("expected total event count in header")
	}
	want := "- 2025-11-11T13:00:00Z | 1.2.3.4:40000 -> 10.0.0.1:22 | proto=ssh | event=cowrie.login.failed"
	if !strings.Contains(digest, want) {
		t.Fatalf("expected line %q in digest", want)
	}
}

func TestDigestTruncatesMessages(t *testing.T) {
	s := sessionWithEvents(1)
	s.Events[0].Message = models.Str(strings.Repeat("x", 250))
	s.Events[0].URL = models.Str("http://x.test/")

	digest := Digest(s, 0)
	if !strings.Contains(digest, "| url=http://x.test/") {
		t.Fatalf("expected url segment")
	}
	if !strings.Contains(digest, "| msg="+strings.Repeat("x", 200)+"...") {
		t.Fatalf("expected message truncated to 200 chars")
	}
	if strings.Contains(digest, strings.Repeat("x", 201)) {
		t.Fatalf("message was not truncated")
	}
}

func TestExtractObject(t *testing.T) {
	cases := []struct {
		name    string
		content string
		intent  string
		wantErr bool
	}{
		{"plain", `{"attack_intent":"web_scanning","summary":"s"}`, "web_scanning", false},
		{"prose", "Sure! Here it is:\n```json\n{\"attack_intent\":\"ssh_bruteforce\",\"summary\":\"a {b}\"}\n```\nLet me know.", "ssh_bruteforce", false},
		{"escaped quote", `note {"attack_intent":"x\"}","summary":""} trailing {"other":1}`, `x"}`, false},
		{"none", "I cannot help with that.", "", true},
		{"unbalanced", `{"attack_intent": "x"`, "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			obj, err := ExtractObject(tc.content)
			if tc.wantErr {
				if !errors.Is(err, ErrNoJSONObject) {
					t.Fatalf("expected ErrNoJSONObject, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if obj["attack_intent"] != tc.intent {
				t.Fatalf("expected intent %q, got %v", tc.intent, obj["attack_intent"])
			}
		})
	}
}

func TestValidatorRejectsOutOfRangeScores(t *testing.T) {
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ok := map[string]interface{}{"attack_intent": "unknown", "summary": "s", "confidence": 0.4, "risk_score": 3.0}
	if err := v.Validate(ok); err != nil {
		t.Fatalf("expected valid document, got %v", err)
	}
	bad := map[string]interface{}{"attack_intent": "unknown", "summary": "s", "confidence": 1.5}
	if err := v.Validate(bad); !errors.Is(err, ErrSchema) {
		t.Fatalf("expected ErrSchema, got %v", err)
	}
}

type fakeCompleter struct {
	reply string
	err   error
	user  string
}

func (f *fakeCompleter) Complete(_ context.Context, system, user string) (string, error) {
	if system != SystemPrompt {
		return "", fmt.Errorf("unexpected system prompt")
	}
	f.user = user
	return f.reply, f.err
}

func TestGeneratorPipeline(t *testing.T) {
	v, _ := NewValidator()
	fc := &fakeCompleter{reply: "```json\n{\"attack_intent\":\"ssh_bruteforce\",\"summary\":\"Repeated logins.\",\"confidence\":0.9,\"risk_score\":4}\n```"}
	g := NewGenerator(fc, v, 10, time.Second)

	obj, err := g.Generate(context.Background(), sessionWithEvents(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obj["attack_intent"] != "ssh_bruteforce" {
		t.Fatalf("unexpected result: %v", obj)
	}
	if !strings.Contains(fc.user, "Session ID: cow-0123456789abcdef") {
		t.Fatalf("expected digest in user prompt")
	}

	fc.err = errors.New("upstream 503")
	if _, err := g.Generate(context.Background(), sessionWithEvents(1)); err == nil {
		t.Fatalf("expected completer error to propagate")
	}
}

func TestGeneratorAcceptsNullFields(t *testing.T) {
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	replies := []string{
		`{"attack_intent":"ssh_bruteforce","summary":"s","key_indicators":{"src_ip":null,"urls":null}}`,
		`{"attack_intent":"unknown","summary":null}`,
		`{"attack_intent":"unknown","key_indicators":null,"risk_score":null,"confidence":null}`,
	}
	for _, reply := range replies {
		g := NewGenerator(&fakeCompleter{reply: reply}, v, 10, time.Second)
		if _, err := g.Generate(context.Background(), sessionWithEvents(2)); err != nil {
			t.Fatalf("expected %s to be accepted, got %v", reply, err)
		}
	}
}

func TestValidatorRequiresWholeRiskScore(t *testing.T) {
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc := map[string]interface{}{"attack_intent": "unknown", "risk_score": 6.5}
	if err := v.Validate(doc); !errors.Is(err, ErrSchema) {
		t.Fatalf("expected ErrSchema for fractional risk, got %v", err)
	}
	doc["risk_score"] = 7
	if err := v.Validate(doc); err != nil {
		t.Fatalf("expected integer risk to validate, got %v", err)
	}
}
