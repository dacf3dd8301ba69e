package analysisnats

import (
	"testing"

	"honeytrail/pkg/models"
)

func TestSubject(t *testing.T) {
	cases := []struct {
		prefix string
		sensor models.SensorKind
		want   string
	}{
		{"", models.SensorCowrie, "honeytrail.analysis.cowrie"},
		{" tpot.sessions. ", models.SensorDionaea, "tpot.sessions.dionaea"},
		{"x", "", "x.unknown"},
	}
	for _, tc := range cases {
		got := Subject(SubjectPrefix(tc.prefix), &models.AnalysisRecord{Sensor: tc.sensor})
		if got != tc.want {
			t.Fatalf("expected %s, got %s", tc.want, got)
		}
	}
}
