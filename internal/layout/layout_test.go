package layout

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"honeytrail/pkg/models"
)

func testLayout(t *testing.T) Layout {
	root := t.TempDir()
	return Layout{
		Raw:         filepath.Join(root, "raw"),
		Normalized:  filepath.Join(root, "normalized"),
		Sessionized: filepath.Join(root, "sessionized"),
		Analysis:    filepath.Join(root, "analysis"),
		Enriched:    filepath.Join(root, "enriched"),
	}
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("[]"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestPaths(t *testing.T) {
	l := Layout{Normalized: "/n", Sessionized: "/s", Analysis: "/a", Enriched: "/e", Raw: "/r"}
	if got := l.NormalizedFile("2025-09-01", models.SensorCowrie); got != "/n/2025-09-01/cowrie.json" {
		t.Fatalf("unexpected normalized path %s", got)
	}
	if got := l.SessionizedFile("2025-09-01", models.SensorSuricata); got != "/s/2025-09-01/suricata_sessions.json" {
		t.Fatalf("unexpected sessionized path %s", got)
	}
	if got := l.AnalysisFile("2025-09-01", models.SensorWordpot, "wp-1"); got != "/a/2025-09-01/wordpot/wp-1.json" {
		t.Fatalf("unexpected analysis path %s", got)
	}
	if got := l.EnrichedFile("2025-09-01", "wp-1"); got != "/e/2025-09-01/wp-1.json" {
		t.Fatalf("unexpected enriched path %s", got)
	}
	stamp := time.Date(2025, 9, 1, 10, 2, 3, 0, time.UTC)
	if got := l.RawArchive(stamp); got != "/r/tpot_raw_20250901T100203Z.json.gz" {
		t.Fatalf("unexpected raw archive path %s", got)
	}
}

func TestMissingDay(t *testing.T) {
	l := testLayout(t)
	if _, err := l.SessionizedFiles("2025-09-01"); !errors.Is(err, ErrDayNotFound) {
		t.Fatalf("expected ErrDayNotFound, got %v", err)
	}
	if _, err := l.AnalysisFiles("2025-09-01"); !errors.Is(err, ErrDayNotFound) {
		t.Fatalf("expected ErrDayNotFound, got %v", err)
	}
}

func TestFileListing(t *testing.T) {
	l := testLayout(t)
	touch(t, l.SessionizedFile("2025-09-01", models.SensorCowrie))
	touch(t, l.SessionizedFile("2025-09-01", models.SensorDionaea))
	touch(t, filepath.Join(l.Sessionized, "2025-09-01", "notes.json"))
	touch(t, l.AnalysisFile("2025-09-01", models.SensorCowrie, "cow-1"))
	touch(t, l.AnalysisFile("2025-09-01", models.SensorSuricata, "sur-1"))
	touch(t, filepath.Join(l.Raw, "tpot_raw_20250901T000000Z.json.gz"))
	touch(t, filepath.Join(l.Raw, "tpot_raw_20250831T000000Z.json"))

	sessions, err := l.SessionizedFiles("2025-09-01")
	if err != nil || len(sessions) != 2 {
		t.Fatalf("expected 2 session files, got %v (%v)", sessions, err)
	}
	analyses, err := l.AnalysisFiles("2025-09-01")
	if err != nil || len(analyses) != 2 {
		t.Fatalf("expected 2 analysis files, got %v (%v)", analyses, err)
	}
	raws, err := l.RawFiles()
	if err != nil || len(raws) != 2 || filepath.Base(raws[0]) != "tpot_raw_20250831T000000Z.json" {
		t.Fatalf("unexpected raw files %v (%v)", raws, err)
	}
}

func TestValidDate(t *testing.T) {
	if err := ValidDate("2025-09-01"); err != nil {
		t.Fatalf("expected valid date, got %v", err)
	}
	if err := ValidDate("09/01/2025"); err == nil {
		t.Fatalf("expected invalid date error")
	}
}
