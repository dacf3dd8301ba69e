// Package layout maps pipeline artifacts to their on-disk locations.
package layout

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"honeytrail/pkg/models"
)

// ErrDayNotFound is returned when a stage input directory for a date is missing.
var ErrDayNotFound = errors.New("day directory not found")

const dateLayout = "2006-01-02"

// Layout holds the root directory of every stage.
type Layout struct {
	Raw         string `yaml:"raw_dir" mapstructure:"raw_dir"`
	Normalized  string `yaml:"normalized_dir" mapstructure:"normalized_dir"`
	Sessionized string `yaml:"sessionized_dir" mapstructure:"sessionized_dir"`
	Analysis    string `yaml:"analysis_dir" mapstructure:"analysis_dir"`
	Enriched    string `yaml:"enriched_dir" mapstructure:"enriched_dir"`
}

// ValidDate checks a YYYY-MM-DD date string.
func ValidDate(date string) error {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return fmt.Errorf("invalid date %q: expected YYYY-MM-DD", date)
	}
	return nil
}

// Today returns the current UTC date.
func Today() string {
	return time.Now().UTC().Format(dateLayout)
}

func (l Layout) NormalizedFile(date string, sensor models.SensorKind) string {
	return filepath.Join(l.Normalized, date, string(sensor)+".json")
}

func (l Layout) SessionizedFile(date string, sensor models.SensorKind) string {
	return filepath.Join(l.Sessionized, date, string(sensor)+"_sessions.json")
}

func (l Layout) AnalysisFile(date string, sensor models.SensorKind, sessionID string) string {
	return filepath.Join(l.Analysis, date, string(sensor), sessionID+".json")
}

func (l Layout) EnrichedFile(date, sessionID string) string {
	return filepath.Join(l.Enriched, date, sessionID+".json")
}

// RawArchive returns a new archive path stamped with t.
func (l Layout) RawArchive(t time.Time) string {
	return filepath.Join(l.Raw, "tpot_raw_"+t.UTC().Format("20060102T150405Z")+".json.gz")
}

// RawFiles lists raw hit archives, oldest first.
func (l Layout) RawFiles() ([]string, error) {
	var out []string
	for _, pattern := range []string{"tpot_raw_*.json", "tpot_raw_*.json.gz"} {
		matches, err := filepath.Glob(filepath.Join(l.Raw, pattern))
		if err != nil {
			return nil, err
		}
		out = append(out, matches...)
	}
	sort.Strings(out)
	return out, nil
}

// SessionizedFiles lists every *_sessions.json for a date.
func (l Layout) SessionizedFiles(date string) ([]string, error) {
	dir := filepath.Join(l.Sessionized, date)
	if err := requireDir(dir); err != nil {
		return nil, err
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*_sessions.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// NormalizedDay checks that normalized output exists for a date.
func (l Layout) NormalizedDay(date string) error {
	return requireDir(filepath.Join(l.Normalized, date))
}

// AnalysisFiles lists every analysis record under a date, recursively.
func (l Layout) AnalysisFiles(date string) ([]string, error) {
	return jsonFilesUnder(filepath.Join(l.Analysis, date))
}

// EnrichedFiles lists the enriched records of a date.
func (l Layout) EnrichedFiles(date string) ([]string, error) {
	return jsonFilesUnder(filepath.Join(l.Enriched, date))
}

func jsonFilesUnder(dir string) ([]string, error) {
	if err := requireDir(dir); err != nil {
		return nil, err
	}
	var out []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".json") {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(out)
	return out, nil
}

func requireDir(dir string) error {
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.IsDir()) {
		return fmt.Errorf("%w: %s", ErrDayNotFound, dir)
	}
	return err
}
