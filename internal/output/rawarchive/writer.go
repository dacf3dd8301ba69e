package rawarchive

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"honeytrail/internal/jsonfile"
	"honeytrail/internal/layout"
	"honeytrail/internal/logger"
)

// Writer stores each batch of raw hits as a gzip-compressed JSON array
// named tpot_raw_<UTC stamp>.json.gz, readable by the normalize stage.
type Writer struct {
	dir string
	now func() time.Time
	mu  sync.Mutex
	seq int
}

// NewWriter creates an archive writer under dir.
func NewWriter(dir string) (*Writer, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("raw archive directory is empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	logger.Infof("Raw archive writer initialized: %s", dir)
	return &Writer{dir: dir, now: time.Now}, nil
}

// Path returns the archive name for a batch written at t.
func (w *Writer) Path(t time.Time, seq int) string {
	path := layout.Layout{Raw: w.dir}.RawArchive(t)
	if seq > 0 {
		path = strings.TrimSuffix(path, ".json.gz") + fmt.Sprintf("_%03d.json.gz", seq)
	}
	return path
}

// WriteRawMessages writes one archive for the batch.
func (w *Writer) WriteRawMessages(messages [][]byte) error {
	if len(messages) == 0 {
		return nil
	}
	hits := make([]json.RawMessage, 0, len(messages))
	for _, m := range messages {
		if !json.Valid(m) {
			continue
		}
		hits = append(hits, json.RawMessage(m))
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	path := w.Path(now, 0)
	for _, err := os.Stat(path); err == nil; _, err = os.Stat(path) {
		w.seq++
		path = w.Path(now, w.seq)
	}
	if err := jsonfile.Write(path, hits); err != nil {
		return fmt.Errorf("failed to write raw archive: %w", err)
	}
	logger.Infof("Archived %d raw hits to %s", len(hits), path)
	return nil
}

// Close releases resources.
func (w *Writer) Close() error {
	return nil
}
