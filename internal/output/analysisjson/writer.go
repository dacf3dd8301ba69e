package analysisjson

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"honeytrail/internal/logger"
	"honeytrail/pkg/models"
)

// Writer appends analysis records to a JSON lines file.
type Writer struct {
	file    *os.File
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewWriter creates a JSONL writer for analysis records.
func NewWriter(path string) (*Writer, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}

	logger.Infof("Analysis JSON writer initialized: %s", path)
	return &Writer{file: f, encoder: json.NewEncoder(f)}, nil
}

// WriteAnalyses writes a batch of records, one per line.
func (w *Writer) WriteAnalyses(records []*models.AnalysisRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, rec := range records {
		if err := w.encoder.Encode(rec); err != nil {
			return fmt.Errorf("failed to encode analysis record: %w", err)
		}
	}
	return nil
}

// Close closes the output file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file != nil {
		return w.file.Close()
	}
	return nil
}
