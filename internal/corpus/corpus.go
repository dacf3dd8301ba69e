// Package corpus loads reference rule sets and indexes them into a similarity store.
package corpus

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"honeytrail/internal/logger"
	"honeytrail/internal/similarity"
)

const (
	Mitre    = "mitre"
	Sigma    = "sigma"
	Suricata = "suricata"
)

// LoadStats tracks the number of loaded and skipped entries.
type LoadStats struct {
	TotalFiles     int
	Loaded         int
	SkippedInvalid int
	SkippedFilter  int
}

// Loader reads one corpus from a file or directory.
type Loader func(path string) ([]similarity.Document, LoadStats, error)

// Source describes how a corpus is loaded and indexed.
type Source struct {
	Name      string
	Load      Loader
	BatchSize int
}

// Sources lists the supported corpora.
var Sources = map[string]Source{
	Mitre:    {Name: Mitre, Load: LoadMitre, BatchSize: 25},
	Sigma:    {Name: Sigma, Load: LoadSigma, BatchSize: 25},
	Suricata: {Name: Suricata, Load: LoadSuricata, BatchSize: 50},
}

// Names returns the supported corpus names, sorted.
func Names() []string {
	out := make([]string, 0, len(Sources))
	for name := range Sources {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Upserter writes documents to a corpus.
type Upserter interface {
	Upsert(ctx context.Context, corpus string, docs []similarity.Document) error
}

// Indexer writes corpus documents in fixed-size batches.
type Indexer struct {
	store Upserter
}

func NewIndexer(store Upserter) *Indexer {
	return &Indexer{store: store}
}

// Index upserts docs in batches and returns how many were written.
func (ix *Indexer) Index(ctx context.Context, corpus string, docs []similarity.Document, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 25
	}
	total := (len(docs) + batchSize - 1) / batchSize
	written := 0
	for i := 0; i < len(docs); i += batchSize {
		end := i + batchSize
		if end > len(docs) {
			end = len(docs)
		}
		logger.Infof("Indexing %s batch %d/%d (%d items)", corpus, i/batchSize+1, total, end-i)
		if err := ix.store.Upsert(ctx, corpus, docs[i:end]); err != nil {
			return written, fmt.Errorf("index %s batch %d: %w", corpus, i/batchSize+1, err)
		}
		written += end - i
	}
	return written, nil
}

// Ingest loads a corpus from path and indexes it.
func (ix *Indexer) Ingest(ctx context.Context, name, path string) (LoadStats, int, error) {
	src, ok := Sources[name]
	if !ok {
		return LoadStats{}, 0, fmt.Errorf("unknown corpus %q (expected one of %s)", name, strings.Join(Names(), ", "))
	}
	docs, stats, err := src.Load(path)
	if err != nil {
		return stats, 0, err
	}
	logger.Infof("Loaded %s corpus: files=%d loaded=%d invalid=%d filtered=%d",
		name, stats.TotalFiles, stats.Loaded, stats.SkippedInvalid, stats.SkippedFilter)
	n, err := ix.Index(ctx, name, docs, src.BatchSize)
	return stats, n, err
}

// collectFiles returns path itself, or every file under it accepted by match.
func collectFiles(path string, match func(string) bool) ([]string, error) {
	resolved, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve corpus path: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("stat corpus path: %w", err)
	}
	if !info.IsDir() {
		return []string{resolved}, nil
	}

	files := make([]string, 0, 256)
	err = filepath.WalkDir(resolved, func(filePath string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() {
			return nil
		}
		if match(filePath) {
			files = append(files, filePath)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk corpus directory: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

func hasSuffixFold(path string, suffixes ...string) bool {
	lower := strings.ToLower(path)
	for _, s := range suffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}
