package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"honeytrail/internal/jsonfile"
	"honeytrail/internal/logger"
	"honeytrail/pkg/models"
)

// Enrich applies the enrichment passes to every analysis record of the day
// and writes the result to the enriched directory. Successfully enriched
// records are handed to the publisher, if any, in one batch.
func (p *Pipeline) Enrich(ctx context.Context, date string) (*Report, error) {
	started := time.Now()
	rep := newReport("enrich", date)
	if p.enricher == nil {
		return rep, fmt.Errorf("enrich requires an enricher")
	}

	files, err := p.layout.AnalysisFiles(date)
	if err != nil {
		return rep, err
	}
	rep.Loaded = len(files)

	jobs := make([]job[string], 0, len(files))
	for _, f := range files {
		jobs = append(jobs, job[string]{id: strings.TrimSuffix(filepath.Base(f), ".json"), item: f})
	}

	var mu sync.Mutex
	var done []*models.AnalysisRecord
	forEach(ctx, rep.Stage, p.workers, jobs, rep, func(ctx context.Context, path string) error {
		var rec models.AnalysisRecord
		if err := jsonfile.Read(path, &rec); err != nil {
			return err
		}
		if err := p.enricher.Enrich(ctx, &rec); err != nil {
			return err
		}
		if err := jsonfile.Write(p.layout.EnrichedFile(date, rec.SessionID), &rec); err != nil {
			return err
		}
		mu.Lock()
		done = append(done, &rec)
		mu.Unlock()
		return nil
	})

	if p.publisher != nil && len(done) > 0 {
		if err := p.publisher.WriteAnalyses(done); err != nil {
			logger.Errorf("Failed to publish %d enriched records: %v", len(done), err)
		}
	}
	finish(rep, started)
	return rep, nil
}
