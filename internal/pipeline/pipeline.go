// Package pipeline runs the batch stages: normalize, sessionize, analyze and enrich.
package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"honeytrail/internal/indicator"
	"honeytrail/internal/layout"
	"honeytrail/internal/logger"
	"honeytrail/internal/metrics"
	"honeytrail/internal/sensor"
	"honeytrail/pkg/models"
)

// Narrator produces the narrative fields for one session.
type Narrator interface {
	Generate(ctx context.Context, s *models.Session) (map[string]interface{}, error)
}

// Enricher attaches reference candidates to one analysis record.
type Enricher interface {
	Enrich(ctx context.Context, rec *models.AnalysisRecord) error
}

// Options wires a pipeline. Narrator is required by Analyze and Enricher by Enrich.
type Options struct {
	Layout    layout.Layout
	Registry  *sensor.Registry
	Narrator  Narrator
	Enricher  Enricher
	Publisher AnalysisWriter
	Workers   int
}

// Pipeline executes stages over the configured layout.
type Pipeline struct {
	layout    layout.Layout
	registry  *sensor.Registry
	extractor *indicator.Extractor
	narrator  Narrator
	enricher  Enricher
	publisher AnalysisWriter
	workers   int
}

// Report summarizes one stage run.
type Report struct {
	Stage     string         `json:"stage"`
	RunID     string         `json:"run_id"`
	Date      string         `json:"date,omitempty"`
	Loaded    int            `json:"loaded"`
	Processed int            `json:"processed"`
	Failed    int            `json:"failed"`
	FailedIDs []string       `json:"failed_ids"`
	Counts    map[string]int `json:"counts,omitempty"`
	Duration  time.Duration  `json:"duration"`
}

func newReport(stage, date string) *Report {
	return &Report{Stage: stage, RunID: uuid.NewString(), Date: date, FailedIDs: []string{}}
}

func (r *Report) fail(id string) {
	r.Failed++
	r.FailedIDs = append(r.FailedIDs, id)
}

// New creates a pipeline.
func New(opts Options) *Pipeline {
	registry := opts.Registry
	if registry == nil {
		registry = sensor.NewRegistry(sensor.DefaultWindows())
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	return &Pipeline{
		layout:    opts.Layout,
		registry:  registry,
		extractor: indicator.NewExtractor(registry),
		narrator:  opts.Narrator,
		enricher:  opts.Enricher,
		publisher: opts.Publisher,
		workers:   workers,
	}
}

// Run executes sessionize, analyze and enrich for a date. It stops at the
// first stage that cannot run at all; per-session failures do not stop it.
func (p *Pipeline) Run(ctx context.Context, date string) ([]*Report, error) {
	var reports []*Report
	stages := []func(context.Context, string) (*Report, error){p.Sessionize, p.Analyze, p.Enrich}
	for _, stage := range stages {
		rep, err := stage(ctx, date)
		if rep != nil {
			reports = append(reports, rep)
		}
		if err != nil {
			return reports, err
		}
		if ctx.Err() != nil {
			return reports, ctx.Err()
		}
	}
	return reports, nil
}

// Close releases the publisher.
func (p *Pipeline) Close() error {
	if p.publisher != nil {
		return p.publisher.Close()
	}
	return nil
}

type job[T any] struct {
	id   string
	item T
}

// forEach runs fn over jobs with a bounded worker pool. A job that errors or
// panics is recorded as failed; the remaining jobs still run.
func forEach[T any](ctx context.Context, stage string, workers int, jobs []job[T], rep *Report, fn func(context.Context, T) error) {
	jobCh := make(chan job[T])
	var mu sync.Mutex
	var failed []string
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobCh {
				err := runJob(ctx, j.item, fn)
				mu.Lock()
				if err != nil {
					logger.Errorf("%s failed for %s: %v", stage, j.id, err)
					metrics.StageSessions.WithLabelValues(stage, "failed").Inc()
					failed = append(failed, j.id)
				} else {
					metrics.StageSessions.WithLabelValues(stage, "ok").Inc()
					rep.Processed++
				}
				mu.Unlock()
			}
		}()
	}

	for _, j := range jobs {
		if ctx.Err() != nil {
			mu.Lock()
			failed = append(failed, j.id)
			mu.Unlock()
			continue
		}
		jobCh <- j
	}
	close(jobCh)
	wg.Wait()

	sort.Strings(failed)
	for _, id := range failed {
		rep.fail(id)
	}
}

func runJob[T any](ctx context.Context, item T, fn func(context.Context, T) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return fn(ctx, item)
}

func finish(rep *Report, started time.Time) {
	rep.Duration = time.Since(started)
	logger.Infof("%s %s: loaded=%d processed=%d failed=%d run_id=%s",
		rep.Stage, rep.Date, rep.Loaded, rep.Processed, rep.Failed, rep.RunID)
}
