package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"honeytrail/internal/jsonfile"
	"honeytrail/internal/logger"
	"honeytrail/internal/metrics"
	"honeytrail/internal/sessionize"
	"honeytrail/pkg/models"
)

// Sessionize groups a day's normalized events into sessions, one output
// file per sensor. Sensors without events for the day are skipped.
func (p *Pipeline) Sessionize(ctx context.Context, date string) (*Report, error) {
	started := time.Now()
	rep := newReport("sessionize", date)
	if err := p.layout.NormalizedDay(date); err != nil {
		return rep, err
	}

	for _, kind := range models.SensorKinds {
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}
		s, ok := p.registry.Lookup(kind)
		if !ok {
			continue
		}

		path := p.layout.NormalizedFile(date, kind)
		var events []*models.NormalizedEvent
		if err := jsonfile.Read(path, &events); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			logger.Errorf("Failed to read %s: %v", path, err)
			rep.fail(string(kind))
			continue
		}
		rep.Loaded += len(events)

		sessions := sessionize.Build(s, events)
		out := p.layout.SessionizedFile(date, kind)
		if err := jsonfile.Write(out, sessions); err != nil {
			finish(rep, started)
			return rep, fmt.Errorf("write sessions %s: %w", out, err)
		}
		metrics.SessionsAssembled.WithLabelValues(string(kind)).Add(float64(len(sessions)))
		rep.Processed += len(sessions)
		logger.Infof("%s: %d events -> %d sessions", kind, len(events), len(sessions))
	}
	finish(rep, started)
	return rep, nil
}
