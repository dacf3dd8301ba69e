package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"honeytrail/internal/jsonfile"
	"honeytrail/internal/logger"
	"honeytrail/internal/metrics"
	"honeytrail/internal/sensor"
	"honeytrail/pkg/models"
)

// ExtractSource returns the hit's _source document, or the hit itself when
// it is already a bare source.
func ExtractSource(hit models.Raw) models.Raw {
	if src, ok := hit["_source"].(map[string]interface{}); ok {
		return models.Raw(src)
	}
	return hit
}

// NormalizeHits converts raw hits into events grouped by UTC date and sensor.
// Unknown sensors and unparseable timestamps are counted in rep and skipped.
func (p *Pipeline) NormalizeHits(hits []models.Raw, rep *Report) map[string]map[models.SensorKind][]*models.NormalizedEvent {
	out := make(map[string]map[models.SensorKind][]*models.NormalizedEvent)
	for _, hit := range hits {
		rep.Loaded++
		metrics.RawRecords.Inc()

		ev, err := p.registry.Normalize(ExtractSource(hit))
		if err != nil {
			reason := "invalid"
			switch {
			case errors.Is(err, sensor.ErrUnknownSensor):
				reason = "unknown_sensor"
			case errors.Is(err, sensor.ErrBadTimestamp):
				reason = "bad_timestamp"
			}
			metrics.DroppedRecords.WithLabelValues(reason).Inc()
			rep.Failed++
			continue
		}

		date := ev.Timestamp.UTC().Format("2006-01-02")
		if out[date] == nil {
			out[date] = make(map[models.SensorKind][]*models.NormalizedEvent)
		}
		out[date][ev.Sensor] = append(out[date][ev.Sensor], ev)
		metrics.NormalizedEvents.WithLabelValues(string(ev.Sensor)).Inc()
		rep.Processed++
	}
	return out
}

// Normalize reads raw hit archives and writes one event file per date and
// sensor. A file that cannot be read is reported and skipped.
func (p *Pipeline) Normalize(ctx context.Context, files []string) (*Report, error) {
	started := time.Now()
	rep := newReport("normalize", "")
	rep.Counts = make(map[string]int)

	var hits []models.Raw
	for _, file := range files {
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}
		var batch []models.Raw
		if err := jsonfile.Read(file, &batch); err != nil {
			logger.Errorf("Failed to read raw file %s: %v", file, err)
			rep.FailedIDs = append(rep.FailedIDs, file)
			continue
		}
		logger.Infof("Loaded %d raw hits from %s", len(batch), file)
		hits = append(hits, batch...)
	}

	days := p.NormalizeHits(hits, rep)
	for date, sensors := range days {
		for kind, events := range sensors {
			path := p.layout.NormalizedFile(date, kind)
			if err := jsonfile.Write(path, events); err != nil {
				finish(rep, started)
				return rep, fmt.Errorf("write normalized %s: %w", path, err)
			}
			rep.Counts[date+"/"+string(kind)] = len(events)
			logger.Infof("Saved %d events to %s", len(events), path)
		}
	}
	finish(rep, started)
	return rep, nil
}
