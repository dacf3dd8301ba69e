package pipeline

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	inputredis "honeytrail/internal/input/redis"
	"honeytrail/internal/logger"
	"honeytrail/internal/metrics"
	"honeytrail/internal/sensor"
	"honeytrail/pkg/models"
)

// Popper yields queued payloads. A nil payload with nil error means the
// wait timed out.
type Popper interface {
	Pop(ctx context.Context) ([]byte, error)
	Close() error
}

var _ Popper = (*inputredis.Queue)(nil)

// RedisIngest consumes raw sensor hits from a Redis list and archives the
// recognised ones through a RawWriter in batches.
type RedisIngest struct {
	consumer      Popper
	registry      *sensor.Registry
	writer        RawWriter
	workers       int
	batchSize     int
	flushInterval time.Duration
}

// NewRedisIngest creates a queue ingest loop.
func NewRedisIngest(consumer Popper, registry *sensor.Registry, writer RawWriter, workers, batchSize int, flushInterval time.Duration) *RedisIngest {
	if registry == nil {
		registry = sensor.NewRegistry(sensor.DefaultWindows())
	}
	return &RedisIngest{
		consumer:      consumer,
		registry:      registry,
		writer:        writer,
		workers:       workers,
		batchSize:     batchSize,
		flushInterval: flushInterval,
	}
}

// Run consumes until ctx is cancelled, then flushes what is buffered.
func (p *RedisIngest) Run(ctx context.Context) error {
	logger.Infof("Redis ingest started")

	if p.workers <= 0 {
		p.workers = 4
	}
	if p.batchSize <= 0 {
		p.batchSize = 500
	}
	if p.flushInterval <= 0 {
		p.flushInterval = 5 * time.Second
	}

	msgCh := make(chan []byte, p.workers*4)
	workCh := make(chan []byte, p.workers*4)

	var readers sync.WaitGroup
	readers.Add(1)
	go func() {
		defer readers.Done()
		p.readLoop(ctx, msgCh)
		close(msgCh)
	}()

	var workers sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			p.workerLoop(msgCh, workCh)
		}()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.writeLoop(ctx, workCh)
	}()

	readers.Wait()
	workers.Wait()
	close(workCh)
	<-done
	return ctx.Err()
}

// Close releases ingest resources.
func (p *RedisIngest) Close() error {
	if p.writer != nil {
		if err := p.writer.Close(); err != nil {
			logger.Errorf("Failed to close raw writer: %v", err)
		}
	}
	if p.consumer != nil {
		return p.consumer.Close()
	}
	return nil
}

func (p *RedisIngest) readLoop(ctx context.Context, out chan<- []byte) {
	for {
		if ctx.Err() != nil {
			return
		}
		payload, err := p.consumer.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Errorf("Failed to pop redis message: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}
		if payload == nil {
			continue
		}
		out <- payload
	}
}

func (p *RedisIngest) workerLoop(in <-chan []byte, out chan<- []byte) {
	for payload := range in {
		metrics.RawRecords.Inc()
		var hit models.Raw
		if err := json.Unmarshal(payload, &hit); err != nil {
			logger.Warnf("Failed to parse queued hit: %v", err)
			metrics.DroppedRecords.WithLabelValues("invalid_json").Inc()
			continue
		}
		if _, err := p.registry.Normalize(ExtractSource(hit)); err != nil {
			logger.Debugf("Dropping queued hit: %v", err)
			metrics.DroppedRecords.WithLabelValues("unrecognised").Inc()
			continue
		}
		out <- payload
	}
}

func (p *RedisIngest) writeLoop(ctx context.Context, in <-chan []byte) {
	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	var batch [][]byte
	flush := func(final bool) {
		for len(batch) > 0 {
			if err := p.writer.WriteRawMessages(batch); err != nil {
				logger.Errorf("Failed to write raw batch: %v", err)
				if final || ctx.Err() != nil {
					return
				}
				select {
				case <-ctx.Done():
					return
				case <-time.After(1 * time.Second):
				}
				continue
			}
			batch = nil
		}
	}

	for {
		select {
		case <-ticker.C:
			flush(false)
		case payload, ok := <-in:
			if !ok {
				flush(true)
				return
			}
			batch = append(batch, payload)
			if len(batch) >= p.batchSize {
				flush(false)
			}
		}
	}
}
