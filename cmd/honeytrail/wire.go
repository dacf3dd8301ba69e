package main

import (
	"context"
	"fmt"

	"honeytrail/config"
	"honeytrail/internal/corpus"
	"honeytrail/internal/enrich"
	"honeytrail/internal/logger"
	"honeytrail/internal/narrative"
	"honeytrail/internal/output/analysisclickhouse"
	"honeytrail/internal/output/analysishttp"
	"honeytrail/internal/output/analysisjson"
	"honeytrail/internal/output/analysiskafka"
	"honeytrail/internal/output/analysisnats"
	"honeytrail/internal/pipeline"
	"honeytrail/internal/sensor"
	"honeytrail/internal/similarity"
)

type stages struct {
	narrator bool
	enricher bool
	publish  bool
}

// buildPipeline wires only the collaborators the requested stages need.
// On error everything opened so far is already closed.
func buildPipeline(ctx context.Context, c *config.Config, need stages) (*pipeline.Pipeline, func(), error) {
	h := c.Honeytrail
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	opts := pipeline.Options{
		Layout:   h.Paths,
		Registry: sensor.NewRegistry(h.Sessionize.Windows),
		Workers:  h.Pipeline.Workers,
	}

	if need.narrator {
		gen, err := buildNarrator(h.Narrative)
		if err != nil {
			return nil, nil, err
		}
		opts.Narrator = gen
	}

	if need.enricher {
		store, err := buildStore(ctx, h.Similarity)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { store.Close() })

		searcher, closeCache, err := buildSearcher(h.Similarity.Cache, store)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, closeCache)

		comp, closePasses, err := buildCompositor(h, searcher)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, closePasses)
		opts.Enricher = comp
	}

	if need.publish {
		w, err := buildPublisher(h.Publish)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		opts.Publisher = w
	}

	p := pipeline.New(opts)
	closers = append(closers, func() {
		if err := p.Close(); err != nil {
			logger.Errorf("Error closing publisher: %v", err)
		}
	})
	return p, cleanup, nil
}

func buildNarrator(n config.NarrativeConfig) (*narrative.Generator, error) {
	client, err := narrative.NewOpenAIClient(narrative.OpenAIConfig{
		BaseURL:     n.BaseURL,
		Model:       n.Model,
		APIKeyEnv:   n.APIKeyEnv,
		Temperature: n.Temperature,
		Timeout:     n.Timeout,
		Headers:     n.Headers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create narrative client: %w", err)
	}
	var validator *narrative.Validator
	if n.Validate {
		validator, err = narrative.NewValidator()
		if err != nil {
			return nil, err
		}
	}
	logger.Infof("Narrative model: %s (%s)", n.Model, n.BaseURL)
	return narrative.NewGenerator(client, validator, n.MaxEvents, n.Timeout), nil
}

func buildStore(ctx context.Context, s config.SimilarityConfig) (similarity.Store, error) {
	embedder, err := similarity.NewOpenAIEmbedder(similarity.EmbedderConfig{
		BaseURL:   s.Embedder.BaseURL,
		Model:     s.Embedder.Model,
		APIKeyEnv: s.Embedder.APIKeyEnv,
		Timeout:   s.Embedder.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	switch s.Backend {
	case "pgvector":
		store, err := similarity.NewPGVectorStore(ctx, similarity.PGVectorConfig{
			DSN:      s.PGVector.DSN,
			MaxConns: s.PGVector.MaxConns,
			Migrate:  s.PGVector.Migrate,
		}, embedder)
		if err != nil {
			return nil, fmt.Errorf("failed to open pgvector store: %w", err)
		}
		logger.Infof("Similarity backend: pgvector")
		return store, nil
	default:
		store, err := similarity.NewChromaStore(similarity.ChromaConfig{
			URL:              s.Chroma.URL,
			CollectionPrefix: s.Chroma.CollectionPrefix,
			Timeout:          s.Chroma.Timeout,
			Headers:          s.Chroma.Headers,
		}, embedder)
		if err != nil {
			return nil, fmt.Errorf("failed to open chroma store: %w", err)
		}
		logger.Infof("Similarity backend: chroma (%s)", s.Chroma.URL)
		return store, nil
	}
}

func buildSearcher(c config.CacheConfig, store similarity.Searcher) (similarity.Searcher, func(), error) {
	switch c.Mode {
	case "lru":
		cache, err := similarity.NewLRUCache(c.Size)
		if err != nil {
			return nil, nil, err
		}
		return similarity.NewCachedSearcher(store, cache), func() {}, nil
	case "redis":
		cache, err := similarity.NewRedisCache(similarity.RedisCacheConfig{
			Addr:      c.Addr,
			Password:  c.Password,
			DB:        c.DB,
			KeyPrefix: c.KeyPrefix,
			TTL:       c.TTL,
		})
		if err != nil {
			return nil, nil, err
		}
		return similarity.NewCachedSearcher(store, cache), func() { cache.Close() }, nil
	default:
		return store, func() {}, nil
	}
}

func buildCompositor(h config.HoneytrailConfig, searcher similarity.Searcher) (*enrich.Compositor, func(), error) {
	closeAll := func() {}
	passes := make([]enrich.Pass, 0, len(h.Enrich.Passes))
	for _, name := range h.Enrich.Passes {
		switch name {
		case corpus.Mitre, corpus.Sigma, corpus.Suricata:
			passes = append(passes, enrich.NewSimilarityPass(name, h.Enrich.TopK, searcher, nil))
		case "crosslink":
			passes = append(passes, enrich.NewCrosslinkPass())
		case "geo":
			geo, closeGeo, err := enrich.OpenGeoPass(h.GeoIP.CityDB, h.GeoIP.ASNDB)
			if err != nil {
				return nil, closeAll, fmt.Errorf("failed to open geoip databases: %w", err)
			}
			closeAll = closeGeo
			passes = append(passes, geo)
		default:
			return nil, closeAll, fmt.Errorf("unknown enrich pass %q", name)
		}
	}
	comp := enrich.NewCompositor(h.Enrich.Timeout, passes...)
	logger.Infof("Enrichment passes: %v", comp.Passes())
	return comp, closeAll, nil
}

func buildPublisher(p config.PublishConfig) (pipeline.AnalysisWriter, error) {
	switch p.Mode {
	case "", "none":
		return nil, nil
	case "file":
		logger.Infof("Publish mode: file (%s)", p.File.Path)
		return analysisjson.NewWriter(p.File.Path)
	case "http":
		logger.Infof("Publish mode: http (%s)", p.HTTP.URL)
		return analysishttp.NewWriter(analysishttp.Config{
			URL:     p.HTTP.URL,
			Timeout: p.HTTP.Timeout,
			Headers: p.HTTP.Headers,
		})
	case "clickhouse":
		logger.Infof("Publish mode: clickhouse (%s/%s.%s)", p.ClickHouse.URL, p.ClickHouse.Database, p.ClickHouse.Table)
		return analysisclickhouse.NewWriter(analysisclickhouse.Config{
			URL:      p.ClickHouse.URL,
			Database: p.ClickHouse.Database,
			Table:    p.ClickHouse.Table,
			Username: p.ClickHouse.Username,
			Password: p.ClickHouse.Password,
			Timeout:  p.ClickHouse.Timeout,
			Headers:  p.ClickHouse.Headers,
		})
	case "nats":
		logger.Infof("Publish mode: nats (%s)", p.NATS.URL)
		return analysisnats.NewWriter(analysisnats.Config{
			URL:           p.NATS.URL,
			SubjectPrefix: p.NATS.SubjectPrefix,
			MaxReconnects: p.NATS.MaxReconnects,
			ReconnectWait: p.NATS.ReconnectWait,
			Timeout:       p.NATS.Timeout,
			Username:      p.NATS.Username,
			Password:      p.NATS.Password,
			Token:         p.NATS.Token,
		})
	case "kafka":
		logger.Infof("Publish mode: kafka (%v)", p.Kafka.Brokers)
		return analysiskafka.NewWriter(analysiskafka.Config{
			Brokers: p.Kafka.Brokers,
			Topic:   p.Kafka.Topic,
			Version: p.Kafka.Version,
			Timeout: p.Kafka.Timeout,
		})
	default:
		return nil, fmt.Errorf("unknown publish mode: %s", p.Mode)
	}
}
