package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"honeytrail/internal/input/opensearch"
	inputredis "honeytrail/internal/input/redis"
	"honeytrail/internal/layout"
	"honeytrail/internal/logger"
	"honeytrail/internal/output/rawarchive"
	"honeytrail/internal/pipeline"
	"honeytrail/internal/seed"
	"honeytrail/internal/sensor"
)

func dateFlag(cmd *cobra.Command, date *string) {
	cmd.Flags().StringVar(date, "date", "", "day to process, YYYY-MM-DD (default: today UTC)")
}

func resolveDate(date string) (string, error) {
	if date == "" {
		return layout.Today(), nil
	}
	if err := layout.ValidDate(date); err != nil {
		return "", err
	}
	return date, nil
}

func newFetchCmd() *cobra.Command {
	var since string
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Pull raw hits from OpenSearch into the raw archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			f := cfg.Honeytrail.Fetch
			if since != "" {
				f.Since = since
			}
			fetcher, err := opensearch.NewFetcher(ctx, opensearch.Config{
				URL:      f.URL,
				Username: f.Username,
				Password: f.Password,
				Insecure: f.Insecure,
				Index:    f.Index,
				Types:    f.Types,
				PageSize: f.PageSize,
				Since:    f.Since,
				Timeout:  f.Timeout,
			})
			if err != nil {
				return err
			}
			hits, err := fetcher.Fetch(ctx)
			if err != nil {
				return err
			}
			if len(hits) == 0 {
				warn("no hits returned")
				return nil
			}

			archive, err := rawarchive.NewWriter(cfg.Honeytrail.Paths.Raw)
			if err != nil {
				return err
			}
			defer archive.Close()
			if err := archive.WriteRawMessages(hits); err != nil {
				return err
			}
			success("fetched %d hits into %s", len(hits), cfg.Honeytrail.Paths.Raw)
			return nil
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "only fetch hits at or after this @timestamp")
	return cmd
}

func newConsumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consume",
		Short: "Archive raw hits pushed onto the Redis queue until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			h := cfg.Honeytrail
			queue, err := inputredis.NewQueue(ctx, inputredis.Config{
				Addr:         h.Input.Redis.Addr,
				Password:     h.Input.Redis.Password,
				DB:           h.Input.Redis.DB,
				Key:          h.Input.Redis.Key,
				BlockTimeout: h.Input.Redis.BlockTimeout,
			})
			if err != nil {
				return err
			}
			archive, err := rawarchive.NewWriter(h.Paths.Raw)
			if err != nil {
				queue.Close()
				return err
			}

			ingest := pipeline.NewRedisIngest(queue, sensor.NewRegistry(h.Sessionize.Windows), archive,
				h.Pipeline.Workers, h.Pipeline.BatchSize, h.Pipeline.FlushInterval)
			logger.Infof("Consuming %s from %s", h.Input.Redis.Key, h.Input.Redis.Addr)

			err = ingest.Run(ctx)
			if cerr := ingest.Close(); cerr != nil {
				logger.Errorf("Error closing ingest: %v", cerr)
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			success("consumer stopped")
			return nil
		},
	}
}

func newNormalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize [files...]",
		Short: "Normalize raw hit archives into per-day, per-sensor event files",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			files := args
			if len(files) == 0 {
				var err error
				files, err = cfg.Honeytrail.Paths.RawFiles()
				if err != nil {
					return err
				}
			}
			if len(files) == 0 {
				warn("no raw archives under %s", cfg.Honeytrail.Paths.Raw)
				return nil
			}

			p, cleanup, err := buildPipeline(ctx, cfg, stages{})
			if err != nil {
				return err
			}
			defer cleanup()
			rep, err := p.Normalize(ctx, files)
			if err != nil {
				return err
			}
			printReport(rep)
			return nil
		},
	}
}

func newStageCmd(use, short string, need stages, stage func(*pipeline.Pipeline) func(context.Context, string) (*pipeline.Report, error)) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := resolveDate(date)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			p, cleanup, err := buildPipeline(ctx, cfg, need)
			if err != nil {
				return err
			}
			defer cleanup()
			rep, err := stage(p)(ctx, day)
			if err != nil {
				return err
			}
			printReport(rep)
			return nil
		},
	}
	dateFlag(cmd, &date)
	return cmd
}

func newSessionizeCmd() *cobra.Command {
	return newStageCmd("sessionize", "Group a day's normalized events into sessions",
		stages{}, func(p *pipeline.Pipeline) func(context.Context, string) (*pipeline.Report, error) { return p.Sessionize })
}

func newAnalyzeCmd() *cobra.Command {
	return newStageCmd("analyze", "Write one analysis record per session of a day",
		stages{narrator: true}, func(p *pipeline.Pipeline) func(context.Context, string) (*pipeline.Report, error) { return p.Analyze })
}

func newEnrichCmd() *cobra.Command {
	return newStageCmd("enrich", "Attach reference candidates to a day's analysis records",
		stages{enricher: true, publish: true}, func(p *pipeline.Pipeline) func(context.Context, string) (*pipeline.Report, error) { return p.Enrich })
}

func newRunCmd() *cobra.Command {
	var (
		date      string
		normalize bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run sessionize, analyze and enrich for a day",
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := resolveDate(date)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			p, cleanup, err := buildPipeline(ctx, cfg, stages{narrator: true, enricher: true, publish: true})
			if err != nil {
				return err
			}
			defer cleanup()

			if normalize {
				files, err := cfg.Honeytrail.Paths.RawFiles()
				if err != nil {
					return err
				}
				rep, err := p.Normalize(ctx, files)
				if err != nil {
					return err
				}
				printReport(rep)
			}

			reports, err := p.Run(ctx, day)
			for _, rep := range reports {
				printReport(rep)
			}
			return err
		},
	}
	dateFlag(cmd, &date)
	cmd.Flags().BoolVar(&normalize, "normalize", false, "normalize every raw archive first")
	return cmd
}

func newSeedCmd() *cobra.Command {
	var (
		target   string
		sessions int
		start    string
		seedVal  int64
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Generate synthetic honeypot hits for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			sc := cfg.Honeytrail.Seed
			gcfg := seed.Config{Sessions: sc.Sessions, Span: sc.Span, Seed: sc.Seed, SensorIP: sc.SensorIP}
			if cmd.Flags().Changed("sessions") {
				gcfg.Sessions = sessions
			}
			if cmd.Flags().Changed("seed") {
				gcfg.Seed = seedVal
			}
			if start != "" {
				t, err := time.Parse(time.RFC3339, start)
				if err != nil {
					return fmt.Errorf("invalid --start: %w", err)
				}
				gcfg.Start = t
			}

			hits, err := seed.NewGenerator(gcfg).Hits()
			if err != nil {
				return err
			}

			switch target {
			case "archive":
				archive, err := rawarchive.NewWriter(cfg.Honeytrail.Paths.Raw)
				if err != nil {
					return err
				}
				defer archive.Close()
				if err := archive.WriteRawMessages(hits); err != nil {
					return err
				}
				success("wrote %d hits to %s", len(hits), cfg.Honeytrail.Paths.Raw)
			case "redis":
				r := cfg.Honeytrail.Input.Redis
				queue, err := inputredis.NewQueue(ctx, inputredis.Config{
					Addr:     r.Addr,
					Password: r.Password,
					DB:       r.DB,
					Key:      r.Key,
				})
				if err != nil {
					return err
				}
				defer queue.Close()
				if err := queue.Push(ctx, hits...); err != nil {
					return err
				}
				n, err := queue.Len(ctx)
				if err != nil {
					return err
				}
				success("pushed %d hits to %s (queue length %d)", len(hits), r.Key, n)
			default:
				return fmt.Errorf("unknown seed target %q (expected archive or redis)", target)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "to", "archive", "destination: archive|redis")
	cmd.Flags().IntVar(&sessions, "sessions", 0, "number of sessions to generate")
	cmd.Flags().StringVar(&start, "start", "", "first session start, RFC3339 (default: span ago)")
	cmd.Flags().Int64Var(&seedVal, "seed", 0, "random seed")
	return cmd
}
