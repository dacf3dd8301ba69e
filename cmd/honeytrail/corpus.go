package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"honeytrail/internal/corpus"
)

func newCorpusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "corpus",
		Short: "Manage the reference corpora used by enrichment",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "ingest <" + strings.Join(corpus.Names(), "|") + "> [path]",
		Short: "Load a corpus from disk and index it in the vector store",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			path := corpusPath(name)
			if len(args) == 2 {
				path = args[1]
			}
			if path == "" {
				return fmt.Errorf("no path configured for corpus %q", name)
			}

			ctx, cancel := signalContext()
			defer cancel()

			store, err := buildStore(ctx, cfg.Honeytrail.Similarity)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, n, err := corpus.NewIndexer(store).Ingest(ctx, name, path)
			if err != nil {
				if n > 0 {
					warn("indexed %d %s documents before failing", n, name)
				}
				return err
			}
			success("indexed %d %s documents from %s", n, name, path)
			info("  files=%d invalid=%d filtered=%d", stats.TotalFiles, stats.SkippedInvalid, stats.SkippedFilter)
			return nil
		},
	})
	return cmd
}

func corpusPath(name string) string {
	c := cfg.Honeytrail.Corpus
	switch name {
	case corpus.Mitre:
		return c.Mitre
	case corpus.Sigma:
		return c.Sigma
	case corpus.Suricata:
		return c.Suricata
	}
	return ""
}
