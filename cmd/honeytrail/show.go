package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"honeytrail/internal/jsonfile"
	"honeytrail/pkg/models"
)

func newShowCmd() *cobra.Command {
	var (
		date   string
		format string
	)
	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print one session's enriched record, or its analysis if not yet enriched",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := resolveDate(date)
			if err != nil {
				return err
			}
			rec, err := findRecord(day, args[0])
			if err != nil {
				return err
			}
			switch format {
			case "yaml":
				enc := yaml.NewEncoder(os.Stdout)
				enc.SetIndent(2)
				defer enc.Close()
				return enc.Encode(map[string]interface{}(rec))
			case "json":
				return printJSON(rec)
			default:
				return fmt.Errorf("unknown format %q (expected json or yaml)", format)
			}
		},
	}
	dateFlag(cmd, &date)
	cmd.Flags().StringVarP(&format, "format", "o", "json", "output format: json|yaml")
	return cmd
}

func findRecord(date, id string) (models.Raw, error) {
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return nil, fmt.Errorf("invalid session id %q", id)
	}
	paths := cfg.Honeytrail.Paths

	var rec models.Raw
	err := jsonfile.Read(paths.EnrichedFile(date, id), &rec)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	files, err := paths.AnalysisFiles(date)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if filepath.Base(f) != id+".json" {
			continue
		}
		if err := jsonfile.Read(f, &rec); err != nil {
			return nil, err
		}
		return rec, nil
	}
	return nil, fmt.Errorf("session %s not found for %s", id, date)
}
