package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"honeytrail/config"
	"honeytrail/internal/logger"
)

var (
	cfgFile string
	cfg     *config.Config
)

func findConfigFile(configArg string) string {
	if configArg != "" {
		path := configArg
		if _, err := os.Stat(path); err == nil {
			return path
		}
		log.Printf("Warning: config file not found at %s, trying default locations", path)
	}

	if _, err := os.Stat("honeytrail.yml"); err == nil {
		return "honeytrail.yml"
	}

	exePath, err := os.Executable()
	if err == nil {
		exeDir := filepath.Dir(exePath)
		path := filepath.Join(exeDir, "honeytrail.yml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return "honeytrail.yml"
}

func setup(cmd *cobra.Command, _ []string) error {
	configPath := findConfigFile(cfgFile)
	c, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg = c

	l := cfg.Honeytrail.Logging
	if err := logger.Init(logger.Options{
		Enabled:    l.Enabled,
		Level:      l.Level,
		File:       l.File,
		Console:    l.Console,
		JSON:       l.JSON,
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAgeDays: l.MaxAgeDays,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Debugf("Config loaded from: %s", configPath)
	return nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "honeytrail",
		Short: "Honeypot session pipeline",
		Long: `honeytrail turns T-Pot honeypot telemetry into per-session analyses.

Raw hits are fetched or consumed, normalized per sensor, grouped into
sessions, summarized by a language model and enriched with the nearest
MITRE ATT&CK techniques, Sigma rules and Suricata signatures.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
		PersistentPostRun: func(*cobra.Command, []string) { logger.Sync() },
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./honeytrail.yml)")

	root.AddCommand(
		newFetchCmd(),
		newConsumeCmd(),
		newNormalizeCmd(),
		newSessionizeCmd(),
		newAnalyzeCmd(),
		newEnrichCmd(),
		newRunCmd(),
		newCorpusCmd(),
		newServeCmd(),
		newSeedCmd(),
		newShowCmd(),
	)
	return root
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		failure("%v", err)
		os.Exit(1)
	}
}
