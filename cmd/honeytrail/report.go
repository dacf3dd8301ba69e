package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"honeytrail/internal/pipeline"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warnColor    = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan)
)

func success(format string, a ...interface{}) {
	successColor.Printf("✓ "+format+"\n", a...)
}

func failure(format string, a ...interface{}) {
	errorColor.Fprintf(os.Stderr, "✗ "+format+"\n", a...)
}

func warn(format string, a ...interface{}) {
	warnColor.Printf("⚠ "+format+"\n", a...)
}

func info(format string, a ...interface{}) {
	infoColor.Printf(format+"\n", a...)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printReport(rep *pipeline.Report) {
	line := fmt.Sprintf("%s: loaded=%d processed=%d failed=%d (%s)",
		rep.Stage, rep.Loaded, rep.Processed, rep.Failed, rep.Duration.Round(time.Millisecond))
	if rep.Date != "" {
		line = rep.Date + " " + line
	}
	if rep.Failed == 0 {
		success("%s", line)
	} else {
		warn("%s", line)
		info("  failed: %s", strings.Join(rep.FailedIDs, ", "))
	}
	for key, n := range rep.Counts {
		info("  %s: %d", key, n)
	}
}
