// Package enrich attaches reference-corpus candidates to analysis records.
package enrich

import (
	"context"
	"fmt"
	"time"

	"honeytrail/pkg/models"
)

// Pass adds one enrichment to a record. Passes set their own key and
// replace any value left there by a previous run.
type Pass interface {
	Name() string
	Apply(ctx context.Context, rec *models.AnalysisRecord) error
}

// Compositor runs passes in order.
type Compositor struct {
	passes  []Pass
	timeout time.Duration
}

// NewCompositor creates a compositor. timeout bounds each pass; zero disables it.
func NewCompositor(timeout time.Duration, passes ...Pass) *Compositor {
	return &Compositor{passes: passes, timeout: timeout}
}

// Passes returns the configured pass names in order.
func (c *Compositor) Passes() []string {
	names := make([]string, len(c.passes))
	for i, p := range c.passes {
		names[i] = p.Name()
	}
	return names
}

// Enrich applies every pass. The first failing pass aborts the record.
func (c *Compositor) Enrich(ctx context.Context, rec *models.AnalysisRecord) error {
	if rec == nil {
		return fmt.Errorf("nil analysis record")
	}
	for _, p := range c.passes {
		if err := c.apply(ctx, p, rec); err != nil {
			return fmt.Errorf("%s pass for %s: %w", p.Name(), rec.SessionID, err)
		}
	}
	return nil
}

func (c *Compositor) apply(ctx context.Context, p Pass, rec *models.AnalysisRecord) error {
	if c.timeout <= 0 {
		return p.Apply(ctx, rec)
	}
	passCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return p.Apply(passCtx, rec)
}
