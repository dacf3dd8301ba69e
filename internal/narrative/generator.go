// Package narrative produces the free-text part of a session analysis by
// sending a bounded session digest to a chat model.
package narrative

import (
	"context"
	"fmt"
	"time"

	"honeytrail/internal/metrics"
	"honeytrail/pkg/models"
)

// Completer sends a system and user prompt to a language model.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Generator turns sessions into narrative result mappings.
type Generator struct {
	completer Completer
	validator *Validator
	maxEvents int
	timeout   time.Duration
}

// NewGenerator creates a generator. A nil validator skips schema checks.
func NewGenerator(completer Completer, validator *Validator, maxEvents int, timeout time.Duration) *Generator {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	return &Generator{completer: completer, validator: validator, maxEvents: maxEvents, timeout: timeout}
}

// Generate asks the model for a narrative of s.
func (g *Generator) Generate(ctx context.Context, s *models.Session) (map[string]interface{}, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	content, err := g.completer.Complete(ctx, SystemPrompt, UserPrompt(Digest(s, g.maxEvents)))
	metrics.ExternalCallSeconds.WithLabelValues("narrative").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("narrative for %s: %w", s.SessionID, err)
	}

	obj, err := ExtractObject(content)
	if err != nil {
		return nil, fmt.Errorf("narrative for %s: %w", s.SessionID, err)
	}
	if g.validator != nil {
		if err := g.validator.Validate(obj); err != nil {
			return nil, fmt.Errorf("narrative for %s: %w", s.SessionID, err)
		}
	}
	return obj, nil
}
