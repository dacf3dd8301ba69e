package narrative

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrSchema is returned when a narrative result does not match the analysis shape.
var ErrSchema = errors.New("narrative result failed schema validation")

// Nulls are accepted everywhere: the merge keeps template or deterministic
// values for any field the model leaves null.
const analysisSchema = `{
  "type": "object",
  "required": ["attack_intent"],
  "properties": {
    "session_id": {"type": ["string", "null"]},
    "sensor": {"type": ["string", "null"]},
    "attack_intent": {"type": ["string", "null"]},
    "summary": {"type": ["string", "null"]},
    "confidence": {"type": ["number", "null"], "minimum": 0, "maximum": 1},
    "risk_score": {"type": ["integer", "null"], "minimum": 0, "maximum": 10},
    "key_indicators": {
      "type": ["object", "null"],
      "properties": {
        "src_ip": {"type": ["string", "null"]},
        "dest_ip": {"type": ["string", "null"]},
        "src_ports": {"type": ["array", "null"], "items": {"type": ["string", "integer"]}},
        "dest_ports": {"type": ["array", "null"], "items": {"type": ["string", "integer"]}},
        "protocols": {"type": ["array", "null"], "items": {"type": "string"}},
        "commands": {"type": ["array", "null"], "items": {"type": "string"}},
        "urls": {"type": ["array", "null"], "items": {"type": "string"}},
        "signatures": {"type": ["array", "null"], "items": {"type": "string"}},
        "files": {"type": ["array", "null"], "items": {"type": "string"}}
      }
    },
    "timestamp_range": {
      "type": ["object", "null"],
      "properties": {
        "start": {"type": ["string", "null"]},
        "end": {"type": ["string", "null"]}
      }
    }
  }
}`

// Validator checks narrative results against the analysis schema.
type Validator struct {
	schema *gojsonschema.Schema
}

// NewValidator compiles the analysis schema.
func NewValidator() (*Validator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(analysisSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Validate returns ErrSchema with the violated constraints when doc does not match.
func (v *Validator) Validate(doc map[string]interface{}) error {
	result, err := v.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrSchema, strings.Join(msgs, "; "))
}
