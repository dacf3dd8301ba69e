package models

import (
	"fmt"
	"strconv"
)

// Candidate is one similarity match attached during enrichment. Values are
// primitives; list-valued metadata is stored comma-joined.
type Candidate map[string]interface{}

// String returns the value at key rendered as a string.
func (c Candidate) String(key string) string {
	v, ok := c[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// Distance returns the candidate's distance, or -1 when absent.
func (c Candidate) Distance() float64 {
	switch v := c["distance"].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	}
	return -1
}
