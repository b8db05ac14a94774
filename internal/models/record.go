package models

import (
	"fmt"
	"strconv"
)

// Record is one LLM-interaction telemetry event: a flat mapping from field
// name to a scalar or string value. The annotator only ever adds fields;
// existing fields are never removed or overwritten by detection output.
type Record map[string]any

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// String returns the field as a string, with ok reporting presence.
func (r Record) String(field string) (string, bool) {
	v, ok := r[field]
	if !ok || v == nil {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	default:
		return fmt.Sprintf("%v", v), true
	}
}

// Float returns the field coerced to float64. Missing fields return
// (0, false, nil); present but non-numeric values return an error so the
// caller can distinguish a skip from bad input.
func (r Record) Float(field string) (float64, bool, error) {
	v, ok := r[field]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch n := v.(type) {
	case float64:
		return n, true, nil
	case float32:
		return float64(n), true, nil
	case int:
		return float64(n), true, nil
	case int64:
		return float64(n), true, nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, true, fmt.Errorf("field %s is not numeric: %q", field, n)
		}
		return f, true, nil
	default:
		return 0, true, fmt.Errorf("field %s has non-numeric type %T", field, v)
	}
}
