package models

import (
	"encoding/json"
	"math"
)

// ParamTerm is the loan term in months supplied with the application.
const ParamTerm = "term"

// Parameters holds the free-form additional parameters of an application.
type Parameters map[string]any

// Int reads a whole-number parameter. JSON numbers decode as float64 and
// are accepted only when they carry no fractional part. Values outside the
// int32 range are rejected so the result fits int on every platform.
func (p Parameters) Int(key string) (int, bool) {
	var n int64
	switch v := p[key].(type) {
	case int:
		n = int64(v)
	case int64:
		n = v
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) || math.Abs(v) > math.MaxInt32 {
			return 0, false
		}
		n = int64(v)
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return 0, false
		}
		n = i
	default:
		return 0, false
	}
	if n > math.MaxInt32 || n < -math.MaxInt32 {
		return 0, false
	}
	return int(n), true
}

// Term returns the requested term in months, if present and positive.
func (p Parameters) Term() (int, bool) {
	n, ok := p.Int(ParamTerm)
	if !ok || n <= 0 {
		return 0, false
	}
	return n, true
}

// Clone returns a deep copy. Nested objects and arrays are copied too, so
// the result shares no mutable state with p.
func (p Parameters) Clone() Parameters {
	out := make(Parameters, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Parameters:
		return t.Clone()
	case map[string]any:
		return map[string]any(Parameters(t).Clone())
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
