package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Mood maps a mood dimension (e.g. "happy", "anxious") to its score.
// Values arrive from clients as arbitrary JSON, so only numeric values
// are treated as scores.
type Mood map[string]any

// Score returns the numeric score recorded for key.
func (m Mood) Score(key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	return numeric(v)
}

// Keys returns the dimension names in lexical order.
func (m Mood) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy of m.
func (m Mood) Clone() Mood {
	if m == nil {
		return nil
	}
	out := make(Mood, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Validate rejects non-numeric values and scores outside [0,100].
func (m Mood) Validate() error {
	for _, key := range m.Keys() {
		if strings.TrimSpace(key) == "" {
			return &ValidationError{Field: "mood", Reason: "mood dimension name must not be empty"}
		}
		score, ok := numeric(m[key])
		if !ok {
			return &ValidationError{Field: "mood." + key, Reason: "score must be a number"}
		}
		if score < MinScore || score > MaxScore {
			return &ValidationError{
				Field:  "mood." + key,
				Reason: fmt.Sprintf("score %g outside [%d,%d]", score, MinScore, MaxScore),
			}
		}
	}
	return nil
}

const (
	MinScore = 0
	MaxScore = 100
)

func numeric(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
