package docstore

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var fieldNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validateQuery(q Query) error {
	if strings.TrimSpace(q.Collection) == "" {
		return fmt.Errorf("%w: collection is required", ErrInvalidQuery)
	}

	for _, f := range q.Filters {
		if !fieldNamePattern.MatchString(f.Field) {
			return fmt.Errorf("%w: field %q", ErrInvalidQuery, f.Field)
		}
		switch f.Op {
		case OpEq, OpLt, OpLte, OpGt, OpGte:
		default:
			return fmt.Errorf("%w: operator %q", ErrInvalidQuery, f.Op)
		}
	}

	if q.OrderBy != "" && !fieldNamePattern.MatchString(q.OrderBy) {
		return fmt.Errorf("%w: order field %q", ErrInvalidQuery, q.OrderBy)
	}

	return nil
}

// Encode converts a JSON-tagged struct into a field map. The "id" key is dropped.
func Encode(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}

	delete(data, "id")
	return data, nil
}

// Decode fills out from the document fields, setting "id" from doc.ID.
func Decode(doc Document, out any) error {
	fields := make(map[string]any, len(doc.Data)+1)
	for k, v := range doc.Data {
		fields[k] = v
	}
	fields["id"] = doc.ID

	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("decode document %s: %w", doc.ID, err)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode document %s: %w", doc.ID, err)
	}

	return nil
}

// Time reads a timestamp field written either as time.Time or as an RFC 3339 string.
func Time(data map[string]any, key string) (time.Time, bool) {
	return asTime(data[key])
}

func String(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}

// Int reads an integral field regardless of the numeric type the store produced.
func Int(data map[string]any, key string) (int, bool) {
	n, ok := asFloat(data[key])
	if !ok || n != math.Trunc(n) {
		return 0, false
	}
	return int(n), true
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return t.UTC(), true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed.UTC(), true
	default:
		return time.Time{}, false
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// compareValues orders a stored value against a filter value. ok is false when
// the two are not comparable, in which case the filter does not match.
func compareValues(stored any, want any) (cmp int, ok bool) {
	if wt, isTime := asTime(want); isTime {
		if _, isString := want.(string); !isString {
			st, sok := asTime(stored)
			if !sok {
				return 0, false
			}
			return st.Compare(wt), true
		}
	}

	if wf, isNum := asFloat(want); isNum {
		sf, sok := asFloat(stored)
		if !sok {
			if s, isString := stored.(string); isString {
				parsed, err := strconv.ParseFloat(s, 64)
				if err != nil {
					return 0, false
				}
				sf = parsed
			} else {
				return 0, false
			}
		}
		switch {
		case sf < wf:
			return -1, true
		case sf > wf:
			return 1, true
		default:
			return 0, true
		}
	}

	switch w := want.(type) {
	case string:
		s, sok := stored.(string)
		if !sok {
			return 0, false
		}
		return strings.Compare(s, w), true
	case bool:
		s, sok := stored.(bool)
		if !sok {
			return 0, false
		}
		if s == w {
			return 0, true
		}
		if !s {
			return -1, true
		}
		return 1, true
	}

	return 0, false
}

func matches(data map[string]any, filters []Filter) bool {
	for _, f := range filters {
		stored, exists := data[f.Field]
		if !exists {
			return false
		}

		cmp, ok := compareValues(stored, f.Value)
		if !ok {
			return false
		}

		switch f.Op {
		case OpEq:
			if cmp != 0 {
				return false
			}
		case OpLt:
			if cmp >= 0 {
				return false
			}
		case OpLte:
			if cmp > 0 {
				return false
			}
		case OpGt:
			if cmp <= 0 {
				return false
			}
		case OpGte:
			if cmp < 0 {
				return false
			}
		}
	}

	return true
}

// orderLess reports whether a sorts before b on field; missing values sort first.
func orderLess(a, b map[string]any, field string) bool {
	av, aok := a[field]
	bv, bok := b[field]
	if !aok || !bok {
		return !aok && bok
	}

	cmp, ok := compareValues(av, bv)
	if !ok {
		return fmt.Sprint(av) < fmt.Sprint(bv)
	}
	return cmp < 0
}

// cloneValue deep-copies maps and slices so callers never share storage
// with the store.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	case []int:
		out := make([]int, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func resolveServerTimestamps(data map[string]any, now time.Time) {
	for k, v := range data {
		switch t := v.(type) {
		case serverTimestamp:
			data[k] = now
		case map[string]any:
			resolveServerTimestamps(t, now)
		}
	}
}
