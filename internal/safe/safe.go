// Package safe reads loosely typed provider payloads. Every accessor tolerates
// absent keys, nulls and wrong types and reports "unspecified" instead of failing.
package safe

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
)

// Value walks nested objects along path and returns the value found, or nil.
func Value(m map[string]any, path ...string) any {
	var cur any = m
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok || obj == nil {
			return nil
		}
		cur, ok = obj[key]
		if !ok {
			return nil
		}
	}
	return cur
}

// Map returns the object at path, or nil.
func Map(m map[string]any, path ...string) map[string]any {
	obj, _ := Value(m, path...).(map[string]any)
	return obj
}

// Slice returns the array at path, or nil.
func Slice(m map[string]any, path ...string) []any {
	arr, _ := Value(m, path...).([]any)
	return arr
}

// String returns the value at path rendered as a string. Numbers are formatted
// without exponent; absent, null, objects and arrays yield "".
func String(m map[string]any, path ...string) string {
	return AsString(Value(m, path...))
}

// AsString renders a scalar as a string, or "" for anything else.
func AsString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// FirstString returns the first non-empty top-level string among keys.
func FirstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := String(m, key); s != "" {
			return s
		}
	}
	return ""
}

// Decimal parses the value at path. It returns nil when the value is absent,
// null, empty, unparseable, NaN or infinite.
func Decimal(m map[string]any, path ...string) *apd.Decimal {
	return AsDecimal(Value(m, path...))
}

// AsDecimal parses a scalar into a finite decimal, or nil.
func AsDecimal(v any) *apd.Decimal {
	var s string
	switch val := v.(type) {
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil
		}
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case string, json.Number, int, int64:
		s = strings.TrimSpace(AsString(val))
	default:
		return nil
	}
	if s == "" {
		return nil
	}
	d, _, err := apd.NewFromString(s)
	if err != nil || d.Form != apd.Finite {
		return nil
	}
	return d
}

// Int returns the value at path as an integer. Decimal strings with a zero
// fractional part are accepted.
func Int(m map[string]any, path ...string) (int64, bool) {
	return AsInt(Value(m, path...))
}

// AsInt converts a scalar into an integer.
func AsInt(v any) (int64, bool) {
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int64:
		return val, true
	case float64:
		if val != math.Trunc(val) || math.IsInf(val, 0) {
			return 0, false
		}
		return int64(val), true
	}
	d := AsDecimal(v)
	if d == nil {
		return 0, false
	}
	i, err := d.Int64()
	if err != nil {
		return 0, false
	}
	return i, true
}

// Bool returns the value at path as a boolean. Accepts JSON booleans, "true"/"false"
// and the numbers 1/0.
func Bool(m map[string]any, path ...string) (bool, bool) {
	switch val := Value(m, path...).(type) {
	case bool:
		return val, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		if err != nil {
			return false, false
		}
		return b, true
	case nil:
		return false, false
	default:
		i, ok := AsInt(val)
		if !ok || (i != 0 && i != 1) {
			return false, false
		}
		return i == 1, true
	}
}

// Timestamp reads a point in time at path. Numbers and numeric strings are Unix
// milliseconds; other strings are parsed as RFC 3339. The zero time means unknown.
func Timestamp(m map[string]any, path ...string) time.Time {
	v := Value(m, path...)
	if ms, ok := AsInt(v); ok {
		if ms <= 0 {
			return time.Time{}
		}
		return time.UnixMilli(ms).UTC()
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
