package scrapeutil

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// ToString safely converts an interface value to string.
func ToString(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// CoerceSlice wraps a scalar into a single-element slice. Slices pass
// through unchanged; nil stays nil.
func CoerceSlice(v interface{}) []any {
	if v == nil {
		return nil
	}
	if s, ok := v.([]any); ok {
		return s
	}
	return []any{v}
}

// NormalizeURL strips the query string and fragment from a URL,
// keeping only origin and path. Unparseable input is returned as is.
func NormalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.Scheme == "" || u.Host == "" {
		return raw
	}
	return u.Scheme + "://" + u.Host + u.EscapedPath()
}

// FlattenSummary flattens a nested JSON-decoded object into dotted-path
// leaf entries. Arrays are treated as leaf values, not recursed into.
// Nil leaves are dropped.
func FlattenSummary(obj map[string]any) map[string]string {
	flat := make(map[string]string)
	flattenInto(flat, "", obj)
	return flat
}

func flattenInto(flat map[string]string, prefix string, obj map[string]any) {
	for key, val := range obj {
		name := key
		if prefix != "" {
			name = prefix + "." + key
		}

		switch v := val.(type) {
		case nil:
			continue
		case map[string]any:
			flattenInto(flat, name, v)
		default:
			flat[name] = leafString(v)
		}
	}
}

// leafString renders a flattened leaf value. Arrays and any other
// composite leaves are JSON-encoded so the stored form is stable.
func leafString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
