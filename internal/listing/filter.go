// ABOUTME: Free-text search over open records
// ABOUTME: A row matches when any field's textual form contains the query, ignoring case

package listing

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Stringify returns the textual form of a decoded JSON value as it is
// searched and displayed: null is "null", arrays are joined with commas and
// objects are rendered as JSON.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []any:
		parts := make([]string, len(t))
		for i, item := range t {
			// null elements join as empty strings
			if item != nil {
				parts[i] = Stringify(item)
			}
		}
		return strings.Join(parts, ",")
	case []string:
		return strings.Join(t, ",")
	case map[string]any:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	default:
		return fmt.Sprint(t)
	}
}

// Matches reports whether any value contains query, case-insensitively.
// An empty query matches everything.
func Matches(values []any, query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	for _, v := range values {
		if strings.Contains(strings.ToLower(Stringify(v)), q) {
			return true
		}
	}
	return false
}

// Filter returns the rows whose fields match query, in their original
// order. An empty query returns rows unchanged.
func Filter[T any](rows []T, query string, fields func(T) []any) []T {
	if query == "" {
		return rows
	}
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		if Matches(fields(row), query) {
			out = append(out, row)
		}
	}
	return out
}

// RecordFields lists the values of an open record.
func RecordFields[M ~map[string]any](rec M) []any {
	out := make([]any, 0, len(rec))
	for _, v := range rec {
		out = append(out, v)
	}
	return out
}
