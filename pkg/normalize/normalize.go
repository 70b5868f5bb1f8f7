// Package normalize turns flexible connector input values into string lists.
//
// Connector configurations are flat string maps, but users paste URL and
// query lists in whatever shape their tooling produces: JSON arrays,
// comma-separated values, newline-separated blocks, or a single bare value.
// StringList accepts all of them and yields the same trimmed list for the
// same logical input.
package normalize

import (
	"strings"

	jsonpool "github.com/ajitpratap0/brightsync/pkg/json"
	stringpool "github.com/ajitpratap0/brightsync/pkg/strings"
)

// strategy attempts one interpretation of a raw input value. It reports
// whether the value matched, in which case its items are final even when
// empty.
type strategy func(value any) ([]string, bool)

// strategies are tried in order; the first match wins. Order matters: a
// JSON array of strings contains commas, so the JSON strategy must run
// before the delimiter strategy.
var strategies = []strategy{
	nativeList,
	jsonValue,
	delimited,
	literal,
}

// StringList normalizes a flexible input value into trimmed, non-empty
// strings. Nil and blank inputs yield an empty slice, never nil slices
// with surprises downstream.
func StringList(value any) []string {
	if value == nil {
		return []string{}
	}

	for _, apply := range strategies {
		if items, ok := apply(value); ok {
			return items
		}
	}

	return []string{}
}

// nativeList accepts values that are already slices.
func nativeList(value any) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		items := make([]string, 0, len(v))
		for _, item := range v {
			if s := strings.TrimSpace(item); s != "" {
				items = append(items, s)
			}
		}
		return items, true
	case []any:
		return cleanItems(v), true
	default:
		return nil, false
	}
}

// jsonValue accepts strings that parse as a JSON array or a JSON string
// scalar. Other JSON shapes fall through to the later strategies.
func jsonValue(value any) ([]string, bool) {
	raw, ok := value.(string)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, false
	}

	var parsed any
	if err := jsonpool.UnmarshalUseNumber([]byte(raw), &parsed); err != nil {
		return nil, false
	}

	switch p := parsed.(type) {
	case []any:
		return cleanItems(p), true
	case string:
		if s := strings.TrimSpace(p); s != "" {
			return []string{s}, true
		}
		return []string{}, true
	default:
		return nil, false
	}
}

// delimited accepts strings containing a comma or newline separator.
// Comma wins when both are present.
func delimited(value any) ([]string, bool) {
	raw, ok := value.(string)
	if !ok {
		return nil, false
	}

	var parts []string
	switch {
	case strings.Contains(raw, ","):
		parts = strings.Split(raw, ",")
	case strings.Contains(raw, "\n"):
		parts = strings.Split(raw, "\n")
	default:
		return nil, false
	}

	items := make([]string, 0, len(parts))
	for _, part := range parts {
		if s := strings.TrimSpace(part); s != "" {
			items = append(items, s)
		}
	}
	return items, true
}

// literal treats the value as a single item. It always matches, so it
// must stay last.
func literal(value any) ([]string, bool) {
	s := strings.TrimSpace(itemString(value))
	if s == "" {
		return []string{}, true
	}
	return []string{s}, true
}

func cleanItems(values []any) []string {
	items := make([]string, 0, len(values))
	for _, value := range values {
		if s := strings.TrimSpace(itemString(value)); s != "" {
			items = append(items, s)
		}
	}
	return items
}

func itemString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case jsonpool.Number:
		return v.String()
	default:
		return stringpool.ValueToString(value)
	}
}
