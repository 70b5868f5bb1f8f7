// Package flatten converts nested API responses into flat column maps.
//
// Bright Data responses nest arbitrarily; destination rows are single-depth
// maps of column name to scalar. Nested map keys are joined with
// underscores, list values stay opaque, and primary keys are injected after
// flattening so they always win over payload fields of the same shape.
package flatten

import (
	"sort"
	"strconv"
	"strings"

	jsonpool "github.com/ajitpratap0/brightsync/pkg/json"
)

// Flatten converts a nested map into a single-depth map whose keys join the
// nesting path with underscores. Slice values are kept opaque, never
// recursed into. Flattening an already flat map yields an equal map.
func Flatten(m map[string]any) map[string]any {
	flat := make(map[string]any, len(m))
	flattenInto(flat, "", m)
	return flat
}

func flattenInto(flat map[string]any, prefix string, m map[string]any) {
	for key, value := range m {
		name := key
		if prefix != "" {
			name = prefix + "_" + key
		}

		if nested, ok := value.(map[string]any); ok {
			flattenInto(flat, name, nested)
			continue
		}

		flat[name] = value
	}
}

// CollectFields returns the sorted union of keys across all records. Rows
// are built over this union, so its order fixes column order everywhere
// downstream.
func CollectFields(records []map[string]any) []string {
	seen := make(map[string]struct{})
	for _, record := range records {
		for key := range record {
			seen[key] = struct{}{}
		}
	}

	fields := make([]string, 0, len(seen))
	for key := range seen {
		fields = append(fields, key)
	}
	sort.Strings(fields)

	return fields
}

// InjectPrimaryKeys deletes payload keys that collide with a primary key
// name and writes the authoritative values afterwards. A collision is an
// exact match, a "_<key>" suffix, or a "<key>_" prefix: "page_url" and
// "url_path" both collide with "url", "curl" does not.
func InjectPrimaryKeys(record map[string]any, keys map[string]any) {
	for name := range keys {
		for field := range record {
			if field == name ||
				strings.HasSuffix(field, "_"+name) ||
				strings.HasPrefix(field, name+"_") {
				delete(record, field)
			}
		}
	}

	for name, value := range keys {
		record[name] = value
	}
}

// CoerceIndex converts loosely typed index values to int. Strings are
// stripped of whitespace and bracket/quote characters and parsed when only
// digits remain; numbers truncate; anything else becomes 0.
func CoerceIndex(value any) int {
	switch v := value.(type) {
	case nil:
		return 0
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float32:
		return int(v)
	case float64:
		return int(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case jsonpool.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
		if f, err := v.Float64(); err == nil {
			return int(f)
		}
		return 0
	case string:
		cleaned := strings.Map(func(r rune) rune {
			switch r {
			case ' ', '\t', '\n', '\r', '[', ']', '"', '\'':
				return -1
			}
			return r
		}, v)
		if !isDigits(cleaned) {
			return 0
		}
		n, err := strconv.Atoi(cleaned)
		if err != nil {
			// Digits beyond the int range.
			return 0
		}
		return n
	default:
		return 0
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
