package flatten

import (
	"testing"

	"github.com/stretchr/testify/assert"

	jsonpool "github.com/ajitpratap0/brightsync/pkg/json"
)

func TestFlattenNested(t *testing.T) {
	input := map[string]any{
		"title": "Example",
		"seller": map[string]any{
			"name": "ACME",
			"address": map[string]any{
				"city": "Berlin",
			},
		},
		"images": []any{"a.jpg", "b.jpg"},
	}

	got := Flatten(input)

	want := map[string]any{
		"title":               "Example",
		"seller_name":         "ACME",
		"seller_address_city": "Berlin",
		"images":              []any{"a.jpg", "b.jpg"},
	}
	assert.Equal(t, want, got)
}

func TestFlattenIdempotent(t *testing.T) {
	flat := map[string]any{
		"url":          "https://example.com",
		"result_index": 3,
		"status":       "ok",
	}

	once := Flatten(flat)
	twice := Flatten(once)

	assert.Equal(t, flat, once)
	assert.Equal(t, once, twice)
}

func TestFlattenEmptyNestedMapDisappears(t *testing.T) {
	got := Flatten(map[string]any{"meta": map[string]any{}, "id": "x"})

	assert.Equal(t, map[string]any{"id": "x"}, got)
}

func TestCollectFields(t *testing.T) {
	records := []map[string]any{
		{"url": "a", "status": "ok"},
		{"url": "b", "title": "t"},
		{},
	}

	assert.Equal(t, []string{"status", "title", "url"}, CollectFields(records))
	assert.Empty(t, CollectFields(nil))
}

func TestInjectPrimaryKeys(t *testing.T) {
	record := map[string]any{
		"url":          "https://payload.example",
		"page_url":     "https://payload.example/page",
		"url_path":     "/page",
		"curl":         "kept, no collision",
		"result_index": "[0]",
		"title":        "kept",
	}

	InjectPrimaryKeys(record, map[string]any{
		"url":          "https://real.example",
		"result_index": 2,
	})

	want := map[string]any{
		"url":          "https://real.example",
		"result_index": 2,
		"curl":         "kept, no collision",
		"title":        "kept",
	}
	assert.Equal(t, want, record)
}

// A payload that carries its own result_index never survives injection.
func TestInjectedIndexBeatsPayload(t *testing.T) {
	record := Flatten(map[string]any{"result_index": "[0]", "title": "x"})
	InjectPrimaryKeys(record, map[string]any{"query": "pizza", "result_index": 2})

	assert.Equal(t, 2, record["result_index"])
	assert.Equal(t, "pizza", record["query"])
}

func TestCoerceIndex(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  int
	}{
		{"nil", nil, 0},
		{"int", 7, 7},
		{"int64", int64(9), 9},
		{"float truncates", 2.9, 2},
		{"bool true", true, 1},
		{"digit string", "42", 42},
		{"padded string", " 3 ", 3},
		{"bracketed string", "[0]", 0},
		{"bracketed nonzero", "[15]", 15},
		{"quoted string", `"7"`, 7},
		{"single quoted", "'8'", 8},
		{"negative string", "-1", 0},
		{"digits beyond int range", "99999999999999999999999999", 0},
		{"garbage string", "abc", 0},
		{"mixed string", "1a", 0},
		{"empty string", "", 0},
		{"json number", jsonpool.Number("15"), 15},
		{"json number float", jsonpool.Number("2.7"), 2},
		{"unsupported type", []string{"x"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CoerceIndex(tt.input))
		})
	}
}
