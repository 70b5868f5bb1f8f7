package brightdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/brightsync/pkg/auth"
	jsonpool "github.com/ajitpratap0/brightsync/pkg/json"
)

func TestNewClientTrimsBaseURL(t *testing.T) {
	settings := testSettings("https://api.example.com///")
	client := NewClient(&auth.Credentials{APIToken: "tok"}, settings, zaptest.NewLogger(t))
	defer func() { _ = client.Close() }()

	assert.Equal(t, "https://api.example.com", client.BaseURL())
}

func TestExtractErrorDetail(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "validation errors joined",
			body: `{"validation_errors": ["name required", "operator invalid"]}`,
			want: "name required; operator invalid",
		},
		{
			name: "validation errors non-list",
			body: `{"validation_errors": "filter malformed"}`,
			want: "filter malformed",
		},
		{
			name: "validation errors with nested objects",
			body: `{"validation_errors": [{"field": "name"}]}`,
			want: `{"field":"name"}`,
		},
		{
			name: "error field",
			body: `{"error": "boom"}`,
			want: "boom",
		},
		{
			name: "error wins over message",
			body: `{"message": "secondary", "error": "primary"}`,
			want: "primary",
		},
		{
			name: "message field",
			body: `{"message": "rate limited"}`,
			want: "rate limited",
		},
		{
			name: "detail field",
			body: `{"detail": "no such dataset"}`,
			want: "no such dataset",
		},
		{
			name: "details field",
			body: `{"details": "zone suspended"}`,
			want: "zone suspended",
		},
		{
			name: "present but empty error wins",
			body: `{"error": "", "message": "hidden"}`,
			want: "",
		},
		{
			name: "numeric detail stringified",
			body: `{"detail": 42}`,
			want: "42",
		},
		{
			name: "unknown object stringified",
			body: `{"code": "X1"}`,
			want: `{"code":"X1"}`,
		},
		{
			name: "json list stringified",
			body: `["a", "b"]`,
			want: `["a","b"]`,
		},
		{
			name: "non-json raw text",
			body: "upstream gateway timeout",
			want: "upstream gateway timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractErrorDetail([]byte(tt.body)))
		})
	}
}

func TestParsePayload(t *testing.T) {
	assert.Equal(t, map[string]any{"a": jsonpool.Number("1")}, parsePayload([]byte(`{"a": 1}`)))
	assert.Equal(t, []any{jsonpool.Number("1"), "x"}, parsePayload([]byte(`[1, "x"]`)))
	assert.Equal(t, "plain", parsePayload([]byte(`"plain"`)))
	assert.Equal(t, "<html>not json</html>", parsePayload([]byte("<html>not json</html>")))
	assert.Nil(t, parsePayload([]byte("null")))
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "text", Stringify("text"))
	assert.Equal(t, "", Stringify(nil))
	assert.Equal(t, "12345678901234567890", Stringify(jsonpool.Number("12345678901234567890")))
	assert.Equal(t, "true", Stringify(true))
	assert.Equal(t, `["a"]`, Stringify([]any{"a"}))
	assert.Equal(t, `{"k":"v"}`, Stringify(map[string]any{"k": "v"}))
}

func TestTruthyPayload(t *testing.T) {
	assert.False(t, truthyPayload(nil))
	assert.False(t, truthyPayload(""))
	assert.False(t, truthyPayload([]any{}))
	assert.False(t, truthyPayload(map[string]any{}))
	assert.False(t, truthyPayload(false))
	assert.True(t, truthyPayload("x"))
	assert.True(t, truthyPayload([]any{nil}))
	assert.True(t, truthyPayload(map[string]any{"k": nil}))
	assert.True(t, truthyPayload(jsonpool.Number("0")))
}
