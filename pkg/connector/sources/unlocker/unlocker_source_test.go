package unlocker

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/brightsync/pkg/config"
	"github.com/ajitpratap0/brightsync/pkg/connector/core"
	"github.com/ajitpratap0/brightsync/pkg/errors"
	jsonpool "github.com/ajitpratap0/brightsync/pkg/json"
	"github.com/ajitpratap0/brightsync/pkg/testutil"
)

func testSettings(t *testing.T, baseURL string) *config.Settings {
	t.Helper()
	settings := config.NewSettings()
	settings.API.BaseURL = baseURL
	settings.API.RequestTimeout = 5 * time.Second
	settings.Schema.FieldsDocPath = filepath.Join(t.TempDir(), "fields.yaml")
	return settings
}

func baseConfig() core.Configuration {
	return core.Configuration{
		"api_token":    "t",
		"unlocker_url": "https://a.example",
		"zone":         "acct_unlocker",
	}
}

func newTestSource(t *testing.T, stub *testutil.APIStub, cfg core.Configuration) *Source {
	t.Helper()
	src := New()
	src.ApplySettings(testSettings(t, stub.URL()))
	require.NoError(t, src.Initialize(context.Background(), cfg))
	t.Cleanup(func() { _ = src.Close(context.Background()) })
	return src
}

func TestInitializeValidation(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(core.Configuration)
		contains string
	}{
		{
			name:     "missing unlocker_url",
			mutate:   func(cfg core.Configuration) { delete(cfg, "unlocker_url") },
			contains: "unlocker_url",
		},
		{
			name:     "missing zone",
			mutate:   func(cfg core.Configuration) { delete(cfg, "zone") },
			contains: "zone",
		},
		{
			name:     "missing api_token",
			mutate:   func(cfg core.Configuration) { delete(cfg, "api_token") },
			contains: "api_token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mutate(cfg)

			err := New().Initialize(context.Background(), cfg)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestSchemaDeclaresPrimaryKey(t *testing.T) {
	stub := testutil.NewAPIStub(t)
	src := newTestSource(t, stub, baseConfig())

	tables, err := src.Schema(context.Background())
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "unlocker_results", tables[0].Table)
	assert.Equal(t, []string{"requested_url", "result_index"}, tables[0].PrimaryKey)
}

func TestUpdateFetchesURLs(t *testing.T) {
	stub := testutil.NewAPIStub(t)

	var (
		mu     sync.Mutex
		bodies []map[string]any
	)
	stub.Handle(http.MethodPost, "/request", func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var body map[string]any
		require.NoError(t, jsonpool.Unmarshal(data, &body))

		mu.Lock()
		bodies = append(bodies, body)
		n := len(bodies)
		mu.Unlock()

		if n == 1 {
			_, _ = w.Write([]byte(`{"requested_url": "https://a.example/final", "html": "<p>a</p>"}`))
			return
		}
		_, _ = w.Write([]byte(`"<html>raw page</html>"`))
	})

	cfg := baseConfig()
	cfg["unlocker_url"] = "https://a.example, https://b.example"
	cfg["method"] = "post"

	src := newTestSource(t, stub, cfg)
	ops := testutil.NewMemoryOperations()

	state, err := src.Update(context.Background(), ops, core.State{})
	require.NoError(t, err)

	require.Len(t, bodies, 2)
	assert.Equal(t, "acct_unlocker", bodies[0]["zone"])
	assert.Equal(t, "https://a.example", bodies[0]["url"])
	assert.Equal(t, "POST", bodies[0]["method"])
	assert.Equal(t, "https://b.example", bodies[1]["url"])

	rows := ops.UpsertsFor("unlocker_results")
	require.Len(t, rows, 2)

	// The payload's own requested_url wins over the input URL.
	assert.Equal(t, []any{"https://a.example/final"}, rows[0]["requested_url"])
	assert.Equal(t, []any{0}, rows[0]["result_index"])
	assert.Equal(t, []any{"<p>a</p>"}, rows[0]["html"])

	// A non-dict payload falls back to the input URL and stores raw.
	assert.Equal(t, []any{"https://b.example"}, rows[1]["requested_url"])
	assert.Equal(t, []any{1}, rows[1]["result_index"])
	assert.Equal(t, []any{"<html>raw page</html>"}, rows[1]["raw_response"])

	checkpoints := ops.Checkpoints()
	require.Len(t, checkpoints, 1)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, checkpoints[0]["last_unlocker_urls"])
	assert.Equal(t, 2, checkpoints[0]["last_unlocker_count"])
	assert.Equal(t, checkpoints[0], state)
}

func TestUpdateDefaultsMethodToGet(t *testing.T) {
	stub := testutil.NewAPIStub(t)

	var requestBody map[string]any
	stub.Handle(http.MethodPost, "/request", func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, jsonpool.Unmarshal(data, &requestBody))
		_, _ = w.Write([]byte(`{"html": "<p>ok</p>"}`))
	})

	src := newTestSource(t, stub, baseConfig())
	ops := testutil.NewMemoryOperations()

	_, err := src.Update(context.Background(), ops, core.State{})
	require.NoError(t, err)
	assert.Equal(t, "GET", requestBody["method"])
}

func TestUpdateEmptyURLListCheckpointsState(t *testing.T) {
	stub := testutil.NewAPIStub(t)
	cfg := baseConfig()
	cfg["unlocker_url"] = "[]"

	src := newTestSource(t, stub, cfg)
	ops := testutil.NewMemoryOperations()

	_, err := src.Update(context.Background(), ops, core.State{"cursor": "x"})
	require.NoError(t, err)

	assert.Empty(t, stub.Requests())
	assert.Empty(t, ops.Upserts())
	checkpoints := ops.Checkpoints()
	require.Len(t, checkpoints, 1)
	assert.Equal(t, "x", checkpoints[0]["cursor"])
}

func TestUpdateFetchFailureSkipsCheckpoint(t *testing.T) {
	stub := testutil.NewAPIStub(t)
	stub.HandleJSON(http.MethodPost, "/request", http.StatusUnauthorized, `{"error": "bad zone"}`)

	src := newTestSource(t, stub, baseConfig())
	ops := testutil.NewMemoryOperations()

	state, err := src.Update(context.Background(), ops, core.State{})
	require.Error(t, err)
	assert.Nil(t, state)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSync))
	assert.Contains(t, err.Error(), "failed to sync data from Bright Data")
	assert.Contains(t, err.Error(), "https://a.example")
	assert.Empty(t, ops.Checkpoints())
}
