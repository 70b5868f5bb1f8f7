package runtime

import (
	"bufio"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/brightsync/pkg/config"
	"github.com/ajitpratap0/brightsync/pkg/connector/core"
	jsonpool "github.com/ajitpratap0/brightsync/pkg/json"
	"github.com/ajitpratap0/brightsync/pkg/testutil"

	_ "github.com/ajitpratap0/brightsync/pkg/connector"
)

func testHarness(t *testing.T, baseURL string) (*Harness, string) {
	t.Helper()
	dir := t.TempDir()

	settings := config.NewSettings()
	settings.API.BaseURL = baseURL
	settings.Output.Directory = dir
	settings.Schema.FieldsDocPath = filepath.Join(dir, "fields.yaml")

	return NewHarness(settings), dir
}

func serpJob(dir string) *config.JobSpec {
	return &config.JobSpec{
		Connector: "bright_data_serp",
		Configuration: map[string]string{
			"api_token":    "test-token",
			"search_query": "golang",
		},
		Destination: config.DestinationSpec{Type: "jsonl", Directory: dir},
	}
}

func TestHarnessRunEndToEnd(t *testing.T) {
	stub := testutil.NewAPIStub(t)
	stub.HandleJSON(http.MethodPost, "/request", http.StatusOK,
		`[{"title": "Go", "link": "https://go.dev"}]`)

	harness, dir := testHarness(t, stub.URL())

	summary, err := harness.Run(context.Background(), serpJob(dir))
	require.NoError(t, err)

	assert.Equal(t, "bright_data_serp", summary.Connector)
	assert.Equal(t, []string{"search_results"}, summary.Tables)
	assert.Equal(t, int64(1), summary.Rows)
	assert.Equal(t, int64(1), summary.Checkpoints)
	assert.Equal(t, filepath.Join(dir, "state.json"), filepath.Clean(summary.StatePath))

	// The checkpointed state survives for the next run.
	state, err := NewStateStore(summary.StatePath).Load()
	require.NoError(t, err)
	assert.Equal(t, []any{"golang"}, state["last_search_queries"])

	// The upserted row landed in the table file.
	file, err := os.Open(filepath.Join(dir, "search_results.jsonl"))
	require.NoError(t, err)
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	require.True(t, scanner.Scan())
	var row map[string]any
	require.NoError(t, jsonpool.Unmarshal(scanner.Bytes(), &row))
	assert.Equal(t, "golang", row["query"])
	assert.Equal(t, "Go", row["title"])
	assert.False(t, scanner.Scan())
}

func TestHarnessRunCarriesStateBetweenRuns(t *testing.T) {
	stub := testutil.NewAPIStub(t)
	stub.HandleJSON(http.MethodPost, "/request", http.StatusOK, `[{"title": "Go"}]`)

	harness, dir := testHarness(t, stub.URL())

	first, err := harness.Run(context.Background(), serpJob(dir))
	require.NoError(t, err)

	second, err := harness.Run(context.Background(), serpJob(dir))
	require.NoError(t, err)

	assert.Equal(t, first.StatePath, second.StatePath)
	state, err := NewStateStore(second.StatePath).Load()
	require.NoError(t, err)
	assert.Equal(t, jsonpool.Number("1"), state["last_search_count"])
}

func TestHarnessRunUnknownConnector(t *testing.T) {
	harness, dir := testHarness(t, "http://localhost")

	job := serpJob(dir)
	job.Connector = "no_such_connector"

	_, err := harness.Run(context.Background(), job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no_such_connector")
}

func TestHarnessRunConfigErrorBeforeNetwork(t *testing.T) {
	stub := testutil.NewAPIStub(t)
	harness, dir := testHarness(t, stub.URL())

	job := serpJob(dir)
	delete(job.Configuration, "api_token")

	_, err := harness.Run(context.Background(), job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_token")

	// Initialize failed before any request or state write.
	assert.Empty(t, stub.Requests())
	_, statErr := os.Stat(filepath.Join(dir, "state.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestHarnessFailedUpdateKeepsPreviousCheckpoint(t *testing.T) {
	stub := testutil.NewAPIStub(t)
	stub.HandleJSON(http.MethodPost, "/request", http.StatusBadGateway, `{"error": "zone down"}`)

	harness, dir := testHarness(t, stub.URL())

	statePath := filepath.Join(dir, "state.json")
	require.NoError(t, NewStateStore(statePath).Save(core.State{"cursor": "keep-me"}))

	job := serpJob(dir)
	job.StatePath = statePath

	_, err := harness.Run(context.Background(), job)
	require.Error(t, err)

	state, loadErr := NewStateStore(statePath).Load()
	require.NoError(t, loadErr)
	assert.Equal(t, "keep-me", state["cursor"])

	_, statErr := os.Stat(filepath.Join(dir, "search_results.jsonl"))
	assert.True(t, os.IsNotExist(statErr))
}
