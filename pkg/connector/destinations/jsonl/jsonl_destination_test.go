package jsonl

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/brightsync/pkg/compression"
	"github.com/ajitpratap0/brightsync/pkg/config"
	"github.com/ajitpratap0/brightsync/pkg/connector/core"
	jsonpool "github.com/ajitpratap0/brightsync/pkg/json"
)

var testSchema = core.TableSchema{
	Table:      "scrape_results",
	PrimaryKey: []string{"url", "result_index"},
}

func newTestDestination(t *testing.T, settings config.OutputSettings) core.Destination {
	t.Helper()
	if settings.Directory == "" {
		settings.Directory = t.TempDir()
	}
	dest, err := New(settings)
	require.NoError(t, err)
	require.NoError(t, dest.Initialize(context.Background(), []core.TableSchema{testSchema}))
	t.Cleanup(func() { _ = dest.Close(context.Background()) })
	return dest
}

func row(url string, index int, extra map[string]any) core.Row {
	r := core.Row{
		"url":          []any{url},
		"result_index": []any{index},
	}
	for k, v := range extra {
		r[k] = []any{v}
	}
	return r
}

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var records []map[string]any
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		var record map[string]any
		require.NoError(t, jsonpool.Unmarshal(scanner.Bytes(), &record))
		records = append(records, record)
	}
	return records
}

func TestUpsertReplacesByPrimaryKey(t *testing.T) {
	dir := t.TempDir()
	dest := newTestDestination(t, config.OutputSettings{Directory: dir})
	ctx := context.Background()

	require.NoError(t, dest.Upsert(ctx, testSchema.Table, row("https://a", 0, map[string]any{"title": "old"})))
	require.NoError(t, dest.Upsert(ctx, testSchema.Table, row("https://b", 0, map[string]any{"title": "keep"})))
	require.NoError(t, dest.Upsert(ctx, testSchema.Table, row("https://a", 0, map[string]any{"title": "new"})))
	require.NoError(t, dest.Flush(ctx))

	records := readLines(t, filepath.Join(dir, "scrape_results.jsonl"))
	require.Len(t, records, 2)

	// First-seen order is preserved; the replaced row keeps its slot.
	assert.Equal(t, "https://a", records[0]["url"])
	assert.Equal(t, "new", records[0]["title"])
	assert.Equal(t, "https://b", records[1]["url"])
	assert.Equal(t, "keep", records[1]["title"])
}

func TestNilColumnsSurviveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	dest := newTestDestination(t, config.OutputSettings{Directory: dir})
	ctx := context.Background()

	r := row("https://a", 0, nil)
	r["missing"] = []any{nil}
	require.NoError(t, dest.Upsert(ctx, testSchema.Table, r))
	require.NoError(t, dest.Flush(ctx))

	records := readLines(t, filepath.Join(dir, "scrape_results.jsonl"))
	require.Len(t, records, 1)
	value, ok := records[0]["missing"]
	assert.True(t, ok)
	assert.Nil(t, value)
}

func TestUndeclaredTableRejected(t *testing.T) {
	dest := newTestDestination(t, config.OutputSettings{})
	err := dest.Upsert(context.Background(), "mystery", row("https://a", 0, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "was not declared")
}

func TestCompressedOutput(t *testing.T) {
	dir := t.TempDir()
	dest := newTestDestination(t, config.OutputSettings{
		Directory:   dir,
		Compression: "gzip",
	})
	ctx := context.Background()

	require.NoError(t, dest.Upsert(ctx, testSchema.Table, row("https://a", 0, map[string]any{"title": "zipped"})))
	require.NoError(t, dest.Flush(ctx))

	compressed, err := os.ReadFile(filepath.Join(dir, "scrape_results.jsonl.gz"))
	require.NoError(t, err)

	raw, err := compression.Decompress(compressed, compression.Gzip)
	require.NoError(t, err)

	var record map[string]any
	require.NoError(t, jsonpool.Unmarshal(bytes.TrimSpace(raw), &record))
	assert.Equal(t, "zipped", record["title"])
}

func TestFlushIsRepeatable(t *testing.T) {
	dir := t.TempDir()
	dest := newTestDestination(t, config.OutputSettings{Directory: dir})
	ctx := context.Background()

	require.NoError(t, dest.Upsert(ctx, testSchema.Table, row("https://a", 0, nil)))
	require.NoError(t, dest.Flush(ctx))
	require.NoError(t, dest.Upsert(ctx, testSchema.Table, row("https://a", 1, nil)))
	require.NoError(t, dest.Flush(ctx))

	records := readLines(t, filepath.Join(dir, "scrape_results.jsonl"))
	assert.Len(t, records, 2)
}

func TestInvalidCompressionRejected(t *testing.T) {
	_, err := New(config.OutputSettings{Directory: t.TempDir(), Compression: "brotli"})
	require.Error(t, err)
}
