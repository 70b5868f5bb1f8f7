package brightdata

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/brightsync/pkg/auth"
	"github.com/ajitpratap0/brightsync/pkg/config"
	"github.com/ajitpratap0/brightsync/pkg/errors"
	jsonpool "github.com/ajitpratap0/brightsync/pkg/json"
)

// sleepRecorder captures backoff and poll waits instead of sleeping.
type sleepRecorder struct {
	waits []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func testSettings(baseURL string) config.APISettings {
	return config.APISettings{
		BaseURL:        baseURL,
		RequestTimeout: 5 * time.Second,
		MaxRetries:     3,
		BackoffFactor:  1.5,
		PollInterval:   5 * time.Second,
		MaxWaitTime:    15 * time.Second,
	}
}

func newTestClient(t *testing.T, settings config.APISettings, opts ...Option) *Client {
	t.Helper()
	creds := &auth.Credentials{APIToken: "test-token"}
	client := NewClient(creds, settings, zaptest.NewLogger(t), opts...)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestCreateFilteredSnapshotSuccess(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/datasets/filter", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, jsonpool.Unmarshal(data, &body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"snapshot_id": "s_abc123"}`))
	}))
	defer server.Close()

	client := newTestClient(t, testSettings(server.URL))

	id, err := client.CreateFilteredSnapshot(context.Background(), FilterSpec{
		DatasetID:    "gd_dataset1",
		Name:         "industry",
		Operator:     "=",
		Value:        "tech",
		RecordsLimit: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, "s_abc123", id)

	assert.Equal(t, "gd_dataset1", body["dataset_id"])
	assert.Equal(t, float64(100), body["records_limit"])
	filter, ok := body["filter"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "industry", filter["name"])
	assert.Equal(t, "=", filter["operator"])
	assert.Equal(t, "tech", filter["value"])
}

func TestFilterObjectOmitsValueForNullOperators(t *testing.T) {
	spec := FilterSpec{Name: "email", Operator: "is_null", Value: "ignored"}
	filter := spec.FilterObject()
	assert.Equal(t, "email", filter["name"])
	assert.Equal(t, "is_null", filter["operator"])
	assert.NotContains(t, filter, "value")

	spec.Operator = "IS_NOT_NULL"
	assert.NotContains(t, spec.FilterObject(), "value")

	spec.Operator = "includes"
	assert.Contains(t, spec.FilterObject(), "value")
}

func TestCreateFilteredSnapshotRecordsLimitOmittedWhenZero(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, jsonpool.Unmarshal(data, &body))
		_, _ = w.Write([]byte(`{"snapshot_id": "s_1"}`))
	}))
	defer server.Close()

	client := newTestClient(t, testSettings(server.URL))
	_, err := client.CreateFilteredSnapshot(context.Background(), FilterSpec{
		DatasetID: "gd_1", Name: "f", Operator: "=", Value: "v",
	})
	require.NoError(t, err)
	assert.NotContains(t, body, "records_limit")
}

func TestCreateFilteredSnapshotRateLimitRetries(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": "too many requests"}`))
	}))
	defer server.Close()

	recorder := &sleepRecorder{}
	client := newTestClient(t, testSettings(server.URL), WithSleep(recorder.sleep))

	_, err := client.CreateFilteredSnapshot(context.Background(), FilterSpec{
		DatasetID: "gd_1", Name: "f", Operator: "=", Value: "v",
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeRateLimit))
	assert.Contains(t, err.Error(), "Rate limit exceeded: too many requests")

	// Initial attempt plus exactly MaxRetries retries.
	assert.Equal(t, int32(4), requests.Load())

	// Waits multiply by the backoff factor and never reset.
	require.Equal(t, []time.Duration{
		1500 * time.Millisecond,
		2250 * time.Millisecond,
		3375 * time.Millisecond,
	}, recorder.waits)
	for i := 1; i < len(recorder.waits); i++ {
		assert.Greater(t, recorder.waits[i], recorder.waits[i-1])
	}
}

func TestCreateFilteredSnapshotServerErrorRecovers(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch requests.Add(1) {
		case 1:
			w.WriteHeader(http.StatusInternalServerError)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte(`{"snapshot_id": "s_recovered"}`))
		}
	}))
	defer server.Close()

	recorder := &sleepRecorder{}
	client := newTestClient(t, testSettings(server.URL), WithSleep(recorder.sleep))

	id, err := client.CreateFilteredSnapshot(context.Background(), FilterSpec{
		DatasetID: "gd_1", Name: "f", Operator: "=", Value: "v",
	})
	require.NoError(t, err)
	assert.Equal(t, "s_recovered", id)
	assert.Equal(t, int32(3), requests.Load())
	assert.Equal(t, []time.Duration{1500 * time.Millisecond, 2250 * time.Millisecond}, recorder.waits)
}

func TestCreateFilteredSnapshotTerminalStatuses(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		errType  errors.ErrorType
		contains string
	}{
		{
			name:     "bad request",
			status:   http.StatusBadRequest,
			body:     `{"validation_errors": ["name required", "operator invalid"]}`,
			errType:  errors.ErrorTypeValidation,
			contains: "Invalid request parameters: name required; operator invalid",
		},
		{
			name:     "payment required",
			status:   http.StatusPaymentRequired,
			body:     `{"error": "balance too low"}`,
			errType:  errors.ErrorTypeAPI,
			contains: "Insufficient account balance: balance too low",
		},
		{
			name:     "no matching records",
			status:   http.StatusUnprocessableEntity,
			body:     `{"message": "0 records matched"}`,
			errType:  errors.ErrorTypeValidation,
			contains: "Filter did not match any records: 0 records matched",
		},
		{
			name:     "unexpected status",
			status:   http.StatusForbidden,
			body:     `{"error": "zone disabled"}`,
			errType:  errors.ErrorTypeAPI,
			contains: "status 403: zone disabled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requests atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				requests.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			recorder := &sleepRecorder{}
			client := newTestClient(t, testSettings(server.URL), WithSleep(recorder.sleep))

			_, err := client.CreateFilteredSnapshot(context.Background(), FilterSpec{
				DatasetID: "gd_1", Name: "f", Operator: "=", Value: "v",
			})
			require.Error(t, err)
			assert.True(t, errors.IsType(err, tt.errType))
			assert.Contains(t, err.Error(), tt.contains)

			// Terminal statuses never retry or sleep.
			assert.Equal(t, int32(1), requests.Load())
			assert.Empty(t, recorder.waits)
		})
	}
}

func TestCreateFilteredSnapshotMissingID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "ok"}`))
	}))
	defer server.Close()

	client := newTestClient(t, testSettings(server.URL))
	_, err := client.CreateFilteredSnapshot(context.Background(), FilterSpec{
		DatasetID: "gd_1", Name: "f", Operator: "=", Value: "v",
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAPI))
	assert.Contains(t, err.Error(), "Response missing snapshot_id")
}

func TestCreateFilteredSnapshotNetworkErrorRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	serverURL := server.URL
	server.Close()

	recorder := &sleepRecorder{}
	client := newTestClient(t, testSettings(serverURL), WithSleep(recorder.sleep))

	_, err := client.CreateFilteredSnapshot(context.Background(), FilterSpec{
		DatasetID: "gd_1", Name: "f", Operator: "=", Value: "v",
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
	assert.True(t, errors.IsRetryable(err))
	assert.Contains(t, err.Error(), "Failed to create filtered snapshot after 3 retries")
	assert.Len(t, recorder.waits, 3)
}

func snapshotPath(id string) string {
	return "/datasets/v3/snapshot/" + id
}

func TestPollSnapshotReadyDataKey(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, snapshotPath("s_1"), r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		if requests.Add(1) == 1 {
			_, _ = w.Write([]byte(`{"status": "running"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status": "ready", "data": [{"company": "Acme"}, {"company": "Globex"}]}`))
	}))
	defer server.Close()

	recorder := &sleepRecorder{}
	client := newTestClient(t, testSettings(server.URL), WithSleep(recorder.sleep))

	records := client.PollSnapshot(context.Background(), "s_1")
	require.Len(t, records, 2)
	assert.Equal(t, map[string]any{"company": "Acme"}, records[0])
	assert.Equal(t, map[string]any{"company": "Globex"}, records[1])
	assert.Equal(t, []time.Duration{5 * time.Second}, recorder.waits)
}

func TestPollSnapshotFailedReturnsSyntheticRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "failed", "error": "quota exceeded"}`))
	}))
	defer server.Close()

	client := newTestClient(t, testSettings(server.URL))

	records := client.PollSnapshot(context.Background(), "s_failed")
	require.Len(t, records, 1)
	assert.Equal(t, map[string]any{
		"snapshot_id": "s_failed",
		"status":      "failed",
		"error":       "quota exceeded",
		"error_type":  "snapshot_failed",
	}, records[0])
}

func TestPollSnapshotFailedMessagePriority(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "error wins over warning",
			body: `{"status": "failed", "error": "boom", "warning": "ignored"}`,
			want: "boom",
		},
		{
			name: "empty error falls through to warning",
			body: `{"status": "failed", "error": "", "warning": "collection aborted"}`,
			want: "collection aborted",
		},
		{
			name: "warning code fallback",
			body: `{"status": "failed", "warning_code": "dead_page"}`,
			want: "Snapshot failed with warning code: dead_page",
		},
		{
			name: "unknown error includes response",
			body: `{"status": "failed"}`,
			want: `Unknown error. Full response: {"status":"failed"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := newTestClient(t, testSettings(server.URL))
			records := client.PollSnapshot(context.Background(), "s_x")
			require.Len(t, records, 1)
			rec, ok := records[0].(map[string]any)
			require.True(t, ok)
			assert.Equal(t, tt.want, rec["error"])
			assert.Equal(t, "snapshot_failed", rec["error_type"])
			assert.NotContains(t, rec, "exception_type")
		})
	}
}

func TestPollSnapshotNotFoundReturnsImmediately(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": "snapshot does not exist"}`))
	}))
	defer server.Close()

	recorder := &sleepRecorder{}
	client := newTestClient(t, testSettings(server.URL), WithSleep(recorder.sleep))

	records := client.PollSnapshot(context.Background(), "s_missing")
	require.Len(t, records, 1)
	rec, ok := records[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "s_missing", rec["snapshot_id"])
	assert.Equal(t, "snapshot_not_found", rec["error_type"])
	assert.Contains(t, rec["error"], "Snapshot not found:")
	assert.Equal(t, string(errors.ErrorTypeAPI), rec["exception_type"])

	// No retry and no sleep once the snapshot is known to be gone.
	assert.Equal(t, int32(1), requests.Load())
	assert.Empty(t, recorder.waits)
}

func TestPollSnapshotPollingFailedAfterExhaustion(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": "backend exploded"}`))
	}))
	defer server.Close()

	recorder := &sleepRecorder{}
	client := newTestClient(t, testSettings(server.URL), WithSleep(recorder.sleep))

	records := client.PollSnapshot(context.Background(), "s_err")
	require.Len(t, records, 1)
	rec, ok := records[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "polling_failed", rec["error_type"])
	assert.Contains(t, rec["error"], "Failed to poll/download snapshot after 3 attempts")
	assert.Contains(t, rec["error"], "backend exploded")
	assert.Equal(t, string(errors.ErrorTypeAPI), rec["exception_type"])

	// 15s budget at 5s intervals is three probes, sleeping between them
	// but not after the last.
	assert.Equal(t, int32(3), requests.Load())
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, recorder.waits)
}

func TestPollSnapshotTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "running"}`))
	}))
	defer server.Close()

	recorder := &sleepRecorder{}
	client := newTestClient(t, testSettings(server.URL), WithSleep(recorder.sleep))

	records := client.PollSnapshot(context.Background(), "s_slow")
	require.Len(t, records, 1)
	rec, ok := records[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "timeout", rec["error_type"])
	assert.Equal(t, "Snapshot did not complete within 15 seconds", rec["error"])
	assert.NotContains(t, rec, "exception_type")
}

func TestPollSnapshotStripsMetadataWhenNoDataKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"status": "ready",
			"snapshot_id": "s_meta",
			"dataset_id": "gd_1",
			"cost": 0.25,
			"company": "Acme",
			"industry": "tech"
		}`))
	}))
	defer server.Close()

	client := newTestClient(t, testSettings(server.URL))
	records := client.PollSnapshot(context.Background(), "s_meta")
	require.Len(t, records, 1)
	assert.Equal(t, map[string]any{"company": "Acme", "industry": "tech"}, records[0])
}

func TestPollSnapshotMetadataOnlyBodyKeptWhole(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "ready", "snapshot_id": "s1", "cost": 0.1}`))
	}))
	defer server.Close()

	client := newTestClient(t, testSettings(server.URL))
	records := client.PollSnapshot(context.Background(), "s1")
	require.Len(t, records, 1)
	assert.Equal(t, map[string]any{
		"status":      "ready",
		"snapshot_id": "s1",
		"cost":        jsonpool.Number("0.1"),
	}, records[0])
}

func TestPollSnapshotReadyWithEmptyDataTerminates(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		_, _ = w.Write([]byte(`{"status": "ready", "data": []}`))
	}))
	defer server.Close()

	client := newTestClient(t, testSettings(server.URL))
	records := client.PollSnapshot(context.Background(), "s_empty")
	assert.Empty(t, records)
	assert.Equal(t, int32(1), requests.Load())
}

func TestPollSnapshotBareListBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"company": "Acme"}]`))
	}))
	defer server.Close()

	client := newTestClient(t, testSettings(server.URL))
	records := client.PollSnapshot(context.Background(), "s_list")
	require.Len(t, records, 1)
	assert.Equal(t, map[string]any{"company": "Acme"}, records[0])
}

func TestNormalizeRecords(t *testing.T) {
	assert.Equal(t, []any{}, normalizeRecords(nil))
	assert.Equal(t, []any{}, normalizeRecords(map[string]any{}))
	assert.Equal(t, []any{"scalar"}, normalizeRecords("scalar"))
	assert.Equal(t, []any{map[string]any{"a": "b"}}, normalizeRecords(map[string]any{"a": "b"}))
	list := []any{"x", "y"}
	assert.Equal(t, list, normalizeRecords(list))
}
