// Package testutil provides shared testing utilities for brightsync:
// test loggers, an in-memory Operations fake, and an httptest-backed
// Bright Data API stub.
package testutil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/brightsync/pkg/connector/core"
)

// TestLogger creates a test logger that writes to the test output.
// The logger is automatically cleaned up when the test completes.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a test context with a 30-second timeout.
// The caller must call the returned cancel function to avoid leaks.
func TestContext(_ *testing.T) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// UpsertCall records one Upsert delivered to MemoryOperations.
type UpsertCall struct {
	Table string
	Row   core.Row
}

// MemoryOperations is an in-memory core.Operations implementation that
// records every call. Connector tests use it to assert what a sync
// delivered and when state was committed.
type MemoryOperations struct {
	mu          sync.Mutex
	upserts     []UpsertCall
	checkpoints []core.State

	// UpsertErr and CheckpointErr, when set, fail the corresponding
	// call so failure paths can be exercised.
	UpsertErr     error
	CheckpointErr error
}

// NewMemoryOperations creates an empty recorder.
func NewMemoryOperations() *MemoryOperations {
	return &MemoryOperations{}
}

// Upsert records the row delivered to table.
func (m *MemoryOperations) Upsert(_ context.Context, table string, row core.Row) error {
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts = append(m.upserts, UpsertCall{Table: table, Row: row})
	return nil
}

// Checkpoint records the committed state.
func (m *MemoryOperations) Checkpoint(_ context.Context, state core.State) error {
	if m.CheckpointErr != nil {
		return m.CheckpointErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoints = append(m.checkpoints, state.Clone())
	return nil
}

// Upserts returns the recorded upserts in delivery order.
func (m *MemoryOperations) Upserts() []UpsertCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]UpsertCall, len(m.upserts))
	copy(out, m.upserts)
	return out
}

// UpsertsFor returns the rows delivered to one table.
func (m *MemoryOperations) UpsertsFor(table string) []core.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []core.Row
	for _, call := range m.upserts {
		if call.Table == table {
			rows = append(rows, call.Row)
		}
	}
	return rows
}

// Checkpoints returns the recorded checkpoints in commit order.
func (m *MemoryOperations) Checkpoints() []core.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.State, len(m.checkpoints))
	copy(out, m.checkpoints)
	return out
}

// APIStub is a programmable Bright Data API double backed by httptest.
// Handlers are keyed by "METHOD path"; unmatched requests fail the test.
type APIStub struct {
	t        *testing.T
	server   *httptest.Server
	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	requests []string
}

// NewAPIStub starts a stub API server that shuts down with the test.
func NewAPIStub(t *testing.T) *APIStub {
	t.Helper()
	stub := &APIStub{
		t:        t,
		handlers: make(map[string]http.HandlerFunc),
	}
	stub.server = httptest.NewServer(http.HandlerFunc(stub.dispatch))
	t.Cleanup(stub.server.Close)
	return stub
}

// URL returns the stub's base URL.
func (s *APIStub) URL() string {
	return s.server.URL
}

// Handle registers a handler for "METHOD path" requests.
func (s *APIStub) Handle(method, path string, handler http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method+" "+path] = handler
}

// HandleJSON registers a handler that replies with a fixed status and
// JSON body.
func (s *APIStub) HandleJSON(method, path string, status int, body string) {
	s.Handle(method, path, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

// Requests returns the "METHOD path" keys of every dispatched request,
// in arrival order.
func (s *APIStub) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.requests))
	copy(out, s.requests)
	return out
}

func (s *APIStub) dispatch(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path

	s.mu.Lock()
	s.requests = append(s.requests, key)
	handler, ok := s.handlers[key]
	s.mu.Unlock()

	if !ok {
		s.t.Errorf("unexpected API request: %s", key)
		w.WriteHeader(http.StatusNotFound)
		return
	}
	handler(w, r)
}
