// Package base provides the foundational BaseConnector every brightsync
// connector embeds. It carries connector identity, the structured
// logger, a health surface, and the sync bookkeeping every Update
// invocation shares: active-sync gauges, duration histograms, and the
// top-level sync error wrap.
//
// Connectors embed it and layer their own typed configuration and fetch
// logic on top:
//
//	type Connector struct {
//	    *base.BaseConnector
//	    cfg *config // parsed during Initialize
//	}
//
//	func New() *Connector {
//	    return &Connector{
//	        BaseConnector: base.NewBaseConnector("bright_data_serp", core.ConnectorTypeSource, "1.0.0"),
//	    }
//	}
package base

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/brightsync/pkg/connector/core"
	"github.com/ajitpratap0/brightsync/pkg/errors"
	"github.com/ajitpratap0/brightsync/pkg/logger"
	"github.com/ajitpratap0/brightsync/pkg/metrics"
)

// BaseConnector provides the shared plumbing for connectors. The zero
// value is not usable; construct with NewBaseConnector.
type BaseConnector struct {
	name          string
	connectorType core.ConnectorType
	version       string
	logger        *zap.Logger

	mu          sync.RWMutex
	closed      bool
	initialized bool
	health      core.HealthStatus

	rowsUpserted int64
	syncRuns     int64
	syncFailures int64
	lastSyncTime time.Time
}

// NewBaseConnector creates a base connector with the given identity.
func NewBaseConnector(name string, connectorType core.ConnectorType, version string) *BaseConnector {
	return &BaseConnector{
		name:          name,
		connectorType: connectorType,
		version:       version,
		logger:        logger.Get().With(zap.String("connector", name)),
		health: core.HealthStatus{
			Status:    core.HealthHealthy,
			Timestamp: time.Now(),
		},
	}
}

// Name returns the connector name.
func (bc *BaseConnector) Name() string {
	return bc.name
}

// Type returns the connector type.
func (bc *BaseConnector) Type() core.ConnectorType {
	return bc.connectorType
}

// Version returns the connector version.
func (bc *BaseConnector) Version() string {
	return bc.version
}

// Logger returns the connector-scoped logger.
func (bc *BaseConnector) Logger() *zap.Logger {
	return bc.logger
}

// MarkInitialized records that configuration binding succeeded.
// Connectors call it at the end of their Initialize.
func (bc *BaseConnector) MarkInitialized() {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.initialized = true
}

// EnsureInitialized fails when Initialize has not completed, so a
// mis-wired harness cannot reach the network with an unbound config.
func (bc *BaseConnector) EnsureInitialized() error {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	if !bc.initialized {
		return errors.New(errors.ErrorTypeConfig, "connector is not initialized")
	}
	if bc.closed {
		return errors.New(errors.ErrorTypeConnection, "connector is closed")
	}
	return nil
}

// Health reports the connector's current condition.
func (bc *BaseConnector) Health(_ context.Context) core.HealthStatus {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	if bc.closed {
		return core.HealthStatus{Status: core.HealthUnhealthy, Timestamp: time.Now(),
			Details: map[string]any{"reason": "closed"}}
	}
	return bc.health
}

// UpdateHealth records the outcome of the latest operation.
func (bc *BaseConnector) UpdateHealth(healthy bool, details map[string]any) {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	status := core.HealthHealthy
	if !healthy {
		status = core.HealthDegraded
	}
	bc.health = core.HealthStatus{
		Status:    status,
		Timestamp: time.Now(),
		Details:   details,
	}
}

// Metrics returns a snapshot of the connector's counters.
func (bc *BaseConnector) Metrics() map[string]any {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	m := map[string]any{
		"name":          bc.name,
		"type":          string(bc.connectorType),
		"version":       bc.version,
		"rows_upserted": bc.rowsUpserted,
		"sync_runs":     bc.syncRuns,
		"sync_failures": bc.syncFailures,
		"health_status": bc.health.Status,
	}
	if !bc.lastSyncTime.IsZero() {
		m["last_sync_time"] = bc.lastSyncTime.Format(time.RFC3339)
	}
	return m
}

// TrackRows counts rows delivered to a table, both locally and in the
// Prometheus counter.
func (bc *BaseConnector) TrackRows(table string, n int) {
	if n <= 0 {
		return
	}
	bc.mu.Lock()
	bc.rowsUpserted += int64(n)
	bc.mu.Unlock()
	metrics.RowsUpserted.WithLabelValues(bc.name, table).Add(float64(n))
}

// RunSync executes one sync invocation with the shared bookkeeping:
// the active-sync gauge, the per-connector duration histogram, health
// updates, and the top-level wrap every failed invocation surfaces as.
func (bc *BaseConnector) RunSync(ctx context.Context, fn func(ctx context.Context) (core.State, error)) (core.State, error) {
	if err := bc.EnsureInitialized(); err != nil {
		return nil, err
	}

	metrics.ActiveSyncs.Inc()
	defer metrics.ActiveSyncs.Dec()
	timer := metrics.NewTimer(bc.name + "_sync")

	bc.mu.Lock()
	bc.syncRuns++
	bc.lastSyncTime = time.Now()
	bc.mu.Unlock()

	state, err := fn(ctx)

	duration := timer.Stop()
	status := "success"
	if err != nil {
		status = "failure"
		bc.mu.Lock()
		bc.syncFailures++
		bc.mu.Unlock()
	}
	metrics.SyncDuration.WithLabelValues(bc.name, status).Observe(duration.Seconds())

	if err != nil {
		bc.UpdateHealth(false, map[string]any{"last_error": err.Error()})
		bc.logger.Error("sync failed",
			zap.Duration("duration", duration),
			zap.Error(err))
		return nil, errors.Wrap(err, errors.ErrorTypeSync, "failed to sync data from Bright Data")
	}

	bc.UpdateHealth(true, nil)
	bc.logger.Info("sync completed", zap.Duration("duration", duration))
	return state, nil
}

// Close shuts the connector down. Closing twice is a no-op.
func (bc *BaseConnector) Close(_ context.Context) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	if bc.closed {
		return nil
	}
	bc.closed = true
	bc.logger.Debug("connector closed")
	return nil
}

// RequireConfig returns the trimmed value for key, or a configuration
// error naming the missing field. Validation happens before any network
// call, so a broken configuration never leaves the process.
func RequireConfig(cfg core.Configuration, key string) (string, error) {
	value := strings.TrimSpace(cfg[key])
	if value == "" {
		return "", errors.Newf(errors.ErrorTypeConfig, "Missing required configuration value: %s", key)
	}
	return value, nil
}

// OptionalConfig returns the trimmed value for key, or fallback when
// the key is absent or blank.
func OptionalConfig(cfg core.Configuration, key, fallback string) string {
	value := strings.TrimSpace(cfg[key])
	if value == "" {
		return fallback
	}
	return value
}
