// Package metrics provides performance tracking and observability for
// brightsync using Prometheus metrics. It offers collectors for the API
// client, the snapshot poller, and sync throughput.
//
// # Overview
//
// The metrics package provides:
//   - Prometheus-compatible metrics collection
//   - Pre-defined metrics for API calls, polling, and row delivery
//   - Throughput and latency tracking utilities
//   - Thread-safe metric recording
//   - Automatic metric registration
//
// # Basic Usage
//
//	// Record upserted rows
//	metrics.RowsUpserted.WithLabelValues("bright_data_serp", "search_results").Add(25)
//
//	// Track API request latency
//	timer := metrics.NewTimer("create_snapshot")
//	resp, err := client.Do(req)
//	metrics.APIRequestDuration.WithLabelValues("/datasets/filter").
//	    Observe(timer.Stop().Seconds())
//
//	// Track row throughput
//	tracker := metrics.NewThroughputTracker("bright_data_dataset", "dataset_results")
//	for _, row := range rows {
//	    upsert(row)
//	    tracker.Increment(1)
//	}
//	throughput := tracker.GetAndReset()
//
// # Metric Types
//
// Counter: Monotonically increasing values (e.g., total rows upserted)
// Gauge: Values that can go up or down (e.g., active syncs)
// Histogram: Distribution of values (e.g., request latency percentiles)
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ajitpratap0/brightsync/pkg/pool"
)

var (
	// RowsUpserted tracks the total number of rows delivered to the host.
	// Labels: connector (registered connector name), table (destination table)
	//
	// Example:
	//	metrics.RowsUpserted.WithLabelValues("bright_data_dataset", "dataset_results").Add(100)
	RowsUpserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brightsync_rows_upserted_total",
			Help: "Total number of rows upserted",
		},
		[]string{"connector", "table"},
	)

	// APIRequests tracks Bright Data API calls by endpoint and outcome.
	// Labels: endpoint (path template), method, status (HTTP status code or "error")
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brightsync_api_requests_total",
			Help: "Total number of Bright Data API requests",
		},
		[]string{"endpoint", "method", "status"},
	)

	// APIRequestDuration tracks the distribution of API request latencies.
	// Synchronous scrape requests can legitimately take minutes, so the
	// buckets reach far beyond typical REST latencies.
	// Labels: endpoint (path template)
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "brightsync_api_request_duration_seconds",
			Help: "Bright Data API request latency in seconds",
			Buckets: []float64{
				0.05, // Fast control-plane calls
				0.1,
				0.25,
				0.5,
				1,
				2.5,
				5,
				10,
				30,
				60,  // Synchronous unlocker fetches
				120, // Synchronous scrape requests
				300, // Request timeout ceiling
			},
		},
		[]string{"endpoint"},
	)

	// APIRetries tracks retry attempts by endpoint and trigger.
	// Labels: endpoint, reason (rate_limit, server_error, network)
	APIRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brightsync_api_retries_total",
			Help: "Total number of retried Bright Data API requests",
		},
		[]string{"endpoint", "reason"},
	)

	// SnapshotPolls tracks snapshot readiness probes by observed status.
	// Labels: status (ready, running, failed, not_found, error)
	SnapshotPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brightsync_snapshot_polls_total",
			Help: "Total number of snapshot readiness probes",
		},
		[]string{"status"},
	)

	// SyncDuration tracks end-to-end Update durations per connector.
	// Labels: connector, status (success/failure)
	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "brightsync_sync_duration_seconds",
			Help: "End-to-end sync duration in seconds",
			Buckets: []float64{
				1,
				5,
				15,
				30,
				60,
				120,
				300,
				600,
				1200,
			},
		},
		[]string{"connector", "status"},
	)

	// Checkpoints tracks committed state checkpoints per connector.
	// Labels: connector
	Checkpoints = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brightsync_checkpoints_total",
			Help: "Total number of committed state checkpoints",
		},
		[]string{"connector"},
	)

	// ActiveSyncs tracks sync runs currently in flight.
	ActiveSyncs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "brightsync_active_syncs",
			Help: "Number of sync runs currently in flight",
		},
	)

	// Throughput tracks rows per second per connector and table.
	Throughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "brightsync_throughput_rows_per_second",
			Help: "Current throughput in rows per second",
		},
		[]string{"connector", "table"},
	)
)

// poolStatsCollector exports the shared object pool statistics from
// pkg/pool. Stats are read at scrape time, so the gauges always reflect
// the current checkout state.
type poolStatsCollector struct {
	allocated *prometheus.Desc
	inUse     *prometheus.Desc
}

func newPoolStatsCollector() *poolStatsCollector {
	return &poolStatsCollector{
		allocated: prometheus.NewDesc(
			"brightsync_pool_objects_allocated_total",
			"Total objects created by a shared object pool",
			[]string{"pool"}, nil,
		),
		inUse: prometheus.NewDesc(
			"brightsync_pool_objects_in_use",
			"Objects currently checked out of a shared object pool",
			[]string{"pool"}, nil,
		),
	}
}

func (c *poolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.allocated
	ch <- c.inUse
}

func (c *poolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	for name, stats := range pool.GetGlobalStats() {
		ch <- prometheus.MustNewConstMetric(c.allocated, prometheus.CounterValue, float64(stats.Allocated), name)
		ch <- prometheus.MustNewConstMetric(c.inUse, prometheus.GaugeValue, float64(stats.InUse), name)
	}
}

func init() {
	prometheus.MustRegister(newPoolStatsCollector())
}

// Timer provides a simple timing mechanism for measuring operation durations.
// It captures the start time on creation and calculates elapsed time on stop.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
// The name parameter is for identification in logs or metrics.
//
// Example:
//
//	timer := metrics.NewTimer("poll_snapshot")
//	status, err := client.SnapshotStatus(ctx, id)
//	duration := timer.Stop()
//	logger.Info("snapshot polled", zap.Duration("duration", duration))
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Stop stops the timer and returns the elapsed duration since creation.
// The timer can be stopped multiple times, each returning the total
// elapsed time since creation.
func (t *Timer) Stop() time.Duration {
	duration := time.Since(t.start)
	return duration
}

// ThroughputTracker tracks throughput (rows per second) over time windows.
// It automatically calculates and reports throughput metrics when queried.
// Thread-safe for concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64     // Rows delivered since last reset
	lastReset time.Time // Time of last reset
	connector string    // Connector name
	table     string    // Destination table name
}

// NewThroughputTracker creates a new throughput tracker for a connector
// and table pair. Both parameters are used as metric labels.
//
// Example:
//
//	tracker := metrics.NewThroughputTracker("bright_data_scrape", "scrape_results")
//	for _, row := range rows {
//	    upsert(row)
//	    tracker.Increment(1)
//	}
//	throughput := tracker.GetAndReset()
func NewThroughputTracker(connector, table string) *ThroughputTracker {
	return &ThroughputTracker{
		lastReset: time.Now(),
		connector: connector,
		table:     table,
	}
}

// Increment adds n to the row count. Safe for concurrent use.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// GetAndReset calculates the current throughput (rows/second),
// updates the Prometheus metric, resets the counter, and returns
// the calculated throughput. Safe for concurrent use.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}

	throughput := float64(t.count) / elapsed

	// Reset for next period
	t.count = 0
	t.lastReset = time.Now()

	// Update Prometheus metric
	Throughput.WithLabelValues(t.connector, t.table).Set(throughput)

	return throughput
}
