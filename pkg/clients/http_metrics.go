// Package clients provides HTTP metrics tracking
package clients

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// HTTPMetrics tracks HTTP client performance metrics including request counts,
// latencies, connection reuse, and error rates.
type HTTPMetrics struct {
	// Request counts
	totalRequests      int64
	successfulRequests int64
	failedRequests     int64

	// Connection metrics
	connectionsCreated int64
	connectionsReused  int64

	// Latency tracking
	latencyBuckets map[string]*LatencyBucket
	latencySamples []time.Duration
	sampleIndex    int
	sampleCount    int
	maxSamples     int

	// Error tracking
	errorsByType map[string]int64

	mu sync.RWMutex
}

// LatencyBucket tracks latency statistics for a specific endpoint.
type LatencyBucket struct {
	host         string
	method       string
	count        int64
	errors       int64
	totalLatency int64
	minLatency   time.Duration
	maxLatency   time.Duration
}

// NewHTTPMetrics creates a new HTTP metrics tracker with pre-allocated buffers
// for efficient metric collection.
func NewHTTPMetrics() *HTTPMetrics {
	return &HTTPMetrics{
		latencyBuckets: make(map[string]*LatencyBucket),
		latencySamples: make([]time.Duration, 1000), // Keep last 1000 samples
		maxSamples:     1000,
		errorsByType:   make(map[string]int64),
	}
}

// RecordRequest records metrics for an HTTP request including its method, host,
// latency, and whether it succeeded or failed.
func (hm *HTTPMetrics) RecordRequest(method, host string, latency time.Duration, err error) {
	atomic.AddInt64(&hm.totalRequests, 1)

	if err != nil {
		atomic.AddInt64(&hm.failedRequests, 1)
	} else {
		atomic.AddInt64(&hm.successfulRequests, 1)
	}

	hm.recordLatency(method, host, latency, err)
}

// RecordConnectionReuse tracks whether a connection was reused or newly created,
// helping monitor connection pooling effectiveness.
func (hm *HTTPMetrics) RecordConnectionReuse(reused bool) {
	if reused {
		atomic.AddInt64(&hm.connectionsReused, 1)
	} else {
		atomic.AddInt64(&hm.connectionsCreated, 1)
	}
}

// recordLatency records latency and error metrics
func (hm *HTTPMetrics) recordLatency(method, host string, latency time.Duration, err error) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	// Update global latency samples
	hm.latencySamples[hm.sampleIndex] = latency
	hm.sampleIndex = (hm.sampleIndex + 1) % hm.maxSamples
	if hm.sampleCount < hm.maxSamples {
		hm.sampleCount++
	}

	// Update per-endpoint bucket
	key := method + ":" + host
	bucket, exists := hm.latencyBuckets[key]
	if !exists {
		bucket = &LatencyBucket{
			host:       host,
			method:     method,
			minLatency: latency,
			maxLatency: latency,
		}
		hm.latencyBuckets[key] = bucket
	}

	bucket.count++
	bucket.totalLatency += int64(latency)

	if latency < bucket.minLatency {
		bucket.minLatency = latency
	}
	if latency > bucket.maxLatency {
		bucket.maxLatency = latency
	}

	if err != nil {
		bucket.errors++

		errorType := err.Error()
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		hm.errorsByType[errorType]++
	}
}

// GetAverageLatency returns the average latency
func (hm *HTTPMetrics) GetAverageLatency() time.Duration {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	if hm.sampleCount == 0 {
		return 0
	}

	var total time.Duration
	for _, sample := range hm.latencySamples[:hm.sampleCount] {
		total += sample
	}

	return total / time.Duration(hm.sampleCount)
}

// GetP95Latency returns the 95th percentile latency
func (hm *HTTPMetrics) GetP95Latency() time.Duration {
	return hm.getPercentileLatency(0.95)
}

// GetP99Latency returns the 99th percentile latency
func (hm *HTTPMetrics) GetP99Latency() time.Duration {
	return hm.getPercentileLatency(0.99)
}

// getPercentileLatency calculates a specific percentile latency
func (hm *HTTPMetrics) getPercentileLatency(percentile float64) time.Duration {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	if hm.sampleCount == 0 {
		return 0
	}

	// Sort a copy of the recorded samples
	sorted := make([]time.Duration, hm.sampleCount)
	copy(sorted, hm.latencySamples[:hm.sampleCount])
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	index := int(float64(len(sorted)-1) * percentile)
	return sorted[index]
}

// GetEndpointMetrics returns metrics for a specific endpoint
func (hm *HTTPMetrics) GetEndpointMetrics(method, host string) EndpointMetrics {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	key := method + ":" + host
	bucket, exists := hm.latencyBuckets[key]
	if !exists {
		return EndpointMetrics{}
	}

	avgLatency := time.Duration(0)
	if bucket.count > 0 {
		avgLatency = time.Duration(bucket.totalLatency) / time.Duration(bucket.count)
	}

	return EndpointMetrics{
		Host:           bucket.host,
		Method:         bucket.method,
		RequestCount:   bucket.count,
		ErrorCount:     bucket.errors,
		AverageLatency: avgLatency,
		MinLatency:     bucket.minLatency,
		MaxLatency:     bucket.maxLatency,
	}
}

// GetConnectionReuseRate returns the connection reuse rate
func (hm *HTTPMetrics) GetConnectionReuseRate() float64 {
	created := atomic.LoadInt64(&hm.connectionsCreated)
	reused := atomic.LoadInt64(&hm.connectionsReused)

	total := created + reused
	if total == 0 {
		return 0
	}

	return float64(reused) / float64(total) * 100
}

// GetErrorStats returns error statistics
func (hm *HTTPMetrics) GetErrorStats() map[string]int64 {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	// Create a copy to avoid holding the lock
	errorsCopy := make(map[string]int64)
	for errorType, count := range hm.errorsByType {
		errorsCopy[errorType] = count
	}

	return errorsCopy
}

// Reset resets all metrics
func (hm *HTTPMetrics) Reset() {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	atomic.StoreInt64(&hm.totalRequests, 0)
	atomic.StoreInt64(&hm.successfulRequests, 0)
	atomic.StoreInt64(&hm.failedRequests, 0)
	atomic.StoreInt64(&hm.connectionsCreated, 0)
	atomic.StoreInt64(&hm.connectionsReused, 0)

	hm.latencyBuckets = make(map[string]*LatencyBucket)
	hm.latencySamples = make([]time.Duration, hm.maxSamples)
	hm.sampleIndex = 0
	hm.sampleCount = 0
	hm.errorsByType = make(map[string]int64)
}

// EndpointMetrics represents metrics for a specific endpoint
type EndpointMetrics struct {
	Host           string        `json:"host"`
	Method         string        `json:"method"`
	RequestCount   int64         `json:"request_count"`
	ErrorCount     int64         `json:"error_count"`
	AverageLatency time.Duration `json:"average_latency"`
	MinLatency     time.Duration `json:"min_latency"`
	MaxLatency     time.Duration `json:"max_latency"`
}
