package brightdata

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/brightsync/pkg/errors"
	"github.com/ajitpratap0/brightsync/pkg/metrics"
	"github.com/ajitpratap0/brightsync/pkg/pool"
	stringpool "github.com/ajitpratap0/brightsync/pkg/strings"
)

const (
	endpointFilter   = "datasets/filter"
	endpointSnapshot = "datasets/v3/snapshot"
)

// snapshotMetadataKeys are response fields that describe the snapshot
// itself rather than its records. When a ready response has no explicit
// data key, everything except these is the record payload.
var snapshotMetadataKeys = map[string]struct{}{
	"status":          {},
	"id":              {},
	"snapshot_id":     {},
	"created":         {},
	"dataset_id":      {},
	"customer_id":     {},
	"cost":            {},
	"initiation_type": {},
	"warning":         {},
	"warning_code":    {},
}

// FilterSpec describes a dataset filter request. Value is ignored for
// null-check operators.
type FilterSpec struct {
	DatasetID    string
	Name         string
	Operator     string
	Value        any
	RecordsLimit int
}

// FilterObject returns the filter criteria in the API's wire shape.
// is_null and is_not_null operators omit the value field entirely.
func (s FilterSpec) FilterObject() map[string]any {
	filter := map[string]any{
		"name":     s.Name,
		"operator": s.Operator,
	}
	if !IsNullOperator(s.Operator) {
		filter["value"] = s.Value
	}
	return filter
}

// IsNullOperator reports whether a filter operator is a null check,
// which carries no comparison value.
func IsNullOperator(op string) bool {
	switch strings.ToLower(op) {
	case "is_null", "is_not_null":
		return true
	}
	return false
}

// CreateFilteredSnapshot asks the Marketplace Dataset API to materialize
// a filtered snapshot and returns its id. Rate limits, retryable server
// errors, and network failures are retried MaxRetries times with a
// multiplicative backoff shared across error kinds; the wait never
// resets within one call.
func (c *Client) CreateFilteredSnapshot(ctx context.Context, spec FilterSpec) (string, error) {
	b := stringpool.NewURLBuilder(c.baseURL)
	url := b.AddPath("datasets", "filter").String()
	b.Close()

	payload := pool.GetMap()
	defer pool.PutMap(payload)
	payload["dataset_id"] = spec.DatasetID
	payload["filter"] = spec.FilterObject()
	if spec.RecordsLimit > 0 {
		payload["records_limit"] = spec.RecordsLimit
	}

	retries := c.settings.MaxRetries
	wait := time.Duration(c.settings.BackoffFactor * float64(time.Second))

	for attempt := 0; ; attempt++ {
		resp, err := c.postJSON(ctx, endpointFilter, url, payload)
		if err != nil {
			if attempt < retries {
				c.logger.Warn("filter request failed, retrying",
					zap.Error(err),
					zap.Int("attempt", attempt+1),
					zap.Int("retries", retries))
				metrics.APIRetries.WithLabelValues(endpointFilter, "network").Inc()
				if wait, err = c.backoff(ctx, wait); err != nil {
					return "", err
				}
				continue
			}
			return "", errors.Wrapf(err, errors.ErrorTypeConnection,
				"Failed to create filtered snapshot after %d retries", retries)
		}

		switch resp.status {
		case http.StatusOK:
			result := parsePayload(resp.body)
			if obj, ok := result.(map[string]any); ok {
				if id, ok := obj["snapshot_id"]; ok && truthyPayload(id) {
					snapshotID := Stringify(id)
					c.logger.Info("created filtered snapshot",
						zap.String("snapshot_id", snapshotID),
						zap.String("dataset_id", spec.DatasetID))
					return snapshotID, nil
				}
			}
			return "", errors.New(errors.ErrorTypeAPI, "Response missing snapshot_id")

		case http.StatusBadRequest:
			return "", errors.Newf(errors.ErrorTypeValidation,
				"Invalid request parameters: %s", extractErrorDetail(resp.body))

		case http.StatusPaymentRequired:
			return "", errors.Newf(errors.ErrorTypeAPI,
				"Insufficient account balance: %s", extractErrorDetail(resp.body))

		case http.StatusUnprocessableEntity:
			return "", errors.Newf(errors.ErrorTypeValidation,
				"Filter did not match any records: %s", extractErrorDetail(resp.body))

		case http.StatusTooManyRequests:
			detail := extractErrorDetail(resp.body)
			if attempt < retries {
				c.logger.Warn("filter request rate limited, retrying",
					zap.String("detail", detail),
					zap.Int("attempt", attempt+1),
					zap.Int("retries", retries))
				metrics.APIRetries.WithLabelValues(endpointFilter, "rate_limit").Inc()
				if wait, err = c.backoff(ctx, wait); err != nil {
					return "", err
				}
				continue
			}
			return "", errors.Newf(errors.ErrorTypeRateLimit, "Rate limit exceeded: %s", detail)

		case http.StatusRequestTimeout,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			detail := extractErrorDetail(resp.body)
			if attempt < retries {
				c.logger.Warn("filter request failed with retryable status, retrying",
					zap.Int("status", resp.status),
					zap.String("detail", detail),
					zap.Int("attempt", attempt+1),
					zap.Int("retries", retries))
				metrics.APIRetries.WithLabelValues(endpointFilter, "server_error").Inc()
				if wait, err = c.backoff(ctx, wait); err != nil {
					return "", err
				}
				continue
			}
			return "", errors.Newf(errors.ErrorTypeAPI,
				"filter request failed with status %d: %s", resp.status, detail)

		default:
			return "", errors.Newf(errors.ErrorTypeAPI,
				"filter request failed with status %d: %s", resp.status, extractErrorDetail(resp.body))
		}
	}
}

// backoff sleeps for the current wait and returns the next one.
func (c *Client) backoff(ctx context.Context, wait time.Duration) (time.Duration, error) {
	if err := c.sleep(ctx, wait); err != nil {
		return wait, errors.Wrap(err, errors.ErrorTypeTimeout, "retry wait interrupted")
	}
	return time.Duration(float64(wait) * c.settings.BackoffFactor), nil
}

// PollSnapshot probes a snapshot until it is ready, then returns its
// records. It never returns an error: terminal failures come back as a
// one-element list holding a synthetic failure record, so a broken
// snapshot still lands in the destination table as a queryable row.
func (c *Client) PollSnapshot(ctx context.Context, snapshotID string) []any {
	maxAttempts := c.settings.PollAttempts()
	interval := c.settings.PollInterval

	for attempt := 0; attempt < maxAttempts; attempt++ {
		records, done, err := c.probeSnapshot(ctx, snapshotID)
		if done {
			return records
		}

		if err != nil {
			c.logger.Warn("snapshot poll failed",
				zap.String("snapshot_id", snapshotID),
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", maxAttempts),
				zap.Error(err))
			if attempt+1 >= maxAttempts {
				rec := failureRecord(snapshotID, stringpool.Sprintf(
					"Failed to poll/download snapshot after %d attempts: %v", maxAttempts, err), "polling_failed")
				rec["exception_type"] = string(errors.TypeOf(err))
				return []any{rec}
			}
		} else {
			c.logger.Debug("snapshot not ready",
				zap.String("snapshot_id", snapshotID),
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", maxAttempts))
		}

		if attempt+1 < maxAttempts {
			if sleepErr := c.sleep(ctx, interval); sleepErr != nil {
				rec := failureRecord(snapshotID, stringpool.Sprintf(
					"Snapshot polling interrupted: %v", sleepErr), "polling_failed")
				rec["exception_type"] = string(errors.ErrorTypeTimeout)
				return []any{rec}
			}
		}
	}

	totalWait := maxAttempts * int(interval.Seconds())
	c.logger.Warn("snapshot polling timed out",
		zap.String("snapshot_id", snapshotID),
		zap.Int("max_attempts", maxAttempts))
	return []any{failureRecord(snapshotID, stringpool.Sprintf(
		"Snapshot did not complete within %d seconds", totalWait), "timeout")}
}

// probeSnapshot performs a single readiness probe. done is true when
// polling should stop and records be returned as-is; err reports a
// retryable probe failure.
func (c *Client) probeSnapshot(ctx context.Context, snapshotID string) (records []any, done bool, err error) {
	b := stringpool.NewURLBuilder(c.baseURL)
	url := b.AddPath("datasets", "v3", "snapshot", snapshotID).AddParam("format", "json").String()
	b.Close()

	resp, err := c.getJSON(ctx, endpointSnapshot, url)
	if err == nil && resp.status != http.StatusOK && resp.status != http.StatusAccepted {
		err = errors.Newf(errors.ErrorTypeAPI,
			"snapshot download failed with status %d: %s", resp.status, extractErrorDetail(resp.body))
	}
	if err != nil {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "404") || strings.Contains(msg, "not found") || strings.Contains(msg, "does not exist") {
			metrics.SnapshotPolls.WithLabelValues("not_found").Inc()
			rec := failureRecord(snapshotID, stringpool.Sprintf("Snapshot not found: %v", err), "snapshot_not_found")
			rec["exception_type"] = string(errors.TypeOf(err))
			return []any{rec}, true, nil
		}
		metrics.SnapshotPolls.WithLabelValues("error").Inc()
		return nil, false, err
	}

	payload := parsePayload(resp.body)
	obj, isDict := payload.(map[string]any)
	if !isDict {
		if truthyPayload(payload) {
			metrics.SnapshotPolls.WithLabelValues("ready").Inc()
			return normalizeRecords(payload), true, nil
		}
		metrics.SnapshotPolls.WithLabelValues("running").Inc()
		return nil, false, nil
	}

	status := ""
	if s, ok := obj["status"].(string); ok {
		status = strings.ToLower(s)
	}

	switch status {
	case "ready":
		metrics.SnapshotPolls.WithLabelValues("ready").Inc()
		return normalizeRecords(extractReadyData(obj)), true, nil
	case "failed":
		metrics.SnapshotPolls.WithLabelValues("failed").Inc()
		c.logger.Warn("snapshot failed",
			zap.String("snapshot_id", snapshotID),
			zap.Any("response", obj))
		return []any{failureRecord(snapshotID, failedSnapshotMessage(obj), "snapshot_failed")}, true, nil
	default:
		metrics.SnapshotPolls.WithLabelValues("running").Inc()
		return nil, false, nil
	}
}

// extractReadyData pulls the record payload out of a ready response.
// A data/records/results key wins even when its value is empty;
// otherwise the non-metadata remainder of the response is the payload,
// or the full response when only metadata keys remain.
func extractReadyData(obj map[string]any) any {
	for _, key := range [...]string{"data", "records", "results"} {
		if v, ok := obj[key]; ok {
			return v
		}
	}

	rest := make(map[string]any, len(obj))
	for k, v := range obj {
		if _, meta := snapshotMetadataKeys[k]; !meta {
			rest[k] = v
		}
	}
	if len(rest) == 0 {
		// Nothing but metadata keys: keep the whole response as the record.
		return obj
	}
	return rest
}

// normalizeRecords coerces a snapshot payload into a record list. Lists
// pass through, a dict is a single record, scalars wrap as one record.
func normalizeRecords(data any) []any {
	switch v := data.(type) {
	case nil:
		return []any{}
	case []any:
		return v
	case map[string]any:
		if len(v) == 0 {
			return []any{}
		}
		return []any{v}
	default:
		return []any{v}
	}
}

// failedSnapshotMessage extracts a human-readable failure reason from a
// failed snapshot response, scanning the vendor's known error fields in
// priority order.
func failedSnapshotMessage(obj map[string]any) string {
	for _, key := range [...]string{"error", "warning", "message", "detail", "details"} {
		if v, ok := obj[key]; ok && truthyPayload(v) {
			return Stringify(v)
		}
	}
	if code, ok := obj["warning_code"]; ok {
		return stringpool.Sprintf("Snapshot failed with warning code: %s", Stringify(code))
	}
	return stringpool.Sprintf("Unknown error. Full response: %s", Stringify(obj))
}

// failureRecord builds the synthetic record a snapshot failure surfaces
// as. Callers may add an exception_type field before upserting.
func failureRecord(snapshotID, message, errorType string) map[string]any {
	return map[string]any{
		"snapshot_id": snapshotID,
		"status":      "failed",
		"error":       message,
		"error_type":  errorType,
	}
}

// truthyPayload mirrors the emptiness rules the API's JSON payloads are
// judged by: nil, empty strings, and empty containers are not data.
func truthyPayload(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != ""
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	case bool:
		return val
	default:
		return true
	}
}
