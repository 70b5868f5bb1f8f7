// Package brightdata implements the Bright Data REST API client shared
// by every brightsync source connector.
//
// The client covers four API surfaces:
//   - dataset filtering (POST /datasets/filter) with retry and backoff
//   - snapshot polling and download (GET /datasets/v3/snapshot/{id})
//   - web scraping, async (POST /datasets/v3/trigger) or synchronous
//   - SERP search and unlocker fetches (POST /request)
//
// Vendor outcomes that describe data rather than transport problems are
// returned as records, not errors: a failed snapshot produces a synthetic
// record carrying the failure reason so it still lands in the destination
// table as a row the operator can query.
package brightdata

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/brightsync/pkg/auth"
	"github.com/ajitpratap0/brightsync/pkg/clients"
	"github.com/ajitpratap0/brightsync/pkg/config"
	"github.com/ajitpratap0/brightsync/pkg/errors"
	jsonpool "github.com/ajitpratap0/brightsync/pkg/json"
	"github.com/ajitpratap0/brightsync/pkg/metrics"
	stringpool "github.com/ajitpratap0/brightsync/pkg/strings"
)

// Zone defaults applied when a connector configuration leaves the zone
// unset. They match the zone names Bright Data provisions on new accounts.
const (
	// DefaultSERPZone is the zone used for SERP searches
	DefaultSERPZone = "serp_api"
	// DefaultScrapeZone is the unlocker zone used for synchronous scrapes
	DefaultScrapeZone = "web_unlocker"
)

var jsonHeaders = map[string]string{
	"Content-Type": "application/json",
}

// Client is a Bright Data REST API client. It owns a pooled HTTP client
// with bearer authentication and carries the retry, backoff, and polling
// settings every operation obeys.
//
// The zero value is not usable; construct with NewClient.
type Client struct {
	baseURL  string
	settings config.APISettings
	http     *clients.HTTPClient
	logger   *zap.Logger

	// sleep and now are swappable so retry and polling behavior is
	// testable without waiting out real backoff windows
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// Option customizes a Client during construction.
type Option func(*Client)

// WithSleep replaces the function used for backoff and poll pauses.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		c.sleep = fn
	}
}

// WithClock replaces the time source used for request timing.
func WithClock(fn func() time.Time) Option {
	return func(c *Client) {
		c.now = fn
	}
}

// NewClient builds a Client against the given API settings. The
// credentials are attached as a transport wrapper so every request
// carries the bearer token without per-call header handling.
func NewClient(creds *auth.Credentials, settings config.APISettings, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	httpCfg := clients.DefaultHTTPConfig()
	if settings.RequestTimeout > 0 {
		httpCfg.RequestTimeout = settings.RequestTimeout
	}
	httpCfg.RateLimit = 0
	if settings.IsRateLimited() {
		httpCfg.RateLimit = float64(settings.RateLimitPerSec)
		httpCfg.RateBurst = settings.RateLimitPerSec
	}

	c := &Client{
		baseURL:  strings.TrimRight(settings.BaseURL, "/"),
		settings: settings,
		http:     clients.NewHTTPClient(httpCfg, logger, creds.Transport),
		logger:   logger,
		sleep:    sleepContext,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases the client's HTTP resources.
func (c *Client) Close() error {
	return c.http.Close()
}

// BaseURL returns the API root the client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// sleepContext pauses for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// apiResponse is a fully drained HTTP response. Bodies are always read
// and closed inside the request helpers so connections return to the
// pool regardless of status.
type apiResponse struct {
	status int
	body   []byte
}

// postJSON sends payload to url and drains the response. The returned
// error covers transport failures only; HTTP error statuses come back
// as a normal apiResponse for the caller to interpret.
func (c *Client) postJSON(ctx context.Context, endpoint, url string, payload any) (*apiResponse, error) {
	body, err := jsonpool.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode request payload")
	}
	return c.roundTrip(ctx, endpoint, http.MethodPost, url, body)
}

// getJSON issues a GET to url and drains the response.
func (c *Client) getJSON(ctx context.Context, endpoint, url string) (*apiResponse, error) {
	return c.roundTrip(ctx, endpoint, http.MethodGet, url, nil)
}

func (c *Client) roundTrip(ctx context.Context, endpoint, method, url string, body []byte) (*apiResponse, error) {
	var (
		resp *http.Response
		err  error
	)

	start := c.now()
	switch method {
	case http.MethodGet:
		resp, err = c.http.Get(ctx, url, nil)
	default:
		resp, err = c.http.Post(ctx, url, bytes.NewReader(body), jsonHeaders)
	}
	metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(c.now().Sub(start).Seconds())

	if err != nil {
		metrics.APIRequests.WithLabelValues(endpoint, method, "error").Inc()
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "request to Bright Data API failed")
	}
	defer func() { _ = resp.Body.Close() }()

	metrics.APIRequests.WithLabelValues(endpoint, method, strconv.Itoa(resp.StatusCode)).Inc()

	data, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, errors.Wrap(readErr, errors.ErrorTypeConnection, "failed to read Bright Data response")
	}

	c.logger.Debug("api call completed",
		zap.String("endpoint", endpoint),
		zap.String("method", method),
		zap.Int("status", resp.StatusCode),
		zap.Int("body_bytes", len(data)))

	return &apiResponse{status: resp.StatusCode, body: data}, nil
}

// parsePayload decodes a response body as JSON, falling back to the raw
// text when the body is not valid JSON. Numbers decode as jsonpool.Number
// so large record identifiers survive without float rounding.
func parsePayload(body []byte) any {
	var payload any
	if err := jsonpool.UnmarshalUseNumber(body, &payload); err != nil {
		return string(body)
	}
	return payload
}

// extractErrorDetail pulls a human-readable message out of an API error
// body. JSON objects are searched for the vendor's known detail fields;
// anything else comes back stringified.
func extractErrorDetail(body []byte) string {
	var payload any
	if err := jsonpool.UnmarshalUseNumber(body, &payload); err != nil {
		return string(body)
	}

	obj, ok := payload.(map[string]any)
	if !ok {
		return Stringify(payload)
	}

	if rawErrs, ok := obj["validation_errors"]; ok {
		if list, ok := rawErrs.([]any); ok {
			parts := make([]string, 0, len(list))
			for _, item := range list {
				parts = append(parts, Stringify(item))
			}
			return stringpool.JoinPooled(parts, "; ")
		}
		return Stringify(rawErrs)
	}

	for _, key := range []string{"error", "message", "detail", "details"} {
		if v, ok := obj[key]; ok {
			return Stringify(v)
		}
	}

	return Stringify(obj)
}

// Stringify renders a decoded API payload value as a string. Scalars
// render directly; maps and lists re-encode as JSON. Connectors use it
// for raw_response columns and the client uses it for error details.
func Stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	case map[string]any, []any:
		encoded, err := jsonpool.Marshal(val)
		if err != nil {
			return stringpool.Sprintf("%v", val)
		}
		return string(encoded)
	default:
		return stringpool.ValueToString(val)
	}
}
