package brightdata

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/ajitpratap0/brightsync/pkg/errors"
	"github.com/ajitpratap0/brightsync/pkg/pool"
	stringpool "github.com/ajitpratap0/brightsync/pkg/strings"
)

const endpointTrigger = "datasets/v3/trigger"

// ScrapeRequest describes a batch scrape through the Web Scraper API.
type ScrapeRequest struct {
	URLs       []string
	Country    string
	DataFormat string
	Format     string
	Method     string
	// Async triggers a server-side snapshot instead of fetching each
	// URL inline. Connectors default this to true.
	Async bool
}

// Scrape fetches the given URLs and returns one result per URL in input
// order. Async scrapes trigger a snapshot and reuse the snapshot poller,
// so scrape failures surface as synthetic failure records the same way
// dataset failures do. Synchronous scrapes fetch each URL through the
// unlocker endpoint and fail fast on the first broken URL.
func (c *Client) Scrape(ctx context.Context, req ScrapeRequest) ([]any, error) {
	if len(req.URLs) == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "scrape_url cannot be empty")
	}
	if req.Async {
		return c.scrapeAsync(ctx, req)
	}
	return c.scrapeSync(ctx, req)
}

func (c *Client) scrapeAsync(ctx context.Context, req ScrapeRequest) ([]any, error) {
	b := stringpool.NewURLBuilder(c.baseURL)
	b.AddPath("datasets", "v3", "trigger")
	for _, p := range [...]struct{ key, value string }{
		{"format", req.Format},
		{"country", req.Country},
		{"data_format", req.DataFormat},
		{"method", req.Method},
	} {
		if p.value != "" {
			b.AddParam(p.key, p.value)
		}
	}
	url := b.String()
	b.Close()

	inputs := make([]map[string]any, 0, len(req.URLs))
	for _, u := range req.URLs {
		inputs = append(inputs, map[string]any{"url": u})
	}

	resp, err := c.postJSON(ctx, endpointTrigger, url, inputs)
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK {
		return nil, errors.Newf(errors.ErrorTypeAPI,
			"scrape trigger failed with status %d: %s", resp.status, extractErrorDetail(resp.body))
	}

	payload := parsePayload(resp.body)
	obj, ok := payload.(map[string]any)
	if !ok || !truthyPayload(obj["snapshot_id"]) {
		return nil, errors.New(errors.ErrorTypeAPI, "trigger response missing snapshot_id")
	}
	snapshotID := Stringify(obj["snapshot_id"])

	c.logger.Info("triggered scrape snapshot",
		zap.String("snapshot_id", snapshotID),
		zap.Int("urls", len(req.URLs)))

	return c.PollSnapshot(ctx, snapshotID), nil
}

func (c *Client) scrapeSync(ctx context.Context, req ScrapeRequest) ([]any, error) {
	results := make([]any, 0, len(req.URLs))
	for _, u := range req.URLs {
		body := pool.GetMap()
		body["zone"] = DefaultScrapeZone
		body["url"] = u
		setIfPresent(body, "format", req.Format)
		setIfPresent(body, "method", req.Method)
		setIfPresent(body, "country", req.Country)
		setIfPresent(body, "data_format", req.DataFormat)

		result, err := c.performRequest(ctx, body)
		pool.PutMap(body)
		if err != nil {
			return nil, errors.Wrapf(err, errors.TypeOf(err), "failed to scrape %s", u)
		}
		results = append(results, result)
	}
	return results, nil
}
