package brightdata

import (
	"context"
	"net/http"

	"github.com/ajitpratap0/brightsync/pkg/errors"
	"github.com/ajitpratap0/brightsync/pkg/pool"
	stringpool "github.com/ajitpratap0/brightsync/pkg/strings"
)

const endpointRequest = "request"

// UnlockRequest describes a batch of Web Unlocker fetches.
type UnlockRequest struct {
	URLs       []string
	Zone       string
	Country    string
	DataFormat string
	Format     string
	Method     string
}

// Unlock fetches each URL through the Web Unlocker proxy and returns the
// parsed payloads in input order. Method defaults to GET.
func (c *Client) Unlock(ctx context.Context, req UnlockRequest) ([]any, error) {
	if len(req.URLs) == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "unlocker_url cannot be empty")
	}
	if req.Zone == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "zone is required")
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	results := make([]any, 0, len(req.URLs))
	for _, u := range req.URLs {
		body := pool.GetMap()
		body["zone"] = req.Zone
		body["url"] = u
		body["method"] = method
		setIfPresent(body, "format", req.Format)
		setIfPresent(body, "country", req.Country)
		setIfPresent(body, "data_format", req.DataFormat)

		result, err := c.performRequest(ctx, body)
		pool.PutMap(body)
		if err != nil {
			return nil, errors.Wrapf(err, errors.TypeOf(err), "failed to fetch %s", u)
		}
		results = append(results, result)
	}
	return results, nil
}

// performRequest posts one unlocker-style request body and returns the
// parsed payload. Synchronous scrapes and SERP searches share this
// endpoint with different zones.
func (c *Client) performRequest(ctx context.Context, body map[string]any) (any, error) {
	b := stringpool.NewURLBuilder(c.baseURL)
	url := b.AddPath("request").String()
	b.Close()

	resp, err := c.postJSON(ctx, endpointRequest, url, body)
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK {
		return nil, errors.Newf(errors.ErrorTypeAPI,
			"request failed with status %d: %s", resp.status, extractErrorDetail(resp.body))
	}
	return parsePayload(resp.body), nil
}

// setIfPresent writes a non-empty optional field into a request body.
func setIfPresent(body map[string]any, key, value string) {
	if value != "" {
		body[key] = value
	}
}
