package brightdata

import (
	"context"
	"strings"

	"github.com/ajitpratap0/brightsync/pkg/errors"
	"github.com/ajitpratap0/brightsync/pkg/pool"
	stringpool "github.com/ajitpratap0/brightsync/pkg/strings"
)

// SearchRequest describes a batch of SERP queries.
type SearchRequest struct {
	Queries []string
	Engine  string
	Zone    string
	Country string
	Format  string
}

// Search runs one SERP request per query and returns the parsed payloads
// in query order. Each payload is whatever the engine zone produced: a
// parsed result list, a result document, or raw text when the zone did
// not return JSON.
func (c *Client) Search(ctx context.Context, req SearchRequest) ([]any, error) {
	if len(req.Queries) == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "search_query cannot be empty")
	}

	zone := req.Zone
	if zone == "" {
		zone = DefaultSERPZone
	}
	format := req.Format
	if format == "" {
		format = "json"
	}

	results := make([]any, 0, len(req.Queries))
	for _, query := range req.Queries {
		body := pool.GetMap()
		body["zone"] = zone
		body["url"] = engineSearchURL(req.Engine, query)
		body["format"] = format
		setIfPresent(body, "country", req.Country)

		result, err := c.performRequest(ctx, body)
		pool.PutMap(body)
		if err != nil {
			return nil, errors.Wrapf(err, errors.TypeOf(err), "failed to search %q", query)
		}
		results = append(results, result)
	}
	return results, nil
}

// engineSearchURL builds the search-engine URL a SERP query is proxied
// to. brd_json=1 asks the zone for parsed JSON instead of raw HTML.
// Unknown engines fall back to Google.
func engineSearchURL(engine, query string) string {
	var base, param string
	switch strings.ToLower(engine) {
	case "bing":
		base, param = "https://www.bing.com/search", "q"
	case "yandex":
		base, param = "https://yandex.com/search/", "text"
	default:
		base, param = "https://www.google.com/search", "q"
	}

	b := stringpool.NewURLBuilder(base)
	defer b.Close()
	return b.AddParam(param, query).AddParam("brd_json", "1").String()
}
