// Package scrape implements the Bright Data Web Scraper connector. It
// fetches a configured list of URLs, either asynchronously through a
// triggered snapshot or synchronously per URL, and upserts the scraped
// payloads into the scrape_results table keyed by url and result_index.
package scrape

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/brightsync/pkg/auth"
	"github.com/ajitpratap0/brightsync/pkg/brightdata"
	"github.com/ajitpratap0/brightsync/pkg/config"
	"github.com/ajitpratap0/brightsync/pkg/connector/base"
	"github.com/ajitpratap0/brightsync/pkg/connector/core"
	"github.com/ajitpratap0/brightsync/pkg/flatten"
	"github.com/ajitpratap0/brightsync/pkg/metrics"
	"github.com/ajitpratap0/brightsync/pkg/normalize"
	"github.com/ajitpratap0/brightsync/pkg/schemadoc"
)

const (
	// ConnectorName is the registered connector name
	ConnectorName = "bright_data_scrape"
	// TableName is the destination table
	TableName = "scrape_results"
)

var primaryKey = []string{"url", "result_index"}

type sourceConfig struct {
	urls       []string
	country    string
	dataFormat string
	format     string
	method     string
	async      bool
}

// Source syncs Web Scraper results.
type Source struct {
	*base.BaseConnector
	settings *config.Settings
	client   *brightdata.Client
	cfg      *sourceConfig
}

// New creates an uninitialized scrape connector.
func New() *Source {
	return &Source{
		BaseConnector: base.NewBaseConnector(ConnectorName, core.ConnectorTypeSource, "1.0.0"),
	}
}

// ApplySettings injects process settings ahead of Initialize.
func (s *Source) ApplySettings(settings *config.Settings) {
	s.settings = settings
}

// Initialize parses and validates the configuration in a single pass.
// scrape_url accepts a JSON array, a comma or newline list, or a single
// URL; the normalized list is fixed here and never re-parsed.
func (s *Source) Initialize(_ context.Context, cfg core.Configuration) error {
	creds, err := auth.FromConfiguration(cfg)
	if err != nil {
		return err
	}

	raw, err := base.RequireConfig(cfg, "scrape_url")
	if err != nil {
		return err
	}

	parsed := &sourceConfig{
		urls:       normalize.StringList(raw),
		country:    base.OptionalConfig(cfg, "country", ""),
		dataFormat: base.OptionalConfig(cfg, "data_format", ""),
		format:     base.OptionalConfig(cfg, "format", ""),
		method:     base.OptionalConfig(cfg, "method", ""),
		async:      parseAsyncFlag(base.OptionalConfig(cfg, "async_request", "")),
	}

	if s.settings == nil {
		settings, err := config.LoadSettings("")
		if err != nil {
			return err
		}
		s.settings = settings
	}

	s.cfg = parsed
	s.client = brightdata.NewClient(creds, s.settings.API, s.Logger())
	s.MarkInitialized()

	s.Logger().Info("connector initialized",
		zap.Int("urls", len(parsed.urls)),
		zap.Bool("async", parsed.async))
	return nil
}

// parseAsyncFlag defaults to true; only an explicit false/0/no opts out.
func parseAsyncFlag(raw string) bool {
	switch strings.ToLower(raw) {
	case "false", "0", "no":
		return false
	}
	return true
}

// Schema declares the destination table.
func (s *Source) Schema(_ context.Context) ([]core.TableSchema, error) {
	return []core.TableSchema{{Table: TableName, PrimaryKey: primaryKey}}, nil
}

// Update runs one sync: scrape every configured URL, flatten the
// results, upsert them, and checkpoint. An input list that normalized
// to nothing checkpoints the carried state without touching the
// network.
func (s *Source) Update(ctx context.Context, ops core.Operations, state core.State) (core.State, error) {
	return s.RunSync(ctx, func(ctx context.Context) (core.State, error) {
		next := state.Clone()

		if len(s.cfg.urls) == 0 {
			s.Logger().Info("no scrape URLs configured, skipping fetch")
			if err := ops.Checkpoint(ctx, next); err != nil {
				return nil, err
			}
			metrics.Checkpoints.WithLabelValues(ConnectorName).Inc()
			return next, nil
		}

		results, err := s.client.Scrape(ctx, brightdata.ScrapeRequest{
			URLs:       s.cfg.urls,
			Country:    s.cfg.country,
			DataFormat: s.cfg.dataFormat,
			Format:     s.cfg.format,
			Method:     s.cfg.method,
			Async:      s.cfg.async,
		})
		if err != nil {
			return nil, err
		}

		processed := s.mapResults(results)

		fields := flatten.CollectFields(processed)
		s.updateFieldsDoc(fields)

		for _, record := range processed {
			if err := ops.Upsert(ctx, TableName, buildRow(fields, record)); err != nil {
				return nil, err
			}
		}
		s.TrackRows(TableName, len(processed))

		// Cursor advances only when the run produced rows; a sync where
		// every URL came back empty keeps the previous values.
		if len(processed) > 0 {
			next["last_scrape_urls"] = s.cfg.urls
			next["last_scrape_count"] = len(processed)
		}

		if err := ops.Checkpoint(ctx, next); err != nil {
			return nil, err
		}
		metrics.Checkpoints.WithLabelValues(ConnectorName).Inc()

		return next, nil
	})
}

// mapResults pairs results with their input URLs by position. A result
// that is itself a list expands into one record per item; missing
// results at the tail are logged and skipped.
func (s *Source) mapResults(results []any) []map[string]any {
	processed := make([]map[string]any, 0, len(results))
	for i, url := range s.cfg.urls {
		if i >= len(results) {
			s.Logger().Warn("no scrape result for URL",
				zap.String("url", url),
				zap.Int("index", i))
			continue
		}

		if items, ok := results[i].([]any); ok {
			for j, item := range items {
				processed = append(processed, processScrapeResult(item, url, j))
			}
			continue
		}
		processed = append(processed, processScrapeResult(results[i], url, 0))
	}
	return processed
}

// processScrapeResult flattens one scraped payload and injects the
// primary key last so it wins over payload fields of the same shape.
func processScrapeResult(raw any, url string, index int) map[string]any {
	record, ok := raw.(map[string]any)
	if !ok {
		return map[string]any{
			"url":          url,
			"result_index": index,
			"raw_response": brightdata.Stringify(raw),
		}
	}

	flat := flatten.Flatten(record)
	flatten.InjectPrimaryKeys(flat, map[string]any{
		"url":          url,
		"result_index": index,
	})
	return flat
}

func buildRow(fields []string, record map[string]any) core.Row {
	row := make(core.Row, len(fields))
	for _, field := range fields {
		value, ok := record[field]
		if !ok {
			row[field] = []any{nil}
			continue
		}
		row[field] = []any{value}
	}
	return row
}

func (s *Source) updateFieldsDoc(fields []string) {
	if len(fields) == 0 {
		return
	}
	if err := schemadoc.Update(s.settings.Schema.FieldsDocPath, TableName, fields); err != nil {
		s.Logger().Warn("failed to update fields documentation", zap.Error(err))
	}
}

// Close releases the API client.
func (s *Source) Close(ctx context.Context) error {
	if s.client != nil {
		_ = s.client.Close()
	}
	return s.BaseConnector.Close(ctx)
}
