// Package serp implements the Bright Data SERP connector. It runs a
// configured list of search queries through a SERP zone and upserts the
// parsed results into the search_results table keyed by query and
// result_index, with a 1-based position column alongside.
package serp

import (
	"context"

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
	ConnectorName = "bright_data_serp"
	// TableName is the destination table
	TableName = "search_results"
)

var primaryKey = []string{"query", "result_index"}

type sourceConfig struct {
	queries []string
	engine  string
	zone    string
	country string
	format  string
}

// Source syncs search engine results.
type Source struct {
	*base.BaseConnector
	settings *config.Settings
	client   *brightdata.Client
	cfg      *sourceConfig
}

// New creates an uninitialized SERP connector.
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
// search_query accepts a JSON array, a comma or newline list, or a
// single query.
func (s *Source) Initialize(_ context.Context, cfg core.Configuration) error {
	creds, err := auth.FromConfiguration(cfg)
	if err != nil {
		return err
	}

	raw, err := base.RequireConfig(cfg, "search_query")
	if err != nil {
		return err
	}

	parsed := &sourceConfig{
		queries: normalize.StringList(raw),
		engine:  base.OptionalConfig(cfg, "search_engine", "google"),
		zone:    base.OptionalConfig(cfg, "search_zone", brightdata.DefaultSERPZone),
		country: base.OptionalConfig(cfg, "country", ""),
		format:  base.OptionalConfig(cfg, "format", "json"),
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
		zap.Int("queries", len(parsed.queries)),
		zap.String("engine", parsed.engine),
		zap.String("zone", parsed.zone))
	return nil
}

// Schema declares the destination table.
func (s *Source) Schema(_ context.Context) ([]core.TableSchema, error) {
	return []core.TableSchema{{Table: TableName, PrimaryKey: primaryKey}}, nil
}

// Update runs one sync: search every configured query, flatten the
// results, upsert them, and checkpoint. Queries that normalized to
// nothing checkpoint the carried state without touching the network.
func (s *Source) Update(ctx context.Context, ops core.Operations, state core.State) (core.State, error) {
	return s.RunSync(ctx, func(ctx context.Context) (core.State, error) {
		next := state.Clone()

		if len(s.cfg.queries) == 0 {
			s.Logger().Info("no search queries configured, skipping fetch")
			if err := ops.Checkpoint(ctx, next); err != nil {
				return nil, err
			}
			metrics.Checkpoints.WithLabelValues(ConnectorName).Inc()
			return next, nil
		}

		results, err := s.client.Search(ctx, brightdata.SearchRequest{
			Queries: s.cfg.queries,
			Engine:  s.cfg.engine,
			Zone:    s.cfg.zone,
			Country: s.cfg.country,
			Format:  s.cfg.format,
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
		// every query came back empty keeps the previous values.
		if len(processed) > 0 {
			next["last_search_queries"] = s.cfg.queries
			next["last_search_count"] = len(processed)
		}

		if err := ops.Checkpoint(ctx, next); err != nil {
			return nil, err
		}
		metrics.Checkpoints.WithLabelValues(ConnectorName).Inc()

		return next, nil
	})
}

// mapResults pairs each query with its payload by position. A payload
// that is itself a list yields one record per search result; anything
// else is a single record at index 0.
func (s *Source) mapResults(results []any) []map[string]any {
	processed := make([]map[string]any, 0, len(results))
	for i, query := range s.cfg.queries {
		if i >= len(results) {
			s.Logger().Warn("no search result for query",
				zap.String("query", query),
				zap.Int("index", i))
			continue
		}

		if items, ok := results[i].([]any); ok {
			for j, item := range items {
				processed = append(processed, processSearchResult(item, query, j))
			}
			continue
		}
		processed = append(processed, processSearchResult(results[i], query, 0))
	}
	return processed
}

// processSearchResult flattens one search result, injects the primary
// key, and adds the 1-based position of the result within its query.
func processSearchResult(raw any, query string, index int) map[string]any {
	record, ok := raw.(map[string]any)
	if !ok {
		return map[string]any{
			"query":        query,
			"result_index": index,
			"position":     index + 1,
			"raw_response": brightdata.Stringify(raw),
		}
	}

	flat := flatten.Flatten(record)
	flatten.InjectPrimaryKeys(flat, map[string]any{
		"query":        query,
		"result_index": index,
	})
	flat["position"] = index + 1
	return flat
}

// buildRow spreads a record over the field union. Unlike the other
// connectors, SERP payloads have historically carried index-shaped
// strings like "[0]" through nested result blocks, so this connector
// re-coerces result_index and guards both key fields while building
// the row.
func buildRow(fields []string, record map[string]any) core.Row {
	row := make(core.Row, len(fields))
	for _, field := range fields {
		value, ok := record[field]
		switch field {
		case "result_index":
			row[field] = []any{flatten.CoerceIndex(value)}
		case "query":
			if !ok || value == nil {
				value = ""
			}
			row[field] = []any{brightdata.Stringify(value)}
		default:
			if !ok {
				row[field] = []any{nil}
				continue
			}
			row[field] = []any{value}
		}
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
