// Package unlocker implements the Bright Data Web Unlocker connector.
// It fetches a configured list of URLs through an unlocker zone and
// upserts the payloads into the unlocker_results table keyed by
// requested_url and result_index.
package unlocker

import (
	"context"
	"net/http"
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
	ConnectorName = "bright_data_unlocker"
	// TableName is the destination table
	TableName = "unlocker_results"
)

var primaryKey = []string{"requested_url", "result_index"}

type sourceConfig struct {
	urls        []string
	zone        string
	country     string
	dataFormat  string
	formatParam string
	method      string
}

// Source syncs Web Unlocker fetches.
type Source struct {
	*base.BaseConnector
	settings *config.Settings
	client   *brightdata.Client
	cfg      *sourceConfig
}

// New creates an uninitialized unlocker connector.
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
// unlocker_url accepts a JSON array, a comma or newline list, or a
// single URL; zone is required because unlocker zones are per-account.
func (s *Source) Initialize(_ context.Context, cfg core.Configuration) error {
	creds, err := auth.FromConfiguration(cfg)
	if err != nil {
		return err
	}

	raw, err := base.RequireConfig(cfg, "unlocker_url")
	if err != nil {
		return err
	}
	zone, err := base.RequireConfig(cfg, "zone")
	if err != nil {
		return err
	}

	parsed := &sourceConfig{
		urls:        normalize.StringList(raw),
		zone:        zone,
		country:     base.OptionalConfig(cfg, "country", ""),
		dataFormat:  base.OptionalConfig(cfg, "data_format", ""),
		formatParam: base.OptionalConfig(cfg, "format_param", ""),
		method:      strings.ToUpper(base.OptionalConfig(cfg, "method", http.MethodGet)),
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
		zap.String("zone", parsed.zone),
		zap.String("method", parsed.method))
	return nil
}

// Schema declares the destination table.
func (s *Source) Schema(_ context.Context) ([]core.TableSchema, error) {
	return []core.TableSchema{{Table: TableName, PrimaryKey: primaryKey}}, nil
}

// Update runs one sync: unlock every configured URL, flatten the
// results, upsert them, and checkpoint. An input list that normalized
// to nothing checkpoints the carried state without touching the
// network.
func (s *Source) Update(ctx context.Context, ops core.Operations, state core.State) (core.State, error) {
	return s.RunSync(ctx, func(ctx context.Context) (core.State, error) {
		next := state.Clone()

		if len(s.cfg.urls) == 0 {
			s.Logger().Info("no unlocker URLs configured, skipping fetch")
			if err := ops.Checkpoint(ctx, next); err != nil {
				return nil, err
			}
			metrics.Checkpoints.WithLabelValues(ConnectorName).Inc()
			return next, nil
		}

		results, err := s.client.Unlock(ctx, brightdata.UnlockRequest{
			URLs:       s.cfg.urls,
			Zone:       s.cfg.zone,
			Country:    s.cfg.country,
			DataFormat: s.cfg.dataFormat,
			Format:     s.cfg.formatParam,
			Method:     s.cfg.method,
		})
		if err != nil {
			return nil, err
		}

		processed := make([]map[string]any, 0, len(results))
		for i, raw := range results {
			processed = append(processed, processUnlockerResult(raw, i, s.cfg.urls))
		}

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
			next["last_unlocker_urls"] = s.cfg.urls
			next["last_unlocker_count"] = len(processed)
		}

		if err := ops.Checkpoint(ctx, next); err != nil {
			return nil, err
		}
		metrics.Checkpoints.WithLabelValues(ConnectorName).Inc()

		return next, nil
	})
}

// processUnlockerResult flattens one unlocked payload. The requested_url
// key prefers the payload's own requested_url field; results the zone
// returned without one fall back to the input URL at the same position.
func processUnlockerResult(raw any, index int, urls []string) map[string]any {
	requested := urls[index%len(urls)]

	record, ok := raw.(map[string]any)
	if !ok {
		return map[string]any{
			"requested_url": requested,
			"result_index":  index,
			"raw_response":  brightdata.Stringify(raw),
		}
	}

	if own, ok := record["requested_url"].(string); ok && strings.TrimSpace(own) != "" {
		requested = strings.TrimSpace(own)
	}

	flat := flatten.Flatten(record)
	flatten.InjectPrimaryKeys(flat, map[string]any{
		"requested_url": requested,
		"result_index":  index,
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
