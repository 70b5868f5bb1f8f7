// Package dataset implements the Bright Data Marketplace Dataset
// connector. It materializes a filtered snapshot of a marketplace
// dataset, polls it to completion, and upserts the records into the
// dataset_results table keyed by dataset_id and record_index.
package dataset

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/ajitpratap0/brightsync/pkg/auth"
	"github.com/ajitpratap0/brightsync/pkg/brightdata"
	"github.com/ajitpratap0/brightsync/pkg/config"
	"github.com/ajitpratap0/brightsync/pkg/connector/base"
	"github.com/ajitpratap0/brightsync/pkg/connector/core"
	"github.com/ajitpratap0/brightsync/pkg/errors"
	"github.com/ajitpratap0/brightsync/pkg/flatten"
	"github.com/ajitpratap0/brightsync/pkg/metrics"
	"github.com/ajitpratap0/brightsync/pkg/schemadoc"
)

const (
	// ConnectorName is the registered connector name
	ConnectorName = "bright_data_dataset"
	// TableName is the destination table
	TableName = "dataset_results"
)

var primaryKey = []string{"dataset_id", "record_index"}

// sourceConfig is the typed configuration parsed from the host's flat
// string map during Initialize.
type sourceConfig struct {
	datasetID      string
	filterName     string
	filterOperator string
	filterValue    string
	recordsLimit   int
}

// Source syncs filtered marketplace dataset snapshots.
type Source struct {
	*base.BaseConnector
	settings *config.Settings
	client   *brightdata.Client
	cfg      *sourceConfig
}

// New creates an uninitialized dataset connector.
func New() *Source {
	return &Source{
		BaseConnector: base.NewBaseConnector(ConnectorName, core.ConnectorTypeSource, "1.0.0"),
	}
}

// ApplySettings injects process settings ahead of Initialize.
func (s *Source) ApplySettings(settings *config.Settings) {
	s.settings = settings
}

// Initialize parses and validates the configuration in a single pass
// and builds the API client. All configuration errors surface here,
// before any network call.
func (s *Source) Initialize(_ context.Context, cfg core.Configuration) error {
	creds, err := auth.FromConfiguration(cfg)
	if err != nil {
		return err
	}

	parsed, err := parseConfig(cfg)
	if err != nil {
		return err
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
		zap.String("dataset_id", parsed.datasetID),
		zap.String("filter_name", parsed.filterName),
		zap.String("filter_operator", parsed.filterOperator))
	return nil
}

func parseConfig(cfg core.Configuration) (*sourceConfig, error) {
	parsed := &sourceConfig{}

	var err error
	if parsed.datasetID, err = base.RequireConfig(cfg, "dataset_id"); err != nil {
		return nil, err
	}
	if parsed.filterName, err = base.RequireConfig(cfg, "filter_name"); err != nil {
		return nil, err
	}
	if parsed.filterOperator, err = base.RequireConfig(cfg, "filter_operator"); err != nil {
		return nil, err
	}

	// Null-check operators carry no comparison value.
	if !brightdata.IsNullOperator(parsed.filterOperator) {
		if parsed.filterValue, err = base.RequireConfig(cfg, "filter_value"); err != nil {
			return nil, err
		}
	} else {
		parsed.filterValue = base.OptionalConfig(cfg, "filter_value", "")
	}

	if raw := base.OptionalConfig(cfg, "records_limit", ""); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return nil, errors.Newf(errors.ErrorTypeConfig,
				"records_limit must be a positive integer, got %q", raw)
		}
		parsed.recordsLimit = limit
	}

	return parsed, nil
}

// Schema declares the destination table.
func (s *Source) Schema(_ context.Context) ([]core.TableSchema, error) {
	return []core.TableSchema{{Table: TableName, PrimaryKey: primaryKey}}, nil
}

// Update runs one sync: create a filtered snapshot, poll it, flatten
// the records, upsert everything, and checkpoint. Snapshot failures
// arrive as synthetic records and flow through the same upsert path.
func (s *Source) Update(ctx context.Context, ops core.Operations, state core.State) (core.State, error) {
	return s.RunSync(ctx, func(ctx context.Context) (core.State, error) {
		spec := brightdata.FilterSpec{
			DatasetID:    s.cfg.datasetID,
			Name:         s.cfg.filterName,
			Operator:     s.cfg.filterOperator,
			Value:        s.cfg.filterValue,
			RecordsLimit: s.cfg.recordsLimit,
		}

		snapshotID, err := s.client.CreateFilteredSnapshot(ctx, spec)
		if err != nil {
			return nil, err
		}

		records := s.client.PollSnapshot(ctx, snapshotID)
		s.Logger().Info("snapshot downloaded",
			zap.String("snapshot_id", snapshotID),
			zap.Int("records", len(records)))

		processed := make([]map[string]any, 0, len(records))
		for i, raw := range records {
			processed = append(processed, processDatasetRecord(raw, s.cfg.datasetID, i))
		}

		fields := flatten.CollectFields(processed)
		s.updateFieldsDoc(fields)

		for _, record := range processed {
			if err := ops.Upsert(ctx, TableName, buildRow(fields, record)); err != nil {
				return nil, err
			}
		}
		s.TrackRows(TableName, len(processed))

		next := state.Clone()
		next["last_dataset_id"] = s.cfg.datasetID
		next["last_record_count"] = len(processed)
		next["last_filter"] = spec.FilterObject()

		if err := ops.Checkpoint(ctx, next); err != nil {
			return nil, err
		}
		metrics.Checkpoints.WithLabelValues(ConnectorName).Inc()

		return next, nil
	})
}

// processDatasetRecord flattens one snapshot record and injects the
// primary key, which always wins over payload fields of the same shape.
func processDatasetRecord(raw any, datasetID string, index int) map[string]any {
	record, ok := raw.(map[string]any)
	if !ok {
		return map[string]any{
			"dataset_id":   datasetID,
			"record_index": index,
			"raw_response": brightdata.Stringify(raw),
		}
	}

	flat := flatten.Flatten(record)
	flatten.InjectPrimaryKeys(flat, map[string]any{
		"dataset_id":   datasetID,
		"record_index": index,
	})
	return flat
}

// buildRow spreads a processed record over the field union; fields the
// record lacks carry nil.
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

// updateFieldsDoc refreshes the advisory fields.yaml entry. Failures
// are logged and never fail the sync.
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
