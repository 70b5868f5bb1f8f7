// Package csv is the CSV local destination. It buffers upserted rows
// per table, keyed by primary key so re-upserts replace earlier
// versions, and commits each table as <table>.csv[.<compression
// extension>] with a header spanning every field observed in the run.
package csv

import (
	"context"
	gocsv "encoding/csv"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/brightsync/pkg/compression"
	"github.com/ajitpratap0/brightsync/pkg/config"
	"github.com/ajitpratap0/brightsync/pkg/connector/core"
	"github.com/ajitpratap0/brightsync/pkg/errors"
	jsonpool "github.com/ajitpratap0/brightsync/pkg/json"
	"github.com/ajitpratap0/brightsync/pkg/logger"
	stringpool "github.com/ajitpratap0/brightsync/pkg/strings"
)

// DestinationName is the registered destination name
const DestinationName = "csv"

type tableBuffer struct {
	schema core.TableSchema
	order  []string
	rows   map[string]map[string]any
	fields map[string]struct{}
}

// Destination writes upserted rows to CSV files.
type Destination struct {
	settings  config.OutputSettings
	algorithm compression.Algorithm
	logger    *zap.Logger

	mu     sync.Mutex
	tables map[string]*tableBuffer
	closed bool
}

// New creates a CSV destination from the process output settings.
func New(settings config.OutputSettings) (core.Destination, error) {
	algorithm, err := compression.ParseAlgorithm(settings.Compression)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid destination compression")
	}
	return &Destination{
		settings:  settings,
		algorithm: algorithm,
		logger:    logger.Get().With(zap.String("destination", DestinationName)),
		tables:    make(map[string]*tableBuffer),
	}, nil
}

// Name returns the destination name.
func (d *Destination) Name() string {
	return DestinationName
}

// Initialize declares the tables rows will arrive for.
func (d *Destination) Initialize(_ context.Context, tables []core.TableSchema) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.MkdirAll(d.settings.Directory, 0o755); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create output directory")
	}
	for _, schema := range tables {
		if _, ok := d.tables[schema.Table]; !ok {
			d.tables[schema.Table] = &tableBuffer{
				schema: schema,
				rows:   make(map[string]map[string]any),
				fields: make(map[string]struct{}),
			}
		}
	}
	return nil
}

// Upsert buffers one row, replacing any earlier row with the same
// primary key and widening the header union.
func (d *Destination) Upsert(_ context.Context, table string, row core.Row) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return errors.New(errors.ErrorTypeFile, "destination is closed")
	}
	buf, ok := d.tables[table]
	if !ok {
		return errors.Newf(errors.ErrorTypeValidation, "table %s was not declared at initialization", table)
	}

	record := make(map[string]any, len(row))
	for field, values := range row {
		buf.fields[field] = struct{}{}
		if len(values) == 0 {
			record[field] = nil
			continue
		}
		record[field] = values[0]
	}

	key := primaryKeyOf(record, buf.schema.PrimaryKey)
	if _, exists := buf.rows[key]; !exists {
		buf.order = append(buf.order, key)
	}
	buf.rows[key] = record
	return nil
}

// Flush rewrites every table file from its buffer.
func (d *Destination) Flush(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for table, buf := range d.tables {
		if len(buf.order) == 0 {
			continue
		}
		if err := d.writeTable(table, buf); err != nil {
			return err
		}
		d.logger.Info("table committed",
			zap.String("table", table),
			zap.Int("rows", len(buf.order)),
			zap.Int("columns", len(buf.fields)))
	}
	return nil
}

func (d *Destination) writeTable(table string, buf *tableBuffer) error {
	path := filepath.Join(d.settings.Directory, table+".csv"+d.algorithm.Extension())

	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, errors.ErrorTypeFile, "failed to create %s", path)
	}

	writer, err := compression.NewWriter(file, d.algorithm, d.settings.CompressionLevel)
	if err != nil {
		_ = file.Close()
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to open compression writer")
	}

	header := make([]string, 0, len(buf.fields))
	for field := range buf.fields {
		header = append(header, field)
	}
	sort.Strings(header)

	cw := gocsv.NewWriter(writer)
	if err := cw.Write(header); err != nil {
		_ = writer.Close()
		_ = file.Close()
		return errors.Wrapf(err, errors.ErrorTypeFile, "failed to write header for %s", table)
	}

	line := make([]string, len(header))
	for _, key := range buf.order {
		record := buf.rows[key]
		for i, field := range header {
			line[i] = cellValue(record[field])
		}
		if err := cw.Write(line); err != nil {
			_ = writer.Close()
			_ = file.Close()
			return errors.Wrapf(err, errors.ErrorTypeFile, "failed to write row for %s", table)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		_ = writer.Close()
		_ = file.Close()
		return errors.Wrapf(err, errors.ErrorTypeFile, "failed to flush %s", path)
	}
	if err := writer.Close(); err != nil {
		_ = file.Close()
		return errors.Wrapf(err, errors.ErrorTypeFile, "failed to finish %s", path)
	}
	return file.Close()
}

// Close marks the destination unusable.
func (d *Destination) Close(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// cellValue renders one CSV cell. Nested values that survived
// flattening (lists, raw payload fragments) re-encode as JSON so the
// cell stays parseable.
func cellValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any, []any:
		encoded, err := jsonpool.Marshal(v)
		if err != nil {
			return stringpool.Sprintf("%v", v)
		}
		return string(encoded)
	default:
		return stringpool.ValueToString(v)
	}
}

func primaryKeyOf(record map[string]any, pk []string) string {
	parts := make([]string, 0, len(pk))
	for _, field := range pk {
		parts = append(parts, stringpool.ValueToString(record[field]))
	}
	return stringpool.JoinPooled(parts, "\x1f")
}
