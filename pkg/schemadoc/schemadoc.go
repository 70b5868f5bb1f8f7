// Package schemadoc maintains fields.yaml, a generated inventory of the
// columns each connector table has produced. The file documents observed
// schemas for operators; it is advisory and never read back by the sync
// path, so callers log failures and continue.
package schemadoc

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/brightsync/pkg/errors"
)

// nowFunc is swapped in tests for deterministic timestamps.
var nowFunc = time.Now

type document struct {
	Tables map[string]tableDoc `yaml:"tables"`
}

type tableDoc struct {
	UpdatedAt string   `yaml:"updated_at"`
	Fields    []string `yaml:"fields"`
}

// Update merges the observed field names into the table's entry at path and
// rewrites the document atomically. Fields accumulate across runs: a column
// that disappears from the API response stays documented.
func Update(path, table string, fields []string) error {
	doc, err := load(path)
	if err != nil {
		return err
	}

	existing := doc.Tables[table]

	seen := make(map[string]struct{}, len(existing.Fields)+len(fields))
	for _, f := range existing.Fields {
		seen[f] = struct{}{}
	}
	for _, f := range fields {
		seen[f] = struct{}{}
	}

	merged := make([]string, 0, len(seen))
	for f := range seen {
		merged = append(merged, f)
	}
	sort.Strings(merged)

	doc.Tables[table] = tableDoc{
		UpdatedAt: nowFunc().UTC().Format(time.RFC3339),
		Fields:    merged,
	}

	return write(path, doc)
}

func load(path string) (*document, error) {
	doc := &document{Tables: map[string]tableDoc{}}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return doc, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read schema document")
	}

	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to parse schema document")
	}
	if doc.Tables == nil {
		doc.Tables = map[string]tableDoc{}
	}

	return doc, nil
}

// write replaces the document through a temp file and rename so a crashed
// sync never leaves a half-written fields.yaml behind.
func write(path string, doc *document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to encode schema document")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to create schema document directory")
	}

	tmp, err := os.CreateTemp(dir, ".fields-*.yaml")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to create schema document temp file")
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return errors.Wrap(err, errors.ErrorTypeData, "failed to write schema document")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return errors.Wrap(err, errors.ErrorTypeData, "failed to close schema document temp file")
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return errors.Wrap(err, errors.ErrorTypeData, "failed to replace schema document")
	}

	return nil
}
