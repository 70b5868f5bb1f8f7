package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/brightsync/pkg/config"
	"github.com/ajitpratap0/brightsync/pkg/connector/core"
	"github.com/ajitpratap0/brightsync/pkg/errors"
)

type stubConnector struct {
	name    string
	initCfg core.Configuration
	initErr error
}

func (s *stubConnector) Name() string    { return s.name }
func (s *stubConnector) Version() string { return "0.0.1" }

func (s *stubConnector) Initialize(_ context.Context, cfg core.Configuration) error {
	s.initCfg = cfg
	return s.initErr
}

func (s *stubConnector) Schema(context.Context) ([]core.TableSchema, error) {
	return []core.TableSchema{{Table: "stub_results", PrimaryKey: []string{"id"}}}, nil
}

func (s *stubConnector) Update(_ context.Context, _ core.Operations, state core.State) (core.State, error) {
	return state, nil
}

func (s *stubConnector) Close(context.Context) error { return nil }

type stubDestination struct{ name string }

func (d *stubDestination) Name() string                                       { return d.name }
func (d *stubDestination) Initialize(context.Context, []core.TableSchema) error { return nil }
func (d *stubDestination) Upsert(context.Context, string, core.Row) error     { return nil }
func (d *stubDestination) Flush(context.Context) error                        { return nil }
func (d *stubDestination) Close(context.Context) error                        { return nil }

func stubMetadata(name string) core.ConnectorMetadata {
	return core.ConnectorMetadata{
		Name:    name,
		Type:    core.ConnectorTypeSource,
		Version: "0.0.1",
	}
}

func TestRegisterAndCreateSource(t *testing.T) {
	r := NewRegistry()

	var built *stubConnector
	err := r.RegisterSource(stubMetadata("stub"), func() core.Connector {
		built = &stubConnector{name: "stub"}
		return built
	})
	require.NoError(t, err)
	assert.True(t, r.HasSource("stub"))

	cfg := core.Configuration{"api_token": "tok"}
	connector, err := r.NewSource(context.Background(), "stub", cfg)
	require.NoError(t, err)
	assert.Same(t, built, connector)
	assert.Equal(t, cfg, built.initCfg)
}

func TestRegisterSourceRejectsDuplicates(t *testing.T) {
	r := NewRegistry()

	factory := func() core.Connector { return &stubConnector{name: "dup"} }
	require.NoError(t, r.RegisterSource(stubMetadata("dup"), factory))

	err := r.RegisterSource(stubMetadata("dup"), factory)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.Contains(t, err.Error(), "already registered")
}

func TestNewSourceUnknownName(t *testing.T) {
	r := NewRegistry()

	_, err := r.NewSource(context.Background(), "nope", core.Configuration{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.Contains(t, err.Error(), "source connector nope not found")
}

func TestNewSourcePreservesInitializeErrorType(t *testing.T) {
	r := NewRegistry()

	initErr := errors.New(errors.ErrorTypeValidation, "records_limit must be a valid positive integer: nope")
	require.NoError(t, r.RegisterSource(stubMetadata("broken"), func() core.Connector {
		return &stubConnector{name: "broken", initErr: initErr}
	}))

	_, err := r.NewSource(context.Background(), "broken", core.Configuration{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	assert.Contains(t, err.Error(), "records_limit")
}

func TestSourcesSortedByName(t *testing.T) {
	r := NewRegistry()

	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, r.RegisterSource(stubMetadata(name), func() core.Connector {
			return &stubConnector{name: name}
		}))
	}

	listed := r.Sources()
	require.Len(t, listed, 3)
	assert.Equal(t, "alpha", listed[0].Name)
	assert.Equal(t, "mid", listed[1].Name)
	assert.Equal(t, "zeta", listed[2].Name)
}

func TestSourceMetadata(t *testing.T) {
	r := NewRegistry()

	meta := core.ConnectorMetadata{
		Name:        "bright_data_dataset",
		Type:        core.ConnectorTypeSource,
		Version:     "1.0.0",
		Description: "Filters a Bright Data dataset and syncs the snapshot",
		Tables:      []core.TableSchema{{Table: "dataset_results", PrimaryKey: []string{"dataset_id", "record_index"}}},
	}
	require.NoError(t, r.RegisterSource(meta, func() core.Connector {
		return &stubConnector{name: meta.Name}
	}))

	got, err := r.SourceMetadata("bright_data_dataset")
	require.NoError(t, err)
	assert.Equal(t, meta, got)

	_, err = r.SourceMetadata("missing")
	require.Error(t, err)
}

func TestDestinations(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.RegisterDestination("jsonl", func(config.OutputSettings) (core.Destination, error) {
		return &stubDestination{name: "jsonl"}, nil
	}))
	require.NoError(t, r.RegisterDestination("csv", func(config.OutputSettings) (core.Destination, error) {
		return &stubDestination{name: "csv"}, nil
	}))

	assert.Equal(t, []string{"csv", "jsonl"}, r.Destinations())
	assert.True(t, r.HasDestination("csv"))
	assert.False(t, r.HasDestination("parquet"))

	dest, err := r.NewDestination("jsonl", config.OutputSettings{})
	require.NoError(t, err)
	assert.Equal(t, "jsonl", dest.Name())

	_, err = r.NewDestination("parquet", config.OutputSettings{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestClear(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterSource(stubMetadata("tmp"), func() core.Connector {
		return &stubConnector{name: "tmp"}
	}))
	require.True(t, r.HasSource("tmp"))

	r.Clear()
	assert.False(t, r.HasSource("tmp"))
	assert.Empty(t, r.Sources())
}
