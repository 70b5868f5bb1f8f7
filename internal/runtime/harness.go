// Package runtime is the local sync harness. The managed host runtime
// owns scheduling and persistence in production; this harness stands in
// for it during development and tests, wiring a connector to a local
// destination, persisting state between runs, and driving the
// Initialize → Schema → Update → Close lifecycle.
package runtime

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/brightsync/pkg/config"
	"github.com/ajitpratap0/brightsync/pkg/connector/core"
	"github.com/ajitpratap0/brightsync/pkg/connector/registry"
	"github.com/ajitpratap0/brightsync/pkg/logger"
	"github.com/ajitpratap0/brightsync/pkg/observability"
)

// Summary reports what one harness run did.
type Summary struct {
	Connector   string        `json:"connector"`
	Tables      []string      `json:"tables"`
	Rows        int64         `json:"rows"`
	Checkpoints int64         `json:"checkpoints"`
	Duration    time.Duration `json:"duration"`
	StatePath   string        `json:"state_path"`
}

// Harness drives one sync invocation against a local destination.
type Harness struct {
	settings *config.Settings
	logger   *zap.Logger
}

// NewHarness creates a harness over the process settings.
func NewHarness(settings *config.Settings) *Harness {
	return &Harness{
		settings: settings,
		logger:   logger.Get().With(zap.String("component", "sync_harness")),
	}
}

// operations implements core.Operations over a local destination and a
// state store. Checkpoint flushes the destination before the state file
// is replaced, so a persisted state always refers to delivered rows.
type operations struct {
	destination core.Destination
	store       *StateStore

	rows        atomic.Int64
	checkpoints atomic.Int64
}

func (o *operations) Upsert(ctx context.Context, table string, row core.Row) error {
	if err := o.destination.Upsert(ctx, table, row); err != nil {
		return err
	}
	o.rows.Add(1)
	return nil
}

func (o *operations) Checkpoint(ctx context.Context, state core.State) error {
	ctx, span := observability.StartPhase(ctx, observability.PhaseCheckpoint)
	err := o.checkpoint(ctx, state)
	observability.EndPhase(span, err)
	return err
}

func (o *operations) checkpoint(ctx context.Context, state core.State) error {
	if err := o.destination.Flush(ctx); err != nil {
		return err
	}
	if err := o.store.Save(state); err != nil {
		return err
	}
	o.checkpoints.Add(1)
	return nil
}

// Run executes one sync described by job. The state file is only
// rewritten through Checkpoint, so a failed Update leaves the previous
// checkpoint intact.
func (h *Harness) Run(ctx context.Context, job *config.JobSpec) (*Summary, error) {
	job.ApplyDefaults(h.settings.Output)
	start := time.Now()

	ctx, syncSpan := observability.StartSync(ctx, job.Connector)
	summary, err := h.run(ctx, job)
	observability.EndPhase(syncSpan, err)

	if err != nil {
		h.logger.Error("sync run failed",
			zap.String("connector", job.Connector),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return nil, err
	}

	summary.Duration = time.Since(start)
	h.logger.Info("sync run completed",
		zap.String("connector", summary.Connector),
		zap.Int64("rows", summary.Rows),
		zap.Duration("duration", summary.Duration))
	return summary, nil
}

func (h *Harness) run(ctx context.Context, job *config.JobSpec) (*Summary, error) {
	connector, err := registry.Create(job.Connector)
	if err != nil {
		return nil, err
	}
	defer func() { _ = connector.Close(context.WithoutCancel(ctx)) }()

	if aware, ok := connector.(core.SettingsAware); ok {
		aware.ApplySettings(h.settings)
	}

	vctx, validateSpan := observability.StartPhase(ctx, observability.PhaseValidate)
	err = connector.Initialize(vctx, job.Configuration)
	var tables []core.TableSchema
	if err == nil {
		tables, err = connector.Schema(vctx)
	}
	observability.EndPhase(validateSpan, err)
	if err != nil {
		return nil, err
	}

	destination, err := registry.NewDestination(job.Destination.Type, config.OutputSettings{
		Directory:        job.Destination.Directory,
		Format:           job.Destination.Type,
		Compression:      job.Destination.Compression,
		CompressionLevel: job.Destination.CompressionLevel,
	})
	if err != nil {
		return nil, err
	}

	return h.update(ctx, connector, destination, tables, job)
}

func (h *Harness) update(ctx context.Context, connector core.Connector, destination core.Destination,
	tables []core.TableSchema, job *config.JobSpec) (*Summary, error) {

	defer func() { _ = destination.Close(context.WithoutCancel(ctx)) }()

	if err := destination.Initialize(ctx, tables); err != nil {
		return nil, err
	}

	store := NewStateStore(job.StatePath)
	state, err := store.Load()
	if err != nil {
		return nil, err
	}

	ops := &operations{destination: destination, store: store}

	uctx, updateSpan := observability.StartPhase(ctx, observability.PhaseUpdate)
	_, err = connector.Update(uctx, ops, state)
	observability.EndPhase(updateSpan, err)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(tables))
	for _, t := range tables {
		names = append(names, t.Table)
	}

	return &Summary{
		Connector:   connector.Name(),
		Tables:      names,
		Rows:        ops.rows.Load(),
		Checkpoints: ops.checkpoints.Load(),
		StatePath:   store.Path(),
	}, nil
}
