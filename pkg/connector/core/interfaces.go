// Package core defines the connector contract shared by the source
// connectors and the sync runtime: the configuration, state, and row
// shapes, the host-provided operations, and the Connector interface
// itself.
package core

import (
	"context"
	"time"

	"github.com/ajitpratap0/brightsync/pkg/config"
)

// ConnectorType distinguishes sources from local destinations.
type ConnectorType string

const (
	ConnectorTypeSource      ConnectorType = "source"
	ConnectorTypeDestination ConnectorType = "destination"
)

// Configuration is the flat string map the host supplies. All values
// arrive as strings; a connector parses them into its typed config
// during Initialize and never reads the raw map afterwards.
type Configuration map[string]string

// State is the opaque JSON-serializable bookkeeping a connector carries
// between invocations. It is write-mostly: connectors record what the
// last run did and never branch on it.
type State map[string]any

// Clone returns a shallow copy so an invocation can build its new state
// without mutating the host's copy.
func (s State) Clone() State {
	next := make(State, len(s))
	for k, v := range s {
		next[k] = v
	}
	return next
}

// Row is the upsert wire shape: each column maps to a one-element slice
// holding the value. A column missing from a given result carries [nil]
// so the field union stays rectangular across rows.
type Row map[string][]any

// TableSchema declares a destination table and its primary key. Column
// types are deliberately absent; the host infers them from delivered
// rows.
type TableSchema struct {
	Table      string   `json:"table" yaml:"table"`
	PrimaryKey []string `json:"primary_key" yaml:"primary_key"`
}

// Operations are the host-provided persistence primitives. Upsert
// delivers one row to a table; Checkpoint commits the connector state.
// A connector calls Checkpoint exactly once per invocation, after every
// upsert for the run has succeeded.
type Operations interface {
	Upsert(ctx context.Context, table string, row Row) error
	Checkpoint(ctx context.Context, state State) error
}

// Connector is the contract every source connector implements.
//
// Initialize parses and validates the flat configuration in a single
// pass; configuration errors surface there, before any network call.
// Update performs one whole sync invocation: fetch, flatten, upsert all
// rows, checkpoint, and return the new state. It either commits
// everything or returns an error without checkpointing.
type Connector interface {
	Name() string
	Version() string
	Initialize(ctx context.Context, cfg Configuration) error
	Schema(ctx context.Context) ([]TableSchema, error)
	Update(ctx context.Context, ops Operations, state State) (State, error)
	Close(ctx context.Context) error
}

// Destination is a local sink the sync runtime delivers rows to during
// development runs. The managed host owns persistence in production;
// these exist so a sync can be exercised end to end against files.
type Destination interface {
	Name() string
	Initialize(ctx context.Context, tables []TableSchema) error
	Upsert(ctx context.Context, table string, row Row) error
	Flush(ctx context.Context) error
	Close(ctx context.Context) error
}

// ConnectorFactory constructs an uninitialized connector instance. The
// registry pairs it with Initialize to produce ready connectors.
type ConnectorFactory func() Connector

// SettingsAware is implemented by connectors that accept process
// settings ahead of Initialize. Without injection a connector loads
// settings from the environment on its own.
type SettingsAware interface {
	ApplySettings(settings *config.Settings)
}

// DestinationFactory constructs a local destination from the process
// output settings.
type DestinationFactory func(settings config.OutputSettings) (Destination, error)

// HealthStatus reports a connector's operational condition.
type HealthStatus struct {
	Status    string         `json:"status"` // "healthy", "degraded", "unhealthy"
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}

const (
	HealthHealthy   = "healthy"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"
)

// ConnectorMetadata describes a registered connector for listings.
type ConnectorMetadata struct {
	Name        string        `json:"name"`
	Type        ConnectorType `json:"type"`
	Version     string        `json:"version"`
	Description string        `json:"description"`
	Tables      []TableSchema `json:"tables,omitempty"`
}
