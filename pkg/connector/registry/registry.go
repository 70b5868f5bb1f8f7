// Package registry tracks the available connectors and destinations.
// Connector packages register themselves from init, so importing a
// connector package (usually through the sources aggregator) is all it
// takes to make it constructible by name.
package registry

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/brightsync/pkg/config"
	"github.com/ajitpratap0/brightsync/pkg/connector/core"
	"github.com/ajitpratap0/brightsync/pkg/errors"
	"github.com/ajitpratap0/brightsync/pkg/logger"
)

// Registry manages connector registration and instantiation.
type Registry struct {
	sources      map[string]sourceEntry
	destinations map[string]core.DestinationFactory
	mu           sync.RWMutex
	logger       *zap.Logger
}

type sourceEntry struct {
	metadata core.ConnectorMetadata
	factory  core.ConnectorFactory
}

var globalRegistry = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sources:      make(map[string]sourceEntry),
		destinations: make(map[string]core.DestinationFactory),
		logger:       logger.Get().With(zap.String("component", "connector_registry")),
	}
}

// RegisterSource registers a source connector factory under
// metadata.Name.
func (r *Registry) RegisterSource(metadata core.ConnectorMetadata, factory core.ConnectorFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sources[metadata.Name]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "source connector %s already registered", metadata.Name)
	}

	r.sources[metadata.Name] = sourceEntry{metadata: metadata, factory: factory}
	r.logger.Debug("source connector registered", zap.String("name", metadata.Name))
	return nil
}

// RegisterDestination registers a destination factory.
func (r *Registry) RegisterDestination(name string, factory core.DestinationFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.destinations[name]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "destination %s already registered", name)
	}

	r.destinations[name] = factory
	r.logger.Debug("destination registered", zap.String("name", name))
	return nil
}

// Create constructs the named connector without initializing it. The
// caller may inject settings (core.SettingsAware) before Initialize.
func (r *Registry) Create(name string) (core.Connector, error) {
	r.mu.RLock()
	entry, exists := r.sources[name]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Newf(errors.ErrorTypeConfig, "source connector %s not found", name)
	}
	return entry.factory(), nil
}

// NewSource constructs the named connector and runs Initialize with the
// given configuration. Initialize errors pass through untouched so their
// config and validation types survive for the caller.
func (r *Registry) NewSource(ctx context.Context, name string, cfg core.Configuration) (core.Connector, error) {
	connector, err := r.Create(name)
	if err != nil {
		return nil, err
	}
	if err := connector.Initialize(ctx, cfg); err != nil {
		return nil, err
	}
	return connector, nil
}

// NewDestination constructs the named destination from the process
// output settings.
func (r *Registry) NewDestination(name string, settings config.OutputSettings) (core.Destination, error) {
	r.mu.RLock()
	factory, exists := r.destinations[name]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Newf(errors.ErrorTypeConfig, "destination %s not found", name)
	}
	return factory(settings)
}

// SourceMetadata returns the registration metadata for one connector.
func (r *Registry) SourceMetadata(name string) (core.ConnectorMetadata, error) {
	r.mu.RLock()
	entry, exists := r.sources[name]
	r.mu.RUnlock()

	if !exists {
		return core.ConnectorMetadata{}, errors.Newf(errors.ErrorTypeConfig, "source connector %s not found", name)
	}
	return entry.metadata, nil
}

// Sources lists registered source connectors, sorted by name so CLI
// output stays stable.
func (r *Registry) Sources() []core.ConnectorMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]core.ConnectorMetadata, 0, len(r.sources))
	for _, entry := range r.sources {
		out = append(out, entry.metadata)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Destinations lists registered destination names, sorted.
func (r *Registry) Destinations() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.destinations))
	for name := range r.destinations {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// HasSource reports whether a source connector is registered.
func (r *Registry) HasSource(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.sources[name]
	return exists
}

// HasDestination reports whether a destination is registered.
func (r *Registry) HasDestination(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.destinations[name]
	return exists
}

// Clear removes all registrations. Only tests use it.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sources = make(map[string]sourceEntry)
	r.destinations = make(map[string]core.DestinationFactory)
}

// Global registry functions

// RegisterSource registers a source connector in the global registry.
func RegisterSource(metadata core.ConnectorMetadata, factory core.ConnectorFactory) error {
	return globalRegistry.RegisterSource(metadata, factory)
}

// MustRegisterSource registers a source connector and panics on
// conflict. Connector packages call it from init, where a duplicate
// name is a programming error.
func MustRegisterSource(metadata core.ConnectorMetadata, factory core.ConnectorFactory) {
	if err := globalRegistry.RegisterSource(metadata, factory); err != nil {
		panic(err)
	}
}

// RegisterDestination registers a destination in the global registry.
func RegisterDestination(name string, factory core.DestinationFactory) error {
	return globalRegistry.RegisterDestination(name, factory)
}

// MustRegisterDestination registers a destination and panics on
// conflict.
func MustRegisterDestination(name string, factory core.DestinationFactory) {
	if err := globalRegistry.RegisterDestination(name, factory); err != nil {
		panic(err)
	}
}

// Create constructs an uninitialized connector from the global registry.
func Create(name string) (core.Connector, error) {
	return globalRegistry.Create(name)
}

// NewSource constructs and initializes a connector from the global
// registry.
func NewSource(ctx context.Context, name string, cfg core.Configuration) (core.Connector, error) {
	return globalRegistry.NewSource(ctx, name, cfg)
}

// NewDestination constructs a destination from the global registry.
func NewDestination(name string, settings config.OutputSettings) (core.Destination, error) {
	return globalRegistry.NewDestination(name, settings)
}

// SourceMetadata returns metadata from the global registry.
func SourceMetadata(name string) (core.ConnectorMetadata, error) {
	return globalRegistry.SourceMetadata(name)
}

// Sources lists source connectors registered globally.
func Sources() []core.ConnectorMetadata {
	return globalRegistry.Sources()
}

// Destinations lists destinations registered globally.
func Destinations() []string {
	return globalRegistry.Destinations()
}

// HasSource checks the global registry for a source connector.
func HasSource(name string) bool {
	return globalRegistry.HasSource(name)
}

// HasDestination checks the global registry for a destination.
func HasDestination(name string) bool {
	return globalRegistry.HasDestination(name)
}

// GetRegistry returns the global registry instance.
func GetRegistry() *Registry {
	return globalRegistry
}
