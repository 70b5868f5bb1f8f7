package unlocker

import (
	"github.com/ajitpratap0/brightsync/pkg/connector/core"
	"github.com/ajitpratap0/brightsync/pkg/connector/registry"
)

func init() {
	registry.MustRegisterSource(core.ConnectorMetadata{
		Name:        ConnectorName,
		Type:        core.ConnectorTypeSource,
		Version:     "1.0.0",
		Description: "Fetches URLs through a Bright Data Web Unlocker zone",
		Tables:      []core.TableSchema{{Table: TableName, PrimaryKey: primaryKey}},
	}, func() core.Connector { return New() })
}
