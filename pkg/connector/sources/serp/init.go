package serp

import (
	"github.com/ajitpratap0/brightsync/pkg/connector/core"
	"github.com/ajitpratap0/brightsync/pkg/connector/registry"
)

func init() {
	registry.MustRegisterSource(core.ConnectorMetadata{
		Name:        ConnectorName,
		Type:        core.ConnectorTypeSource,
		Version:     "1.0.0",
		Description: "Syncs search engine results through the Bright Data SERP API",
		Tables:      []core.TableSchema{{Table: TableName, PrimaryKey: primaryKey}},
	}, func() core.Connector { return New() })
}
