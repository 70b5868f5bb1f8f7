// Package connector aggregates the built-in brightsync connectors and
// local destinations. Importing it registers everything in the global
// registry.
package connector

import (
	// Import all source connectors to trigger init() registration
	_ "github.com/ajitpratap0/brightsync/pkg/connector/sources/dataset"
	_ "github.com/ajitpratap0/brightsync/pkg/connector/sources/scrape"
	_ "github.com/ajitpratap0/brightsync/pkg/connector/sources/serp"
	_ "github.com/ajitpratap0/brightsync/pkg/connector/sources/unlocker"

	// Import all local destinations
	_ "github.com/ajitpratap0/brightsync/pkg/connector/destinations/csv"
	_ "github.com/ajitpratap0/brightsync/pkg/connector/destinations/jsonl"
)
