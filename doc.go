// Package brightsync provides Bright Data ingestion connectors: small,
// host-driven sync programs that pull data out of the Bright Data APIs
// and upsert it into destination tables.
//
// Four source connectors cover the vendor's main product surfaces:
//
//   - bright_data_dataset: filters a marketplace dataset into a snapshot,
//     polls it to completion, and syncs the records
//   - bright_data_scrape: scrapes a list of URLs, asynchronously through
//     a triggered snapshot or synchronously per URL
//   - bright_data_serp: runs search queries through a SERP zone and syncs
//     the parsed results
//   - bright_data_unlocker: fetches URLs through a Web Unlocker zone
//
// # Connector contract
//
// Connectors are driven by a host runtime through a narrow contract
// (pkg/connector/core): Initialize binds a flat string configuration map,
// Schema declares destination tables and primary keys, and Update runs one
// sync, delivering rows through the host's Operations and committing
// progress with Checkpoint. Rows are maps of column name to one-element
// value slices; fields a record lacks carry nil.
//
// Vendor outcomes that describe data rather than transport problems are
// data: a failed snapshot becomes a synthetic record with status "failed"
// and an error_type column, upserted like any other row, so broken
// collections stay queryable.
//
// # Quick start
//
// Run a sync against a local destination:
//
//	import (
//	    "context"
//
//	    harness "github.com/ajitpratap0/brightsync/internal/runtime"
//	    "github.com/ajitpratap0/brightsync/pkg/config"
//	    _ "github.com/ajitpratap0/brightsync/pkg/connector"
//	)
//
//	settings, _ := config.LoadSettings("")
//	job := &config.JobSpec{
//	    Connector: "bright_data_serp",
//	    Configuration: map[string]string{
//	        "api_token":    os.Getenv("BRIGHT_DATA_API_TOKEN"),
//	        "search_query": "data integration",
//	    },
//	}
//	summary, err := harness.NewHarness(settings).Run(context.Background(), job)
//
// Or use the CLI:
//
//	brightsync sync --connector bright_data_serp --config serp.json --output ./data
//
// # Key packages
//
//	pkg/connector    - connector contract, base plumbing, registry, sources, destinations
//	pkg/brightdata   - Bright Data REST client: filtering, polling, scraping, SERP, unlocker
//	pkg/flatten      - nested payload flattening and primary key injection
//	pkg/normalize    - flexible list-input normalization
//	pkg/config       - process settings (viper) and job specifications
//	pkg/errors       - typed, structured error handling
//	pkg/logger       - zap-based structured logging
//	pkg/metrics      - Prometheus counters and histograms
//	pkg/observability - OpenTelemetry phase tracing
//	internal/runtime - local sync harness and state store
//
// Process tuning comes from an optional YAML profile and BRIGHTSYNC_
// environment variables; connector credentials travel in the per-job
// configuration map, never in process settings.
package brightsync
