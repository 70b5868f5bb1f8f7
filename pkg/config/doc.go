// Package config provides unified configuration management for brightsync.
//
// Two kinds of configuration flow through this package. Process-level
// Settings tune the Bright Data client, observability, and local output.
// Job specifications describe a single sync run: the connector to drive,
// its configuration map, and the destination for upserted rows.
//
// # Key Features
//
// - Settings: viper-backed process configuration with env overrides
// - JobSpec: YAML sync job files with ${VAR_NAME} substitution
// - Automatic defaults and validation
// - BRIGHT_DATA_BASE_URL honored verbatim for endpoint overrides
//
// # Usage
//
// ## Loading Process Settings
//
//	settings, err := config.LoadSettings("brightsync.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Every key can be overridden through the environment with the
// BRIGHTSYNC_ prefix:
//
//	BRIGHTSYNC_API_MAX_RETRIES=5
//	BRIGHTSYNC_OUTPUT_FORMAT=csv
//
// ## Loading a Sync Job
//
//	job, err := config.LoadJob("jobs/dataset.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	job.ApplyDefaults(settings.Output)
//
// ## Environment Variable Substitution
//
//	# jobs/dataset.yaml
//	connector: bright_data_dataset
//	configuration:
//	  api_token: ${BRIGHT_DATA_API_TOKEN}
//	  dataset_id: gd_l1viktl72bvl7bjuj0
//	destination:
//	  type: jsonl
//	  directory: ./data
//
// # Settings Structure
//
//	type Settings struct {
//		API           APISettings           `yaml:"api"`
//		Observability ObservabilitySettings `yaml:"observability"`
//		Output        OutputSettings        `yaml:"output"`
//		Schema        SchemaSettings        `yaml:"schema"`
//	}
//
// Each section provides structured, validated configuration:
//
// - API: Base URL, request timeout, retries, backoff, snapshot polling
// - Observability: Metrics, logging, tracing
// - Output: Destination directory, format, compression
// - Schema: Field documentation lookup
//
// Connector configuration maps deliberately stay untyped here. Each
// connector binds and validates its own map during Initialize, which
// keeps configuration errors inside the connector that owns them.
package config
