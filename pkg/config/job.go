// Package config provides sync job specifications for the local harness
package config

import (
	"fmt"
)

// JobSpec describes one sync run: which connector to drive, the
// configuration map handed to it, and where upserted rows land.
// Job files are YAML and support ${VAR} environment substitution, so
// secrets like api_token can stay out of the file:
//
//	connector: bright_data_dataset
//	configuration:
//	  api_token: ${BRIGHT_DATA_API_TOKEN}
//	  dataset_id: gd_l1viktl72bvl7bjuj0
//	destination:
//	  type: jsonl
//	  directory: ./data
//	state_path: ./data/state.json
type JobSpec struct {
	// Connector is the registered connector name
	Connector string `yaml:"connector" json:"connector"`

	// Configuration is the key/value map passed to the connector.
	// All values are strings, matching the connector contract.
	Configuration map[string]string `yaml:"configuration" json:"configuration"`

	// Destination selects and tunes the local destination
	Destination DestinationSpec `yaml:"destination" json:"destination"`

	// StatePath is where sync state is persisted between runs.
	// Empty means <destination directory>/state.json.
	StatePath string `yaml:"state_path" json:"state_path"`
}

// DestinationSpec selects the local destination for a job. Unset fields
// fall back to the process-level Output settings.
type DestinationSpec struct {
	// Type is the registered destination name (jsonl, csv)
	Type string `yaml:"type" json:"type"`
	// Directory is the root for table output files
	Directory string `yaml:"directory" json:"directory"`
	// Compression selects output compression (none, gzip, zstd, lz4, snappy, s2)
	Compression string `yaml:"compression" json:"compression"`
	// CompressionLevel sets compression ratio vs speed
	CompressionLevel int `yaml:"compression_level" json:"compression_level"`
}

// LoadJob reads a job specification from a YAML file, substituting
// ${VAR} references from the environment before parsing.
func LoadJob(path string) (*JobSpec, error) {
	job := &JobSpec{}
	if err := Load(path, job); err != nil {
		return nil, err
	}
	if err := job.Validate(); err != nil {
		return nil, fmt.Errorf("invalid job file %s: %w", path, err)
	}
	return job, nil
}

// Validate checks the job specification for structural problems.
// Connector-specific configuration values are validated by the
// connector itself during Initialize.
func (j *JobSpec) Validate() error {
	if j.Connector == "" {
		return fmt.Errorf("connector is required")
	}
	if j.Configuration == nil {
		j.Configuration = map[string]string{}
	}
	switch j.Destination.Type {
	case "", "jsonl", "csv":
	default:
		return fmt.Errorf("unknown destination type %q", j.Destination.Type)
	}
	return nil
}

// ApplyDefaults fills unset destination fields from process settings
// and resolves the state path.
func (j *JobSpec) ApplyDefaults(out OutputSettings) {
	if j.Destination.Type == "" {
		j.Destination.Type = out.Format
	}
	if j.Destination.Directory == "" {
		j.Destination.Directory = out.Directory
	}
	if j.Destination.Compression == "" {
		j.Destination.Compression = out.Compression
	}
	if j.Destination.CompressionLevel == 0 {
		j.Destination.CompressionLevel = out.CompressionLevel
	}
	if j.StatePath == "" {
		j.StatePath = j.Destination.Directory + "/state.json"
	}
}

// IsCompressed returns true if the destination should compress output
func (d *DestinationSpec) IsCompressed() bool {
	return d.Compression != "" && d.Compression != "none"
}
