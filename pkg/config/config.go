// Package config provides the unified configuration system for brightsync.
// It defines a single Settings structure for process-level tuning, loaded
// through viper from defaults, an optional YAML profile, and environment
// variables with the BRIGHTSYNC_ prefix.
//
// Connector-specific configuration (API tokens, dataset IDs, queries) is
// not part of Settings. It travels through the connector contract as a
// key/value map supplied by the host runtime.
//
// The settings are organized into logical sections:
//   - API: Bright Data endpoint, timeouts, retry and polling behavior
//   - Observability: Metrics, tracing, logging
//   - Output: Local destination directory, format, compression
//   - Schema: Field documentation lookup
//
// Example usage:
//
//	settings, err := config.LoadSettings("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client := brightdata.NewClient(creds, settings.API, logger)
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultBaseURL is the Bright Data API endpoint used when neither the
// profile nor the environment overrides it.
const DefaultBaseURL = "https://api.brightdata.com"

// BaseURLEnvVar overrides the API endpoint when set. The variable name
// matches what Bright Data's own tooling reads, so it is honored as-is
// rather than through the BRIGHTSYNC_ prefix.
const BaseURLEnvVar = "BRIGHT_DATA_BASE_URL"

// Settings is the process-level configuration structure for brightsync.
// It provides tuning options organized into logical sections. All values
// have working defaults; a zero-configuration run syncs into ./data.
type Settings struct {
	// API settings control how the Bright Data client behaves
	API APISettings `yaml:"api" json:"api" mapstructure:"api"`

	// Observability settings for monitoring and debugging
	Observability ObservabilitySettings `yaml:"observability" json:"observability" mapstructure:"observability"`

	// Output settings for the local destination used by the sync harness
	Output OutputSettings `yaml:"output" json:"output" mapstructure:"output"`

	// Schema settings for field documentation
	Schema SchemaSettings `yaml:"schema" json:"schema" mapstructure:"schema"`
}

// APISettings contains Bright Data API client tuning.
// These mirror the vendor's recommended request behavior: generous
// request timeouts for synchronous scrapes, bounded retries with
// multiplicative backoff, and a fixed-cadence snapshot poller.
type APISettings struct {
	// BaseURL is the API endpoint root
	BaseURL string `yaml:"base_url" json:"base_url" mapstructure:"base_url"`
	// RequestTimeout bounds a single HTTP request
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout" mapstructure:"request_timeout"`
	// MaxRetries sets how many times a retryable request is reissued
	MaxRetries int `yaml:"max_retries" json:"max_retries" mapstructure:"max_retries"`
	// BackoffFactor is both the initial wait in seconds and the multiplier
	// applied after every retry
	BackoffFactor float64 `yaml:"backoff_factor" json:"backoff_factor" mapstructure:"backoff_factor"`
	// PollInterval is the pause between snapshot readiness probes
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval" mapstructure:"poll_interval"`
	// MaxWaitTime bounds the whole snapshot polling loop
	MaxWaitTime time.Duration `yaml:"max_wait_time" json:"max_wait_time" mapstructure:"max_wait_time"`
	// RateLimitPerSec limits outbound requests per second (0 = unlimited)
	RateLimitPerSec int `yaml:"rate_limit_per_sec" json:"rate_limit_per_sec" mapstructure:"rate_limit_per_sec"`
}

// ObservabilitySettings contains monitoring and observability options.
type ObservabilitySettings struct {
	// EnableMetrics activates Prometheus metrics collection
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics" mapstructure:"enable_metrics"`
	// EnableTracing activates trace export
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing" mapstructure:"enable_tracing"`
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level" mapstructure:"log_level"`
	// TracingSampleRate controls trace sampling (0.0-1.0)
	TracingSampleRate float64 `yaml:"tracing_sample_rate" json:"tracing_sample_rate" mapstructure:"tracing_sample_rate"`
}

// OutputSettings configures the local destination the sync harness
// writes upserted rows to.
type OutputSettings struct {
	// Directory is the root for table output files and sync state
	Directory string `yaml:"directory" json:"directory" mapstructure:"directory"`
	// Format selects the destination encoding (jsonl, csv)
	Format string `yaml:"format" json:"format" mapstructure:"format"`
	// Compression selects output compression (none, gzip, zstd, lz4, snappy, s2)
	Compression string `yaml:"compression" json:"compression" mapstructure:"compression"`
	// CompressionLevel sets compression ratio vs speed
	CompressionLevel int `yaml:"compression_level" json:"compression_level" mapstructure:"compression_level"`
}

// SchemaSettings configures optional schema enrichment.
type SchemaSettings struct {
	// FieldsDocPath points at a YAML document describing known columns.
	// A missing file is not an error; the documentation is advisory.
	FieldsDocPath string `yaml:"fields_doc_path" json:"fields_doc_path" mapstructure:"fields_doc_path"`
}

// NewSettings creates Settings populated with production defaults.
func NewSettings() *Settings {
	return &Settings{
		API: APISettings{
			BaseURL:         DefaultBaseURL,
			RequestTimeout:  300 * time.Second,
			MaxRetries:      3,
			BackoffFactor:   1.5,
			PollInterval:    5 * time.Second,
			MaxWaitTime:     300 * time.Second,
			RateLimitPerSec: 10,
		},
		Observability: ObservabilitySettings{
			EnableMetrics:     true,
			EnableTracing:     false,
			LogLevel:          "info",
			TracingSampleRate: 0.1,
		},
		Output: OutputSettings{
			Directory:        "./data",
			Format:           "jsonl",
			Compression:      "none",
			CompressionLevel: 6,
		},
		Schema: SchemaSettings{
			FieldsDocPath: "fields.yaml",
		},
	}
}

// LoadSettings builds Settings from defaults, an optional YAML profile,
// and BRIGHTSYNC_-prefixed environment variables. Environment variables
// win over the profile, which wins over defaults. An empty path skips
// the profile entirely.
//
// Example:
//
//	BRIGHTSYNC_API_MAX_RETRIES=5 overrides api.max_retries
//	BRIGHT_DATA_BASE_URL=https://stage.example.com overrides api.base_url
func LoadSettings(path string) (*Settings, error) {
	v := viper.New()

	defaults := NewSettings()
	v.SetDefault("api.base_url", defaults.API.BaseURL)
	v.SetDefault("api.request_timeout", defaults.API.RequestTimeout)
	v.SetDefault("api.max_retries", defaults.API.MaxRetries)
	v.SetDefault("api.backoff_factor", defaults.API.BackoffFactor)
	v.SetDefault("api.poll_interval", defaults.API.PollInterval)
	v.SetDefault("api.max_wait_time", defaults.API.MaxWaitTime)
	v.SetDefault("api.rate_limit_per_sec", defaults.API.RateLimitPerSec)
	v.SetDefault("observability.enable_metrics", defaults.Observability.EnableMetrics)
	v.SetDefault("observability.enable_tracing", defaults.Observability.EnableTracing)
	v.SetDefault("observability.log_level", defaults.Observability.LogLevel)
	v.SetDefault("observability.tracing_sample_rate", defaults.Observability.TracingSampleRate)
	v.SetDefault("output.directory", defaults.Output.Directory)
	v.SetDefault("output.format", defaults.Output.Format)
	v.SetDefault("output.compression", defaults.Output.Compression)
	v.SetDefault("output.compression_level", defaults.Output.CompressionLevel)
	v.SetDefault("schema.fields_doc_path", defaults.Schema.FieldsDocPath)

	v.SetEnvPrefix("BRIGHTSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read settings profile %s: %w", path, err)
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}

	// The vendor's own variable name wins over everything else
	if base := os.Getenv(BaseURLEnvVar); base != "" {
		settings.API.BaseURL = base
	}
	settings.API.BaseURL = strings.TrimRight(settings.API.BaseURL, "/")

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// Validate validates the settings for correctness.
// It checks required fields and ensures values are within acceptable ranges.
func (s *Settings) Validate() error {
	if s.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if s.API.RequestTimeout <= 0 {
		return fmt.Errorf("api.request_timeout must be positive")
	}
	if s.API.MaxRetries < 0 {
		return fmt.Errorf("api.max_retries cannot be negative")
	}
	if s.API.BackoffFactor <= 0 {
		return fmt.Errorf("api.backoff_factor must be positive")
	}
	if s.API.PollInterval <= 0 {
		return fmt.Errorf("api.poll_interval must be positive")
	}
	if s.API.MaxWaitTime <= 0 {
		return fmt.Errorf("api.max_wait_time must be positive")
	}
	if s.API.RateLimitPerSec < 0 {
		return fmt.Errorf("api.rate_limit_per_sec cannot be negative")
	}
	switch s.Output.Format {
	case "jsonl", "csv":
	default:
		return fmt.Errorf("output.format must be jsonl or csv, got %q", s.Output.Format)
	}
	switch s.Output.Compression {
	case "", "none", "gzip", "zstd", "lz4", "snappy", "s2":
	default:
		return fmt.Errorf("unsupported output.compression %q", s.Output.Compression)
	}
	return nil
}

// PollAttempts returns how many readiness probes fit inside MaxWaitTime.
// The poller always probes at least once.
func (a *APISettings) PollAttempts() int {
	if a.PollInterval <= 0 {
		return 1
	}
	attempts := int(a.MaxWaitTime / a.PollInterval)
	if attempts < 1 {
		return 1
	}
	return attempts
}

// IsRateLimited returns true if rate limiting is enabled
func (a *APISettings) IsRateLimited() bool {
	return a.RateLimitPerSec > 0
}

// IsCompressed returns true if output compression should be used
func (o *OutputSettings) IsCompressed() bool {
	return o.Compression != "" && o.Compression != "none"
}
