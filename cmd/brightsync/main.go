package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	harness "github.com/ajitpratap0/brightsync/internal/runtime"
	"github.com/ajitpratap0/brightsync/pkg/config"
	"github.com/ajitpratap0/brightsync/pkg/connector/core"
	"github.com/ajitpratap0/brightsync/pkg/connector/registry"
	jsonpool "github.com/ajitpratap0/brightsync/pkg/json"
	"github.com/ajitpratap0/brightsync/pkg/logger"
	"github.com/ajitpratap0/brightsync/pkg/observability"

	// Import all available connectors to register them
	_ "github.com/ajitpratap0/brightsync/pkg/connector"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	var settingsPath, logLevel string

	root := &cobra.Command{
		Use:   "brightsync",
		Short: "brightsync - Bright Data ingestion connectors",
		Long: `brightsync syncs Bright Data marketplace datasets, web scrapes, SERP
searches, and unlocker fetches into local tables. Connector configuration
files are flat JSON string maps; process tuning comes from an optional
settings profile and BRIGHTSYNC_ environment variables.`,
	}
	root.PersistentFlags().StringVar(&settingsPath, "settings", "", "Path to a YAML settings profile (optional)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the profile")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("brightsync v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered connectors and destinations",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Source connectors:")
			for _, meta := range registry.Sources() {
				fmt.Printf("  - %s v%s  %s\n", meta.Name, meta.Version, meta.Description)
			}
			fmt.Println("\nDestinations:")
			for _, name := range registry.Destinations() {
				fmt.Printf("  - %s\n", name)
			}
		},
	})

	root.AddCommand(newSchemaCmd(&settingsPath, &logLevel))
	root.AddCommand(newSyncCmd(&settingsPath, &logLevel))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newSchemaCmd(settingsPath, logLevel *string) *cobra.Command {
	var connectorName, configFile string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the tables a connector syncs into",
		Long: `Print the destination tables and primary keys a connector declares.
With --config the connector is initialized first, so the output reflects
the supplied configuration; without it the registration metadata is shown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, shutdown, err := bootstrap(*settingsPath, *logLevel)
			if err != nil {
				return err
			}
			defer shutdown()

			tables, err := connectorTables(cmd.Context(), settings, connectorName, configFile)
			if err != nil {
				return err
			}

			out, err := jsonpool.MarshalIndent(tables, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVarP(&connectorName, "connector", "c", "", "Connector name (required)")
	cmd.Flags().StringVar(&configFile, "config", "", "Path to a connector configuration JSON file (optional)")
	_ = cmd.MarkFlagRequired("connector")
	return cmd
}

func newSyncCmd(settingsPath, logLevel *string) *cobra.Command {
	var (
		jobFile, connectorName, configFile string
		statePath, destination, outputDir  string
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync into a local destination",
		Long: `Run one connector sync. The job is described either by a YAML job file
(--job) or by a connector name plus a configuration JSON file.

Example:
  brightsync sync --connector bright_data_serp --config serp.json --output ./data`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, shutdown, err := bootstrap(*settingsPath, *logLevel)
			if err != nil {
				return err
			}
			defer shutdown()

			job, err := buildJob(jobFile, connectorName, configFile)
			if err != nil {
				return err
			}
			if statePath != "" {
				job.StatePath = statePath
			}
			if destination != "" {
				job.Destination.Type = destination
			}
			if outputDir != "" {
				job.Destination.Directory = outputDir
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			summary, err := harness.NewHarness(settings).Run(ctx, job)
			if err != nil {
				return err
			}

			logger.Get().Info("sync finished",
				zap.String("connector", summary.Connector),
				zap.Strings("tables", summary.Tables),
				zap.Int64("rows", summary.Rows),
				zap.String("state", summary.StatePath))
			fmt.Printf("synced %d rows into %v (state: %s)\n", summary.Rows, summary.Tables, summary.StatePath)
			return nil
		},
	}

	cmd.Flags().StringVar(&jobFile, "job", "", "Path to a YAML job file")
	cmd.Flags().StringVarP(&connectorName, "connector", "c", "", "Connector name (alternative to --job)")
	cmd.Flags().StringVar(&configFile, "config", "", "Path to a connector configuration JSON file")
	cmd.Flags().StringVar(&statePath, "state", "", "State file path (default <output>/state.json)")
	cmd.Flags().StringVarP(&destination, "destination", "d", "", "Destination type (jsonl, csv)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory for table files")
	return cmd
}

// bootstrap loads settings, initializes logging and tracing, and returns
// a shutdown hook flushing both.
func bootstrap(settingsPath, logLevel string) (*config.Settings, func(), error) {
	settings, err := config.LoadSettings(settingsPath)
	if err != nil {
		return nil, nil, err
	}

	level := settings.Observability.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	if err := logger.Init(logger.Config{Level: level, Encoding: "console"}); err != nil {
		return nil, nil, err
	}

	shutdownTracing, err := observability.Init(settings.Observability, version)
	if err != nil {
		return nil, nil, err
	}

	return settings, func() {
		_ = shutdownTracing(context.Background())
		_ = logger.Sync()
	}, nil
}

// buildJob assembles the job spec from either a job file or the
// connector/config flag pair.
func buildJob(jobFile, connectorName, configFile string) (*config.JobSpec, error) {
	if jobFile != "" {
		return config.LoadJob(jobFile)
	}
	if connectorName == "" {
		return nil, fmt.Errorf("either --job or --connector is required")
	}

	cfg := map[string]string{}
	if configFile != "" {
		var err error
		if cfg, err = loadConfiguration(configFile); err != nil {
			return nil, err
		}
	}
	return &config.JobSpec{Connector: connectorName, Configuration: cfg}, nil
}

// loadConfiguration reads a flat JSON string map, the configuration
// shape the host runtime hands to connectors.
func loadConfiguration(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := map[string]string{}
	if err := jsonpool.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// connectorTables resolves a connector's table schemas, initializing the
// connector when a configuration is supplied.
func connectorTables(ctx context.Context, settings *config.Settings, name, configFile string) ([]core.TableSchema, error) {
	if configFile == "" {
		meta, err := registry.SourceMetadata(name)
		if err != nil {
			return nil, err
		}
		return meta.Tables, nil
	}

	cfg, err := loadConfiguration(configFile)
	if err != nil {
		return nil, err
	}

	connector, err := registry.Create(name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = connector.Close(ctx) }()

	if aware, ok := connector.(core.SettingsAware); ok {
		aware.ApplySettings(settings)
	}
	if err := connector.Initialize(ctx, cfg); err != nil {
		return nil, err
	}
	return connector.Schema(ctx)
}
