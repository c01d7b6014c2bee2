// Package cli implements the queryengine command line.
package cli

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/AntonStoeckl/embedded-query-engine-go/config"
	"github.com/AntonStoeckl/embedded-query-engine-go/host"
	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine/engine"
	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine/logcapture"
)

const (
	flagConfig       = "config"
	flagLogLevel     = "log-level"
	flagLogQueries   = "log-queries"
	flagTimeout      = "timeout"
	flagSchema       = "schema"
	flagOTLPEndpoint = "otlp-endpoint"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile   string
	LogLevel     string
	LogQueries   bool
	Timeout      time.Duration
	OTLPEndpoint string

	config config.Config
}

// NewRootCommand creates the root command of the queryengine CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "queryengine",
		Short: "Embedded query engine",
		Long:  "Validate schemas and answer GraphQL-shaped JSON queries against the schema's datasource.",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.loadConfig(cmd)
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigFile, flagConfig, "", "config file (json, yaml or toml)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, flagLogLevel, "", "log filter directives, e.g. warn,executor=debug")
	cmd.PersistentFlags().BoolVar(&opts.LogQueries, flagLogQueries, false, "log every executed SQL statement")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, flagTimeout, 0, "connect timeout")
	cmd.PersistentFlags().StringVar(&opts.OTLPEndpoint, flagOTLPEndpoint, "", "export spans and logs via OTLP gRPC to this endpoint")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))

	return cmd
}

// loadConfig reads the config and lets explicitly set flags win.
func (o *RootOptions) loadConfig(cmd *cobra.Command) error {
	cfg, err := config.Load(o.ConfigFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed(flagLogLevel) {
		cfg.LogLevel = o.LogLevel
	}

	if flags.Changed(flagLogQueries) {
		cfg.LogQueries = o.LogQueries
	}

	if flags.Changed(flagTimeout) {
		cfg.ConnectTimeout = o.Timeout
	}

	if err = cfg.Validate(); err != nil {
		return err
	}

	o.config = cfg

	return nil
}

// schemaPath is the --schema flag or the configured path.
func (o *RootOptions) schemaPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}

	return o.config.SchemaPath
}

// newEngine reads the schema at path and builds a host engine whose captured events go to cmd's stderr.
func (o *RootOptions) newEngine(cmd *cobra.Command, path string) (*host.Engine, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	engineOptions := []engine.Option{
		engine.WithConfigDir(filepath.Dir(path)),
		engine.WithLogOptions(logcapture.WithOutput(cmd.ErrOrStderr())),
	}

	if o.OTLPEndpoint != "" {
		logger, err := logcapture.NewWithTelemetry(cmd.Context(), o.OTLPEndpoint, logcapture.WithOutput(cmd.ErrOrStderr()))
		if err != nil {
			return nil, err
		}

		cobra.OnFinalize(func() { _ = logger.Shutdown(cmd.Context()) })
		engineOptions = append(engineOptions, engine.WithCaptureLogger(logger))
	}

	return host.New(
		o.config.EngineParams(string(raw), config.ProcessEnv()),
		host.WithEngineOptions(engineOptions...),
		host.WithBlockingOptions(engine.WithRuntimeSize(o.config.RuntimeSize)),
	)
}
