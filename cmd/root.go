// Package cmd implements the command-line interface for tracelens.
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/agenticgokit/agenticgokit/observability"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/agenticgokit/tracelens/internal/config"
	"github.com/agenticgokit/tracelens/internal/langfuse"
	"github.com/agenticgokit/tracelens/internal/utils"
)

var (
	cfgFile        string
	verbose        bool
	debug          bool
	trace          bool
	traceExporter  string
	traceEndpoint  string
	traceSample    float64
	tracerShutdown func(context.Context) error
	logger         *zerolog.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "tracelens",
	Short: "Read agent workflow traces from Langfuse",
	Long: `tracelens reads the traces your agent workflows exported to Langfuse
and turns them into reports.

  • Per-model generation metrics: calls, tokens, latency, errors
  • The prompts sent at a named workflow step
  • Span trees of single traces

Credentials come from LANGFUSE_PUBLIC_KEY and LANGFUSE_SECRET_KEY (or a .env
file). Without them, reports are skipped and tracelens exits successfully.

Get started with: tracelens report metrics --hours 24`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		var err error
		logger, err = utils.NewLogger(debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
			os.Exit(1)
		}
		if debug {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		} else {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}
		zerolog.TimeFieldFormat = time.RFC3339

		trace = viper.GetBool("trace")
		traceExporter = viper.GetString("trace_exporter")
		traceEndpoint = viper.GetString("trace_endpoint")
		traceSample = viper.GetFloat64("trace_sample")

		if trace {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			runID := generateRunID()
			ctx = observability.WithRunID(ctx, runID)
			ctx = observability.WithLogger(ctx, logger)
			cmd.SetContext(ctx)

			cfg := observability.TracerConfig{
				ServiceName:    "tracelens",
				ServiceVersion: Version,
				Environment:    viper.GetString("environment"),
				Endpoint:       traceEndpoint,
				Exporter:       traceExporter,
				SampleRate:     traceSample,
				Debug:          debug,
				FilePath:       traceEndpoint,
			}

			tracerShutdown, err = observability.SetupTracer(ctx, cfg)
			if err != nil {
				logger.Error().Err(err).Msg("failed to set up tracer")
			}
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if tracerShutdown != nil {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			_ = tracerShutdown(ctx)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.tracelens.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "debug mode")
	rootCmd.PersistentFlags().BoolVar(&trace, "trace", false, "trace tracelens itself")
	rootCmd.PersistentFlags().StringVar(&traceExporter, "trace-exporter", "console", "trace exporter: console|otlp|file")
	rootCmd.PersistentFlags().StringVar(&traceEndpoint, "trace-endpoint", "", "OTLP endpoint URL or file path (for file exporter)")
	rootCmd.PersistentFlags().Float64Var(&traceSample, "trace-sample", 1.0, "trace sample rate (0.0-1.0)")

	// Langfuse connection
	rootCmd.PersistentFlags().String("host", "", "Langfuse base URL (default "+langfuse.DefaultHost+")")
	rootCmd.PersistentFlags().String("public-key", "", "Langfuse public key")
	rootCmd.PersistentFlags().String("secret-key", "", "Langfuse secret key")
	rootCmd.PersistentFlags().String("project-id", "", "Langfuse project id")
	rootCmd.PersistentFlags().Duration("timeout", langfuse.DefaultTimeout, "per-request timeout")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("trace", rootCmd.PersistentFlags().Lookup("trace"))
	_ = viper.BindPFlag("trace_exporter", rootCmd.PersistentFlags().Lookup("trace-exporter"))
	_ = viper.BindPFlag("trace_endpoint", rootCmd.PersistentFlags().Lookup("trace-endpoint"))
	_ = viper.BindPFlag("trace_sample", rootCmd.PersistentFlags().Lookup("trace-sample"))
	_ = viper.BindPFlag(config.KeyHost, rootCmd.PersistentFlags().Lookup("host"))
	_ = viper.BindPFlag(config.KeyPublicKey, rootCmd.PersistentFlags().Lookup("public-key"))
	_ = viper.BindPFlag(config.KeySecretKey, rootCmd.PersistentFlags().Lookup("secret-key"))
	_ = viper.BindPFlag(config.KeyProjectID, rootCmd.PersistentFlags().Lookup("project-id"))
	_ = viper.BindPFlag(config.KeyTimeout, rootCmd.PersistentFlags().Lookup("timeout"))
}

func initConfig() {
	if wd, err := os.Getwd(); err == nil {
		if path, err := config.LoadDotEnv(wd); err != nil {
			fmt.Fprintln(os.Stderr, "Warning:", err)
		} else if path != "" && verbose {
			fmt.Fprintln(os.Stderr, "Loaded environment from:", path)
		}
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("toml")
		viper.SetConfigName(".tracelens")
	}

	viper.SetEnvPrefix("TRACELENS")
	viper.AutomaticEnv()
	cobra.CheckErr(config.Bind(viper.GetViper()))

	viper.SetDefault("trace_exporter", "console")
	viper.SetDefault("trace_sample", 1.0)
	viper.SetDefault("environment", "dev")

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// GetLogger returns the configured logger
func GetLogger() *zerolog.Logger {
	if logger == nil {
		if l, err := utils.NewLogger(false); err == nil {
			logger = l
		} else {
			// Fallback to a basic stderr logger
			l := zerolog.New(os.Stderr).With().Timestamp().Logger()
			logger = &l
		}
	}
	return logger
}

// newClient resolves the connection settings and builds the Langfuse client
func newClient() (*config.Settings, *langfuse.Client, error) {
	settings, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, nil, err
	}
	return settings, langfuse.NewClient(settings.ClientConfig(GetLogger())), nil
}

// usageOnValidation keeps cobra's usage output for flag validation errors only
func usageOnValidation(cmd *cobra.Command, err error) error {
	cmd.SilenceUsage = err != nil && !utils.IsValidationError(err)
	return err
}

func generateRunID() string {
	return fmt.Sprintf("run-%d", time.Now().UnixNano())
}
