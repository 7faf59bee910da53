// Package cli provides the dataprep command-line interface: profiling,
// cleaning and chart planning of local CSV files without the web service.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/dataprep/internal/engine"
	"github.com/JonMunkholm/dataprep/internal/logging"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

type configKey struct{}

type loggerKey struct{}

// NewRootCmd creates the root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "dataprep",
		Short: "Profile, clean and chart CSV files",
		Long: `dataprep loads a CSV file, reports per-column statistics and defects,
applies cleaning and transform operations, and plans charts.

Settings come from defaults, dataprep.yaml, DATAPREP_* environment
variables and flags, in increasing precedence.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}
			cfg, err := LoadConfig(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			logger := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
			if cfg.File != "" {
				logger.Debug("using config file", "path", cfg.File)
			}

			ctx := context.WithValue(cmd.Context(), configKey{}, cfg)
			ctx = context.WithValue(ctx, loggerKey{}, logger)
			cmd.SetContext(ctx)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./dataprep.yaml)")
	rootCmd.PersistentFlags().String("delimiter", "", "field delimiter (single character, or \"tab\")")
	rootCmd.PersistentFlags().Float64("high-cardinality", 0, "unique/rows ratio above which a column is flagged")
	rootCmd.PersistentFlags().StringSlice("missing-tokens", nil, "extra cell values treated as missing")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug|info|warn|error)")

	rootCmd.AddCommand(newProfileCmd())
	rootCmd.AddCommand(newCleanCmd())
	rootCmd.AddCommand(newChartCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// configFrom returns the loaded config, or defaults when the pre-run hook
// did not run.
func configFrom(ctx context.Context) *Config {
	if c, ok := ctx.Value(configKey{}).(*Config); ok {
		return c
	}
	return &Config{
		Delimiter:       ",",
		HighCardinality: engine.DefaultHighCardinalityThreshold,
		Theme:           engine.DefaultTheme,
		LogLevel:        "warn",
	}
}

func loggerFrom(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// loadFile reads path, or stdin for "-", into a Handle.
func loadFile(cmd *cobra.Command, path string) (*engine.Handle, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(cmd.InOrStdin())
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg := configFrom(cmd.Context())
	h, err := engine.Load(raw, cfg.LoadOptions()...)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	loggerFrom(cmd.Context()).Debug("dataset loaded", "file", path, "rows", h.RowCount(), "cols", h.ColumnCount())
	return h, nil
}
