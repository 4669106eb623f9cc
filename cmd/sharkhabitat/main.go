// Shark habitat training set builder entry point
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/sharkhabitat/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// app carries what every subcommand needs.
type app struct {
	cfg     *config.Config
	catalog *config.Catalog
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var (
		logLevel  string
		logFormat string
		catalog   string
		dataDir   string
	)

	root := &cobra.Command{
		Use:           "sharkhabitat",
		Short:         "Build a shark habitat training set from occurrences and ocean remote sensing",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			flags := cmd.Flags()
			if flags.Changed("log-level") {
				cfg.Logging.Level = logLevel
			}
			if flags.Changed("log-format") {
				cfg.Logging.Format = logFormat
			}
			if flags.Changed("catalog") {
				cfg.Paths.Catalog = catalog
			}
			if flags.Changed("data-dir") {
				cfg.Paths.DataDir = dataDir
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			a.cfg = cfg
			a.logger = setupLogger(cfg.Logging.Level, cfg.Logging.Format)
			slog.SetDefault(a.logger)

			a.catalog, err = config.LoadCatalog(cfg.Paths.Catalog)
			if err != nil {
				return fmt.Errorf("failed to load source catalog: %w", err)
			}
			a.logger.Debug("loaded source catalog",
				slog.String("path", cfg.Paths.Catalog),
				slog.Any("sources", a.catalog.Names()),
			)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVar(&logFormat, "log-format", "json", "log format (json, text)")
	pf.StringVar(&catalog, "catalog", "", "source catalog file (built-in sources when empty)")
	pf.StringVar(&dataDir, "data-dir", "./data", "directory holding one subdirectory per source")

	root.AddCommand(
		newFetchCmd(a),
		newBuildCmd(a),
		newServeCmd(a),
	)
	return root
}

func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
