// Package cmd wires the citisampler command line interface.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"citisampler/internal/config"
	"citisampler/internal/eventlog"
	"citisampler/internal/progress"
)

var (
	// Persistent flags, bound in init.
	cacheDir     string
	baseURL      string
	workers      int
	eventLogPath string
	logFormat    string
	logLevel     string
	progressMode string
	quiet        bool

	// Populated in PersistentPreRunE.
	rootLogger *slog.Logger
	events     *eventlog.Log
	appConfig  config.Config
)

var rootCmd = &cobra.Command{
	Use:   "citisampler",
	Short: "Fetch, cache and sample Citi Bike trip data.",
	Long: `Citisampler maintains a local cache of the public Citi Bike trip-data
archives and draws random samples from it.

Archives are downloaded on demand, extracted into per-month shard directories
and validated against manifests, so repeated sampling and loading never
re-downloads data that is already cached. Fetch and sampling events are
tracked in a DuckDB audit log.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var level slog.Level
		switch strings.ToLower(logLevel) {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}

		opts := &slog.HandlerOptions{Level: level}
		var handler slog.Handler
		if strings.ToLower(logFormat) == "json" {
			handler = slog.NewJSONHandler(os.Stderr, opts)
		} else {
			handler = slog.NewTextHandler(os.Stderr, opts)
		}
		rootLogger = slog.New(handler)
		slog.SetDefault(rootLogger)

		appConfig = config.Load()
		if cacheDir != "" {
			appConfig.CacheDir = cacheDir
		}
		if baseURL != "" {
			appConfig.BaseURL = baseURL
		}
		if workers > 0 {
			appConfig.MaxWorkers = workers
		}
		if cmd.Flags().Changed("event-log") {
			appConfig.EventLogPath = eventLogPath
		}
		rootLogger.Debug("Configuration loaded.",
			slog.String("cache_dir", appConfig.CacheDir),
			slog.Int("max_workers", appConfig.MaxWorkers))

		if appConfig.EventLogPath != "" {
			var err error
			events, err = eventlog.Open(appConfig.EventLogPath)
			if err != nil {
				return fmt.Errorf("open event log: %w", err)
			}
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if err := events.Close(); err != nil {
			rootLogger.Error("Failed to close event log cleanly.", "error", err)
		}
		return nil
	},
}

// Execute runs the CLI.
func Execute() {
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(sampleCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(historyCmd)

	if err := rootCmd.Execute(); err != nil {
		if rootLogger != nil {
			rootLogger.Error("Command failed.", "error", err)
		} else {
			fmt.Fprintf(os.Stderr, "command failed: %v\n", err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "Cache directory for extracted shards (default: user cache dir)")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Base URL of the archive bucket (default: "+config.DefaultBaseURL+")")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "w", 0, "Max parallel workers (default: CPU count minus two)")
	rootCmd.PersistentFlags().StringVar(&eventLogPath, "event-log", "", "Path of the DuckDB event log (empty string disables logging)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log output format (text or json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&progressMode, "progress", "log", "Progress display (bars, log or none)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Silence progress output and summaries")

	rootCmd.Version = "0.3.0"
}

func getLogger() *slog.Logger {
	if rootLogger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return rootLogger
}

// cmdContext returns a context cancelled by Ctrl-C or SIGTERM.
func cmdContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// withReporter runs fn under the progress display the user asked for. In
// "bars" mode a terminal UI owns the screen for the duration of the task.
func withReporter(fn func(progress.Reporter) error) error {
	if quiet {
		return fn(progress.Nop{})
	}
	switch strings.ToLower(progressMode) {
	case "none":
		return fn(progress.Nop{})
	case "bars":
		ui := progress.NewUI()
		var taskErr error
		done := make(chan struct{})
		go func() {
			defer close(done)
			defer ui.Quit()
			taskErr = fn(ui)
		}()
		uiErr := ui.Run()
		<-done
		return errors.Join(taskErr, uiErr)
	default:
		return fn(progress.SlogReporter{Logger: getLogger()})
	}
}
