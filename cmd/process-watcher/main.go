package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/breeze-rmm/process-watcher/internal/collector"
	"github.com/breeze-rmm/process-watcher/internal/config"
	"github.com/breeze-rmm/process-watcher/internal/logging"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

// errValidation marks a run stopped by configuration validation.
var errValidation = errors.New("validation failed")

// deps are the process-level collaborators of the command tree.
type deps struct {
	stdin     io.Reader
	stdout    io.Writer
	stderr    io.Writer
	viper     *viper.Viper
	newEngine func(ctx context.Context, logger *zap.Logger, workers int) snapshotter
	newSystem func(logger *zap.Logger) summarizer
}

func defaultDeps() deps {
	return deps{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		viper:  viper.GetViper(),
		newEngine: func(ctx context.Context, logger *zap.Logger, workers int) snapshotter {
			return collector.New(ctx, logger, collector.WithWorkers(workers))
		},
		newSystem: func(logger *zap.Logger) summarizer {
			return collector.NewSystemCollector(logger)
		},
	}
}

func newRootCmd(d deps) *cobra.Command {
	var (
		cfgFile  string
		showViz  bool
		logClose io.Closer
		a        *app
	)

	rootCmd := &cobra.Command{
		Use:   "process-watcher",
		Short: "Point-in-time process snapshot",
		Long: `process-watcher enumerates operating system processes, collects CPU, memory,
owner and status for each, and exports a ranked snapshot as JSON, CSV or YAML.

Without --automation an interactive prompt is started.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			cfg, err := config.Load(d.viper, cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			logOut := d.stderr
			if cfg.LogFile != "" {
				rw, err := logging.NewRotatingWriter(cfg.LogFile, 10, 3)
				if err != nil {
					return fmt.Errorf("failed to open log file: %w", err)
				}
				logOut, logClose = rw, rw
			}

			a = newApp(cfg, d, logOut)
			a.applyLogging()
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if showViz {
				fmt.Fprint(d.stdout, visualizationHelp)
				return nil
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			if a.cfg.Automation {
				return a.runAutomation(ctx)
			}
			return newShell(a, d.stdin, d.stdout).run(ctx)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.Sync()
			if logClose != nil {
				logClose.Close()
			}
		},
	}

	flags := rootCmd.Flags()
	flags.StringP("output", "o", "json", "Output format: json, csv or yaml")
	flags.StringP("file", "f", "", "Output path (default: console). A path not ending in .txt is a directory; s3://bucket/key uploads to S3")
	flags.BoolP("advanced", "a", false, "Include status, accessible and error for each process")
	flags.BoolP("verbose", "v", false, "Verbose diagnostics on stderr")
	flags.Bool("show-denied", false, "Include details of processes that could not be read")
	flags.Bool("include-system-info", false, "Include host, disk and network summary")
	flags.IntP("limit", "l", 100, "Maximum number of processes to probe")
	flags.Bool("automation", false, "Run once without the interactive prompt (exit 1 on validation failure)")
	flags.Int("workers", 1, "Concurrent process resolutions (1 = sequential)")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("log-format", "text", "Log format: text or json")
	flags.String("log-file", "", "Write logs to this file instead of stderr")
	flags.BoolVar(&showViz, "help-visualization", false, "Show help for visualizing the output data")
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file path")

	for key, flag := range map[string]string{
		"output":              "output",
		"file":                "file",
		"advanced":            "advanced",
		"verbose":             "verbose",
		"show_denied":         "show-denied",
		"include_system_info": "include-system-info",
		"limit":               "limit",
		"automation":          "automation",
		"workers":             "workers",
		"log_level":           "log-level",
		"log_format":          "log-format",
		"log_file":            "log-file",
	} {
		_ = d.viper.BindPFlag(key, flags.Lookup(flag))
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(d.stdout, "process-watcher %s\n", version)
			fmt.Fprintf(d.stdout, "Commit: %s\n", commit)
			fmt.Fprintf(d.stdout, "Built: %s\n", buildDate)
		},
	})

	return rootCmd
}

func main() {
	if err := newRootCmd(defaultDeps()).Execute(); err != nil {
		if !errors.Is(err, errValidation) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
