package main

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/breeze-rmm/process-watcher/internal/config"
	"github.com/breeze-rmm/process-watcher/internal/export"
	"github.com/breeze-rmm/process-watcher/internal/logging"
	"github.com/breeze-rmm/process-watcher/internal/procsource"
	"github.com/breeze-rmm/process-watcher/internal/report"
	"github.com/breeze-rmm/process-watcher/pkg/models"
)

// snapshotter is the part of the collection engine the driver needs.
type snapshotter interface {
	Collect(ctx context.Context, maxResults int, includeDeniedDetail bool) ([]models.ProcessRecord, models.AccessSummary)
	Host() procsource.Host
}

// summarizer produces the optional host summary.
type summarizer interface {
	Collect(ctx context.Context) (*models.SystemSummary, error)
}

// app holds the mutable run settings shared by automation and the prompt.
type app struct {
	cfg    *config.Config
	deps   deps
	logOut io.Writer
	logger *zap.Logger
	engine snapshotter
}

func newApp(cfg *config.Config, d deps, logOut io.Writer) *app {
	return &app{cfg: cfg, deps: d, logOut: logOut, logger: logging.L("driver")}
}

// applyLogging re-initializes the global logger from the current settings.
func (a *app) applyLogging() {
	level := a.cfg.LogLevel
	if a.cfg.Verbose {
		level = "debug"
	}
	logging.Init(a.cfg.LogFormat, level, a.logOut)
}

// validate prints fatal problems to w and logs warnings. It reports whether
// the run may proceed.
func (a *app) validate(w io.Writer) bool {
	result := a.cfg.Validate()
	for _, warn := range result.Warnings {
		a.logger.Warn("config adjusted", zap.Error(warn))
	}
	if !result.HasFatals() {
		return true
	}
	fmt.Fprintln(w, "Validation errors:")
	for _, err := range result.Fatals {
		fmt.Fprintf(w, "  - %v\n", err)
	}
	return false
}

func (a *app) runAutomation(ctx context.Context) error {
	if !a.validate(a.deps.stderr) {
		return errValidation
	}
	a.applyLogging()
	return a.collectAndWrite(ctx)
}

// snapshotEngine builds the engine on first use so the host probe runs once.
func (a *app) snapshotEngine(ctx context.Context) snapshotter {
	if a.engine == nil {
		a.engine = a.deps.newEngine(ctx, logging.L("collector"), a.cfg.Workers)
	}
	return a.engine
}

func (a *app) collectAndWrite(ctx context.Context) error {
	a.logger.Debug("Collecting process information...")

	engine := a.snapshotEngine(ctx)
	records, summary := engine.Collect(ctx, a.cfg.Limit, a.cfg.ShowDenied)
	a.logger.Debug("collection finished",
		zap.Int("found", summary.TotalFound),
		zap.Int("accessible", summary.AccessibleCount),
		zap.Int("permissionDenied", summary.DeniedCount),
	)

	host := engine.Host()
	rep := report.Build(records, summary, models.Metadata{
		HostMemoryBytes: host.TotalMemoryBytes,
		CPUCount:        host.CPUCount,
	})

	if a.cfg.IncludeSystemInfo {
		sys, err := a.deps.newSystem(logging.L("system")).Collect(ctx)
		if err != nil {
			a.logger.Warn("system summary unavailable", zap.Error(err))
			rep.SystemInfoError = err.Error()
		} else {
			rep.SystemInfo = sys
		}
	}

	data, err := report.Format(a.cfg.Output, rep, report.Options{
		Advanced:          a.cfg.Advanced,
		IncludeSystemInfo: a.cfg.IncludeSystemInfo,
		ShowDenied:        a.cfg.ShowDenied,
	})
	if err != nil {
		return fmt.Errorf("format report: %w", err)
	}

	dest, err := export.Resolve(a.cfg.File, a.deps.stdout, export.S3Options{
		Region:          a.cfg.S3.Region,
		AccessKeyID:     a.cfg.S3.AccessKeyID,
		SecretAccessKey: a.cfg.S3.SecretAccessKey,
		SessionToken:    a.cfg.S3.SessionToken,
	})
	if err != nil {
		return fmt.Errorf("resolve destination: %w", err)
	}
	if err := dest.Write(ctx, data); err != nil {
		return err
	}

	a.logger.Debug("Output written", zap.String("destination", dest.String()))
	return nil
}
