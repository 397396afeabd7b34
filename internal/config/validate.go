package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/breeze-rmm/process-watcher/internal/export"
	"github.com/breeze-rmm/process-watcher/internal/logging"
)

const (
	minWorkers = 1
	maxWorkers = 64
)

var validFormats = map[string]bool{
	"json": true,
	"csv":  true,
	"yaml": true,
}

// ValidationResult separates problems that must stop a run from those that
// were corrected in place.
type ValidationResult struct {
	Fatals   []error
	Warnings []error
}

// HasFatals reports whether the run must not proceed.
func (r ValidationResult) HasFatals() bool {
	return len(r.Fatals) > 0
}

// Err joins the fatal errors, or returns nil.
func (r ValidationResult) Err() error {
	return errors.Join(r.Fatals...)
}

// Validate checks the config before any collection starts. Fatal problems
// (bad limit, unknown format, unusable destination) are returned as Fatals.
// Out-of-range tuning values are clamped and reported as Warnings.
// A local destination has its parent directory created as a side effect.
func (c *Config) Validate() ValidationResult {
	var r ValidationResult

	if c.Limit <= 0 {
		r.Fatals = append(r.Fatals, fmt.Errorf("limit must be greater than 0, got %d", c.Limit))
	}

	c.Output = strings.ToLower(strings.TrimSpace(c.Output))
	if !validFormats[c.Output] {
		r.Fatals = append(r.Fatals, fmt.Errorf("output format %q is not one of json, csv, yaml", c.Output))
	}

	c.File = strings.TrimSpace(c.File)
	switch {
	case c.File == "":
	case export.IsS3(c.File):
		if _, _, err := export.ParseS3URL(c.File); err != nil {
			r.Fatals = append(r.Fatals, fmt.Errorf("output file: %w", err))
		}
		if (c.S3.AccessKeyID == "") != (c.S3.SecretAccessKey == "") {
			r.Warnings = append(r.Warnings, fmt.Errorf("s3 access_key_id and secret_access_key must be set together, using the default credential chain"))
		}
	default:
		if _, err := export.PrepareLocal(c.File); err != nil {
			r.Fatals = append(r.Fatals, fmt.Errorf("output file: %w", err))
		}
	}

	if c.Workers < minWorkers {
		r.Warnings = append(r.Warnings, fmt.Errorf("workers %d is below minimum %d, clamping", c.Workers, minWorkers))
		c.Workers = minWorkers
	} else if c.Workers > maxWorkers {
		r.Warnings = append(r.Warnings, fmt.Errorf("workers %d exceeds maximum %d, clamping", c.Workers, maxWorkers))
		c.Workers = maxWorkers
	}

	if c.LogLevel != "" && !logging.ValidLevel(c.LogLevel) {
		r.Warnings = append(r.Warnings, fmt.Errorf("unknown log_level %q, using info", c.LogLevel))
		c.LogLevel = "info"
	}
	if c.LogFormat != "" && !logging.ValidFormat(c.LogFormat) {
		r.Warnings = append(r.Warnings, fmt.Errorf("unknown log_format %q, using text", c.LogFormat))
		c.LogFormat = "text"
	}

	return r
}
