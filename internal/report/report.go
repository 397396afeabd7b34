// Package report ranks a snapshot and renders it as JSON, CSV or YAML.
package report

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/breeze-rmm/process-watcher/pkg/models"
)

// ErrNoData is returned by tabular formats when there are no processes.
var ErrNoData = errors.New("no process data")

const systemInfoUnavailable = "system information was not collected"

// Options control which optional sections are rendered.
type Options struct {
	Advanced          bool
	IncludeSystemInfo bool
	ShowDenied        bool
}

// RankByMemory returns a copy of records ordered by resident memory, largest
// first. Ties keep their incoming order.
func RankByMemory(records []models.ProcessRecord) []models.ProcessRecord {
	ranked := make([]models.ProcessRecord, len(records))
	copy(ranked, records)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].MemoryMegabyte > ranked[j].MemoryMegabyte
	})
	return ranked
}

// Build assembles the formatter input from one collection pass.
func Build(records []models.ProcessRecord, summary models.AccessSummary, host models.Metadata) models.Report {
	meta := host
	meta.CollectionTimestamp = summary.CollectedAt.UTC().Format(time.RFC3339)
	meta.TotalProcessesFound = summary.TotalFound
	meta.AccessibleProcesses = summary.AccessibleCount
	meta.PermissionDenied = summary.DeniedCount

	return models.Report{
		Processes:       RankByMemory(records),
		Metadata:        meta,
		DeniedProcesses: summary.DeniedDetails,
	}
}

// Format renders r in the named format.
func Format(format string, r models.Report, opts Options) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return ToJSON(r, opts)
	case "csv":
		return ToCSV(r, opts)
	case "yaml", "yml":
		return ToYAML(r, opts)
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}

// basicProcess is the reduced view rendered when Advanced is off.
type basicProcess struct {
	PID            int     `json:"pid" yaml:"pid"`
	Name           string  `json:"name" yaml:"name"`
	User           string  `json:"user" yaml:"user"`
	CPUPercent     float64 `json:"cpu_percent" yaml:"cpu_percent"`
	MemoryMegabyte float64 `json:"memory_megabyte" yaml:"memory_megabyte"`
}

// document fixes the top-level key order of structured output.
type document struct {
	Processes       any                    `json:"processes" yaml:"processes"`
	Metadata        models.Metadata        `json:"metadata" yaml:"metadata"`
	SystemInfo      any                    `json:"system_info,omitempty" yaml:"system_info,omitempty"`
	DeniedProcesses []models.DeniedProcess `json:"denied_processes,omitempty" yaml:"denied_processes,omitempty"`
}

func newDocument(r models.Report, opts Options) document {
	doc := document{Metadata: r.Metadata}

	if opts.Advanced {
		procs := make([]models.ProcessRecord, len(r.Processes))
		copy(procs, r.Processes)
		doc.Processes = procs
	} else {
		procs := make([]basicProcess, 0, len(r.Processes))
		for _, p := range r.Processes {
			procs = append(procs, basicProcess{
				PID:            p.PID,
				Name:           p.Name,
				User:           p.User,
				CPUPercent:     p.CPUPercent,
				MemoryMegabyte: p.MemoryMegabyte,
			})
		}
		doc.Processes = procs
	}

	if opts.IncludeSystemInfo {
		if r.SystemInfo != nil {
			doc.SystemInfo = r.SystemInfo
		} else {
			reason := r.SystemInfoError
			if reason == "" {
				reason = systemInfoUnavailable
			}
			doc.SystemInfo = map[string]string{"error": reason}
		}
	}

	if opts.ShowDenied && len(r.DeniedProcesses) > 0 {
		doc.DeniedProcesses = r.DeniedProcesses
	}
	return doc
}
