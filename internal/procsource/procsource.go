// Package procsource resolves per-process metrics through platform-specific
// mechanisms: the /proc filesystem, the ps columnar tool, or PowerShell object
// queries. Exactly one Platform is selected at build time.
package procsource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"runtime"
	"sort"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/breeze-rmm/process-watcher/pkg/models"
)

// Common errors
var (
	ErrProcessNotFound = errors.New("process not found")
	ErrAccessDenied    = errors.New("access denied")
	ErrMalformedOutput = errors.New("malformed command output")
	ErrNoName          = errors.New("process name not resolvable")
)

const (
	// DefaultTotalMemory is used when the host memory probe fails.
	DefaultTotalMemory uint64 = 8 << 30

	// DefaultCPUInterval is the blocking window of one CPU reading.
	DefaultCPUInterval = time.Second

	mib = 1 << 20
)

// Enumerator lists the PIDs currently visible, in descending numeric order.
// A non-nil error is a warning: the returned slice is still usable (possibly empty).
type Enumerator interface {
	ListPIDs(ctx context.Context) ([]int, error)
}

// MetricSource resolves one PID into a record. It never fails: any problem
// yields an inaccessible record carrying the reason.
type MetricSource interface {
	Resolve(ctx context.Context, pid int) models.ProcessRecord
}

// CPUSampler measures the CPU share of pid over interval, normalized by the
// number of CPUs the process may run on. A failed reading (process gone,
// counters unreadable) is reported as 0, the same value as an idle process;
// Sampler.Measure keeps the two apart for callers that need to.
type CPUSampler interface {
	Sample(ctx context.Context, pid int, interval time.Duration) float64
}

// MemoryProbe reports total physical memory in bytes.
type MemoryProbe func(ctx context.Context) (uint64, error)

// Host is the immutable context shared by every resolution of an engine.
type Host struct {
	TotalMemoryBytes uint64
	CPUCount         int
}

// Deps are the collaborators handed to a platform's source constructor.
type Deps struct {
	Host    Host
	Sampler CPUSampler
	Logger  *zap.Logger
}

// Platform bundles the mechanisms of one operating system.
type Platform struct {
	Name       string
	Enumerator Enumerator
	Memory     MemoryProbe
	NewSource  func(Deps) MetricSource
}

// Detect returns the platform compiled into this binary.
func Detect(logger *zap.Logger) Platform {
	if logger == nil {
		logger = zap.NewNop()
	}
	return detect(NewExecRunner(DefaultCommandTimeout), logger)
}

// TotalMemoryBytes runs probe and falls back to DefaultTotalMemory on any
// failure or a zero reading. The fallback is logged, never returned.
func TotalMemoryBytes(ctx context.Context, probe MemoryProbe, logger *zap.Logger) uint64 {
	if logger == nil {
		logger = zap.NewNop()
	}
	if probe == nil {
		return DefaultTotalMemory
	}
	total, err := probe(ctx)
	if err != nil || total == 0 {
		logger.Warn("host memory probe failed, using default",
			zap.Uint64("defaultBytes", DefaultTotalMemory),
			zap.Error(err),
		)
		return DefaultTotalMemory
	}
	return total
}

// LogicalCPUCount returns the number of logical CPUs, never less than 1.
func LogicalCPUCount(ctx context.Context) int {
	n, err := cpu.CountsWithContext(ctx, true)
	if err != nil || n < 1 {
		n = runtime.NumCPU()
	}
	if n < 1 {
		n = 1
	}
	return n
}

// classify wraps err with the matching sentinel so callers can use errors.Is.
func classify(pid int, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrProcessNotFound), errors.Is(err, ErrAccessDenied),
		errors.Is(err, ErrMalformedOutput), errors.Is(err, ErrNoName):
		return err
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, process.ErrorProcessNotRunning):
		return fmt.Errorf("%w: pid %d: %v", ErrProcessNotFound, pid, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: pid %d: %v", ErrAccessDenied, pid, err)
	default:
		return fmt.Errorf("pid %d: %w", pid, err)
	}
}

func denied(pid int, err error) models.ProcessRecord {
	return models.Denied(pid, "", classify(pid, err).Error())
}

// sortDescending sorts in place and drops duplicates.
func sortDescending(pids []int) []int {
	sort.Sort(sort.Reverse(sort.IntSlice(pids)))
	out := pids[:0]
	for i, pid := range pids {
		if i > 0 && pid == pids[i-1] {
			continue
		}
		out = append(out, pid)
	}
	return out
}

// mapLinuxStatus maps the /proc state letter to a status token.
func mapLinuxStatus(state string) string {
	if len(state) == 0 {
		return "unknown"
	}
	switch state[0] {
	case 'R':
		return "running"
	case 'S':
		return "sleeping"
	case 'D':
		return "uninterruptible"
	case 'T', 't':
		return "stopped"
	case 'Z':
		return "zombie"
	case 'X', 'x':
		return "dead"
	case 'I':
		return "idle"
	default:
		return "unknown"
	}
}

// mapPSStatus maps the first letter of a BSD ps stat column.
func mapPSStatus(stat string) string {
	if len(stat) == 0 {
		return "unknown"
	}
	switch stat[0] {
	case 'R':
		return "running"
	case 'S':
		return "sleeping"
	case 'I':
		return "idle"
	case 'T':
		return "stopped"
	case 'U', 'D':
		return "uninterruptible"
	case 'Z':
		return "zombie"
	default:
		return "unknown"
	}
}
