package procsource

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/breeze-rmm/process-watcher/pkg/models"
)

// psColumns is the column list requested from ps. The trailing comm column may
// contain spaces, so it must stay last.
const psColumns = "pid=,user=,%cpu=,%mem=,stat=,comm="

// PSEnumerator lists PIDs with `ps -axo pid=`.
type PSEnumerator struct {
	runner CommandRunner
}

func NewPSEnumerator(runner CommandRunner) *PSEnumerator {
	return &PSEnumerator{runner: runner}
}

func (e *PSEnumerator) ListPIDs(ctx context.Context) ([]int, error) {
	out, err := e.runner.Run(ctx, "ps", "-axo", "pid=")
	if err != nil {
		return []int{}, fmt.Errorf("list pids: %w", err)
	}
	return parsePIDList(out), nil
}

// parsePIDList reads one PID per line, skipping anything non-numeric.
func parsePIDList(out []byte) []int {
	var pids []int
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		pid, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
		if err != nil || pid <= 0 {
			continue
		}
		pids = append(pids, pid)
	}
	if pids == nil {
		return []int{}
	}
	return sortDescending(pids)
}

// PSSource resolves a PID through a single `ps -p` invocation. Memory is
// reported by ps as a share of host memory and converted to megabytes.
type PSSource struct {
	runner      CommandRunner
	totalMemory uint64
	logger      *zap.Logger
}

func NewPSSource(runner CommandRunner, host Host, logger *zap.Logger) *PSSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	total := host.TotalMemoryBytes
	if total == 0 {
		total = DefaultTotalMemory
	}
	return &PSSource{runner: runner, totalMemory: total, logger: logger}
}

func (s *PSSource) Resolve(ctx context.Context, pid int) models.ProcessRecord {
	out, err := s.runner.Run(ctx, "ps", "-p", strconv.Itoa(pid), "-o", psColumns)
	if err != nil {
		var cmdErr *CommandError
		if errors.As(err, &cmdErr) && cmdErr.ExitCode == 1 && cmdErr.Stderr == "" {
			// ps exits 1 with no diagnostics when the PID is gone
			return denied(pid, fmt.Errorf("%w: pid %d", ErrProcessNotFound, pid))
		}
		return denied(pid, err)
	}

	rec, err := parsePSLine(out, pid, s.totalMemory)
	if err != nil {
		return denied(pid, err)
	}
	return rec
}

// parsePSLine parses the first non-empty line of ps output for pid.
func parsePSLine(out []byte, pid int, totalMemory uint64) (models.ProcessRecord, error) {
	var line string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		if l := strings.TrimSpace(scanner.Text()); l != "" {
			line = l
			break
		}
	}
	if line == "" {
		return models.ProcessRecord{}, fmt.Errorf("%w: pid %d: empty ps output", ErrProcessNotFound, pid)
	}

	fields := strings.Fields(line)
	if len(fields) < 5 {
		return models.ProcessRecord{}, fmt.Errorf("%w: pid %d: expected at least 5 columns, got %d", ErrMalformedOutput, pid, len(fields))
	}

	gotPID, err := strconv.Atoi(fields[0])
	if err != nil {
		return models.ProcessRecord{}, fmt.Errorf("%w: pid column %q", ErrMalformedOutput, fields[0])
	}
	if gotPID != pid {
		return models.ProcessRecord{}, fmt.Errorf("%w: asked for pid %d, ps returned %d", ErrMalformedOutput, pid, gotPID)
	}

	cpuPct, err := parseDecimal(fields[2])
	if err != nil {
		return models.ProcessRecord{}, fmt.Errorf("%w: %%cpu column %q", ErrMalformedOutput, fields[2])
	}
	memPct, err := parseDecimal(fields[3])
	if err != nil {
		return models.ProcessRecord{}, fmt.Errorf("%w: %%mem column %q", ErrMalformedOutput, fields[3])
	}

	var name string
	if len(fields) > 5 {
		name = filepath.Base(strings.Join(fields[5:], " "))
	}

	return models.ProcessRecord{
		PID:            pid,
		Name:           name,
		User:           fields[1],
		CPUPercent:     cpuPct,
		MemoryMegabyte: memPct / 100 * float64(totalMemory) / mib,
		Status:         mapPSStatus(fields[4]),
		Accessible:     true,
	}, nil
}

// parseDecimal accepts both "1.5" and locale-formatted "1,5".
func parseDecimal(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
}
