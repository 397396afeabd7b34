package procsource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/breeze-rmm/process-watcher/pkg/models"
)

const powershell = "powershell"

func powershellArgs(script string) []string {
	return []string{"-NoProfile", "-NonInteractive", "-Command", script}
}

// PowerShellEnumerator lists PIDs with Get-Process.
type PowerShellEnumerator struct {
	runner CommandRunner
}

func NewPowerShellEnumerator(runner CommandRunner) *PowerShellEnumerator {
	return &PowerShellEnumerator{runner: runner}
}

func (e *PowerShellEnumerator) ListPIDs(ctx context.Context) ([]int, error) {
	out, err := e.runner.Run(ctx, powershell, powershellArgs("Get-Process | Select-Object -ExpandProperty Id")...)
	if err != nil {
		return []int{}, fmt.Errorf("list pids: %w", err)
	}
	return parsePIDList(out), nil
}

// PowerShellMemoryProbe queries Win32_ComputerSystem.TotalPhysicalMemory.
func PowerShellMemoryProbe(runner CommandRunner) MemoryProbe {
	return func(ctx context.Context) (uint64, error) {
		out, err := runner.Run(ctx, powershell, powershellArgs("(Get-CimInstance Win32_ComputerSystem).TotalPhysicalMemory")...)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseUint(strings.TrimSpace(string(out)), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: TotalPhysicalMemory %q", ErrMalformedOutput, strings.TrimSpace(string(out)))
		}
		return v, nil
	}
}

// psProcess is the object serialized by the per-process query.
type psProcess struct {
	ID         int     `json:"Id"`
	Name       string  `json:"Name"`
	User       *string `json:"User"`
	WorkingSet uint64  `json:"WorkingSet"`
}

func processQuery(pid int) string {
	return fmt.Sprintf(`$p = Get-Process -Id %[1]d -ErrorAction Stop; `+
		`$o = Get-CimInstance Win32_Process -Filter "ProcessId=%[1]d" | Invoke-CimMethod -MethodName GetOwner -ErrorAction SilentlyContinue; `+
		`$u = if ($o -and $o.User) { "$($o.Domain)\$($o.User)" } else { $null }; `+
		`[pscustomobject]@{Id=$p.Id; Name=$p.ProcessName; User=$u; WorkingSet=$p.WorkingSet64} | ConvertTo-Json -Compress`, pid)
}

// PowerShellSource resolves a PID with one PowerShell object query; CPU comes
// from the sampler.
type PowerShellSource struct {
	runner  CommandRunner
	sampler CPUSampler
	logger  *zap.Logger
}

func NewPowerShellSource(runner CommandRunner, sampler CPUSampler, logger *zap.Logger) *PowerShellSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PowerShellSource{runner: runner, sampler: sampler, logger: logger}
}

func (s *PowerShellSource) Resolve(ctx context.Context, pid int) models.ProcessRecord {
	out, err := s.runner.Run(ctx, powershell, powershellArgs(processQuery(pid))...)
	if err != nil {
		return denied(pid, err)
	}

	rec, err := parsePowerShellProcess(out, pid)
	if err != nil {
		return denied(pid, err)
	}
	if s.sampler != nil {
		rec.CPUPercent = s.sampler.Sample(ctx, pid, DefaultCPUInterval)
	}
	return rec
}

func parsePowerShellProcess(out []byte, pid int) (models.ProcessRecord, error) {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return models.ProcessRecord{}, fmt.Errorf("%w: pid %d: empty output", ErrProcessNotFound, pid)
	}

	var candidates []psProcess
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &candidates); err != nil {
			return models.ProcessRecord{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
		}
	} else {
		var one psProcess
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return models.ProcessRecord{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
		}
		candidates = append(candidates, one)
	}

	for _, c := range candidates {
		if c.ID != pid {
			continue
		}
		if strings.TrimSpace(c.Name) == "" {
			return models.ProcessRecord{}, fmt.Errorf("%w: pid %d", ErrNoName, pid)
		}
		var user string
		if c.User != nil {
			user = *c.User
		}
		return models.ProcessRecord{
			PID:            pid,
			Name:           c.Name,
			User:           user,
			MemoryMegabyte: float64(c.WorkingSet) / mib,
			Status:         "running",
			Accessible:     true,
		}, nil
	}
	return models.ProcessRecord{}, fmt.Errorf("%w: pid %d not in output", ErrNoName, pid)
}
