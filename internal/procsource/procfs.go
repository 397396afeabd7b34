package procsource

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/breeze-rmm/process-watcher/internal/logging"
	"github.com/breeze-rmm/process-watcher/pkg/models"
)

// DefaultProcRoot is the mount point of the process filesystem.
const DefaultProcRoot = "/proc"

// ProcFSEnumerator lists the numeric entries of a /proc-style directory.
type ProcFSEnumerator struct {
	root string
}

func NewProcFSEnumerator(root string) *ProcFSEnumerator {
	return &ProcFSEnumerator{root: root}
}

func (e *ProcFSEnumerator) ListPIDs(ctx context.Context) ([]int, error) {
	entries, err := os.ReadDir(e.root)
	if err != nil {
		return []int{}, fmt.Errorf("read %s: %w", e.root, err)
	}

	pids := make([]int, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(entry.Name())
		if err != nil || pid <= 0 {
			continue
		}
		pids = append(pids, pid)
	}
	return sortDescending(pids), nil
}

// ProcMeminfoProbe reads MemTotal from <root>/meminfo.
func ProcMeminfoProbe(root string) MemoryProbe {
	return func(ctx context.Context) (uint64, error) {
		data, err := os.ReadFile(filepath.Join(root, "meminfo"))
		if err != nil {
			return 0, err
		}
		return parseMemTotal(data)
	}
}

func parseMemTotal(data []byte) (uint64, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemTotal:") {
			continue
		}
		fields := strings.Fields(strings.TrimPrefix(line, "MemTotal:"))
		if len(fields) == 0 {
			break
		}
		kb, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: MemTotal %q", ErrMalformedOutput, fields[0])
		}
		return kb * 1024, nil
	}
	return 0, fmt.Errorf("%w: MemTotal not found", ErrMalformedOutput)
}

// processInspector provides owner and resident memory for a PID.
type processInspector interface {
	Username(ctx context.Context, pid int) (string, error)
	ResidentBytes(ctx context.Context, pid int) (uint64, error)
}

type gopsutilInspector struct{}

func (gopsutilInspector) Username(ctx context.Context, pid int) (string, error) {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return "", err
	}
	return p.UsernameWithContext(ctx)
}

func (gopsutilInspector) ResidentBytes(ctx context.Context, pid int) (uint64, error) {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return 0, err
	}
	mi, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return mi.RSS, nil
}

// ProcFSSource resolves a PID from <root>/<pid>/status plus gopsutil owner and
// RSS lookups, and a CPU reading over a fixed interval.
type ProcFSSource struct {
	root     string
	sampler  CPUSampler
	interval time.Duration
	inspect  processInspector
	logger   *zap.Logger
}

func NewProcFSSource(root string, sampler CPUSampler, logger *zap.Logger) *ProcFSSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProcFSSource{
		root:     root,
		sampler:  sampler,
		interval: DefaultCPUInterval,
		inspect:  gopsutilInspector{},
		logger:   logger,
	}
}

func (s *ProcFSSource) Resolve(ctx context.Context, pid int) models.ProcessRecord {
	data, err := os.ReadFile(filepath.Join(s.root, strconv.Itoa(pid), "status"))
	if err != nil {
		return denied(pid, err)
	}
	st := parseStatus(data)
	if st.name == "" {
		return denied(pid, fmt.Errorf("%w: status has no Name", ErrMalformedOutput))
	}
	name := st.name

	owner, err := s.inspect.Username(ctx, pid)
	var unknown user.UnknownUserIdError
	switch {
	case err == nil:
	case errors.As(err, &unknown):
		// uid without a passwd entry, common for container workloads
		owner = st.uid
		if owner == "" {
			owner = strconv.Itoa(int(unknown))
		}
		s.logger.Debug("owner has no user entry, using uid", zap.Int(logging.KeyPID, pid), zap.String("uid", owner))
	default:
		rec := denied(pid, err)
		rec.Name = name
		return rec
	}
	rss, err := s.inspect.ResidentBytes(ctx, pid)
	if err != nil {
		rec := denied(pid, err)
		rec.Name = name
		return rec
	}

	var cpuPct float64
	if s.sampler != nil {
		cpuPct = s.sampler.Sample(ctx, pid, s.interval)
	}

	return models.ProcessRecord{
		PID:            pid,
		Name:           name,
		User:           owner,
		CPUPercent:     cpuPct,
		MemoryMegabyte: float64(rss) / mib,
		Status:         mapLinuxStatus(st.state),
		Accessible:     true,
	}
}

type procStatus struct {
	name  string
	state string
	uid   string // real uid
}

// parseStatus extracts the Name, State and real Uid of a /proc status file.
func parseStatus(data []byte) procStatus {
	var st procStatus
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		switch key {
		case "Name":
			st.name = strings.TrimSpace(value)
		case "State":
			st.state = strings.TrimSpace(value)
		case "Uid":
			if fields := strings.Fields(value); len(fields) > 0 {
				st.uid = fields[0]
			}
		}
	}
	return st
}
