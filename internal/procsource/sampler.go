package procsource

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/breeze-rmm/process-watcher/internal/logging"
)

var errAffinityUnsupported = errors.New("cpu affinity not supported on this platform")

type percentFunc func(ctx context.Context, pid int, interval time.Duration) (float64, error)

type affinityFunc func(pid int) (int, error)

// Sampler takes a blocking CPU reading through gopsutil and divides it by the
// process's affinity slot count. Where affinity cannot be queried the logical
// CPU count is used instead.
type Sampler struct {
	logger      *zap.Logger
	logicalCPUs int
	percent     percentFunc
	affinity    affinityFunc
}

func NewSampler(logger *zap.Logger, logicalCPUs int) *Sampler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if logicalCPUs < 1 {
		logicalCPUs = 1
	}
	return &Sampler{
		logger:      logger,
		logicalCPUs: logicalCPUs,
		percent:     gopsutilPercent,
		affinity:    affinitySlots,
	}
}

func gopsutilPercent(ctx context.Context, pid int, interval time.Duration) (float64, error) {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return 0, err
	}
	return p.PercentWithContext(ctx, interval)
}

// Sample returns the normalized reading, or 0 when Measure reports no signal.
func (s *Sampler) Sample(ctx context.Context, pid int, interval time.Duration) float64 {
	pct, _ := s.Measure(ctx, pid, interval)
	return pct
}

// Measure is Sample with the signal flag: ok is false when no reading could be
// taken, so a true idle 0 and a failed sample can be told apart.
func (s *Sampler) Measure(ctx context.Context, pid int, interval time.Duration) (pct float64, ok bool) {
	raw, err := s.percent(ctx, pid, interval)
	if err != nil {
		s.logger.Debug("cpu sample: no signal", zap.Int(logging.KeyPID, pid), zap.Error(err))
		return 0, false
	}
	if math.IsNaN(raw) || math.IsInf(raw, 0) || raw < 0 {
		s.logger.Debug("cpu sample: no signal", zap.Int(logging.KeyPID, pid), zap.Float64("raw", raw))
		return 0, false
	}
	return raw / float64(s.slots(pid)), true
}

func (s *Sampler) slots(pid int) int {
	n, err := s.affinity(pid)
	if err != nil || n < 1 {
		return s.logicalCPUs
	}
	return n
}
