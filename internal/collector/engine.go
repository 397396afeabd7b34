package collector

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/breeze-rmm/process-watcher/internal/logging"
	"github.com/breeze-rmm/process-watcher/internal/procsource"
	"github.com/breeze-rmm/process-watcher/internal/workerpool"
	"github.com/breeze-rmm/process-watcher/pkg/models"
)

const (
	// MaxWorkers caps the resolution pool size.
	MaxWorkers = 64

	progressEvery = 50

	abortedReason = "metric resolution aborted"
)

// Engine enumerates PIDs, resolves each through the platform metric source
// and partitions the results into accessible and denied.
// The host context is fixed at construction and shared read-only by every pass.
type Engine struct {
	BaseCollector
	enumerator procsource.Enumerator
	source     procsource.MetricSource
	host       procsource.Host
	workers    int
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers sets the number of concurrent resolutions. 1 is sequential.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n < 1 {
			n = 1
		}
		if n > MaxWorkers {
			n = MaxWorkers
		}
		e.workers = n
	}
}

// WithClock overrides the pass timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New builds an engine for the platform compiled into this binary. The host
// memory probe and CPU count run once here.
func New(ctx context.Context, logger *zap.Logger, opts ...Option) *Engine {
	base := NewBaseCollector(logger, "collector")
	logger = base.Logger()

	platform := procsource.Detect(logger)
	host := procsource.Host{
		TotalMemoryBytes: procsource.TotalMemoryBytes(ctx, platform.Memory, logger),
		CPUCount:         procsource.LogicalCPUCount(ctx),
	}
	sampler := procsource.NewSampler(logger.Named("sampler"), host.CPUCount)
	source := platform.NewSource(procsource.Deps{Host: host, Sampler: sampler, Logger: logger})

	logger.Debug("collection engine ready",
		zap.String("platform", platform.Name),
		zap.Uint64("hostMemoryBytes", host.TotalMemoryBytes),
		zap.Int("cpuCount", host.CPUCount),
	)
	return NewEngine(platform.Enumerator, source, host, logger, opts...)
}

// NewEngine assembles an engine from explicit collaborators.
func NewEngine(enumerator procsource.Enumerator, source procsource.MetricSource, host procsource.Host, logger *zap.Logger, opts ...Option) *Engine {
	if host.TotalMemoryBytes == 0 {
		host.TotalMemoryBytes = procsource.DefaultTotalMemory
	}
	if host.CPUCount < 1 {
		host.CPUCount = 1
	}
	e := &Engine{
		BaseCollector: NewBaseCollector(logger, "collector"),
		enumerator:    enumerator,
		source:        source,
		host:          host,
		workers:       1,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TotalMemoryBytes returns the host memory figure computed at construction.
func (e *Engine) TotalMemoryBytes() uint64 {
	return e.host.TotalMemoryBytes
}

// Host returns the immutable host context.
func (e *Engine) Host() procsource.Host {
	return e.host
}

// Workers returns the configured resolution concurrency.
func (e *Engine) Workers() int {
	return e.workers
}

// Collect runs one pass. PIDs are truncated to maxResults (<= 0 means no cap)
// before any resolution. The returned records are the accessible ones in
// descending PID order; denied processes are counted in the summary and listed
// there only when includeDeniedDetail is set. Collect never fails.
func (e *Engine) Collect(ctx context.Context, maxResults int, includeDeniedDetail bool) ([]models.ProcessRecord, models.AccessSummary) {
	summary := models.AccessSummary{CollectedAt: e.now().UTC()}

	pids, err := e.enumerator.ListPIDs(ctx)
	if err != nil {
		e.LogWarning("pid enumeration failed, continuing with what was found", zap.Error(err))
	}
	summary.TotalFound = len(pids)
	if maxResults > 0 && len(pids) > maxResults {
		pids = pids[:maxResults]
	}

	start := time.Now()
	var resolved []models.ProcessRecord
	if e.workers > 1 && len(pids) > 1 {
		resolved = e.resolveParallel(ctx, pids)
	} else {
		resolved = e.resolveSequential(ctx, pids)
	}

	records := make([]models.ProcessRecord, 0, len(resolved))
	for _, rec := range resolved {
		if rec.Accessible {
			summary.AccessibleCount++
			records = append(records, rec)
			continue
		}
		summary.DeniedCount++
		if includeDeniedDetail {
			name := rec.Name
			if name == "" {
				name = "pid_" + strconv.Itoa(rec.PID)
			}
			summary.DeniedDetails = append(summary.DeniedDetails, models.DeniedProcess{
				PID:   rec.PID,
				Name:  name,
				Error: rec.Error,
			})
		}
	}

	e.LogDebug("collection pass complete",
		zap.Int("found", summary.TotalFound),
		zap.Int("probed", len(pids)),
		zap.Int("accessible", summary.AccessibleCount),
		zap.Int("denied", summary.DeniedCount),
		zap.Int64(logging.KeyDurationMs, time.Since(start).Milliseconds()),
	)
	return records, summary
}

func (e *Engine) resolveSequential(ctx context.Context, pids []int) []models.ProcessRecord {
	out := make([]models.ProcessRecord, len(pids))
	for i, pid := range pids {
		out[i] = e.resolve(ctx, pid)
		e.progress(i+1, len(pids))
	}
	return out
}

// resolveParallel fans PIDs out over a bounded pool. Each task writes only its
// own slot, so the result keeps enumeration order.
func (e *Engine) resolveParallel(ctx context.Context, pids []int) []models.ProcessRecord {
	out := make([]models.ProcessRecord, len(pids))
	for i, pid := range pids {
		out[i] = models.Denied(pid, "", abortedReason)
	}

	pool := workerpool.New(e.Logger().Named("workerpool"), e.workers, len(pids),
		workerpool.WithPanicHandler(func(r any) {
			e.LogError("resolution task panicked outside the metric source", zap.Any("panic", r))
		}),
	)
	var done atomic.Int64
	for i, pid := range pids {
		ok := pool.Submit(func(context.Context) {
			out[i] = e.resolve(ctx, pid)
			e.progress(int(done.Add(1)), len(pids))
		})
		if !ok {
			e.LogWarning("resolution task rejected", zap.Int(logging.KeyPID, pid))
		}
	}
	// every task is bounded by the command timeout, so wait for all of them
	pool.Drain(context.Background())
	if n := pool.Panics(); n > 0 {
		e.LogWarning("resolution tasks panicked", zap.Int64("count", n))
	}
	return out
}

// resolve isolates one PID: a panic or a context cancellation becomes a
// denied record instead of escaping the pass.
func (e *Engine) resolve(ctx context.Context, pid int) (rec models.ProcessRecord) {
	defer func() {
		if r := recover(); r != nil {
			e.LogError("metric source panicked", zap.Int(logging.KeyPID, pid), zap.Any("panic", r))
			rec = models.Denied(pid, "", fmt.Sprintf("metric source panic: %v", r)).Finalized()
		}
	}()

	if err := ctx.Err(); err != nil {
		return models.Denied(pid, "", "collection cancelled: "+err.Error()).Finalized()
	}

	rec = e.source.Resolve(ctx, pid)
	if rec.Accessible && rec.PID != pid {
		return models.Denied(pid, rec.Name, fmt.Sprintf("resolved pid %d for requested pid %d", rec.PID, pid)).Finalized()
	}
	rec.PID = pid
	return rec.Finalized()
}

func (e *Engine) progress(done, total int) {
	if done%progressEvery == 0 || done == total {
		e.LogDebug(fmt.Sprintf("Processing: %d/%d", done, total))
	}
}
