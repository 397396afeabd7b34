//go:build !linux && !darwin && !windows

package procsource

import (
	"context"

	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
)

func detect(runner CommandRunner, _ *zap.Logger) Platform {
	return Platform{
		Name:       "unix/ps",
		Enumerator: NewPSEnumerator(runner),
		Memory:     virtualMemoryTotal,
		NewSource: func(d Deps) MetricSource {
			return NewPSSource(runner, d.Host, d.Logger)
		},
	}
}

func virtualMemoryTotal(ctx context.Context) (uint64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return vm.Total, nil
}
