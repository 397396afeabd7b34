//go:build darwin

package procsource

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

func detect(runner CommandRunner, _ *zap.Logger) Platform {
	return Platform{
		Name:       "darwin/ps",
		Enumerator: NewPSEnumerator(runner),
		Memory:     sysctlMemsize,
		NewSource: func(d Deps) MetricSource {
			return NewPSSource(runner, d.Host, d.Logger)
		},
	}
}

func sysctlMemsize(context.Context) (uint64, error) {
	return unix.SysctlUint64("hw.memsize")
}
