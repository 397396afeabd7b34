//go:build windows

package procsource

import "go.uber.org/zap"

func detect(runner CommandRunner, _ *zap.Logger) Platform {
	return Platform{
		Name:       "windows/powershell",
		Enumerator: NewPowerShellEnumerator(runner),
		Memory:     PowerShellMemoryProbe(runner),
		NewSource: func(d Deps) MetricSource {
			return NewPowerShellSource(runner, d.Sampler, d.Logger)
		},
	}
}
