//go:build linux

package procsource

import "go.uber.org/zap"

func detect(_ CommandRunner, _ *zap.Logger) Platform {
	return Platform{
		Name:       "linux/procfs",
		Enumerator: NewProcFSEnumerator(DefaultProcRoot),
		Memory:     ProcMeminfoProbe(DefaultProcRoot),
		NewSource: func(d Deps) MetricSource {
			return NewProcFSSource(DefaultProcRoot, d.Sampler, d.Logger)
		},
	}
}
