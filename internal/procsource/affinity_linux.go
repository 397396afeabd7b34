//go:build linux

package procsource

import "golang.org/x/sys/unix"

func affinitySlots(pid int) (int, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(pid, &set); err != nil {
		return 0, err
	}
	return set.Count(), nil
}
