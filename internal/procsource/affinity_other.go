//go:build !linux

package procsource

func affinitySlots(int) (int, error) {
	return 0, errAffinityUnsupported
}
