package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound2(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{1.234, 1.23},
		{1.236, 1.24},
		{99.999, 100},
		{-3.5, 0},
		{math.NaN(), 0},
		{math.Inf(1), 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Round2(tt.in), "Round2(%v)", tt.in)
	}
}

func TestFinalizedAccessibleDropsError(t *testing.T) {
	r := ProcessRecord{PID: 7, CPUPercent: 12.3456, MemoryMegabyte: 10.005, Accessible: true, Error: "stale"}
	got := r.Finalized()

	assert.Equal(t, 12.35, got.CPUPercent)
	assert.Equal(t, "", got.Error)
	assert.True(t, got.Accessible)
	// original is untouched
	assert.Equal(t, "stale", r.Error)
}

func TestFinalizedDeniedAlwaysHasError(t *testing.T) {
	got := ProcessRecord{PID: 9}.Finalized()
	assert.False(t, got.Accessible)
	assert.NotEmpty(t, got.Error)

	got = Denied(9, "", "permission denied").Finalized()
	assert.Equal(t, "permission denied", got.Error)
}

func TestAccessSummaryProbed(t *testing.T) {
	s := AccessSummary{TotalFound: 10, AccessibleCount: 3, DeniedCount: 2}
	assert.Equal(t, 5, s.Probed())
}
