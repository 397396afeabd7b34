package procsource

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestSampler(pct float64, pctErr error, slots int, slotErr error) *Sampler {
	s := NewSampler(nil, 8)
	s.percent = func(context.Context, int, time.Duration) (float64, error) { return pct, pctErr }
	s.affinity = func(int) (int, error) { return slots, slotErr }
	return s
}

func TestSamplerDividesByAffinitySlots(t *testing.T) {
	s := newTestSampler(200, nil, 4, nil)
	assert.InDelta(t, 50.0, s.Sample(context.Background(), 1, time.Second), 1e-9)
}

func TestSamplerFallsBackToLogicalCPUs(t *testing.T) {
	s := newTestSampler(200, nil, 0, errAffinityUnsupported)
	assert.InDelta(t, 25.0, s.Sample(context.Background(), 1, time.Second), 1e-9)
}

func TestSamplerNoSignalIsZero(t *testing.T) {
	assert.Zero(t, newTestSampler(0, errors.New("gone"), 4, nil).Sample(context.Background(), 1, time.Second))
	assert.Zero(t, newTestSampler(-1, nil, 4, nil).Sample(context.Background(), 1, time.Second))
	assert.Zero(t, newTestSampler(math.NaN(), nil, 4, nil).Sample(context.Background(), 1, time.Second))
}

func TestSamplerMeasureSeparatesIdleFromNoSignal(t *testing.T) {
	idle, ok := newTestSampler(0, nil, 4, nil).Measure(context.Background(), 1, time.Second)
	assert.True(t, ok)
	assert.Zero(t, idle)

	failed, ok := newTestSampler(0, errors.New("gone"), 4, nil).Measure(context.Background(), 1, time.Second)
	assert.False(t, ok)
	assert.Zero(t, failed)

	_, ok = newTestSampler(math.Inf(1), nil, 4, nil).Measure(context.Background(), 1, time.Second)
	assert.False(t, ok)
}

func TestNewSamplerClampsLogicalCPUs(t *testing.T) {
	assert.Equal(t, 1, NewSampler(nil, 0).logicalCPUs)
}
