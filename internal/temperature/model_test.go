package temperature

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFreshElementStartsAtInitial(t *testing.T) {
	m := NewModel(1.0, 0.1)
	assert.Equal(t, 1.0, m.At(10, 10))
}

func TestExponentialDecay(t *testing.T) {
	m := NewModel(2.0, 0.5)

	assert.InDelta(t, 2.0*math.Exp(-0.5), m.At(0, 1), 1e-12)
	assert.InDelta(t, 2.0*math.Exp(-5.0), m.At(0, 10), 1e-12)

	// Monotonically non-increasing with age.
	prev := m.At(0, 0)
	for step := int64(1); step <= 50; step++ {
		cur := m.At(0, step)
		assert.LessOrEqual(t, cur, prev, "temperature rose at step %d", step)
		prev = cur
	}
}

func TestZeroDecayRateNeverCools(t *testing.T) {
	m := NewModel(1.5, 0)
	for _, step := range []int64{0, 1, 100, 1_000_000} {
		assert.Equal(t, 1.5, m.At(0, step))
	}
}

func TestTemperatureStaysWithinBounds(t *testing.T) {
	m := NewModel(1.0, 3.0)
	for step := int64(0); step < 1000; step += 37 {
		got := m.At(0, step)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, m.Initial())
	}
}

func TestActivityWeigherFloor(t *testing.T) {
	m := NewModel(1.0, 1.0)
	w := NewActivityWeigher(m, 0.02)

	// Hot vertex: weight tracks temperature.
	assert.InDelta(t, 1.0, w.Weight(5, 5), 1e-12)

	// Ancient vertex: decayed far below the floor, weight pinned at it.
	assert.Equal(t, 0.02, w.Weight(0, 500))
}

func TestActivityWeigherFloorClamping(t *testing.T) {
	m := NewModel(2.0, 0.1)

	assert.Equal(t, 0.0, NewActivityWeigher(m, -1).Weight(0, 10_000))
	// A floor fraction above 1 clamps to T0, making every vertex equal weight.
	assert.Equal(t, 2.0, NewActivityWeigher(m, 5).Weight(0, 10_000))
}
