package rxnparam

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumRxnRate_Limits(t *testing.T) {
	m := Default
	assert.Equal(t, 0.0, m.NumRxnRate(1, 0, -1))
	assert.Equal(t, 0.0, m.NumRxnRate(0, 1, -1))

	// Small radius relative to the step is activation limited.
	a := 1e-3
	assert.InEpsilon(t, 4.0/3.0*math.Pi*a*a*a, m.NumRxnRate(1, a, -1), 1e-2)
	// Large radius is diffusion limited.
	a = 1e3
	assert.InEpsilon(t, 2*math.Pi*a, m.NumRxnRate(1, a, -1), 1e-2)
}

func TestNumRxnRate_ReversibleIsFaster(t *testing.T) {
	m := Default
	irr := m.NumRxnRate(0.1, 0.05, -1)
	assert.Greater(t, m.NumRxnRate(0.1, 0.05, 0), m.NumRxnRate(0.1, 0.05, 0.1))
	assert.Greater(t, m.NumRxnRate(0.1, 0.05, 0.1), irr)
}

func TestPgem_Monotone(t *testing.T) {
	m := Default
	prev := m.Pgem(0.1, 0.05, 0)
	assert.Greater(t, prev, 0.0)
	assert.Less(t, prev, 1.0)
	for _, b := range []float64{0.01, 0.05, 0.1, 0.5, 1, 10} {
		p := m.Pgem(0.1, 0.05, b)
		assert.LessOrEqual(t, p, prev, "b=%g", b)
		prev = p
	}
	assert.Equal(t, 0.0, m.Pgem(0.1, 0.05, -1))
}

func TestBindingRadius_RoundTrip(t *testing.T) {
	m := Default
	tests := []struct {
		name  string
		rate  float64
		dt    float64
		difc  float64
		b     float64
		ratio bool
	}{
		{"irreversible", 10, 1e-3, 2, -1, false},
		{"activation limited", 0.01, 1e-2, 1, -1, false},
		{"fixed unbinding", 10, 1e-3, 2, 0.05, false},
		{"ratio", 5, 1e-3, 1, 1.5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := m.BindingRadius(tt.rate, tt.dt, tt.difc, tt.b, tt.ratio)
			require.Greater(t, a, 0.0)
			b := tt.b
			if tt.ratio {
				b *= a
			}
			step := math.Sqrt(2 * tt.difc * tt.dt)
			got := m.NumRxnRate(step, a, b) / tt.dt
			assert.InEpsilon(t, tt.rate, got, 1e-6)
		})
	}
}

func TestBindingRadius_Degenerate(t *testing.T) {
	m := Default
	assert.Equal(t, 0.0, m.BindingRadius(0, 1, 1, -1, false))
	assert.Equal(t, -1.0, m.BindingRadius(-1, 1, 1, -1, false))
	assert.Equal(t, -1.0, m.BindingRadius(1, 1, 0, -1, false))
}

func TestUnbindingRadius(t *testing.T) {
	m := Default
	dt, difc, a := 1e-3, 2.0, 0.02
	step := math.Sqrt(2 * difc * dt)
	pmax := m.Pgem(step, a, 0)

	b := m.UnbindingRadius(0.5*pmax, dt, difc, a)
	require.Greater(t, b, 0.0)
	assert.InDelta(t, 0.5*pmax, m.Pgem(step, a, b), 1e-9)

	assert.InDelta(t, -pmax, m.UnbindingRadius(math.Min(0.999, pmax+0.01), dt, difc, a), 1e-12)
	assert.Equal(t, -2.0, m.UnbindingRadius(0, dt, difc, a))
	assert.Equal(t, -2.0, m.UnbindingRadius(1, dt, difc, a))
	assert.Equal(t, -2.0, m.UnbindingRadius(0.2, dt, 0, a))
}
