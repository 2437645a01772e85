package random

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSource_Deterministic(t *testing.T) {
	a, b := New(42), New(42)
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Float64(), b.Float64())
	}
	fa, fb := a.Fork(), b.Fork()
	assert.Equal(t, fa.Uint64(), fb.Uint64())
}

func TestSource_Coin(t *testing.T) {
	s := New(1)
	assert.True(t, s.Coin(1))
	assert.False(t, s.Coin(0))

	const n = 200000
	hits := 0
	for i := 0; i < n; i++ {
		if s.Coin(0.3) {
			hits++
		}
	}
	assert.InDelta(t, 0.3, float64(hits)/n, 0.01)
}

func TestSource_Poisson(t *testing.T) {
	s := New(7)
	assert.Equal(t, 0, s.Poisson(0))
	assert.Equal(t, 0, s.Poisson(-1))

	const n = 20000
	sum := 0
	for i := 0; i < n; i++ {
		sum += s.Poisson(3.5)
	}
	assert.InDelta(t, 3.5, float64(sum)/n, 0.1)
}

func TestRotation_PreservesLength(t *testing.T) {
	s := New(3)
	for _, dim := range []int{1, 2, 3, 4} {
		src := make([]float64, dim)
		for k := range src {
			src[k] = float64(k + 1)
		}
		dst := make([]float64, dim)
		for i := 0; i < 20; i++ {
			s.Rotation(dim).Apply(dst, src)
			assert.InDelta(t, norm(src[:min(dim, 3)]), norm(dst[:min(dim, 3)]), 1e-9, "dim %d", dim)
			if dim > 3 {
				assert.Equal(t, src[3], dst[3])
			}
		}
	}
}

func norm(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x * x
	}
	return math.Sqrt(s)
}
