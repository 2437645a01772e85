// Package random wraps the pseudo-random source shared by the reaction
// engine. Every worker of a parallel pass gets its own forked Source.
package random

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat/distuv"
)

// Source is a seeded PCG generator. It is not safe for concurrent use.
type Source struct {
	pcg *rand.PCG
	r   *rand.Rand
}

// New returns a source seeded with seed.
func New(seed uint64) *Source {
	pcg := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	return &Source{pcg: pcg, r: rand.New(pcg)}
}

// Uint64 lets a Source stand in for a rand.Source.
func (s *Source) Uint64() uint64 { return s.pcg.Uint64() }

// Float64 returns a value in [0, 1).
func (s *Source) Float64() float64 { return s.r.Float64() }

// Uniform returns a value in [lo, hi).
func (s *Source) Uniform(lo, hi float64) float64 { return lo + (hi-lo)*s.r.Float64() }

func (s *Source) IntN(n int) int { return s.r.IntN(n) }

// Coin returns true with probability p.
func (s *Source) Coin(p float64) bool {
	if p >= 1 {
		return true
	}
	if p <= 0 {
		return false
	}
	return s.r.Float64() < p
}

// Sign returns +1 or -1 with equal probability.
func (s *Source) Sign() float64 {
	if s.r.Uint64()&1 == 0 {
		return 1
	}
	return -1
}

// Poisson draws a Poisson variate with the given mean; non-positive means
// yield 0.
func (s *Source) Poisson(mean float64) int {
	if !(mean > 0) {
		return 0
	}
	return int(distuv.Poisson{Lambda: mean, Src: s.pcg}.Rand())
}

// Fork derives an independent source from s. Forks taken in the same order
// from equally seeded parents are identical.
func (s *Source) Fork() *Source {
	return New(s.r.Uint64())
}

// Rotation is a random orthogonal transform in dim dimensions. In 1-D it is a
// sign flip, in 2-D a rotation by Angle and in 3-D or more a unit quaternion
// applied to the first three coordinates.
type Rotation struct {
	dim   int
	sign  float64
	angle float64
	q     r3.Rotation
}

// Rotation draws a uniformly distributed rotation.
func (s *Source) Rotation(dim int) Rotation {
	rot := Rotation{dim: dim}
	switch {
	case dim <= 1:
		rot.sign = s.Sign()
	case dim == 2:
		rot.angle = s.Uniform(0, 2*math.Pi)
	default:
		// Shoemake's uniform unit quaternion.
		u1, u2, u3 := s.Float64(), 2*math.Pi*s.Float64(), 2*math.Pi*s.Float64()
		a, b := math.Sqrt(1-u1), math.Sqrt(u1)
		rot.q = r3.Rotation(quat.Number{
			Real: a * math.Sin(u2),
			Imag: a * math.Cos(u2),
			Jmag: b * math.Sin(u3),
			Kmag: b * math.Cos(u3),
		})
	}
	return rot
}

// Apply writes the rotated src into dst. Coordinates beyond the third are
// copied unchanged.
func (rot Rotation) Apply(dst, src []float64) {
	switch {
	case rot.dim <= 1:
		dst[0] = rot.sign * src[0]
	case rot.dim == 2:
		sin, cos := math.Sincos(rot.angle)
		x, y := src[0], src[1]
		dst[0] = cos*x - sin*y
		dst[1] = sin*x + cos*y
	default:
		v := rot.q.Rotate(r3.Vec{X: src[0], Y: src[1], Z: src[2]})
		dst[0], dst[1], dst[2] = v.X, v.Y, v.Z
		copy(dst[3:], src[3:])
	}
}
