// Package rxnparam relates the macroscopic rate of a bimolecular reaction to
// its simulation parameters: binding radius, unbinding radius and time step.
//
// The model is a closed-form approximation for three-dimensional Brownian
// pairs. Within one step of rms displacement step = sqrt(2*Dsum*dt), a pair
// reacts when it ends the step closer than the binding radius a. The expected
// number of reactions per unit concentration per step combines the
// diffusion-limited flux 2*pi*step^2*a with the activation-limited ball
// volume 4/3*pi*a^3 harmonically. Products placed at separation b rebind with
// the geminate probability Pgem(step, a, b); the net reversible rate is the
// irreversible rate divided by 1-Pgem.
package rxnparam

import "math"

const (
	maxIter = 200
	relTol  = 1e-13
)

// Model evaluates the rate functions. The zero value is ready to use.
type Model struct{}

// Default is the model used by the reaction engine.
var Default Model

func (Model) irreversible(step, a float64) float64 {
	if a <= 0 || step <= 0 {
		return 0
	}
	x := 2 * math.Pi * step * step * a
	y := 4.0 / 3.0 * math.Pi * a * a * a
	return x * y / (x + y)
}

// ballHit is the probability that a Gaussian step with per-axis deviation
// sigma, starting at distance b from the origin, ends inside radius a.
func ballHit(sigma, a, b float64) float64 {
	s2 := math.Sqrt2 * sigma
	if b < 1e-8*sigma {
		u := a / sigma
		return math.Erf(a/s2) - math.Sqrt(2/math.Pi)*u*math.Exp(-u*u/2)
	}
	em := (a - b) / sigma
	ep := (a + b) / sigma
	p := 0.5*(math.Erf((a-b)/s2)+math.Erf((a+b)/s2)) -
		sigma/(b*math.Sqrt(2*math.Pi))*(math.Exp(-em*em/2)-math.Exp(-ep*ep/2))
	return min(max(p, 0), 1)
}

// Pgem returns the probability that a pair placed at separation b rebinds
// before escaping, for binding radius a. It is 0 for b < 0, largest at b = 0
// and decreases monotonically with b.
func (Model) Pgem(step, a, b float64) float64 {
	if b < 0 || a <= 0 || step <= 0 {
		return 0
	}
	p1 := ballHit(step, a, b)
	gamma := 1 / (1 + 3*step*step/(2*a*a))
	later := gamma * a / (max(a, b) + step)
	return 1 - (1-p1)*(1-later)
}

// NumRxnRate returns the expected number of reactions per step per unit
// concentration for binding radius a, rms step length step and unbinding
// radius b. b < 0 means irreversible.
func (m Model) NumRxnRate(step, a, b float64) float64 {
	k := m.irreversible(step, a)
	if b < 0 {
		return k
	}
	return k / (1 - m.Pgem(step, a, b))
}

// BindingRadius returns the binding radius that yields rate for a pair with
// diffusion coefficient sum difc at time step dt. With ratio false b is the
// unbinding radius (negative for irreversible); with ratio true the unbinding
// radius is b times the binding radius. It returns 0 for a zero rate and -1
// for invalid input.
func (m Model) BindingRadius(rate, dt, difc, b float64, ratio bool) float64 {
	if rate == 0 {
		return 0
	}
	if rate < 0 || dt <= 0 || difc <= 0 || (ratio && b < 0) {
		return -1
	}
	step := math.Sqrt(2 * difc * dt)
	target := rate * dt
	f := func(a float64) float64 {
		bb := b
		if ratio {
			bb = b * a
		}
		return m.NumRxnRate(step, a, bb)
	}

	lo, hi := 0.0, step
	for i := 0; f(hi) < target; i++ {
		if i > maxIter {
			return -1
		}
		lo, hi = hi, 2*hi
	}
	return bisect(f, target, lo, hi, true)
}

// UnbindingRadius returns the product separation at which the geminate
// rebinding probability equals pgem. It returns -2 for invalid input and
// -pmax when pgem exceeds the largest achievable probability pmax.
func (m Model) UnbindingRadius(pgem, dt, difc, a float64) float64 {
	if pgem <= 0 || pgem >= 1 || dt <= 0 || difc <= 0 || a <= 0 {
		return -2
	}
	step := math.Sqrt(2 * difc * dt)
	pmax := m.Pgem(step, a, 0)
	if pgem > pmax {
		return -pmax
	}
	f := func(b float64) float64 { return m.Pgem(step, a, b) }

	lo, hi := 0.0, a+step
	for i := 0; f(hi) > pgem; i++ {
		if i > maxIter {
			return -2
		}
		lo, hi = hi, 2*hi
	}
	return bisect(f, pgem, lo, hi, false)
}

// bisect finds x in [lo, hi] with f(x) = target for f monotone in the given
// direction.
func bisect(f func(float64) float64, target, lo, hi float64, increasing bool) float64 {
	for range maxIter {
		mid := 0.5 * (lo + hi)
		if (f(mid) < target) == increasing {
			lo = mid
		} else {
			hi = mid
		}
		if hi-lo <= relTol*hi {
			break
		}
	}
	return 0.5 * (lo + hi)
}
