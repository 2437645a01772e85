package rxn

import (
	"math"

	"github.com/daniacca/rxdyn/internal/molec"
	"gonum.org/v1/gonum/floats"
)

// CalcRate recovers the macroscopic rate that the resolved parameters of r
// produce for reactants on surfaces k and l (0 for solution). pgem is the
// geminate rebinding probability of the products, or -1 when the products
// have no true reverse.
func (e *Engine) CalcRate(r *Reaction, k, l int) (rate, pgem float64) {
	s := r.slot(k, l)
	dt := e.dt
	pgem = e.calcPgem(r, k, l)

	switch r.Order {
	case 0:
		vol := e.volume(r)
		if r.prob[s] < 0 || dt <= 0 || vol <= 0 {
			return 0, pgem
		}
		return r.prob[s] / dt / vol, pgem

	case 1:
		p := r.prob[s]
		if p <= 0 || dt <= 0 {
			return 0, pgem
		}
		_, all := e.competitors(r)
		sum, sum2 := 0.0, 0.0
		for _, r2 := range all {
			p2 := r2.prob[r2.slot(k, l)]
			if p2 <= 0 {
				continue
			}
			if r2 == r {
				sum2 = sum
			}
			sum += p2 * (1 - sum)
		}
		if sum >= 1 {
			return math.Inf(1), pgem
		}
		return p * (1 - sum2) / sum * (-math.Log(1-sum) / dt), pgem

	case 2:
		if r.bindrad2[s] < 0 || r.prob[s] < 0 || dt <= 0 {
			return 0, pgem
		}
		states, permitted := ReactantState(r, true)
		if !permitted {
			return 0, pgem
		}
		if r.RevParam == RevConfspread {
			if r.prob[s] >= 1 {
				return math.Inf(1), pgem
			}
			return -math.Log(1-r.prob[s]) / dt, pgem
		}
		dsum := e.store.Difc(r.Reactants[0], states[0], k) + e.store.Difc(r.Reactants[1], states[1], l)
		step := math.Sqrt(2 * dsum * dt)
		a := math.Sqrt(r.bindrad2[s])
		bval := -1.0
		if kind, rev := e.FindReverse(r); kind == TrueReverse && rev.RevParam.usesProductDistance() {
			bval = productDistance(rev, rev.slot(k, l))
		}
		rate = e.model.NumRxnRate(step, a, bval) / dt
		if r.Reactants[0] == r.Reactants[1] {
			rate /= 2
		}
		if (states[0] == molec.Soln) != (states[1] == molec.Soln) {
			rate /= 2
		}
		return rate, pgem
	}
	return 0, pgem
}

// calcPgem returns the geminate rebinding probability of the two products
// of r, or -1 when there is nothing to rebind.
func (e *Engine) calcPgem(r *Reaction, k, l int) float64 {
	if len(r.Products) != 2 || e.dt <= 0 {
		return -1
	}
	kind, rev := e.FindReverse(r)
	if kind != TrueReverse {
		return -1
	}
	rs := rev.slot(k, l)
	if rev.bindrad2[rs] <= 0 {
		return -1
	}
	dsum := e.store.Difc(r.Products[0], r.ProductState[0], k) + e.store.Difc(r.Products[1], r.ProductState[1], l)
	if dsum <= 0 {
		return -1
	}
	step := math.Sqrt(2 * dsum * e.dt)
	a := math.Sqrt(rev.bindrad2[rs])
	b := productDistance(r, r.slot(k, l))
	return 1 - e.model.NumRxnRate(step, a, -1)/e.model.NumRxnRate(step, a, b)
}

// productDistance is the separation of the two product offsets of slot s.
func productDistance(r *Reaction, s int) float64 {
	pos := r.prdpos[s]
	if len(pos) < 2 {
		return 0
	}
	return floats.Distance(pos[0], pos[1], 2)
}

// calcTau returns the characteristic time of r at the current molecule
// counts, +Inf when there is nothing to react.
func (e *Engine) calcTau(r *Reaction, rate float64) float64 {
	switch {
	case r.Order == 1 || (r.Order == 2 && r.RevParam == RevConfspread):
		if rate <= 0 {
			return math.Inf(1)
		}
		return 1 / rate
	case r.Order == 2:
		vol := e.scene.Domain.Volume()
		c1 := float64(e.store.Count(r.Reactants[0], molec.All)) / vol
		c2 := float64(e.store.Count(r.Reactants[1], molec.All)) / vol
		den := rate * c1 * c2
		if den <= 0 {
			return math.Inf(1)
		}
		return (c1 + c2) / den
	}
	return -1
}
