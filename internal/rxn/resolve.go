package rxn

import (
	"math"

	"github.com/daniacca/rxdyn/internal/molec"
)

// ReactantState returns the simplest permitted reactant state combination
// of r, preferring solution states. ok is false when no combination is
// permitted. With convertBsoln, Bsoln is reported as Soln.
func ReactantState(r *Reaction, convertBsoln bool) (states []molec.State, ok bool) {
	const ns = molec.NumStates
	soln, bsoln := molec.Soln, molec.Bsoln
	switch r.Order {
	case 0:
		return nil, true
	case 1:
		ms := molec.None
		switch {
		case r.permit[soln]:
			ms = soln
		case r.permit[bsoln]:
			ms = bsoln
		default:
			for s := range molec.State(ns) {
				if r.permit[s] {
					ms = s
					break
				}
			}
		}
		if ms == molec.None {
			return []molec.State{molec.None}, false
		}
		if convertBsoln {
			ms = ms.Solution()
		}
		return []molec.State{ms}, true
	}

	ms1, ms2 := molec.None, molec.None
	pick := func(a, b molec.State) bool {
		if r.permit[PackState(2, []molec.State{a, b})] {
			ms1, ms2 = a, b
			return true
		}
		return false
	}
	found := pick(soln, soln) || pick(soln, bsoln) || pick(bsoln, soln) || pick(bsoln, bsoln)
	for s := molec.State(0); !found && s < ns; s++ {
		found = pick(s, soln)
	}
	for s := molec.State(0); !found && s < ns; s++ {
		found = pick(soln, s)
	}
	for ms := 0; !found && ms < ns*ns; ms++ {
		if r.permit[ms] {
			st := UnpackState(2, ms)
			ms1, ms2, found = st[0], st[1], true
		}
	}
	if !found {
		return []molec.State{molec.None, molec.None}, false
	}
	if convertBsoln {
		ms1, ms2 = ms1.Solution(), ms2.Solution()
	}
	return []molec.State{ms1, ms2}, true
}

// Reverse kinds returned by FindReverse.
const (
	NoReverse    = 0
	TrueReverse  = 1
	Continuation = 2
)

// FindReverse looks for a reaction that consumes the products of r. A true
// reverse turns them back into the reactants of r and takes precedence over
// a continuation, which merely consumes them. It returns the kind and the
// reaction found, or NoReverse and nil.
func (e *Engine) FindReverse(r *Reaction) (int, *Reaction) {
	nprod := len(r.Products)
	if r.Order == 0 || nprod == 0 || nprod >= MaxOrder {
		return NoReverse, nil
	}
	catr := e.cats[nprod]
	cat := e.cats[r.Order]
	mstater := PackState(nprod, r.ProductState)

	kind := NoReverse
	var found *Reaction
	for _, rr := range catr.Candidates(r.Products...) {
		rxnr := catr.reactions[rr]
		if !rxnr.permit[mstater] {
			continue
		}
		if kind != TrueReverse && len(rxnr.Products) == r.Order && sameSet(r.Reactants, rxnr.Products) {
			mstaterprd := PackState(r.Order, rxnr.ProductState)
			for _, j := range cat.Candidates(rxnr.Products...) {
				if j == r.Index && r.permit[mstaterprd] {
					kind, found = TrueReverse, rxnr
				}
			}
		}
		if kind == NoReverse {
			kind, found = Continuation, rxnr
		}
	}
	return kind, found
}

func sameSet(a, b []molec.Ident) bool {
	switch len(a) {
	case 1:
		return len(b) == 1 && a[0] == b[0]
	case 2:
		return len(b) == 2 && ((a[0] == b[0] && a[1] == b[1]) || (a[0] == b[1] && a[1] == b[0]))
	}
	return len(b) == 0
}

// IsProduct reports whether any reaction produces species id in state ms.
// With displaced, the product must also be placed away from the reaction
// position.
func (e *Engine) IsProduct(id molec.Ident, ms molec.State, displaced bool) bool {
	for _, cat := range e.cats {
		for _, r := range cat.reactions {
			for prd, pid := range r.Products {
				if pid != id || r.ProductState[prd] != ms {
					continue
				}
				if !displaced || r.RevParam == RevConfspread {
					return true
				}
				for s := range r.unbindrad {
					if r.unbindrad[s] > 0 {
						return true
					}
					for _, x := range r.offset(s, prd) {
						if x != 0 {
							return true
						}
					}
				}
			}
		}
	}
	return false
}

// volume is the region order-0 reactions fire in.
func (e *Engine) volume(r *Reaction) float64 {
	switch {
	case r.Compartment != nil:
		return r.Compartment.Volume()
	case r.Surface != nil:
		return r.Surface.Area()
	default:
		return e.scene.Domain.Volume()
	}
}

// competitors returns the order-1 reactions of the same reactant listed
// before r that share a permitted state with it.
func (e *Engine) competitors(r *Reaction) (before, all []*Reaction) {
	cat := e.cats[1]
	seen := false
	for _, j := range cat.Candidates(r.Reactants[0]) {
		r2 := cat.reactions[j]
		if r2 == r {
			seen = true
			all = append(all, r2)
			continue
		}
		shared := false
		for ms := range r.permit {
			if r.permit[ms] && r2.permit[ms] {
				shared = true
				break
			}
		}
		if !shared {
			continue
		}
		all = append(all, r2)
		if !seen {
			before = append(before, r2)
		}
	}
	return before, all
}

// resolveRate derives the probability, and for order 2 the binding radius,
// of r from its requested rate.
func (e *Engine) resolveRate(r *Reaction) error {
	dt := e.dt
	if r.RevParam == RevConfspread {
		if r.Rate < 0 {
			return nil
		}
		if len(r.Products) != r.Order {
			return e.paramErr(r, "confspread reaction has a different number of reactants and products")
		}
		for s := range r.prob {
			r.prob[s] = 1 - math.Exp(-dt*r.Rate)
		}
		return nil
	}

	switch r.Order {
	case 0:
		if r.Rate < 0 {
			return nil
		}
		p := r.Rate * dt * e.volume(r)
		for s := range r.prob {
			r.prob[s] = p
		}

	case 1:
		if r.Rate < 0 {
			return nil
		}
		var sum [molec.NumStates]float64
		for _, j := range e.cats[1].Candidates(r.Reactants[0]) {
			r2 := e.cats[1].reactions[j]
			for ms := range sum {
				if r2.permit[ms] && r2.Rate > 0 {
					sum[ms] += r2.Rate
				}
			}
		}
		total := 0.0
		for ms := range sum {
			if !r.permit[ms] {
				continue
			}
			if total == 0 {
				total = sum[ms]
			} else if total != sum[ms] {
				return e.paramErr(r, "cannot assign reaction probability because different values are needed for different states")
			}
		}

		p := 0.0
		if r.Rate > 0 && total > 0 {
			// Marginal probability of r, then conditioned on no earlier
			// competitor having fired.
			p = r.Rate / total * (1 - math.Exp(-dt*total))
			before, _ := e.competitors(r)
			used := 0.0
			for _, r2 := range before {
				if r2.Rate > 0 {
					used += r2.Rate / total * (1 - math.Exp(-dt*total))
				}
			}
			if used < 1 {
				p /= 1 - used
			}
		}
		for s := range r.prob {
			r.prob[s] = p
		}

		if kind, rev := e.FindReverse(r); kind != NoReverse && rev.Order == 2 && r.RevParam == RevNone {
			r.RevParam = RevPgemMaxW
			r.RevValue = 0.2
		}

	case 2:
		if r.Rate < 0 {
			for s := range r.prob {
				if r.prob[s] < 0 {
					r.prob[s] = 1
				}
			}
			return nil
		}
		i1, i2 := r.Reactants[0], r.Reactants[1]
		states, permitted := ReactantState(r, true)
		ms1, ms2 := states[0], states[1]

		rate3 := r.Rate
		if i1 == i2 {
			rate3 *= 2
		}
		if (ms1 == molec.Soln) != (ms2 == molec.Soln) {
			rate3 *= 2
		}

		rparamt, rparam := RevNone, 0.0
		if kind, rev := e.FindReverse(r); kind == TrueReverse {
			if rev.RevParam == RevNone {
				rev.RevParam = RevPgemMaxW
				rev.RevValue = 0.2
			}
			rparamt, rparam = rev.RevParam, rev.RevValue
		}

		for k := 0; k <= e.nsrf; k++ {
			for l := 0; l <= e.nsrf; l++ {
				s := r.slot(k, l)
				dsum := e.store.Difc(i1, ms1, k) + e.store.Difc(i2, ms2, l)
				if r.prob[s] < 0 {
					r.prob[s] = 1
				}
				var a float64
				switch {
				case !permitted || rate3 <= 0:
					a = 0
				case dsum <= 0:
					return e.paramErr(r, "Both diffusion coefficients are 0")
				case rparamt == RevUnbindRad || rparamt == RevBounce:
					a = e.model.BindingRadius(rate3, dt, dsum, rparam, false)
				case rparamt == RevRatio:
					a = e.model.BindingRadius(rate3, dt, dsum, rparam, true)
				case rparamt == RevPgem:
					a = e.model.BindingRadius(rate3*(1-rparam), dt, dsum, -1, false)
				case rparamt == RevPgemMax || rparamt == RevPgemMaxW:
					a = e.model.BindingRadius(rate3, dt, dsum, 0, false)
					if e.model.UnbindingRadius(rparam, dt, dsum, a) > 0 {
						a = e.model.BindingRadius(rate3*(1-rparam), dt, dsum, -1, false)
					}
				default:
					a = e.model.BindingRadius(rate3, dt, dsum, -1, false)
				}
				if a < 0 {
					return e.paramErr(r, "binding radius could not be computed")
				}
				r.bindrad2[s] = a * a
			}
		}
	}
	return nil
}

func (e *Engine) paramErr(r *Reaction, reason string) *ParamError {
	return &ParamError{Order: r.Order, Index: r.Index, Name: r.Name, Reason: reason}
}
