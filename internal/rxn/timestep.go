package rxn

import (
	"github.com/daniacca/rxdyn/internal/molec"
	"github.com/daniacca/rxdyn/internal/space"
)

// SetTimeStep resolves every reaction parameter for time step dt: rates
// become probabilities and binding radii, placement methods become product
// offsets. On failure the first offending reaction is reported and no
// catalog is marked ready.
func (e *Engine) SetTimeStep(dt float64) error {
	if !(dt > 0) {
		return setupErrorf("set time step", "time step %g must be positive", dt)
	}
	if dt != e.dt {
		e.dt = dt
		e.SetCondition(-1, space.CondParams, space.Downgrade)
	}
	if e.Condition() < space.CondParams {
		e.UpdateLists()
	}
	e.part.Update(e.store)
	if e.Condition() == space.CondReady {
		return nil
	}

	// Binding radii of reverse reactions feed product placement, so every
	// rate is resolved before any product.
	for _, cat := range e.cats {
		for _, r := range cat.reactions {
			if err := e.resolveRate(r); err != nil {
				return err
			}
		}
	}
	for _, cat := range e.cats {
		for _, r := range cat.reactions {
			if err := e.resolveProducts(r); err != nil {
				return err
			}
		}
	}
	for _, cat := range e.cats {
		for _, r := range cat.reactions {
			for k := 0; k <= e.nsrf; k++ {
				for l := 0; l <= e.nsrf; l++ {
					rate, pgem := e.CalcRate(r, k, l)
					s := r.slot(k, l)
					r.tau[s] = e.calcTau(r, rate)
					r.pgem[s] = pgem
				}
			}
		}
	}
	e.SetCondition(-1, space.CondReady, space.Upgrade)
	e.logger.Debugf("reaction parameters resolved for time step %g", dt)
	return nil
}

// UpdateLists rebuilds the table of live list combinations that can react.
func (e *Engine) UpdateLists() {
	nlist := e.store.NumLists()
	e.part.SetNumLists(nlist)
	for _, cat := range e.cats {
		cat.nlist = nlist
		switch cat.order {
		case 1:
			cat.mollist = make([]bool, nlist)
		case 2:
			cat.mollist = make([]bool, nlist*nlist)
		default:
			cat.mollist = nil
		}
		for _, r := range cat.reactions {
			switch r.Order {
			case 1:
				if !(r.prob[0] > 0 || r.Rate > 0) {
					continue
				}
				for ms := range molec.State(molec.NumStates) {
					if r.permit[ms] {
						cat.mollist[e.store.ListLookup(r.Reactants[0], ms)] = true
					}
				}
			case 2:
				if r.prob[0] == 0 || !(r.Rate > 0 || r.bindrad2[0] > 0) {
					continue
				}
				for ms, ok := range r.permit {
					if !ok {
						continue
					}
					st := UnpackState(2, ms)
					ll1 := e.store.ListLookup(r.Reactants[0], st[0])
					ll2 := e.store.ListLookup(r.Reactants[1], st[1])
					cat.mollist[ll1*nlist+ll2] = true
					cat.mollist[ll2*nlist+ll1] = true
				}
			}
		}
	}
	e.SetCondition(-1, space.CondParams, space.Upgrade)
}
