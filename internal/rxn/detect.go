package rxn

import (
	"github.com/daniacca/rxdyn/internal/geometry"
	"github.com/daniacca/rxdyn/internal/molec"
	"github.com/daniacca/rxdyn/internal/random"
	"github.com/daniacca/rxdyn/internal/space"
	"gonum.org/v1/gonum/floats"
)

// proposal is a detected reaction waiting to be executed. a and b are in
// catalog reactant order.
type proposal struct {
	r    *Reaction
	et   EventType
	a, b *molec.Molecule
}

// emitFunc receives a detected reaction. consumed reports whether the
// scanning molecule is used up and must not be paired again.
type emitFunc func(p proposal) (consumed bool, err error)

// ZeroOrder fires every zeroth order reaction a Poisson number of times at
// uniformly random sites of its scope.
func (e *Engine) ZeroOrder() error {
	for _, r := range e.cats[0].reactions {
		s := 0
		if r.Surface != nil {
			s = r.slot(r.Surface.Index, r.Surface.Index)
		}
		n := e.rng.Poisson(r.prob[s])
		for range n {
			pos := make([]float64, e.dim)
			var pnl *geometry.Panel
			switch {
			case r.Compartment != nil:
				r.Compartment.RandomPoint(e.rng, pos)
			case r.Surface != nil:
				pnl = r.Surface.RandomPoint(e.rng, pos)
				if pnl == nil {
					continue
				}
			default:
				e.scene.Domain.RandomPoint(e.rng, pos)
			}
			if err := e.execute(r, Rxn0, nil, nil, pos, pnl); err != nil {
				return err
			}
			e.counts[Rxn0]++
		}
	}
	return nil
}

// Unimolecular gives every molecule of a reactive live list one chance to
// react through each of its first order reactions, in catalog order.
func (e *Engine) Unimolecular() error {
	cat := e.cats[1]
	if cat.Len() == 0 {
		return nil
	}
	for ll := range e.store.NumLists() {
		if !cat.Reactive(ll) {
			continue
		}
		for _, m := range e.store.Live(ll) {
			r := e.pickUnimolecular(e.rng, m)
			if r == nil {
				continue
			}
			if err := e.execute(r, Rxn1, m, nil, nil, nil); err != nil {
				return err
			}
			e.counts[Rxn1]++
		}
	}
	return nil
}

// pickUnimolecular returns the first order reaction m undergoes this step,
// or nil. It only reads shared state.
func (e *Engine) pickUnimolecular(rng *random.Source, m *molec.Molecule) *Reaction {
	if !m.Alive() {
		return nil
	}
	cat := e.cats[1]
	sf := m.SurfaceIndex()
	for _, j := range cat.Candidates(m.Ident) {
		r := cat.reactions[j]
		if !inScope(r, m) || !r.permit[m.State] {
			continue
		}
		if rng.Coin(r.prob[r.slot(sf, sf)]) {
			return r
		}
	}
	return nil
}

func inScope(r *Reaction, m *molec.Molecule) bool {
	switch {
	case r.Compartment != nil:
		return r.Compartment.Contains(m.Pos)
	case r.Surface != nil:
		return onSurface(m, r.Surface)
	}
	return true
}

func onSurface(m *molec.Molecule, srf *geometry.Surface) bool {
	return m.Panel != nil && m.Panel.Surface() == srf
}

// Bimolecular tests molecule pairs against their binding radii. With neigh
// false it pairs molecules sharing a box; with neigh true it pairs each
// molecule with those of the neighboring boxes, including periodic images.
func (e *Engine) Bimolecular(neigh bool) error {
	cat := e.cats[2]
	if cat.Len() == 0 {
		return nil
	}
	emit := func(p proposal) (bool, error) {
		err := e.commitPair(p)
		return !p.a.Alive() || !p.b.Alive(), err
	}
	nlist := e.store.NumLists()
	for ll1 := range nlist {
		for ll2 := ll1; ll2 < nlist; ll2++ {
			if !cat.Reactive(ll1, ll2) {
				continue
			}
			mols := e.store.Live(ll1)
			if err := e.scanPairs(e.rng, ll1, ll2, neigh, mols, emit); err != nil {
				return err
			}
		}
	}
	return nil
}

// scanPairs pairs each molecule of mols, all from live list ll1, with the
// molecules of live list ll2 in the same box or, with neigh, in neighboring
// boxes. Accepted pairs go to emit.
func (e *Engine) scanPairs(rng *random.Source, ll1, ll2 int, neigh bool, mols []*molec.Molecule, emit emitFunc) error {
	dim := e.dim
	for _, m1 := range mols {
		if !m1.Alive() || m1.Box < 0 {
			continue
		}
		box := e.part.Box(m1.Box)

		if !neigh {
			if ll2 >= len(box.Mols) {
				continue
			}
			for _, m2 := range box.Mols[ll2] {
				if m2 == m1 {
					// Same-list pairs are visited once.
					if ll1 == ll2 {
						break
					}
					continue
				}
				d := floats.Distance(m1.Pos, m2.Pos, 2)
				consumed, err := e.testPair(rng, m1, m2, d*d, Rxn2Intra, emit)
				if err != nil {
					return err
				}
				if consumed {
					break
				}
			}
			continue
		}

		bmax := len(box.Neighbors)
		if ll1 == ll2 {
			bmax = box.MidNeigh
		}
	neighbors:
		for nb := 0; nb < bmax; nb++ {
			nbox := e.part.Box(box.Neighbors[nb])
			if ll2 >= len(nbox.Mols) {
				continue
			}
			var code uint32
			if box.Wrap != nil {
				code = box.Wrap[nb]
			}
			et := Rxn2Inter
			if code != 0 {
				et = Rxn2Wrap
			}
			for _, m2 := range nbox.Mols[ll2] {
				if m2 == m1 {
					continue
				}
				d2 := 0.0
				for d := range dim {
					x := m1.Pos[d] - m2.Pos[d]
					if code != 0 {
						x += e.part.Period(code, d)
					}
					d2 += x * x
				}
				consumed, err := e.testPair(rng, m1, m2, d2, et, emit)
				if err != nil {
					return err
				}
				if consumed {
					break neighbors
				}
			}
		}
	}
	return nil
}

// testPair checks every bimolecular reaction of m1 and m2 at squared
// separation d2 and emits the first one accepted.
func (e *Engine) testPair(rng *random.Source, m1, m2 *molec.Molecule, d2 float64, et EventType, emit emitFunc) (bool, error) {
	if !m2.Alive() {
		return false, nil
	}
	cat := e.cats[2]
	for _, j := range cat.Candidates(m1.Ident, m2.Ident) {
		r := cat.reactions[j]
		s1, s2 := m1.SurfaceIndex(), m2.SurfaceIndex()
		if m1.Ident != r.Reactants[0] {
			s1, s2 = s2, s1
		}
		s := r.slot(s1, s2)
		if d2 > r.bindrad2[s] {
			continue
		}
		if p := r.prob[s]; p != 1 && !(rng.Float64() < p) {
			continue
		}
		if et != Rxn2Wrap && m1.State == molec.Soln && m2.State == molec.Soln &&
			len(e.scene.Surfaces) > 0 && e.scene.CrossesSurface(m1.Pos, m2.Pos) {
			continue
		}
		a, b, ok := e.orient(r, m1, m2)
		if !ok {
			continue
		}
		consumed, err := emit(proposal{r: r, et: et, a: a, b: b})
		if err != nil || consumed {
			return consumed, err
		}
	}
	return false, nil
}

// orient checks the scope and state permission of r for the pair and
// returns the molecules in reactant order. A solution molecule near a bound
// one counts as Bsoln when it is on the back side of the bound molecule's
// panel.
func (e *Engine) orient(r *Reaction, m1, m2 *molec.Molecule) (a, b *molec.Molecule, ok bool) {
	if r.Compartment != nil && !(r.Compartment.Contains(m1.Pos) && r.Compartment.Contains(m2.Pos)) {
		return nil, nil, false
	}
	if r.Surface != nil && !onSurface(m1, r.Surface) && !onSurface(m2, r.Surface) {
		return nil, nil, false
	}
	a, b = m1, m2
	if m1.Ident != r.Reactants[0] {
		a, b = m2, m1
	}
	msA, msB := a.State, b.State
	if msA == molec.Soln && msB != molec.Soln && b.Panel != nil && b.Panel.Side(a.Pos) != geometry.FaceFront {
		msA = molec.Bsoln
	}
	if msB == molec.Soln && msA != molec.Soln && a.Panel != nil && a.Panel.Side(b.Pos) != geometry.FaceFront {
		msB = molec.Bsoln
	}
	return a, b, r.permit[PackState(2, []molec.State{msA, msB})]
}

// commitPair executes a detected bimolecular reaction. Across a periodic
// wall the faster molecule is first moved onto the slower one so the
// reaction site lies inside the domain.
func (e *Engine) commitPair(p proposal) error {
	if !p.a.Alive() || !p.b.Alive() {
		return nil
	}
	if err := e.store.Reserve(len(p.r.Products)); err != nil {
		return ErrAllocatorFull
	}
	if p.et == Rxn2Wrap && p.r.RevParam != RevConfspread {
		da := e.store.Difc(p.a.Ident, p.a.State, p.a.SurfaceIndex())
		db := e.store.Difc(p.b.Ident, p.b.State, p.b.SurfaceIndex())
		if da < db {
			copy(p.b.Pos, p.a.Pos)
		} else {
			copy(p.a.Pos, p.b.Pos)
		}
	}
	if err := e.execute(p.r, p.et, p.a, p.b, nil, nil); err != nil {
		return err
	}
	e.counts[p.et]++
	return nil
}

// checkReady guards the individual detection entry points. Live lists added
// to the store since the last update leave both the catalogs and the boxes
// behind.
func (e *Engine) checkReady() error {
	if n := e.store.NumLists(); n != e.cats[1].nlist {
		e.SetCondition(-1, space.CondLists, space.Downgrade)
		e.part.SetNumLists(n)
	}
	if c := e.Condition(); c != space.CondReady {
		return setupErrorf("detect", "reactions are not ready: %s", c)
	}
	if c := e.part.Condition(); c != space.CondReady {
		return setupErrorf("detect", "box structure is not ready: %s", c)
	}
	return nil
}
