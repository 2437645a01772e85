package rxn

import (
	"github.com/daniacca/rxdyn/internal/geometry"
	"github.com/daniacca/rxdyn/internal/molec"
	"github.com/daniacca/rxdyn/internal/random"
	"gonum.org/v1/gonum/floats"
)

// execute replaces the reactants of r with its products. a and b are the
// reactants in catalog order, nil beyond the reaction order. For order 0,
// pos and pnl give the reaction site. Products join the live lists at the
// next Sort; the reactants are killed. When the store cannot take every
// product nothing is changed.
func (e *Engine) execute(r *Reaction, et EventType, a, b *molec.Molecule, pos []float64, pnl *geometry.Panel) error {
	if err := e.store.Reserve(len(r.Products)); err != nil {
		return ErrAllocatorFull
	}
	reactants := make([]*molec.Molecule, 0, 2)
	for _, m := range []*molec.Molecule{a, b} {
		if m != nil {
			reactants = append(reactants, m)
		}
	}
	sf1, sf2 := 0, 0
	if a != nil {
		sf1 = a.SurfaceIndex()
		sf2 = sf1
	}
	if b != nil {
		sf2 = b.SurfaceIndex()
	}
	s := r.slot(sf1, sf2)

	// Reaction site.
	var rxnpos []float64
	switch {
	case r.RevParam == RevConfspread:
	case r.Order == 0:
		rxnpos = pos
	case r.Order == 1:
		rxnpos = a.Pos
		pnl = a.Panel
	default:
		if a == nil || b == nil {
			invariant("order %d reaction %s executed without its reactants", r.Order, r.Name)
		}
		dc1 := e.store.Difc(a.Ident, a.State, sf1)
		dc2 := e.store.Difc(b.Ident, b.State, sf2)
		x := 0.5
		if dc1+dc2 > 0 {
			x = dc2 / (dc1 + dc2)
		}
		rxnpos = make([]float64, e.dim)
		floats.ScaleTo(rxnpos, 1-x, b.Pos)
		floats.AddScaled(rxnpos, x, a.Pos)
		pnl = a.Panel
		if pnl == nil {
			pnl = b.Panel
		} else if b.Panel != nil && b.Panel.Contains(rxnpos) {
			pnl = b.Panel
		}
	}

	var (
		rot     random.Rotation
		rotated bool
		dir     []float64
		dist    float64
	)
	products := make([]*molec.Molecule, 0, len(r.Products))
	for prd, id := range r.Products {
		m, err := e.store.Alloc()
		if err != nil {
			invariant("allocation failed after reserving %d products: %v", len(r.Products), err)
		}
		m.Ident = id
		products = append(products, m)

		switch {
		case r.RevParam == RevConfspread:
			src := reactants[prd]
			copy(m.Pos, src.Pos)
			m.State = src.State
			if src.State != molec.Soln {
				m.Panel = src.Panel
			}

		case r.RevParam == RevBounce && b != nil:
			if dir == nil {
				dir = make([]float64, e.dim)
				floats.SubTo(dir, b.Pos, a.Pos)
				dist = floats.Norm(dir, 2)
			}
			m.State = r.ProductState[prd]
			copy(m.Pos, rxnpos)
			if dist > 0 {
				floats.AddScaled(m.Pos, -r.prdpos[s][prd][0]/dist, dir)
			}
			if m.State != molec.Soln {
				m.Panel = reactants[min(prd, len(reactants)-1)].Panel
			}

		default:
			copy(m.Pos, rxnpos)
			m.State = r.ProductState[prd]
			m.Panel = pnl
			if pnl == nil {
				m.State = m.State.Solution()
			} else {
				eps := e.scene.Epsilon
				switch m.State {
				case molec.Soln:
					m.Panel = nil
					pnl.Fix(m.Pos, geometry.FaceFront, eps)
				case molec.Bsoln:
					m.State = molec.Soln
					m.Panel = nil
					pnl.Fix(m.Pos, geometry.FaceBack, eps)
				case molec.Front:
					pnl.Fix(m.Pos, geometry.FaceFront, eps)
				case molec.Back:
					pnl.Fix(m.Pos, geometry.FaceBack, eps)
				default:
					pnl.Fix(m.Pos, geometry.FaceNone, eps)
				}
			}
			off := r.offset(s, prd)
			if off == nil || floats.Norm(off, 2) == 0 {
				break
			}
			if r.RevParam == RevFixed {
				floats.Add(m.Pos, off)
				break
			}
			if !rotated {
				rot, rotated = e.rng.Rotation(e.dim), true
			}
			v := make([]float64, e.dim)
			rot.Apply(v, off)
			floats.Add(m.Pos, v)
		}
	}

	ev := Event{Type: et, Reaction: r, Products: products}
	for _, m := range reactants {
		ev.Reactants = append(ev.Reactants, m.Ident)
		e.store.Kill(m)
	}
	if rxnpos != nil {
		ev.Position = append([]float64(nil), rxnpos...)
	}
	e.notify(ev)
	return nil
}
