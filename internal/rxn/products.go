package rxn

import (
	"fmt"
	"math"
)

// resolveProducts derives the unbinding radius and product offsets of r from
// its placement method, for every surface pair.
func (e *Engine) resolveProducts(r *Reaction) error {
	rp, rpar := r.RevParam, r.RevValue
	switch len(r.Products) {
	case 0:
		if rp != RevNone && rp != RevIrrev {
			return e.paramErr(r, "Illegal product parameter because reaction has no products")
		}
		return nil
	case 1:
		switch rp {
		case RevNone, RevIrrev, RevBounce, RevConfspread, RevOffset, RevFixed:
		default:
			return e.paramErr(r, "Illegal product parameter because reaction only has one product")
		}
		// Single products sit at the reaction position unless offset.
		if rp != RevOffset && rp != RevFixed {
			for s := range r.unbindrad {
				r.unbindrad[s] = 0
			}
		}
		return nil
	case 2:
	default:
		return nil
	}

	if rp == RevIrrev || rp == RevConfspread || rp == RevOffset || rp == RevFixed {
		for s := range r.unbindrad {
			r.unbindrad[s] = 0
		}
		return nil
	}

	kind, rev := e.FindReverse(r)
	if kind != TrueReverse {
		rev = nil
	}

	ms1 := r.ProductState[0].Solution()
	ms2 := r.ProductState[1].Solution()
	for k := 0; k <= e.nsrf; k++ {
		for l := 0; l <= e.nsrf; l++ {
			s := r.slot(k, l)
			dc1 := e.store.Difc(r.Products[0], ms1, k)
			dc2 := e.store.Difc(r.Products[1], ms2, l)
			dsum := dc1 + dc2

			if rev == nil {
				switch rp {
				case RevPgem, RevPgemMax, RevPgemMaxW, RevRatio, RevPgem2, RevPgemMax2, RevRatio2:
					return e.paramErr(r, "Illegal product parameter because products don't react")
				case RevUnbindRad:
					if dsum == 0 {
						dc1, dc2, dsum = 1, 1, 2
					}
					r.splitProducts(s, rpar, dc1, dc2, dsum)
				case RevBounce:
					r.unbindrad[s] = rpar
					r.prdpos[s][0][0] = 0
					r.prdpos[s][1][0] = rpar
				default:
					r.unbindrad[s] = 0
				}
				continue
			}

			bindradr := -1.0
			if b2 := rev.bindrad2[rev.slot(k, l)]; b2 >= 0 {
				bindradr = math.Sqrt(b2)
			}
			if dsum <= 0 {
				return e.paramErr(r, "Cannot set unbinding distance because sum of product diffusion constants is 0")
			}
			if rp == RevNone {
				return e.paramErr(r, "Undefined product parameter for reversible reaction")
			}
			if rp == RevUnbindRad || rp == RevBounce {
				r.splitProducts(s, rpar, dc1, dc2, dsum)
				continue
			}
			if bindradr < 0 {
				return e.paramErr(r, "Binding radius of reaction products is undefined")
			}

			switch rp {
			case RevRatio, RevRatio2:
				r.splitProducts(s, rpar*bindradr, dc1, dc2, dsum)
			case RevPgem, RevPgem2:
				u := e.model.UnbindingRadius(rpar, e.dt, dsum, bindradr)
				if u == -2 {
					return e.paramErr(r, "Cannot create an unbinding radius due to illegal input values")
				}
				if u < 0 {
					return e.paramErr(r, fmt.Sprintf("Maximum possible geminate binding probability is %g", -u))
				}
				r.splitProducts(s, u, dc1, dc2, dsum)
			case RevPgemMax, RevPgemMaxW, RevPgemMax2:
				u := e.model.UnbindingRadius(rpar, e.dt, dsum, bindradr)
				if u == -2 {
					return e.paramErr(r, "Illegal input values")
				}
				if u <= 0 {
					r.unbindrad[s] = 0
					for prd := range r.prdpos[s] {
						clear(r.prdpos[s][prd])
					}
				} else {
					r.splitProducts(s, u, dc1, dc2, dsum)
				}
			}
		}
	}
	return nil
}

// splitProducts separates the two products by dist along the first axis,
// each displaced in proportion to its diffusion constant so the diffusion
// weighted center stays at the reaction position.
func (r *Reaction) splitProducts(s int, dist, dc1, dc2, dsum float64) {
	r.unbindrad[s] = dist
	for prd := range r.prdpos[s] {
		clear(r.prdpos[s][prd])
	}
	r.prdpos[s][0][0] = dist * dc1 / dsum
	r.prdpos[s][1][0] = -dist * dc2 / dsum
}

