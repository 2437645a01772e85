package rxn

import (
	"math"

	"github.com/daniacca/rxdyn/internal/geometry"
	"github.com/daniacca/rxdyn/internal/molec"
)

// Reaction is one entry of a catalog. Per-surface-pair tables are indexed by
// the 1-based surface index of each reactant, 0 meaning solution; orders 0
// and 1 use the diagonal.
type Reaction struct {
	Name  string
	Order int
	Index int

	Reactants     []molec.Ident
	ReactantState []molec.State
	Products      []molec.Ident
	ProductState  []molec.State

	// Rate is the requested macroscopic rate; negative means unset.
	Rate     float64
	RevParam RevParam
	RevValue float64

	Compartment *geometry.Compartment
	Surface     *geometry.Surface

	permit []bool
	nsrf   int

	bindrad2  []float64
	prob      []float64
	tau       []float64
	unbindrad []float64
	pgem      []float64
	prdpos    [][][]float64
}

func newReaction(order, nsrf int) *Reaction {
	n := (nsrf + 1) * (nsrf + 1)
	r := &Reaction{
		Order:     order,
		Rate:      -1,
		permit:    make([]bool, numPermits(order)),
		nsrf:      nsrf,
		bindrad2:  filled(n, -1),
		prob:      filled(n, -10),
		tau:       filled(n, -1),
		unbindrad: filled(n, -1),
		pgem:      filled(n, -1),
		prdpos:    make([][][]float64, n),
	}
	return r
}

func filled(n int, v float64) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func (r *Reaction) slot(k, l int) int { return k*(r.nsrf+1) + l }

func (r *Reaction) slots() int { return len(r.prob) }

// Permit reports whether the packed reactant state combination may react.
func (r *Reaction) Permit(ms int) bool { return r.permit[ms] }

// PermitStates reports whether the given reactant states may react.
func (r *Reaction) PermitStates(states ...molec.State) bool {
	return r.permit[PackState(r.Order, states)]
}

func (r *Reaction) Prob(k, l int) float64         { return r.prob[r.slot(k, l)] }
func (r *Reaction) BindRadius2(k, l int) float64  { return r.bindrad2[r.slot(k, l)] }
func (r *Reaction) UnbindRadius(k, l int) float64 { return r.unbindrad[r.slot(k, l)] }
func (r *Reaction) Pgem(k, l int) float64         { return r.pgem[r.slot(k, l)] }
func (r *Reaction) Tau(k, l int) float64          { return r.tau[r.slot(k, l)] }

// BindRadius returns the binding radius, or -1 when it is not set.
func (r *Reaction) BindRadius(k, l int) float64 {
	b2 := r.bindrad2[r.slot(k, l)]
	if b2 < 0 {
		return -1
	}
	return math.Sqrt(b2)
}

// ProductOffset returns the placement offset of product prd relative to the
// reaction position. It is nil when the product sits at the reaction
// position.
func (r *Reaction) ProductOffset(k, l, prd int) []float64 {
	pos := r.prdpos[r.slot(k, l)]
	if prd >= len(pos) {
		return nil
	}
	return pos[prd]
}

func (r *Reaction) offset(s, prd int) []float64 {
	if prd >= len(r.prdpos[s]) {
		return nil
	}
	return r.prdpos[s][prd]
}

// setOffset stores a product offset for slot s, allocating as needed.
func (r *Reaction) setOffset(s, prd, dim int, v []float64) {
	for len(r.prdpos[s]) < len(r.Products) {
		r.prdpos[s] = append(r.prdpos[s], make([]float64, dim))
	}
	if v == nil {
		clear(r.prdpos[s][prd])
		return
	}
	copy(r.prdpos[s][prd], v)
}

// IsConfspread reports whether products take the places of the reactants.
func (r *Reaction) IsConfspread() bool { return r.RevParam == RevConfspread }
