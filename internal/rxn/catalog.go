package rxn

import (
	"github.com/daniacca/rxdyn/internal/geometry"
	"github.com/daniacca/rxdyn/internal/molec"
	"github.com/daniacca/rxdyn/internal/space"
)

// Catalog lists the reactions of one order with an index from packed
// reactant identities to the reactions that could apply.
type Catalog struct {
	order      int
	maxSpecies int
	reactions  []*Reaction
	byName     map[string]*Reaction
	table      [][]int

	// mollist flags live list combinations that can react, nlist^order entries.
	mollist []bool
	nlist   int
	cond    space.Condition
}

func newCatalog(order, maxSpecies int) *Catalog {
	size := 1
	for range order {
		size *= maxSpecies
	}
	return &Catalog{
		order:      order,
		maxSpecies: maxSpecies,
		byName:     make(map[string]*Reaction),
		table:      make([][]int, size),
	}
}

func (c *Catalog) Order() int                 { return c.order }
func (c *Catalog) Len() int                   { return len(c.reactions) }
func (c *Catalog) Reaction(i int) *Reaction   { return c.reactions[i] }
func (c *Catalog) Condition() space.Condition { return c.cond }

func (c *Catalog) Find(name string) (*Reaction, bool) {
	r, ok := c.byName[name]
	return r, ok
}

// Candidates returns the indices of reactions whose reactants, in this order,
// are idents.
func (c *Catalog) Candidates(idents ...molec.Ident) []int {
	return c.table[PackIdent(c.order, c.maxSpecies, idents)]
}

// Reactive reports whether molecules of the given live lists can react.
func (c *Catalog) Reactive(lists ...int) bool {
	if c.mollist == nil {
		return false
	}
	for _, ll := range lists {
		if ll < 0 || ll >= c.nlist {
			return false
		}
	}
	switch c.order {
	case 1:
		return c.mollist[lists[0]]
	case 2:
		return c.mollist[lists[0]*c.nlist+lists[1]]
	}
	return false
}

// Scope restricts a reaction to a compartment or a surface. At most one may
// be set.
type Scope struct {
	Compartment *geometry.Compartment
	Surface     *geometry.Surface
}

// AddReaction creates reaction name or, when a reaction of that name exists
// without products, gives it the products. For orders above 0 the declared
// reactant states are permitted; a state of All permits every state.
func (e *Engine) AddReaction(order int, name string, reactants []molec.Ident, rstates []molec.State,
	products []molec.Ident, pstates []molec.State, scope Scope) (*Reaction, error) {
	const op = "add reaction"
	if order < 0 || order >= MaxOrder {
		return nil, setupErrorf(op, "order %d out of range", order)
	}
	if name == "" {
		return nil, setupErrorf(op, "reaction name is required")
	}
	if len(reactants) != order || len(rstates) != order {
		return nil, setupErrorf(op, "reaction %s: expected %d reactants", name, order)
	}
	if len(products) != len(pstates) {
		return nil, setupErrorf(op, "reaction %s: %d products but %d product states", name, len(products), len(pstates))
	}
	if scope.Compartment != nil && scope.Surface != nil {
		return nil, setupErrorf(op, "reaction %s: cannot be scoped to both a compartment and a surface", name)
	}
	for i, id := range reactants {
		if id <= molec.Void || int(id) >= e.maxSpecies {
			return nil, setupErrorf(op, "reaction %s: reactant %d identity %d out of range", name, i, id)
		}
		if !rstates[i].Valid() && rstates[i] != molec.All {
			return nil, setupErrorf(op, "reaction %s: reactant %d state %s out of range", name, i, rstates[i])
		}
	}
	for i, id := range products {
		if id <= molec.Void || int(id) >= e.maxSpecies {
			return nil, setupErrorf(op, "reaction %s: product %d identity %d out of range", name, i, id)
		}
		if !pstates[i].Valid() {
			return nil, setupErrorf(op, "reaction %s: product %d state %s out of range", name, i, pstates[i])
		}
	}

	cat := e.cats[order]
	r, ok := e.Find(name)
	if ok {
		if r.Order != order {
			return nil, setupErrorf(op, "reaction %s already defined with order %d", name, r.Order)
		}
		if len(r.Products) > 0 {
			return nil, setupErrorf(op, "reaction %s already has products", name)
		}
	} else {
		r = newReaction(order, e.nsrf)
		r.Name = name
		r.Index = len(cat.reactions)
		r.Reactants = append([]molec.Ident(nil), reactants...)
		r.ReactantState = append([]molec.State(nil), rstates...)
		r.Compartment = scope.Compartment
		r.Surface = scope.Surface
		if order > 0 {
			e.setPermit(r, rstates, true)
			for _, perm := range permutations(reactants) {
				key := PackIdent(order, cat.maxSpecies, perm)
				cat.table[key] = append(cat.table[key], r.Index)
			}
		}
		cat.reactions = append(cat.reactions, r)
		cat.byName[name] = r
	}

	r.Products = append([]molec.Ident(nil), products...)
	r.ProductState = append([]molec.State(nil), pstates...)
	for s := range r.prdpos {
		r.prdpos[s] = nil
		for range products {
			r.prdpos[s] = append(r.prdpos[s], make([]float64, e.dim))
		}
	}

	e.SetCondition(-1, space.CondLists, space.Downgrade)
	return r, nil
}

// SetPermission allows or forbids the reactant state combination states of
// r. Each entry may be All to match every state.
func (e *Engine) SetPermission(r *Reaction, states []molec.State, allowed bool) error {
	if len(states) != r.Order {
		return setupErrorf("set permission", "reaction %s: expected %d states", r.Name, r.Order)
	}
	for _, ms := range states {
		if !ms.Valid() && ms != molec.All {
			return setupErrorf("set permission", "reaction %s: state %s out of range", r.Name, ms)
		}
	}
	e.setPermit(r, states, allowed)
	e.SetCondition(-1, space.CondLists, space.Downgrade)
	return nil
}

func (e *Engine) setPermit(r *Reaction, states []molec.State, allowed bool) {
	writePermit(r, states, allowed)
	if r.Order == 2 && r.Reactants[0] == r.Reactants[1] {
		writePermit(r, []molec.State{states[1], states[0]}, allowed)
	}
}

func writePermit(r *Reaction, states []molec.State, allowed bool) {
	for ms := range r.permit {
		unpacked := UnpackState(r.Order, ms)
		match := true
		for i, want := range states {
			if want != molec.All && want != unpacked[i] {
				match = false
				break
			}
		}
		if match {
			r.permit[ms] = allowed
		}
	}
}

// SetRate sets the requested macroscopic rate of r.
func (e *Engine) SetRate(r *Reaction, rate float64) error {
	if rate < 0 {
		return setupErrorf("set rate", "reaction %s: negative rate %g", r.Name, rate)
	}
	r.Rate = rate
	e.SetCondition(-1, space.CondParams, space.Downgrade)
	return nil
}

// SetProbability sets the per-step reaction probability of r directly, for
// every surface pair.
func (e *Engine) SetProbability(r *Reaction, p float64) error {
	if p < 0 || (r.Order > 0 && p > 1) {
		return setupErrorf("set probability", "reaction %s: probability %g out of range", r.Name, p)
	}
	for s := range r.prob {
		r.prob[s] = p
	}
	e.SetCondition(-1, space.CondParams, space.Downgrade)
	return nil
}

// SetBindingRadius sets the binding radius of r directly, for every surface
// pair.
func (e *Engine) SetBindingRadius(r *Reaction, rad float64) error {
	if rad < 0 {
		return setupErrorf("set binding radius", "reaction %s: negative radius %g", r.Name, rad)
	}
	for s := range r.bindrad2 {
		r.bindrad2[s] = rad * rad
	}
	e.SetCondition(-1, space.CondParams, space.Downgrade)
	return nil
}

// SetConfspreadRadius makes r a conformational spread reaction with the
// given interaction radius.
func (e *Engine) SetConfspreadRadius(r *Reaction, rad float64) error {
	if err := e.SetBindingRadius(r, rad); err != nil {
		return err
	}
	r.RevParam = RevConfspread
	return nil
}

// SetRevParam sets the product placement method of r and its parameter.
func (e *Engine) SetRevParam(r *Reaction, rp RevParam, value float64) error {
	switch rp {
	case RevPgem, RevPgemMax, RevPgem2, RevPgemMax2, RevPgemMaxW:
		if !(value > 0 && value <= 1) {
			return setupErrorf("set reversible parameter", "reaction %s: %s value %g must be in (0, 1]", r.Name, rp, value)
		}
	case RevBounce, RevRatio, RevUnbindRad, RevRatio2:
		if value < 0 {
			return setupErrorf("set reversible parameter", "reaction %s: %s value %g is negative", r.Name, rp, value)
		}
	}
	if rp != RevNone && rp != r.RevParam && r.RevParam != RevNone {
		e.logger.Warnf("reaction %s: reversible parameter changed from %s to %s", r.Name, r.RevParam, rp)
	}
	r.RevParam = rp
	r.RevValue = value
	e.SetCondition(-1, space.CondParams, space.Downgrade)
	return nil
}

// SetProductOffset sets the placement offset of product prd for the offset
// and fixed methods, for every surface pair.
func (e *Engine) SetProductOffset(r *Reaction, rp RevParam, prd int, pos []float64) error {
	if rp != RevOffset && rp != RevFixed {
		return setupErrorf("set product offset", "reaction %s: %s does not take offsets", r.Name, rp)
	}
	if prd < 0 || prd >= len(r.Products) {
		return setupErrorf("set product offset", "reaction %s: product %d out of range", r.Name, prd)
	}
	if len(pos) != e.dim {
		return setupErrorf("set product offset", "reaction %s: offset has dimension %d, want %d", r.Name, len(pos), e.dim)
	}
	r.RevParam = rp
	for s := range r.prdpos {
		r.setOffset(s, prd, e.dim, pos)
	}
	e.SetCondition(-1, space.CondParams, space.Downgrade)
	return nil
}

// SetScope restricts r to a compartment or surface; a zero Scope removes the
// restriction.
func (e *Engine) SetScope(r *Reaction, scope Scope) error {
	if scope.Compartment != nil && scope.Surface != nil {
		return setupErrorf("set scope", "reaction %s: cannot be scoped to both a compartment and a surface", r.Name)
	}
	r.Compartment = scope.Compartment
	r.Surface = scope.Surface
	e.SetCondition(-1, space.CondParams, space.Downgrade)
	return nil
}
