package rxn

import (
	"fmt"
	"math"

	"github.com/daniacca/rxdyn/internal/molec"
	"github.com/daniacca/rxdyn/internal/space"
)

// Level grades a parameter check finding.
type Level int

const (
	LevelWarning Level = iota
	LevelError
)

func (l Level) String() string {
	if l == LevelError {
		return "error"
	}
	return "warning"
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(b []byte) error {
	switch string(b) {
	case "warning":
		*l = LevelWarning
	case "error":
		*l = LevelError
	default:
		return fmt.Errorf("unknown warning level %q", b)
	}
	return nil
}

// Warning is one finding of CheckParams. Reaction is empty for findings
// about the catalogs as a whole.
type Warning struct {
	Level    Level  `json:"level"`
	Reaction string `json:"reaction,omitempty"`
	Message  string `json:"message"`
}

func (w Warning) String() string {
	if w.Reaction == "" {
		return fmt.Sprintf("%s: %s", w.Level, w.Message)
	}
	return fmt.Sprintf("%s: reaction %s: %s", w.Level, w.Reaction, w.Message)
}

const (
	// rngResolution is the smallest step of a 53-bit uniform variate.
	rngResolution = 1.0 / (1 << 53)
	highProb      = 0.2
	minTauSteps   = 5
	maxReactFrac  = 0.1
)

// CheckParams reviews the resolved parameters and reports anything that is
// illegal or likely to give inaccurate results.
func (e *Engine) CheckParams() []Warning {
	var out []Warning
	seen := make(map[Warning]bool)
	add := func(level Level, r *Reaction, format string, args ...any) {
		w := Warning{Level: level, Message: fmt.Sprintf(format, args...)}
		if r != nil {
			w.Reaction = r.Name
		}
		// Surface pairs repeat the same finding.
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	warn := func(r *Reaction, format string, args ...any) { add(LevelWarning, r, format, args...) }
	fail := func(r *Reaction, format string, args ...any) { add(LevelError, r, format, args...) }

	if c := e.Condition(); c != space.CondReady {
		warn(nil, "reactions are not ready: %s", c)
	}
	dt := e.dt

	for _, cat := range e.cats {
		for _, r := range cat.reactions {
			if r.RevParam == RevPgemMaxW {
				warn(r, "using default product placement with maximum geminate rebinding probability %g", r.RevValue)
			}
			e.checkProductStates(r, fail)
		}
	}
	e.checkDuplicates(warn)

	for _, r := range e.cats[0].reactions {
		if r.Compartment != nil && r.Compartment.Volume() <= 0 {
			fail(r, "compartment %s has zero volume", r.Compartment.Name)
		}
		if r.Surface != nil && r.Surface.Area() <= 0 {
			fail(r, "surface %s has zero area", r.Surface.Name)
		}
		if r.prob[0] < 0 {
			warn(r, "rate not set")
		}
	}

	for _, r := range e.cats[1].reactions {
		p := r.prob[0]
		switch {
		case p < 0:
			warn(r, "rate not set")
		case p > 0 && p < 10*rngResolution:
			warn(r, "probability %g is at the lower end of random number generator resolution", p)
		case p > 1-10*rngResolution && p < 1:
			warn(r, "probability %g is at the upper end of random number generator resolution", p)
		case p > highProb:
			warn(r, "probability %g is quite high", p)
		}
		if tau := r.tau[0]; tau > 0 && tau < minTauSteps*dt {
			warn(r, "time step %g is longer than 1/%d of the characteristic time %g", dt, minTauSteps, tau)
		}
	}

	minBox := e.part.MinBoxSize()
	for _, r := range e.cats[2].reactions {
		for s := range r.bindrad2 {
			b2, p := r.bindrad2[s], r.prob[s]
			switch {
			case b2 < 0 && r.RevParam == RevConfspread:
				warn(r, "confspread radius not set")
			case b2 < 0 && r.RevParam == RevBounce:
				warn(r, "bounce radius not set")
			case b2 < 0:
				warn(r, "binding radius not set")
			case math.Sqrt(b2) > minBox:
				fail(r, "binding radius %g is larger than the box size %g", math.Sqrt(b2), minBox)
			}
			if p < 0 || p > 1 {
				fail(r, "probability %g is out of range", p)
			} else if p < 1 && r.RevParam != RevConfspread && r.RevParam != RevBounce {
				warn(r, "probability %g is not accounted for in rate calculation", p)
			}
			if tau := r.tau[s]; tau > 0 && tau < minTauSteps*dt {
				warn(r, "time step %g is longer than 1/%d of the characteristic time %g", dt, minTauSteps, tau)
			}
			if b2 < 0 {
				break
			}
		}
	}
	e.checkReactiveVolume(warn)
	return out
}

// checkProductStates rejects surface-bound products of reactions whose
// reactants can all be in solution: there is no panel to bind them to.
func (e *Engine) checkProductStates(r *Reaction, fail func(*Reaction, string, ...any)) {
	solnOnly := false
	switch r.Order {
	case 0:
		solnOnly = r.Surface == nil
	case 1:
		solnOnly = r.permit[molec.Soln]
	case 2:
		solnOnly = r.permit[PackState(2, []molec.State{molec.Soln, molec.Soln})]
	}
	if !solnOnly {
		return
	}
	for prd, ms := range r.ProductState {
		if ms.Bound() {
			fail(r, "product %s is surface-bound but the reactants can be in solution", e.store.SpeciesName(r.Products[prd]))
		}
	}
}

// checkDuplicates warns about bimolecular reactant pairs that more than one
// reaction covers in the same state.
func (e *Engine) checkDuplicates(warn func(*Reaction, string, ...any)) {
	cat := e.cats[2]
	for key, list := range cat.table {
		if len(list) < 2 {
			continue
		}
		ids := UnpackIdent(2, cat.maxSpecies, key)
		if ids[0] > ids[1] {
			continue
		}
		for ms := range numPermits(2) {
			var first *Reaction
			for _, j := range list {
				r := cat.reactions[j]
				if !r.permit[ms] {
					continue
				}
				if first == nil {
					first = r
					continue
				}
				st := UnpackState(2, ms)
				warn(r, "multiply defined for %s(%s) + %s(%s), also reaction %s",
					e.store.SpeciesName(ids[0]), st[0], e.store.SpeciesName(ids[1]), st[1], first.Name)
			}
		}
	}
}

// checkReactiveVolume warns when the spheres of bimolecular interaction
// around solution molecules cover a large share of the domain.
func (e *Engine) checkReactiveVolume(warn func(*Reaction, string, ...any)) {
	cat := e.cats[2]
	if cat.Len() == 0 {
		return
	}
	vol := e.scene.Domain.Volume()
	total := 0.0
	for id := molec.Ident(1); int(id) < e.maxSpecies; id++ {
		amax := 0.0
		for i := 0; i < e.maxSpecies; i++ {
			for _, j := range cat.Candidates(id, molec.Ident(i)) {
				if b2 := cat.reactions[j].bindrad2[0]; b2 > 0 {
					amax = max(amax, math.Sqrt(b2))
				}
			}
		}
		if amax == 0 {
			continue
		}
		v := float64(e.store.Count(id, molec.Soln)) * ballVolume(e.dim, amax)
		if v > maxReactFrac*vol {
			warn(nil, "reactive volume of %s is %.3g of the system volume", e.store.SpeciesName(id), v/vol)
		}
		total += v
	}
	if total > maxReactFrac*vol {
		warn(nil, "total reactive volume is %.3g of the system volume", total/vol)
	}
}

// ballVolume is the volume of a dim-dimensional ball of radius a.
func ballVolume(dim int, a float64) float64 {
	switch dim {
	case 1:
		return 2 * a
	case 2:
		return math.Pi * a * a
	default:
		return 4.0 / 3.0 * math.Pi * a * a * a
	}
}
