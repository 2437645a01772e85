package geometry

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// DefaultEpsilon is the distance a point is pushed off a panel when it is
// fixed to one of its faces.
const DefaultEpsilon = 100 * 2.220446049250313e-16

// Surface groups panels that share reaction and diffusion properties.
// Index is 1-based; 0 means "no surface" in surface-pair tables.
type Surface struct {
	Name   string
	Index  int
	Panels []*Panel
}

// AddPanel attaches p to the surface.
func (s *Surface) AddPanel(p *Panel) {
	p.surface = s
	s.Panels = append(s.Panels, p)
}

func (s *Surface) Area() float64 {
	a := 0.0
	for _, p := range s.Panels {
		a += p.Area()
	}
	return a
}

// RandomPoint picks a panel weighted by area and a uniform point on it.
func (s *Surface) RandomPoint(r Uniformer, dst []float64) *Panel {
	if len(s.Panels) == 0 {
		return nil
	}
	x := r.Uniform(0, s.Area())
	for _, p := range s.Panels {
		if x < p.Area() {
			p.RandomPoint(r, dst)
			return p
		}
		x -= p.Area()
	}
	p := s.Panels[len(s.Panels)-1]
	p.RandomPoint(r, dst)
	return p
}

// Compartment is an axis-aligned region used to scope reactions.
type Compartment struct {
	Name string
	Low  []float64
	High []float64
}

func (c *Compartment) Contains(pos []float64) bool {
	for k := range c.Low {
		if pos[k] < c.Low[k] || pos[k] > c.High[k] {
			return false
		}
	}
	return true
}

func (c *Compartment) Volume() float64 {
	w := floats.SubTo(make([]float64, len(c.Low)), c.High, c.Low)
	if floats.Min(w) < 0 {
		return 0
	}
	return floats.Prod(w)
}

func (c *Compartment) RandomPoint(r Uniformer, dst []float64) {
	for k := range c.Low {
		dst[k] = r.Uniform(c.Low[k], c.High[k])
	}
}

// Scene holds the domain and every surface and compartment in it.
type Scene struct {
	Domain       *Domain
	Surfaces     []*Surface
	Compartments []*Compartment
	Epsilon      float64
}

func NewScene(domain *Domain) *Scene {
	return &Scene{Domain: domain, Epsilon: DefaultEpsilon}
}

func (s *Scene) Dim() int { return s.Domain.Dim() }

// AddSurface registers a new, empty surface.
func (s *Scene) AddSurface(name string) (*Surface, error) {
	if s.Surface(name) != nil {
		return nil, fmt.Errorf("duplicate surface name: %s", name)
	}
	srf := &Surface{Name: name, Index: len(s.Surfaces) + 1}
	s.Surfaces = append(s.Surfaces, srf)
	return srf, nil
}

// AddCompartment registers an axis-aligned compartment.
func (s *Scene) AddCompartment(name string, low, high []float64) (*Compartment, error) {
	if s.Compartment(name) != nil {
		return nil, fmt.Errorf("duplicate compartment name: %s", name)
	}
	if len(low) != s.Dim() || len(high) != s.Dim() {
		return nil, fmt.Errorf("compartment %s: bounds must have dimension %d", name, s.Dim())
	}
	c := &Compartment{Name: name, Low: append([]float64(nil), low...), High: append([]float64(nil), high...)}
	s.Compartments = append(s.Compartments, c)
	return c, nil
}

func (s *Scene) Surface(name string) *Surface {
	for _, srf := range s.Surfaces {
		if srf.Name == name {
			return srf
		}
	}
	return nil
}

func (s *Scene) Compartment(name string) *Compartment {
	for _, c := range s.Compartments {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// NumSurfaces returns the number of surfaces; surface-pair tables have
// NumSurfaces()+1 rows.
func (s *Scene) NumSurfaces() int { return len(s.Surfaces) }

// Panels lists every panel of every surface.
func (s *Scene) Panels() []*Panel {
	var out []*Panel
	for _, srf := range s.Surfaces {
		out = append(out, srf.Panels...)
	}
	return out
}

// PanelsInBox lists the panels overlapping the box [lo, hi].
func (s *Scene) PanelsInBox(lo, hi []float64) []*Panel {
	var out []*Panel
	for _, srf := range s.Surfaces {
		for _, p := range srf.Panels {
			if p.OverlapsBox(lo, hi) {
				out = append(out, p)
			}
		}
	}
	return out
}

// CrossesSurface reports whether any panel lies between p1 and p2.
func (s *Scene) CrossesSurface(p1, p2 []float64) bool {
	for _, srf := range s.Surfaces {
		for _, p := range srf.Panels {
			if p.Crosses(p1, p2) {
				return true
			}
		}
	}
	return false
}
