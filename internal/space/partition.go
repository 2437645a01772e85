// Package space divides the simulation domain into a regular grid of virtual
// boxes and keeps every live molecule listed in the box that contains it.
package space

import (
	"fmt"
	"math"
	"slices"

	"github.com/daniacca/rxdyn/internal/geometry"
	"github.com/daniacca/rxdyn/internal/molec"
	"gonum.org/v1/gonum/floats"
)

// DefaultMolPerBox is used when neither a density nor a box size is given.
const DefaultMolPerBox = 5

const maxBoxes = 1 << 24

// Config selects the box size. BoxSize wins over MolPerBox when both are set.
type Config struct {
	MolPerBox float64 `json:"mol_per_box,omitempty" yaml:"mol_per_box,omitempty" toml:"mol_per_box,omitempty"`
	BoxSize   float64 `json:"box_size,omitempty" yaml:"box_size,omitempty" toml:"box_size,omitempty"`
}

// PanelSource lists the surface panels that overlap a box.
type PanelSource interface {
	PanelsInBox(lo, hi []float64) []*geometry.Panel
}

// Box is one grid cell.
type Box struct {
	Index []int
	// Neighbors holds box addresses. The first MidNeigh entries form the half
	// neighbor set used when a live list is paired with itself.
	Neighbors []int
	MidNeigh  int
	// Wrap holds one code per neighbor, two bits per dimension. It is nil when
	// no neighbor is reached across a periodic wall.
	Wrap   []uint32
	Walls  []int
	Panels []*geometry.Panel
	Mols   [][]*molec.Molecule
}

// Wrap codes per dimension.
const (
	WrapNone = 0
	// WrapLow means the neighbor lies across the low wall: one period is added
	// to the separation.
	WrapLow = 1
	// WrapHigh means the neighbor lies across the high wall: one period is
	// subtracted from the separation.
	WrapHigh = 2
)

// WrapCode extracts the wrap code of dimension d.
func WrapCode(code uint32, d int) uint32 { return (code >> (2 * d)) & 3 }

// Partition owns the box grid.
type Partition struct {
	domain *geometry.Domain
	cfg    Config
	side   []int
	size   []float64
	boxes  []Box
	nlist  int
	cond   Condition
}

// Build creates the box grid for domain sized for molCount molecules and
// nlist live lists. panels may be nil when there are no surfaces.
func Build(domain *geometry.Domain, cfg Config, molCount, nlist int, panels PanelSource) (*Partition, error) {
	if err := domain.Validate(); err != nil {
		return nil, fmt.Errorf("failed to build boxes: %w", err)
	}
	if cfg.MolPerBox < 0 || cfg.BoxSize < 0 {
		return nil, fmt.Errorf("failed to build boxes: negative box sizing")
	}
	if cfg.MolPerBox == 0 && cfg.BoxSize == 0 {
		cfg.MolPerBox = DefaultMolPerBox
	}
	dim := domain.Dim()

	var k float64
	if cfg.BoxSize > 0 {
		k = 1 / cfg.BoxSize
	} else {
		k = math.Pow(float64(molCount)/cfg.MolPerBox/domain.Volume(), 1/float64(dim))
	}

	p := &Partition{
		domain: domain,
		cfg:    cfg,
		side:   make([]int, dim),
		size:   make([]float64, dim),
		nlist:  max(nlist, 1),
	}
	nbox := 1
	for d := range dim {
		s := math.Ceil(domain.Width(d) * k)
		if !(s >= 1) {
			s = 1
		}
		if s > maxBoxes {
			return nil, fmt.Errorf("failed to build boxes: %g boxes along dimension %d", s, d)
		}
		p.side[d] = int(s)
		p.size[d] = domain.Width(d) / s
		nbox *= p.side[d]
		if nbox > maxBoxes {
			return nil, fmt.Errorf("failed to build boxes: more than %d boxes", maxBoxes)
		}
	}

	p.boxes = make([]Box, nbox)
	for b := range p.boxes {
		bx := &p.boxes[b]
		bx.Index = p.indexOf(b)
		bx.Mols = make([][]*molec.Molecule, p.nlist)
		p.buildNeighbors(b)
		for d := range dim {
			if bx.Index[d] == 0 {
				bx.Walls = append(bx.Walls, 2*d)
			}
			if bx.Index[d] == p.side[d]-1 {
				bx.Walls = append(bx.Walls, 2*d+1)
			}
		}
		if panels != nil {
			lo, hi := p.extendedBounds(b)
			bx.Panels = panels.PanelsInBox(lo, hi)
		}
	}
	p.cond = CondReady
	return p, nil
}

type neighbor struct {
	addr  int
	wrap  uint32
	lower bool
}

func (p *Partition) buildNeighbors(b int) {
	dim := len(p.side)
	bx := &p.boxes[b]
	offset := make([]int, dim)
	idx := make([]int, dim)
	var list []neighbor
	wrapped := false

	var walk func(d int)
	walk = func(d int) {
		if d == dim {
			code := uint32(0)
			first := 0
			for k := range dim {
				if first == 0 {
					first = offset[k]
				}
				n := bx.Index[k] + offset[k]
				switch {
				case n < 0:
					if !p.domain.IsPeriodic(k) {
						return
					}
					n += p.side[k]
					code |= WrapLow << (2 * k)
				case n >= p.side[k]:
					if !p.domain.IsPeriodic(k) {
						return
					}
					n -= p.side[k]
					code |= WrapHigh << (2 * k)
				}
				idx[k] = n
			}
			if first == 0 {
				return
			}
			addr := p.address(idx)
			if code != 0 {
				wrapped = true
			}
			// A periodic image of the box itself enters the half set in only one
			// of its two directions.
			list = append(list, neighbor{addr: addr, wrap: code, lower: addr < b || (addr == b && first < 0)})
			return
		}
		for o := -1; o <= 1; o++ {
			offset[d] = o
			walk(d + 1)
		}
	}
	walk(0)

	slices.SortStableFunc(list, func(x, y neighbor) int {
		if x.lower != y.lower {
			if x.lower {
				return -1
			}
			return 1
		}
		return x.addr - y.addr
	})

	bx.Neighbors = make([]int, len(list))
	if wrapped {
		bx.Wrap = make([]uint32, len(list))
	}
	for i, n := range list {
		bx.Neighbors[i] = n.addr
		if wrapped {
			bx.Wrap[i] = n.wrap
		}
		if n.lower {
			bx.MidNeigh++
		}
	}
}

func (p *Partition) Dim() int                 { return len(p.side) }
func (p *Partition) NumBoxes() int            { return len(p.boxes) }
func (p *Partition) Side(d int) int           { return p.side[d] }
func (p *Partition) Size(d int) float64       { return p.size[d] }
func (p *Partition) Box(b int) *Box           { return &p.boxes[b] }
func (p *Partition) Domain() *geometry.Domain { return p.domain }
func (p *Partition) Config() Config           { return p.cfg }
func (p *Partition) NumLists() int            { return p.nlist }
func (p *Partition) Condition() Condition     { return p.cond }

// SetCondition moves the partition condition according to mode.
func (p *Partition) SetCondition(c Condition, mode SetMode) {
	p.cond = p.cond.Apply(c, mode)
}

// MinBoxSize returns the smallest box width over all dimensions.
func (p *Partition) MinBoxSize() float64 {
	return floats.Min(p.size)
}

// address maps a box index vector to its address; the last dimension varies
// fastest.
func (p *Partition) address(idx []int) int {
	b := 0
	for d := range p.side {
		b = p.side[d]*b + idx[d]
	}
	return b
}

func (p *Partition) indexOf(b int) []int {
	idx := make([]int, len(p.side))
	for d := len(p.side) - 1; d >= 0; d-- {
		idx[d] = b % p.side[d]
		b /= p.side[d]
	}
	return idx
}

// Locate returns the box containing pos. Points outside the domain go to the
// nearest edge box.
func (p *Partition) Locate(pos []float64) int {
	b := 0
	for d := range p.side {
		i := int(math.Floor((pos[d] - p.domain.Low[d]) / p.size[d]))
		i = min(max(i, 0), p.side[d]-1)
		b = p.side[d]*b + i
	}
	return b
}

// Bounds returns the low and high corners of box b.
func (p *Partition) Bounds(b int) (lo, hi []float64) {
	idx := p.boxes[b].Index
	lo = make([]float64, len(p.side))
	hi = make([]float64, len(p.side))
	for d := range p.side {
		lo[d] = p.domain.Low[d] + float64(idx[d])*p.size[d]
	}
	floats.AddTo(hi, lo, p.size)
	return lo, hi
}

// extendedBounds is Bounds with edge boxes stretched to infinity so that
// panels outside the domain still land in a box.
func (p *Partition) extendedBounds(b int) (lo, hi []float64) {
	lo, hi = p.Bounds(b)
	idx := p.boxes[b].Index
	for d := range p.side {
		if idx[d] == 0 {
			lo[d] = math.Inf(-1)
		}
		if idx[d] == p.side[d]-1 {
			hi[d] = math.Inf(1)
		}
	}
	return lo, hi
}

// RandomPoint writes a uniform point of box b into dst.
func (p *Partition) RandomPoint(b int, r geometry.Uniformer, dst []float64) {
	lo, hi := p.Bounds(b)
	for d := range lo {
		dst[d] = r.Uniform(lo[d], hi[d])
	}
}

// Period returns the separation shift that code implies along dimension d.
func (p *Partition) Period(code uint32, d int) float64 {
	switch WrapCode(code, d) {
	case WrapLow:
		return p.domain.Period(d)
	case WrapHigh:
		return -p.domain.Period(d)
	default:
		return 0
	}
}
