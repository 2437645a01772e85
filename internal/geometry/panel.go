package geometry

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Face names one side of a panel.
type Face int

const (
	FaceFront Face = iota
	FaceBack
	FaceNone
)

func (f Face) String() string {
	switch f {
	case FaceFront:
		return "front"
	case FaceBack:
		return "back"
	default:
		return "none"
	}
}

// Panel is an axis-aligned rectangle: a point in 1-D, a segment in 2-D and a
// rectangle in 3-D. Its plane is perpendicular to Axis at Offset and its front
// face looks toward the sign of Front.
type Panel struct {
	Name   string
	Axis   int
	Offset float64
	Low    []float64
	High   []float64
	Front  float64

	surface *Surface
}

// NewPanel builds a panel. low and high bound the rectangle in every
// dimension except axis; their axis entries are overwritten with offset.
func NewPanel(name string, axis int, offset float64, low, high []float64, front int) (*Panel, error) {
	if len(low) != len(high) || axis < 0 || axis >= len(low) {
		return nil, fmt.Errorf("panel %s: axis %d out of range for dimension %d", name, axis, len(low))
	}
	if front == 0 {
		return nil, fmt.Errorf("panel %s: front direction must be +1 or -1", name)
	}
	p := &Panel{
		Name:   name,
		Axis:   axis,
		Offset: offset,
		Low:    append([]float64(nil), low...),
		High:   append([]float64(nil), high...),
		Front:  1,
	}
	if front < 0 {
		p.Front = -1
	}
	p.Low[axis], p.High[axis] = offset, offset
	for k := range p.Low {
		if p.High[k] < p.Low[k] {
			return nil, fmt.Errorf("panel %s: inverted bounds in dimension %d", name, k)
		}
	}
	return p, nil
}

func (p *Panel) Surface() *Surface { return p.surface }

// SurfaceIndex returns the 1-based index of the owning surface, 0 if the
// panel is detached.
func (p *Panel) SurfaceIndex() int {
	if p == nil || p.surface == nil {
		return 0
	}
	return p.surface.Index
}

// Side reports which face of the panel's plane pos lies on. Points exactly on
// the plane count as front.
func (p *Panel) Side(pos []float64) Face {
	if (pos[p.Axis]-p.Offset)*p.Front >= 0 {
		return FaceFront
	}
	return FaceBack
}

// Contains reports whether the projection of pos onto the panel plane falls
// inside the rectangle.
func (p *Panel) Contains(pos []float64) bool {
	for k := range p.Low {
		if k == p.Axis {
			continue
		}
		if pos[k] < p.Low[k] || pos[k] > p.High[k] {
			return false
		}
	}
	return true
}

// Fix moves pos to the nearest point of the panel and then eps off the plane
// toward the requested face. FaceNone leaves the point on the plane.
func (p *Panel) Fix(pos []float64, face Face, eps float64) {
	for k := range p.Low {
		if k != p.Axis {
			pos[k] = min(max(pos[k], p.Low[k]), p.High[k])
		}
	}
	switch face {
	case FaceFront:
		pos[p.Axis] = p.Offset + eps*p.Front
	case FaceBack:
		pos[p.Axis] = p.Offset - eps*p.Front
	default:
		pos[p.Axis] = p.Offset
	}
}

// OverlapsBox reports whether any part of the panel lies in the closed box
// [lo, hi]. Bounds may be infinite.
func (p *Panel) OverlapsBox(lo, hi []float64) bool {
	if p.Offset < lo[p.Axis] || p.Offset > hi[p.Axis] {
		return false
	}
	for k := range p.Low {
		if k == p.Axis {
			continue
		}
		if p.High[k] < lo[k] || p.Low[k] > hi[k] {
			return false
		}
	}
	return true
}

// Crosses reports whether the segment from p1 to p2 passes through the panel.
func (p *Panel) Crosses(p1, p2 []float64) bool {
	s1 := p1[p.Axis] - p.Offset
	s2 := p2[p.Axis] - p.Offset
	if s1*s2 >= 0 {
		return false
	}
	t := s1 / (s1 - s2)
	x := floats.SubTo(make([]float64, len(p1)), p2, p1)
	floats.AddScaledTo(x, p1, t, x)
	return p.Contains(x)
}

// Area is the panel measure in dim-1 dimensions; a 1-D point panel counts 1.
func (p *Panel) Area() float64 {
	a := 1.0
	for k := range p.Low {
		if k != p.Axis {
			a *= p.High[k] - p.Low[k]
		}
	}
	return a
}

// RandomPoint writes a uniformly distributed point of the panel into dst.
func (p *Panel) RandomPoint(r Uniformer, dst []float64) {
	for k := range p.Low {
		if k == p.Axis {
			dst[k] = p.Offset
			continue
		}
		dst[k] = r.Uniform(p.Low[k], p.High[k])
	}
}
