package geometry

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Uniformer is the slice of a random source geometry needs for sampling.
type Uniformer interface {
	Uniform(lo, hi float64) float64
}

// Domain is the axis-aligned simulation volume bounded by one pair of walls
// per dimension. A periodic dimension wraps at both walls.
type Domain struct {
	Low      []float64 `json:"low" yaml:"low" toml:"low"`
	High     []float64 `json:"high" yaml:"high" toml:"high"`
	Periodic []bool    `json:"periodic,omitempty" yaml:"periodic,omitempty" toml:"periodic,omitempty"`
}

var ErrNoDomain = errors.New("simulation domain is not defined")

// NewDomain checks the wall positions and returns the domain.
func NewDomain(low, high []float64, periodic []bool) (*Domain, error) {
	d := &Domain{Low: low, High: high, Periodic: periodic}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Validate reports missing or inverted walls.
func (d *Domain) Validate() error {
	if d == nil || len(d.Low) == 0 {
		return ErrNoDomain
	}
	if len(d.Low) != len(d.High) {
		return fmt.Errorf("domain bounds have %d low and %d high walls", len(d.Low), len(d.High))
	}
	if len(d.Periodic) != 0 && len(d.Periodic) != len(d.Low) {
		return fmt.Errorf("domain periodic flags have length %d, want %d", len(d.Periodic), len(d.Low))
	}
	for k := range d.Low {
		if !(d.High[k] > d.Low[k]) {
			return fmt.Errorf("domain dimension %d has non-positive width", k)
		}
	}
	return nil
}

func (d *Domain) Dim() int { return len(d.Low) }

func (d *Domain) Width(k int) float64 { return d.High[k] - d.Low[k] }

// Period is the distance added or subtracted when a pair is measured across
// the walls of dimension k.
func (d *Domain) Period(k int) float64 { return d.Width(k) }

func (d *Domain) IsPeriodic(k int) bool {
	return k < len(d.Periodic) && d.Periodic[k]
}

func (d *Domain) widths() []float64 {
	w := make([]float64, len(d.Low))
	return floats.SubTo(w, d.High, d.Low)
}

// Volume returns the length, area or volume of the domain.
func (d *Domain) Volume() float64 { return floats.Prod(d.widths()) }

// MinWidth returns the smallest width over all dimensions.
func (d *Domain) MinWidth() float64 { return floats.Min(d.widths()) }

func (d *Domain) Contains(pos []float64) bool {
	for k := range d.Low {
		if pos[k] < d.Low[k] || pos[k] > d.High[k] {
			return false
		}
	}
	return true
}

// RandomPoint writes a uniformly distributed point of the domain into dst.
func (d *Domain) RandomPoint(r Uniformer, dst []float64) {
	for k := range d.Low {
		dst[k] = r.Uniform(d.Low[k], d.High[k])
	}
}
