package molec

import "github.com/daniacca/rxdyn/internal/geometry"

// Ident is a species index. Void (0) is the empty species: killed molecules
// carry it and it never reacts.
type Ident int

const Void Ident = 0

// Molecule is one particle. Box and List are back-links owned by the spatial
// partition and the store; -1 means unassigned.
type Molecule struct {
	Serial uint64
	Ident  Ident
	State  State
	Pos    []float64
	Panel  *geometry.Panel
	Box    int
	List   int
}

// Alive reports whether the molecule still carries a species.
func (m *Molecule) Alive() bool { return m.Ident != Void }

// SurfaceIndex returns the 1-based surface index of the molecule's panel,
// 0 for molecules in solution.
func (m *Molecule) SurfaceIndex() int {
	if m.Panel == nil {
		return 0
	}
	return m.Panel.SurfaceIndex()
}

// Species describes one molecular species.
type Species struct {
	Name string
	// Difc holds the diffusion constant per state; Bsoln mirrors Soln.
	Difc [NumStates]float64
	// Lists maps each state to its live list.
	Lists [NumStates]int
}
