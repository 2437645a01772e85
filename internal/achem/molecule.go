package achem

import (
	"slices"

	"github.com/daniacca/rxdyn/internal/molec"
)

// MoleculeView is a read-only copy of one molecule. Surface and Panel name
// the panel a bound molecule sits on.
type MoleculeView struct {
	Serial  uint64    `json:"serial"`
	Species string    `json:"species"`
	State   string    `json:"state"`
	Pos     []float64 `json:"pos"`
	Surface string    `json:"surface,omitempty"`
	Panel   string    `json:"panel,omitempty"`
}

func viewOf(m *molec.Molecule, names func(int) string) MoleculeView {
	v := MoleculeView{
		Serial:  m.Serial,
		Species: names(int(m.Ident)),
		State:   m.State.String(),
		Pos:     slices.Clone(m.Pos),
	}
	if m.Panel != nil {
		v.Panel = m.Panel.Name
		if srf := m.Panel.Surface(); srf != nil {
			v.Surface = srf.Name
		}
	}
	return v
}
