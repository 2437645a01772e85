package achem

import "github.com/daniacca/rxdyn/internal/space"

// ScenarioConfig describes one complete simulation: geometry, species,
// reactions and the initial molecules. It is the wire format of the HTTP
// API and the content of scenario files.
type ScenarioConfig struct {
	Name         string              `json:"name" yaml:"name" toml:"name"`
	TimeStep     float64             `json:"dt" yaml:"dt" toml:"dt"`
	Seed         uint64              `json:"seed,omitempty" yaml:"seed,omitempty" toml:"seed,omitempty"`
	Workers      int                 `json:"workers,omitempty" yaml:"workers,omitempty" toml:"workers,omitempty"`
	MaxMolecules int                 `json:"max_molecules,omitempty" yaml:"max_molecules,omitempty" toml:"max_molecules,omitempty"`
	Boxes        space.Config        `json:"boxes,omitempty" yaml:"boxes,omitempty" toml:"boxes,omitempty"`
	Domain       DomainConfig        `json:"domain" yaml:"domain" toml:"domain"`
	Species      []SpeciesConfig     `json:"species" yaml:"species" toml:"species"`
	Surfaces     []SurfaceConfig     `json:"surfaces,omitempty" yaml:"surfaces,omitempty" toml:"surfaces,omitempty"`
	Compartments []CompartmentConfig `json:"compartments,omitempty" yaml:"compartments,omitempty" toml:"compartments,omitempty"`
	Reactions    []ReactionConfig    `json:"reactions" yaml:"reactions" toml:"reactions"`
	Molecules    []PlacementConfig   `json:"molecules,omitempty" yaml:"molecules,omitempty" toml:"molecules,omitempty"`
}

// DomainConfig bounds the system. Its length fixes the dimension.
type DomainConfig struct {
	Low      []float64 `json:"low" yaml:"low" toml:"low"`
	High     []float64 `json:"high" yaml:"high" toml:"high"`
	Periodic []bool    `json:"periodic,omitempty" yaml:"periodic,omitempty" toml:"periodic,omitempty"`
}

type SpeciesConfig struct {
	Name string `json:"name" yaml:"name" toml:"name"`
	// Difc is the diffusion constant in every state unless StateDifc
	// overrides it.
	Difc        float64             `json:"difc" yaml:"difc" toml:"difc"`
	StateDifc   map[string]float64  `json:"state_difc,omitempty" yaml:"state_difc,omitempty" toml:"state_difc,omitempty"`
	SurfaceDifc []SurfaceDifcConfig `json:"surface_difc,omitempty" yaml:"surface_difc,omitempty" toml:"surface_difc,omitempty"`
	// List names the live list the species is kept in; empty means the
	// default list.
	List string `json:"list,omitempty" yaml:"list,omitempty" toml:"list,omitempty"`
}

type SurfaceDifcConfig struct {
	Surface string  `json:"surface" yaml:"surface" toml:"surface"`
	State   string  `json:"state" yaml:"state" toml:"state"`
	Difc    float64 `json:"difc" yaml:"difc" toml:"difc"`
}

type SurfaceConfig struct {
	Name   string        `json:"name" yaml:"name" toml:"name"`
	Panels []PanelConfig `json:"panels" yaml:"panels" toml:"panels"`
}

// PanelConfig is an axis-aligned panel perpendicular to Axis at Offset.
// Front is +1 or -1; zero means +1.
type PanelConfig struct {
	Name   string    `json:"name" yaml:"name" toml:"name"`
	Axis   int       `json:"axis" yaml:"axis" toml:"axis"`
	Offset float64   `json:"offset" yaml:"offset" toml:"offset"`
	Low    []float64 `json:"low" yaml:"low" toml:"low"`
	High   []float64 `json:"high" yaml:"high" toml:"high"`
	Front  int       `json:"front,omitempty" yaml:"front,omitempty" toml:"front,omitempty"`
}

type CompartmentConfig struct {
	Name string    `json:"name" yaml:"name" toml:"name"`
	Low  []float64 `json:"low" yaml:"low" toml:"low"`
	High []float64 `json:"high" yaml:"high" toml:"high"`
}

// SpeciesRef names a species in a given state. An empty state is soln.
type SpeciesRef struct {
	Species string `json:"species" yaml:"species" toml:"species"`
	State   string `json:"state,omitempty" yaml:"state,omitempty" toml:"state,omitempty"`
}

type ReactionConfig struct {
	Name      string       `json:"name" yaml:"name" toml:"name"`
	Reactants []SpeciesRef `json:"reactants,omitempty" yaml:"reactants,omitempty" toml:"reactants,omitempty"`
	Products  []SpeciesRef `json:"products,omitempty" yaml:"products,omitempty" toml:"products,omitempty"`

	Rate        *float64 `json:"rate,omitempty" yaml:"rate,omitempty" toml:"rate,omitempty"`
	Probability *float64 `json:"probability,omitempty" yaml:"probability,omitempty" toml:"probability,omitempty"`
	BindRadius  *float64 `json:"bind_radius,omitempty" yaml:"bind_radius,omitempty" toml:"bind_radius,omitempty"`

	// RevParam is a product placement method, by code or name.
	RevParam string  `json:"rev_param,omitempty" yaml:"rev_param,omitempty" toml:"rev_param,omitempty"`
	RevValue float64 `json:"rev_value,omitempty" yaml:"rev_value,omitempty" toml:"rev_value,omitempty"`
	// Offsets holds one displacement per product for the offset and fixed
	// placement methods.
	Offsets [][]float64 `json:"offsets,omitempty" yaml:"offsets,omitempty" toml:"offsets,omitempty"`

	Compartment string `json:"compartment,omitempty" yaml:"compartment,omitempty" toml:"compartment,omitempty"`
	Surface     string `json:"surface,omitempty" yaml:"surface,omitempty" toml:"surface,omitempty"`

	// Permit and Forbid adjust the reactant state combinations that may
	// react after the declared reactant states are permitted.
	Permit [][]string `json:"permit,omitempty" yaml:"permit,omitempty" toml:"permit,omitempty"`
	Forbid [][]string `json:"forbid,omitempty" yaml:"forbid,omitempty" toml:"forbid,omitempty"`

	Notify *NotificationConfig `json:"notify,omitempty" yaml:"notify,omitempty" toml:"notify,omitempty"`
}

// PlacementConfig seeds Count molecules. Without Pos they are spread
// uniformly over the compartment, the surface or the whole domain.
type PlacementConfig struct {
	Species     string    `json:"species" yaml:"species" toml:"species"`
	State       string    `json:"state,omitempty" yaml:"state,omitempty" toml:"state,omitempty"`
	Count       int       `json:"count" yaml:"count" toml:"count"`
	Pos         []float64 `json:"pos,omitempty" yaml:"pos,omitempty" toml:"pos,omitempty"`
	Compartment string    `json:"compartment,omitempty" yaml:"compartment,omitempty" toml:"compartment,omitempty"`
	Surface     string    `json:"surface,omitempty" yaml:"surface,omitempty" toml:"surface,omitempty"`
}

// Dim returns the dimension implied by the domain bounds.
func (c ScenarioConfig) Dim() int { return len(c.Domain.Low) }

// InitialMolecules returns the number of molecules the placements seed.
func (c ScenarioConfig) InitialMolecules() int {
	n := 0
	for _, p := range c.Molecules {
		n += max(p.Count, 0)
	}
	return n
}
