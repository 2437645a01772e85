package achem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateScenarioConfig_Valid(t *testing.T) {
	require.NoError(t, ValidateScenarioConfig(decayScenario()))
	require.NoError(t, ValidateScenarioConfig(membraneScenario()))
}

func TestValidateScenarioConfig_CollectsAllIssues(t *testing.T) {
	cfg := decayScenario()
	cfg.Name = ""
	cfg.TimeStep = -1
	cfg.Species = append(cfg.Species, SpeciesConfig{Name: "A"})

	err := ValidateScenarioConfig(cfg)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Issues, 3)
	assert.Contains(t, err.Error(), "scenario validation errors: ")
	assert.Contains(t, err.Error(), "duplicate species name: A")
	assert.Contains(t, err.Error(), "time step must be positive, got -1")
}

func TestValidationError_Error(t *testing.T) {
	assert.Equal(t, "invalid scenario: unknown validation error", (&ValidationError{}).Error())
	assert.Equal(t, "one", (&ValidationError{Issues: []string{"one"}}).Error())
}

func TestValidateScenarioConfig_Issues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ScenarioConfig)
		want   string
	}{
		{"negative workers", func(c *ScenarioConfig) { c.Workers = -1 }, "workers cannot be negative"},
		{"negative capacity", func(c *ScenarioConfig) { c.MaxMolecules = -1 }, "max_molecules cannot be negative"},
		{"no domain", func(c *ScenarioConfig) { c.Domain = DomainConfig{} }, "domain bounds are required"},
		{"empty domain", func(c *ScenarioConfig) { c.Domain.High = []float64{10, 0, 10} }, "domain is empty in dimension 1"},
		{"domain dims", func(c *ScenarioConfig) { c.Domain.High = []float64{10, 10} }, "domain high has dimension 2"},
		{"periodic dims", func(c *ScenarioConfig) { c.Domain.Periodic = []bool{true} }, "periodic flags must have dimension 3"},
		{"negative difc", func(c *ScenarioConfig) { c.Species[0].Difc = -1 }, "diffusion constant cannot be negative"},
		{"bad state difc", func(c *ScenarioConfig) { c.Species[0].StateDifc = map[string]float64{"sideways": 1} }, "invalid state 'sideways'"},
		{"surface difc unknown surface", func(c *ScenarioConfig) {
			c.Species[0].SurfaceDifc = []SurfaceDifcConfig{{Surface: "nope", State: "front", Difc: 1}}
		}, "surface 'nope' does not exist"},
		{"surface difc soln", func(c *ScenarioConfig) {
			*c = membraneScenario()
			c.Species[0].SurfaceDifc = []SurfaceDifcConfig{{Surface: "membrane", State: "soln", Difc: 1}}
		}, "must be a surface-bound state"},
		{"panel axis", func(c *ScenarioConfig) {
			*c = membraneScenario()
			c.Surfaces[0].Panels[0].Axis = 3
		}, "axis 3 out of range"},
		{"panel front", func(c *ScenarioConfig) {
			*c = membraneScenario()
			c.Surfaces[0].Panels[0].Front = 2
		}, "front must be 1 or -1"},
		{"no panels", func(c *ScenarioConfig) { c.Surfaces = []SurfaceConfig{{Name: "s"}} }, "at least one panel is required"},
		{"compartment dims", func(c *ScenarioConfig) {
			c.Compartments = []CompartmentConfig{{Name: "box", Low: []float64{0}, High: []float64{1}}}
		}, "compartment 'box': bounds must have dimension 3"},
		{"unknown reactant", func(c *ScenarioConfig) { c.Reactions[0].Reactants[0].Species = "Z" }, "reactant species 'Z' does not exist"},
		{"all product", func(c *ScenarioConfig) { c.Reactions[0].Products[0].State = "all" }, "state 'all' is not a molecule state"},
		{"third order", func(c *ScenarioConfig) {
			c.Reactions[0].Reactants = []SpeciesRef{{Species: "A"}, {Species: "A"}, {Species: "B"}}
		}, "at most 2 reactants"},
		{"rate and probability", func(c *ScenarioConfig) { c.Reactions[0].Probability = ptr(0.5) }, "mutually exclusive"},
		{"negative rate", func(c *ScenarioConfig) { c.Reactions[0].Rate = ptr(-1.0) }, "rate cannot be negative"},
		{"probability range", func(c *ScenarioConfig) {
			c.Reactions[0].Rate = nil
			c.Reactions[0].Probability = ptr(1.5)
		}, "probability out of range"},
		{"unknown rev param", func(c *ScenarioConfig) { c.Reactions[0].RevParam = "teleport" }, "unknown rev_param 'teleport'"},
		{"bind radius with rate", func(c *ScenarioConfig) { c.Reactions[0].BindRadius = ptr(0.1) }, "bind_radius and rate"},
		{"confspread order", func(c *ScenarioConfig) { c.Reactions[0].RevParam = "confspread" }, "confspread needs two reactants"},
		{"offset count", func(c *ScenarioConfig) { c.Reactions[0].RevParam = "offset" }, "needs one offset per product"},
		{"offset dims", func(c *ScenarioConfig) {
			c.Reactions[0].RevParam = "fixed"
			c.Reactions[0].Offsets = [][]float64{{1}}
		}, "offset at index 0 must have dimension 3"},
		{"stray offsets", func(c *ScenarioConfig) { c.Reactions[0].Offsets = [][]float64{{0, 0, 0}} }, "offsets are only used"},
		{"double scope", func(c *ScenarioConfig) {
			c.Reactions[0].Compartment = "a"
			c.Reactions[0].Surface = "b"
		}, "both a compartment and a surface"},
		{"unknown compartment", func(c *ScenarioConfig) { c.Reactions[0].Compartment = "cell" }, "compartment 'cell' does not exist"},
		{"permit length", func(c *ScenarioConfig) { c.Reactions[0].Permit = [][]string{{"soln", "soln"}} }, "permit entry 0 needs 1 states"},
		{"forbid state", func(c *ScenarioConfig) { c.Reactions[0].Forbid = [][]string{{"inside"}} }, "forbid entry 0 has invalid state 'inside'"},
		{"notify without notifiers", func(c *ScenarioConfig) {
			c.Reactions[0].Notify = &NotificationConfig{Enabled: true}
		}, "notifications enabled without notifiers"},
		{"duplicate reaction", func(c *ScenarioConfig) { c.Reactions = append(c.Reactions, c.Reactions[0]) }, "duplicate reaction name: decay"},
		{"placement species", func(c *ScenarioConfig) { c.Molecules[0].Species = "Z" }, "species 'Z' does not exist"},
		{"placement count", func(c *ScenarioConfig) { c.Molecules[0].Count = -1 }, "count cannot be negative"},
		{"placement bsoln", func(c *ScenarioConfig) { c.Molecules[0].State = "bsoln" }, "invalid state 'bsoln'"},
		{"placement pos", func(c *ScenarioConfig) { c.Molecules[0].Pos = []float64{1, 2} }, "position must have dimension 3"},
		{"placement bound", func(c *ScenarioConfig) { c.Molecules[0].State = "front" }, "state 'front' requires a surface"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := decayScenario()
			tt.mutate(&cfg)
			err := ValidateScenarioConfig(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateScenarioConfig_ReactionFeatures(t *testing.T) {
	cfg := membraneScenario()
	cfg.Species = append(cfg.Species, SpeciesConfig{Name: "C", Difc: 1})
	cfg.Compartments = []CompartmentConfig{{Name: "left", Low: []float64{0, 0, 0}, High: []float64{5, 10, 10}}}
	cfg.Reactions = append(cfg.Reactions,
		ReactionConfig{
			Name:        "bind",
			Reactants:   []SpeciesRef{{Species: "A"}, {Species: "B"}},
			Products:    []SpeciesRef{{Species: "C"}},
			Rate:        ptr(1.0),
			Compartment: "left",
			Forbid:      [][]string{{"soln", "front"}},
		},
		ReactionConfig{
			Name:      "split",
			Reactants: []SpeciesRef{{Species: "C", State: "all"}},
			Products:  []SpeciesRef{{Species: "A"}, {Species: "B"}},
			Rate:      ptr(1.0),
			RevParam:  "o",
			Offsets:   [][]float64{{-0.1, 0, 0}, {0.1, 0, 0}},
			Surface:   "membrane",
		},
		ReactionConfig{
			Name:       "swap",
			Reactants:  []SpeciesRef{{Species: "A"}, {Species: "B"}},
			Products:   []SpeciesRef{{Species: "B"}, {Species: "A"}},
			Rate:       ptr(1.0),
			RevParam:   "confspread",
			BindRadius: ptr(0.1),
		},
		ReactionConfig{Name: "source", Products: []SpeciesRef{{Species: "A"}}, Rate: ptr(5.0)},
	)
	cfg.Molecules = []PlacementConfig{{Species: "A", State: "front", Count: 3, Surface: "membrane"}}

	assert.NoError(t, ValidateScenarioConfig(cfg))
}
