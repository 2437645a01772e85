package achem

import (
	"math"
	"testing"
	"time"

	"github.com/daniacca/rxdyn/internal/rxn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func cube(side float64) DomainConfig {
	return DomainConfig{Low: []float64{0, 0, 0}, High: []float64{side, side, side}}
}

// decayScenario seeds 1000 A molecules that turn into B at rate 10.
func decayScenario() ScenarioConfig {
	return ScenarioConfig{
		Name:     "decay",
		TimeStep: 0.01,
		Seed:     7,
		Domain:   cube(10),
		Species:  []SpeciesConfig{{Name: "A", Difc: 1}, {Name: "B", Difc: 1}},
		Reactions: []ReactionConfig{{
			Name:      "decay",
			Reactants: []SpeciesRef{{Species: "A"}},
			Products:  []SpeciesRef{{Species: "B"}},
			Rate:      ptr(10.0),
		}},
		Molecules: []PlacementConfig{{Species: "A", Count: 1000}},
	}
}

// membraneScenario adds a surface across the middle of the cube.
func membraneScenario() ScenarioConfig {
	cfg := decayScenario()
	cfg.Surfaces = []SurfaceConfig{{
		Name: "membrane",
		Panels: []PanelConfig{{
			Axis:   0,
			Offset: 5,
			Low:    []float64{5, 0, 0},
			High:   []float64{5, 10, 10},
		}},
	}}
	cfg.Molecules = nil
	return cfg
}

func newTestEnvironment(t *testing.T, cfg ScenarioConfig) *Environment {
	t.Helper()
	env, err := NewEnvironment(cfg)
	require.NoError(t, err)
	return env
}

func TestBuildEnvironment_SeedsPlacements(t *testing.T) {
	env := newTestEnvironment(t, decayScenario())

	counts := env.Counts()
	assert.Equal(t, 1000, counts["A"])
	assert.Equal(t, 0, counts["B"])
	assert.Equal(t, int64(0), env.Time())
	assert.Len(t, env.Molecules("A"), 1000)
	require.NoError(t, env.sim.part.Verify(env.sim.store))
}

func TestBuildEnvironment_InvalidScenario(t *testing.T) {
	cfg := decayScenario()
	cfg.TimeStep = 0
	_, err := NewEnvironment(cfg)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, err.Error(), "time step")
}

func TestBuildEnvironment_ResolveFailure(t *testing.T) {
	cfg := decayScenario()
	cfg.Species[0].Difc = 0
	cfg.Species = append(cfg.Species, SpeciesConfig{Name: "C"})
	cfg.Reactions = append(cfg.Reactions, ReactionConfig{
		Name:      "bind",
		Reactants: []SpeciesRef{{Species: "A"}, {Species: "C"}},
		Rate:      ptr(1.0),
	})
	_, err := NewEnvironment(cfg)

	var perr *rxn.ParamError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "bind", perr.Name)
}

func TestEnvironment_Step_Decay(t *testing.T) {
	env := newTestEnvironment(t, decayScenario())

	for range 10 {
		require.NoError(t, env.Step())
	}

	counts := env.Counts()
	assert.Equal(t, 1000, counts["A"]+counts["B"])
	// Survival after rate*t = 1 is exp(-1).
	assert.InDelta(t, 1000*math.Exp(-1), counts["A"], 60)
	assert.Equal(t, int64(10), env.Time())
	assert.InDelta(t, 0.1, env.SimTime(), 1e-12)
	assert.Equal(t, int64(counts["B"]), env.Events()["rxn1"])
	require.NoError(t, env.sim.part.Verify(env.sim.store))
}

func TestEnvironment_Step_SameSeedSameResult(t *testing.T) {
	a := newTestEnvironment(t, decayScenario())
	b := newTestEnvironment(t, decayScenario())
	for range 5 {
		require.NoError(t, a.Step())
		require.NoError(t, b.Step())
	}
	assert.Equal(t, a.Counts(), b.Counts())
	assert.Equal(t, a.Molecules(""), b.Molecules(""))
}

// splitScenario turns each A into one B and one C.
func splitScenario() ScenarioConfig {
	cfg := decayScenario()
	cfg.Species = append(cfg.Species, SpeciesConfig{Name: "C", Difc: 1})
	cfg.Reactions[0].Products = []SpeciesRef{{Species: "B"}, {Species: "C"}}
	return cfg
}

func TestEnvironment_Step_StoreFull(t *testing.T) {
	cfg := splitScenario()
	cfg.MaxMolecules = 1001
	env := newTestEnvironment(t, cfg)

	err := env.Step()
	require.ErrorIs(t, err, rxn.ErrAllocatorFull)
	assert.Equal(t, int64(0), env.Time())

	counts := env.Counts()
	assert.Equal(t, counts["B"], counts["C"])
	assert.Equal(t, 1000, counts["A"]+counts["B"])
	assert.Equal(t, int64(counts["B"]), env.Events()["rxn1"])
	require.NoError(t, env.sim.part.Verify(env.sim.store))
}

func TestEnvironment_Step_GrowsStore(t *testing.T) {
	env := newTestEnvironment(t, splitScenario())
	require.True(t, env.sim.autoGrow)
	require.NoError(t, env.sim.store.SetCapacity(1001))

	require.NoError(t, env.Step())
	assert.Greater(t, env.sim.store.Capacity(), 1001)

	counts := env.Counts()
	require.Positive(t, counts["B"])
	assert.Equal(t, counts["B"], counts["C"])
	assert.Equal(t, 1000, counts["A"]+counts["B"])
	assert.Equal(t, int64(counts["B"]), env.Events()["rxn1"])
	assert.Equal(t, 1000+counts["B"], env.sim.store.InUse())
	require.NoError(t, env.sim.part.Verify(env.sim.store))
}

func TestEnvironment_Step_GrowsLikeUnbounded(t *testing.T) {
	// A store that grows mid-pass draws the same random numbers as one that
	// never fills up.
	grown := newTestEnvironment(t, splitScenario())
	require.NoError(t, grown.sim.store.SetCapacity(1001))
	roomy := newTestEnvironment(t, splitScenario())

	for range 3 {
		require.NoError(t, grown.Step())
		require.NoError(t, roomy.Step())
	}
	assert.Equal(t, roomy.Counts(), grown.Counts())
	assert.Equal(t, roomy.Events(), grown.Events())
}

func TestEnvironment_OnStep(t *testing.T) {
	env := newTestEnvironment(t, decayScenario())
	env.SetEnvironmentID("obs")
	var reports []StepReport
	env.OnStep(func(r StepReport) { reports = append(reports, r) })

	require.NoError(t, env.Step())
	require.NoError(t, env.Step())

	require.Len(t, reports, 2)
	assert.Equal(t, EnvironmentID("obs"), reports[1].EnvironmentID)
	assert.Equal(t, int64(2), reports[1].Tick)
	total := reports[0].Events["rxn1"] + reports[1].Events["rxn1"]
	assert.Equal(t, env.Events()["rxn1"], total)
	assert.Equal(t, env.Counts(), reports[1].Counts)
}

func TestEnvironment_Insert(t *testing.T) {
	cfg := decayScenario()
	cfg.Molecules = nil
	env := newTestEnvironment(t, cfg)

	v, err := env.Insert(InsertRequest{Species: "A", Pos: []float64{1, 2, 3}})
	require.NoError(t, err)
	assert.Equal(t, "A", v.Species)
	assert.Equal(t, "soln", v.State)
	assert.NotZero(t, v.Serial)

	mols := env.Molecules("A")
	require.Len(t, mols, 1)
	assert.Equal(t, []float64{1, 2, 3}, mols[0].Pos)
	require.NoError(t, env.sim.part.Verify(env.sim.store))

	tests := []struct {
		name string
		req  InsertRequest
		want string
	}{
		{"unknown species", InsertRequest{Species: "Z", Pos: []float64{1, 1, 1}}, "does not exist"},
		{"wrong dimension", InsertRequest{Species: "A", Pos: []float64{1, 1}}, "dimension"},
		{"bound without surface", InsertRequest{Species: "A", State: "front", Pos: []float64{1, 1, 1}}, "requires a surface"},
		{"bad state", InsertRequest{Species: "A", State: "sideways", Pos: []float64{1, 1, 1}}, "unknown molecule state"},
		{"outside domain", InsertRequest{Species: "A", Pos: []float64{1, 1, 11}}, "outside the domain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Insert(tt.req)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestEnvironment_Insert_Bound(t *testing.T) {
	env := newTestEnvironment(t, membraneScenario())

	v, err := env.Insert(InsertRequest{Species: "A", State: "front", Pos: []float64{5, 2, 2}, Surface: "membrane"})
	require.NoError(t, err)
	assert.Equal(t, "membrane", v.Surface)
	assert.Equal(t, "membrane0", v.Panel)

	_, err = env.Insert(InsertRequest{Species: "A", State: "front", Pos: []float64{5, 2, 2}, Surface: "wall"})
	require.Error(t, err)
}

func TestEnvironment_Move(t *testing.T) {
	cfg := decayScenario()
	cfg.Molecules = nil
	env := newTestEnvironment(t, cfg)
	v, err := env.Insert(InsertRequest{Species: "A", Pos: []float64{1, 1, 1}})
	require.NoError(t, err)

	moved, err := env.Move(v.Serial, []float64{9, 9, 9})
	require.NoError(t, err)
	assert.Equal(t, []float64{9, 9, 9}, moved.Pos)
	assert.Equal(t, []float64{9, 9, 9}, env.Molecules("A")[0].Pos)
	require.NoError(t, env.sim.part.Verify(env.sim.store))

	_, err = env.Move(v.Serial, []float64{11, 0, 0})
	assert.Error(t, err)
	_, err = env.Move(v.Serial+100, []float64{1, 1, 1})
	assert.Error(t, err)
}

func TestEnvironment_SetRate(t *testing.T) {
	env := newTestEnvironment(t, decayScenario())

	require.NoError(t, env.SetRate("decay", 0))
	for range 5 {
		require.NoError(t, env.Step())
	}
	assert.Equal(t, 1000, env.Counts()["A"])
	assert.Equal(t, 0.0, *env.Config().Reactions[0].Rate)

	assert.Error(t, env.SetRate("missing", 1))
	assert.Error(t, env.SetRate("decay", -1))
}

func TestEnvironment_SetTimeStep(t *testing.T) {
	env := newTestEnvironment(t, decayScenario())

	assert.Error(t, env.SetTimeStep(0))
	require.NoError(t, env.SetTimeStep(0.02))
	assert.Equal(t, 0.02, env.Config().TimeStep)

	tables := env.Tables()
	require.Len(t, tables, 1)
	require.Len(t, tables[0].Slots, 1)
	assert.InDelta(t, 1-math.Exp(-0.2), *tables[0].Slots[0].Probability, 1e-9)
}

func TestEnvironment_Tables(t *testing.T) {
	env := newTestEnvironment(t, decayScenario())

	tables := env.Tables()
	require.Len(t, tables, 1)
	tbl := tables[0]
	assert.Equal(t, "decay", tbl.Name)
	assert.Equal(t, 1, tbl.Order)
	assert.Equal(t, []string{"A"}, tbl.Reactants)
	assert.Equal(t, []string{"B"}, tbl.Products)
	require.NotNil(t, tbl.Requested)
	assert.Equal(t, 10.0, *tbl.Requested)

	require.Len(t, tbl.Slots, 1)
	slot := tbl.Slots[0]
	assert.Equal(t, [2]string{"solution", "solution"}, slot.Surfaces)
	assert.InDelta(t, 1-math.Exp(-0.1), *slot.Probability, 1e-9)
	require.NotNil(t, slot.Rate)
	assert.InDelta(t, 10, *slot.Rate, 1e-6)
}

func TestEnvironment_Tables_SurfacePairs(t *testing.T) {
	cfg := membraneScenario()
	cfg.Reactions = append(cfg.Reactions, ReactionConfig{
		Name:      "bind",
		Reactants: []SpeciesRef{{Species: "A"}, {Species: "B"}},
		Rate:      ptr(1.0),
	})
	env := newTestEnvironment(t, cfg)

	for _, tbl := range env.Tables() {
		if tbl.Order == 2 {
			assert.Len(t, tbl.Slots, 4)
		} else {
			assert.Len(t, tbl.Slots, 2)
		}
	}
}

func TestEnvironment_Warnings(t *testing.T) {
	cfg := decayScenario()
	cfg.Reactions[0].Rate = nil
	env := newTestEnvironment(t, cfg)

	var messages []string
	for _, w := range env.Warnings() {
		messages = append(messages, w.Message)
	}
	assert.Contains(t, messages, "rate not set")
}

func TestEnvironment_RunStop(t *testing.T) {
	env := newTestEnvironment(t, decayScenario())

	env.Run(time.Millisecond)
	assert.True(t, env.IsRunning())
	require.Eventually(t, func() bool { return env.Time() >= 3 }, 2*time.Second, 5*time.Millisecond)

	env.Stop()
	assert.False(t, env.IsRunning())
	stopped := env.Time()
	time.Sleep(20 * time.Millisecond)
	assert.LessOrEqual(t, env.Time(), stopped+1)

	// Restart after stop.
	env.Run(time.Millisecond)
	require.Eventually(t, func() bool { return env.Time() > stopped+1 }, 2*time.Second, 5*time.Millisecond)
	env.Stop()
}
