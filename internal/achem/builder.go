package achem

import (
	"fmt"
	"maps"
	"slices"

	"github.com/daniacca/rxdyn/internal/geometry"
	"github.com/daniacca/rxdyn/internal/molec"
	"github.com/daniacca/rxdyn/internal/random"
	"github.com/daniacca/rxdyn/internal/rxn"
	"github.com/daniacca/rxdyn/internal/space"
)

// defaultCapacity bounds the molecule store when a scenario sets no
// max_molecules. Such stores grow on demand.
const defaultCapacity = 100000

// simulation is everything built from one scenario.
type simulation struct {
	cfg      ScenarioConfig
	seed     uint64
	scene    *geometry.Scene
	store    *molec.Store
	part     *space.Partition
	engine   *rxn.Engine
	rng      *random.Source
	notify   map[string]*NotificationConfig
	autoGrow bool
}

// buildSimulation validates cfg and assembles a ready-to-step simulation.
// With seed false the initial placements are skipped, for restoring
// snapshots.
func buildSimulation(cfg ScenarioConfig, logger Logger, seed bool) (*simulation, error) {
	if err := ValidateScenarioConfig(cfg); err != nil {
		return nil, err
	}
	dim := cfg.Dim()
	sim := &simulation{cfg: cfg, seed: cfg.Seed, notify: make(map[string]*NotificationConfig)}
	if sim.seed == 0 {
		sim.seed = seedFromClock()
	}

	domain, err := geometry.NewDomain(slices.Clone(cfg.Domain.Low), slices.Clone(cfg.Domain.High), slices.Clone(cfg.Domain.Periodic))
	if err != nil {
		return nil, fmt.Errorf("failed to build domain: %w", err)
	}
	sim.scene = geometry.NewScene(domain)
	for _, sc := range cfg.Surfaces {
		srf, err := sim.scene.AddSurface(sc.Name)
		if err != nil {
			return nil, err
		}
		for j, pc := range sc.Panels {
			name := pc.Name
			if name == "" {
				name = fmt.Sprintf("%s%d", sc.Name, j)
			}
			front := pc.Front
			if front == 0 {
				front = 1
			}
			p, err := geometry.NewPanel(name, pc.Axis, pc.Offset, pc.Low, pc.High, front)
			if err != nil {
				return nil, fmt.Errorf("surface %s: %w", sc.Name, err)
			}
			srf.AddPanel(p)
		}
	}
	for _, cc := range cfg.Compartments {
		if _, err := sim.scene.AddCompartment(cc.Name, cc.Low, cc.High); err != nil {
			return nil, err
		}
	}

	capacity := cfg.MaxMolecules
	if capacity == 0 {
		sim.autoGrow = true
		capacity = max(defaultCapacity, 4*cfg.InitialMolecules())
	}
	sim.store = molec.NewStore(dim, capacity)
	if sim.autoGrow {
		sim.store.SetGrowth(func(n int) {
			logger.Warnf("molecule store full, capacity raised to %d", n)
		})
	}
	if err := sim.addSpecies(); err != nil {
		return nil, err
	}

	sim.part, err = space.Build(domain, cfg.Boxes, max(cfg.InitialMolecules(), 1), sim.store.NumLists(), sim.scene)
	if err != nil {
		return nil, err
	}

	sim.rng = random.New(sim.seed)
	placement := sim.rng.Fork()
	sim.engine, err = rxn.NewEngine(sim.store, sim.scene, sim.part, sim.rng)
	if err != nil {
		return nil, err
	}
	sim.engine.SetLogger(logger)
	sim.engine.SetWorkers(cfg.Workers)

	for _, rc := range cfg.Reactions {
		if err := sim.addReaction(rc); err != nil {
			return nil, err
		}
	}

	if seed {
		for _, pc := range cfg.Molecules {
			if err := sim.place(pc, placement); err != nil {
				return nil, err
			}
		}
		sim.store.Sort(sim.part)
	}

	if err := sim.engine.SetTimeStep(cfg.TimeStep); err != nil {
		return nil, fmt.Errorf("failed to resolve reaction parameters: %w", err)
	}
	return sim, nil
}

func (s *simulation) addSpecies() error {
	lists := map[string]int{s.store.ListName(0): 0}
	for _, sp := range s.cfg.Species {
		id, err := s.store.AddSpecies(sp.Name)
		if err != nil {
			return err
		}
		if err := s.store.SetDifc(id, molec.All, sp.Difc); err != nil {
			return err
		}
		for _, name := range slices.Sorted(maps.Keys(sp.StateDifc)) {
			ms, err := molec.ParseState(name)
			if err != nil {
				return err
			}
			if err := s.store.SetDifc(id, ms, sp.StateDifc[name]); err != nil {
				return err
			}
		}
		for _, sd := range sp.SurfaceDifc {
			ms, err := molec.ParseState(sd.State)
			if err != nil {
				return err
			}
			if err := s.store.SetSurfaceDifc(id, ms, s.scene.Surface(sd.Surface).Index, sd.Difc); err != nil {
				return err
			}
		}
		if sp.List != "" {
			ll, ok := lists[sp.List]
			if !ok {
				ll = s.store.AddList(sp.List)
				lists[sp.List] = ll
			}
			if err := s.store.SetList(id, molec.All, ll); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *simulation) refs(list []SpeciesRef) ([]molec.Ident, []molec.State, error) {
	ids := make([]molec.Ident, 0, len(list))
	states := make([]molec.State, 0, len(list))
	for _, ref := range list {
		id, ok := s.store.Lookup(ref.Species)
		if !ok {
			return nil, nil, fmt.Errorf("species %s does not exist", ref.Species)
		}
		ms, err := molec.ParseState(ref.State)
		if err != nil {
			return nil, nil, err
		}
		ids = append(ids, id)
		states = append(states, ms)
	}
	return ids, states, nil
}

func parseStates(names []string) ([]molec.State, error) {
	out := make([]molec.State, 0, len(names))
	for _, name := range names {
		ms, err := molec.ParseState(name)
		if err != nil {
			return nil, err
		}
		out = append(out, ms)
	}
	return out, nil
}

func (s *simulation) addReaction(rc ReactionConfig) error {
	rids, rstates, err := s.refs(rc.Reactants)
	if err != nil {
		return fmt.Errorf("reaction %s: %w", rc.Name, err)
	}
	pids, pstates, err := s.refs(rc.Products)
	if err != nil {
		return fmt.Errorf("reaction %s: %w", rc.Name, err)
	}
	var scope rxn.Scope
	if rc.Compartment != "" {
		scope.Compartment = s.scene.Compartment(rc.Compartment)
	}
	if rc.Surface != "" {
		scope.Surface = s.scene.Surface(rc.Surface)
	}

	eng := s.engine
	r, err := eng.AddReaction(len(rids), rc.Name, rids, rstates, pids, pstates, scope)
	if err != nil {
		return err
	}

	rp := rxn.ParseRevParam(rc.RevParam)
	switch rp {
	case rxn.RevNone:
	case rxn.RevOffset, rxn.RevFixed:
		for i, off := range rc.Offsets {
			if err := eng.SetProductOffset(r, rp, i, off); err != nil {
				return err
			}
		}
	case rxn.RevConfspread:
		if rc.BindRadius != nil {
			err = eng.SetConfspreadRadius(r, *rc.BindRadius)
		} else {
			err = eng.SetRevParam(r, rp, rc.RevValue)
		}
		if err != nil {
			return err
		}
	default:
		if err := eng.SetRevParam(r, rp, rc.RevValue); err != nil {
			return err
		}
	}

	if rc.Rate != nil {
		if err := eng.SetRate(r, *rc.Rate); err != nil {
			return err
		}
	}
	if rc.Probability != nil {
		if err := eng.SetProbability(r, *rc.Probability); err != nil {
			return err
		}
	}
	if rc.BindRadius != nil && rp != rxn.RevConfspread {
		if err := eng.SetBindingRadius(r, *rc.BindRadius); err != nil {
			return err
		}
	}

	for _, set := range []struct {
		combos  [][]string
		allowed bool
	}{{rc.Permit, true}, {rc.Forbid, false}} {
		for _, combo := range set.combos {
			states, err := parseStates(combo)
			if err != nil {
				return fmt.Errorf("reaction %s: %w", rc.Name, err)
			}
			if err := eng.SetPermission(r, states, set.allowed); err != nil {
				return err
			}
		}
	}

	if rc.Notify != nil && rc.Notify.Enabled {
		s.notify[rc.Name] = rc.Notify
	}
	return nil
}

// place seeds the molecules of one placement entry.
func (s *simulation) place(pc PlacementConfig, rng *random.Source) error {
	id, ok := s.store.Lookup(pc.Species)
	if !ok {
		return fmt.Errorf("species %s does not exist", pc.Species)
	}
	ms, err := molec.ParseState(pc.State)
	if err != nil {
		return err
	}
	pos := make([]float64, s.store.Dim())
	for range pc.Count {
		var pnl *geometry.Panel
		switch {
		case pc.Pos != nil:
			copy(pos, pc.Pos)
			if pc.Surface != "" {
				if pnl, err = s.findPanel(pc.Surface, "", pos); err != nil {
					return err
				}
			}
		case pc.Surface != "":
			pnl = s.scene.Surface(pc.Surface).RandomPoint(rng, pos)
		case pc.Compartment != "":
			s.scene.Compartment(pc.Compartment).RandomPoint(rng, pos)
		default:
			s.scene.Domain.RandomPoint(rng, pos)
		}
		if pnl != nil && !ms.Bound() {
			pnl.Fix(pos, geometry.FaceFront, s.scene.Epsilon)
			pnl = nil
		}
		if _, err := s.store.Insert(id, ms, pos, pnl); err != nil {
			return fmt.Errorf("failed to place %s: %w", pc.Species, err)
		}
	}
	return nil
}

// findPanel returns the named panel of surface, or the first one whose
// rectangle contains pos when panel is empty.
func (s *simulation) findPanel(surface, panel string, pos []float64) (*geometry.Panel, error) {
	srf := s.scene.Surface(surface)
	if srf == nil {
		return nil, fmt.Errorf("surface %s does not exist", surface)
	}
	for _, p := range srf.Panels {
		if panel != "" && p.Name == panel {
			return p, nil
		}
		if panel == "" && p.Contains(pos) {
			return p, nil
		}
	}
	if panel != "" {
		return nil, fmt.Errorf("surface %s has no panel %s", surface, panel)
	}
	return nil, fmt.Errorf("no panel of surface %s contains the position", surface)
}

func (s *simulation) speciesName(id int) string {
	return s.store.SpeciesName(molec.Ident(id))
}

// warnings gathers the parameter checks of the engine and the partition.
func (s *simulation) warnings() []rxn.Warning {
	out := s.engine.CheckParams()
	for _, msg := range s.part.CheckParams() {
		out = append(out, rxn.Warning{Level: rxn.LevelWarning, Message: msg})
	}
	return out
}
