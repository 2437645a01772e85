package achem

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/daniacca/rxdyn/internal/geometry"
	"github.com/daniacca/rxdyn/internal/molec"
	"github.com/daniacca/rxdyn/internal/rxn"
)

// Environment owns one configured simulation and steps it, either on demand
// or from a ticker started by Run. All methods are safe for concurrent use.
type Environment struct {
	mu        sync.RWMutex
	id        EnvironmentID
	sim       *simulation
	time      int64
	simTime   float64
	stopCh    chan struct{}
	isRunning bool
	logger    Logger

	notificationManager *NotificationManager
	pending             []notificationJob

	snapshotDir   string
	snapshotEvery int64
	observers     []func(StepReport)
}

// StepReport summarizes one completed step for observers.
type StepReport struct {
	EnvironmentID EnvironmentID
	Tick          int64
	SimTime       float64
	Duration      time.Duration
	// Events holds the reactions executed during the step, by event type.
	Events map[string]int64
	// Counts holds the molecules alive after the step, by species.
	Counts map[string]int
}

// InsertRequest describes one molecule to add. Bound states need a
// surface; Panel may be left empty to use the panel containing Pos.
type InsertRequest struct {
	Species string    `json:"species"`
	State   string    `json:"state,omitempty"`
	Pos     []float64 `json:"pos"`
	Surface string    `json:"surface,omitempty"`
	Panel   string    `json:"panel,omitempty"`
}

// NewEnvironment builds an environment from cfg without logging.
func NewEnvironment(cfg ScenarioConfig) (*Environment, error) {
	return BuildEnvironment(cfg, nil)
}

// BuildEnvironment validates cfg, builds its geometry, molecules and
// reactions, and resolves reaction parameters for the configured time step.
// Parameter check findings are logged.
func BuildEnvironment(cfg ScenarioConfig, logger Logger) (*Environment, error) {
	if logger == nil {
		logger = NewNoOpLogger()
	}
	sim, err := buildSimulation(cfg, logger, true)
	if err != nil {
		return nil, err
	}
	env := &Environment{
		logger: logger,
		stopCh: make(chan struct{}),
	}
	env.attach(sim)
	env.logWarnings()
	return env, nil
}

func (e *Environment) attach(sim *simulation) {
	e.sim = sim
	sim.engine.OnEvent(e.onReaction)
}

func (e *Environment) logWarnings() {
	for _, w := range e.sim.warnings() {
		if w.Level == rxn.LevelError {
			e.logger.Errorf("%s", w)
		} else {
			e.logger.Warnf("%s", w)
		}
	}
}

// onReaction runs inside Step with the lock held.
func (e *Environment) onReaction(ev rxn.Event) {
	if e.notificationManager == nil {
		return
	}
	nc := e.sim.notify[ev.Reaction.Name]
	if nc == nil {
		return
	}
	e.pending = append(e.pending, notificationJob{
		Event:       newNotificationEvent(e.id, ev, e.sim.speciesName, e.time+1, e.simTime+e.sim.engine.TimeStep()),
		NotifierIDs: nc.Notifiers,
	})
}

func (e *Environment) ID() EnvironmentID {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.id
}

func (e *Environment) SetEnvironmentID(id EnvironmentID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.id = id
}

// SetNotificationManager routes reaction notifications through nm. A nil
// manager disables notifications.
func (e *Environment) SetNotificationManager(nm *NotificationManager) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notificationManager = nm
}

// SetSnapshotConfig enables a snapshot in dir every everyTicks steps. A zero
// interval or an empty dir disables periodic snapshots.
func (e *Environment) SetSnapshotConfig(dir string, everyTicks int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snapshotDir = dir
	e.snapshotEvery = everyTicks
}

// OnStep registers fn to run after every step, outside the environment lock.
func (e *Environment) OnStep(fn func(StepReport)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, fn)
}

// Time returns the number of completed steps.
func (e *Environment) Time() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.time
}

// SimTime returns the simulated time elapsed.
func (e *Environment) SimTime() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.simTime
}

// Config returns the scenario the environment runs, including later time
// step and rate changes.
func (e *Environment) Config() ScenarioConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sim.cfg
}

// Step runs one reaction pass: zeroth order, unimolecular, then
// bimolecular. When the scenario leaves max_molecules unset the store grows
// on demand; otherwise a full store ends the step with rxn.ErrAllocatorFull
// and the clock does not advance.
func (e *Environment) Step() error {
	start := time.Now()

	e.mu.Lock()
	before := e.sim.engine.Events()
	err := e.stepLocked()
	after := e.sim.engine.Events()
	jobs := e.pending
	e.pending = nil
	nm := e.notificationManager
	observers := slices.Clone(e.observers)
	report := StepReport{
		EnvironmentID: e.id,
		Tick:          e.time,
		SimTime:       e.simTime,
	}
	if len(observers) > 0 {
		report.Events = make(map[string]int64, rxn.NumEventTypes)
		for et := range rxn.NumEventTypes {
			report.Events[et.String()] = after[et] - before[et]
		}
		report.Counts = e.countsLocked()
	}
	snapshotDue := err == nil && e.snapshotDir != "" && e.snapshotEvery > 0 && e.time%e.snapshotEvery == 0
	e.mu.Unlock()

	if nm != nil {
		for _, job := range jobs {
			nm.Enqueue(job.Event, job.NotifierIDs)
		}
	}
	if err != nil {
		return err
	}
	report.Duration = time.Since(start)
	for _, fn := range observers {
		fn(report)
	}
	if snapshotDue {
		if path, serr := e.SaveSnapshot(); serr != nil {
			e.logger.Errorf("failed to save snapshot: %v", serr)
		} else {
			e.logger.Debugf("snapshot saved to %s", path)
		}
	}
	return nil
}

func (e *Environment) stepLocked() error {
	eng := e.sim.engine
	for _, order := range []int{0, 1, 2} {
		if err := eng.DetectAndExecute(order); err != nil {
			return err
		}
	}
	e.time++
	e.simTime += eng.TimeStep()
	return nil
}

// Run steps the environment every interval in its own goroutine until Stop
// is called or a step fails. It can be called again after stopping.
func (e *Environment) Run(interval time.Duration) {
	e.mu.Lock()
	if e.isRunning {
		e.mu.Unlock()
		return
	}
	e.stopCh = make(chan struct{})
	stopCh := e.stopCh
	e.isRunning = true
	e.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				select {
				case <-stopCh:
					return
				default:
				}
				if err := e.Step(); err != nil {
					e.logger.Errorf("environment %s stopped: %v", e.ID(), err)
					e.mu.Lock()
					if e.stopCh == stopCh {
						e.isRunning = false
					}
					e.mu.Unlock()
					return
				}
			case <-stopCh:
				return
			}
		}
	}()
}

// Stop halts a running environment. After stopping, Run can be called
// again.
func (e *Environment) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.isRunning {
		return
	}
	close(e.stopCh)
	e.isRunning = false
}

func (e *Environment) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.isRunning
}

// Insert adds one molecule and commits it at once.
func (e *Environment) Insert(req InsertRequest) (MoleculeView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(req.Pos) == e.sim.store.Dim() && !e.sim.scene.Domain.Contains(req.Pos) {
		return MoleculeView{}, errors.New("position is outside the domain")
	}
	m, err := e.sim.insert(req)
	if err != nil {
		return MoleculeView{}, err
	}
	e.sim.store.Sort(e.sim.part)
	return viewOf(m, e.sim.speciesName), nil
}

// insert allocates the molecule described by req without committing it.
func (s *simulation) insert(req InsertRequest) (*molec.Molecule, error) {
	id, ok := s.store.Lookup(req.Species)
	if !ok {
		return nil, fmt.Errorf("species %s does not exist", req.Species)
	}
	ms, err := molec.ParseState(req.State)
	if err != nil {
		return nil, err
	}
	if len(req.Pos) != s.store.Dim() {
		return nil, fmt.Errorf("position has dimension %d, want %d", len(req.Pos), s.store.Dim())
	}
	var pnl *geometry.Panel
	if ms.Bound() || req.Surface != "" {
		if req.Surface == "" {
			return nil, fmt.Errorf("state %s requires a surface", ms)
		}
		if pnl, err = s.findPanel(req.Surface, req.Panel, req.Pos); err != nil {
			return nil, err
		}
	}
	pos := slices.Clone(req.Pos)
	if pnl != nil && !ms.Bound() {
		pnl = nil
	}
	return s.store.Insert(id, ms, pos, pnl)
}

// Move places the molecule with the given serial at pos and updates its
// box. Bound molecules are kept on their panel.
func (e *Environment) Move(serial uint64, pos []float64) (MoleculeView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	store := e.sim.store
	if len(pos) != store.Dim() {
		return MoleculeView{}, fmt.Errorf("position has dimension %d, want %d", len(pos), store.Dim())
	}
	if !e.sim.scene.Domain.Contains(pos) {
		return MoleculeView{}, errors.New("position is outside the domain")
	}
	var found *molec.Molecule
	store.Each(func(m *molec.Molecule) {
		if m.Serial == serial {
			found = m
		}
	})
	if found == nil {
		return MoleculeView{}, fmt.Errorf("molecule %d not found", serial)
	}
	copy(found.Pos, pos)
	if found.Panel != nil {
		found.Panel.Fix(found.Pos, geometry.FaceNone, 0)
	}
	e.sim.part.Reassign(found)
	return viewOf(found, e.sim.speciesName), nil
}

// Molecules returns a copy of every live molecule, optionally restricted to
// one species.
func (e *Environment) Molecules(species string) []MoleculeView {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sim.views(species)
}

func (s *simulation) views(species string) []MoleculeView {
	out := make([]MoleculeView, 0)
	s.store.Each(func(m *molec.Molecule) {
		name := s.speciesName(int(m.Ident))
		if species == "" || name == species {
			out = append(out, viewOf(m, s.speciesName))
		}
	})
	slices.SortFunc(out, func(a, b MoleculeView) int {
		switch {
		case a.Serial < b.Serial:
			return -1
		case a.Serial > b.Serial:
			return 1
		}
		return 0
	})
	return out
}

// Counts returns the number of live molecules per species. Species with no
// molecules are listed with zero.
func (e *Environment) Counts() map[string]int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.countsLocked()
}

func (e *Environment) countsLocked() map[string]int {
	store := e.sim.store
	out := make(map[string]int, store.SpeciesCount())
	for id := 1; id < store.SpeciesCount(); id++ {
		out[store.SpeciesName(molec.Ident(id))] = 0
	}
	store.Each(func(m *molec.Molecule) {
		out[store.SpeciesName(m.Ident)]++
	})
	return out
}

// Events returns the cumulative reaction counts by event type.
func (e *Environment) Events() map[string]int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sim.engine.Events().Map()
}

// Warnings runs the parameter checks of the reactions and the box grid.
func (e *Environment) Warnings() []rxn.Warning {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sim.warnings()
}

// SetTimeStep changes the time step and resolves every reaction again.
func (e *Environment) SetTimeStep(dt float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.sim.engine.SetTimeStep(dt); err != nil {
		return err
	}
	e.sim.cfg.TimeStep = dt
	return nil
}

// SetRate changes the requested rate of reaction name and resolves the
// parameters again.
func (e *Environment) SetRate(name string, rate float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	eng := e.sim.engine
	r, ok := eng.Find(name)
	if !ok {
		return fmt.Errorf("reaction %s not found", name)
	}
	if err := eng.SetRate(r, rate); err != nil {
		return err
	}
	if err := eng.SetTimeStep(eng.TimeStep()); err != nil {
		return err
	}
	cfg := &e.sim.cfg
	cfg.Reactions = slices.Clone(cfg.Reactions)
	for i := range cfg.Reactions {
		if cfg.Reactions[i].Name == name {
			cfg.Reactions[i].Rate = &rate
			cfg.Reactions[i].Probability = nil
		}
	}
	return nil
}

// SlotTable holds the resolved parameters of a reaction for one pair of
// reactant surfaces. Non-finite values are reported as null.
type SlotTable struct {
	Surfaces     [2]string `json:"surfaces"`
	Rate         *float64  `json:"rate"`
	Probability  *float64  `json:"probability"`
	BindRadius   *float64  `json:"bind_radius"`
	UnbindRadius *float64  `json:"unbind_radius"`
	Pgem         *float64  `json:"pgem"`
	Tau          *float64  `json:"tau"`
}

// ReactionTable reports what the engine made of one reaction.
type ReactionTable struct {
	Name      string      `json:"name"`
	Order     int         `json:"order"`
	Reactants []string    `json:"reactants"`
	Products  []string    `json:"products"`
	Requested *float64    `json:"requested_rate"`
	RevParam  string      `json:"rev_param"`
	Slots     []SlotTable `json:"slots"`
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Tables reports the resolved parameters of every reaction. Orders 0 and 1
// list one slot per surface; order 2 lists every surface pair.
func (e *Environment) Tables() []ReactionTable {
	e.mu.RLock()
	defer e.mu.RUnlock()
	eng := e.sim.engine
	nsrf := e.sim.scene.NumSurfaces()
	srfName := func(k int) string {
		if k == 0 {
			return "solution"
		}
		return e.sim.scene.Surfaces[k-1].Name
	}
	names := func(ids []molec.Ident) []string {
		out := make([]string, 0, len(ids))
		for _, id := range ids {
			out = append(out, e.sim.speciesName(int(id)))
		}
		return out
	}

	var out []ReactionTable
	for order := range rxn.MaxOrder {
		for _, r := range eng.Reactions(order) {
			t := ReactionTable{
				Name:      r.Name,
				Order:     r.Order,
				Reactants: names(r.Reactants),
				Products:  names(r.Products),
				RevParam:  r.RevParam.String(),
			}
			if r.Rate >= 0 {
				t.Requested = finite(r.Rate)
			}
			for k := 0; k <= nsrf; k++ {
				for l := 0; l <= nsrf; l++ {
					if order < 2 && k != l {
						continue
					}
					rate, pgem := eng.CalcRate(r, k, l)
					t.Slots = append(t.Slots, SlotTable{
						Surfaces:     [2]string{srfName(k), srfName(l)},
						Rate:         finite(rate),
						Probability:  finite(r.Prob(k, l)),
						BindRadius:   finite(r.BindRadius(k, l)),
						UnbindRadius: finite(r.UnbindRadius(k, l)),
						Pgem:         finite(pgem),
						Tau:          finite(r.Tau(k, l)),
					})
				}
			}
			out = append(out, t)
		}
	}
	return out
}
