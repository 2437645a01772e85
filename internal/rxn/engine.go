// Package rxn holds the reaction catalogs of a simulation, resolves their
// microscopic parameters from macroscopic rates and detects and executes
// reactions each time step.
package rxn

import (
	"github.com/daniacca/rxdyn/internal/geometry"
	"github.com/daniacca/rxdyn/internal/molec"
	"github.com/daniacca/rxdyn/internal/random"
	"github.com/daniacca/rxdyn/internal/rxnparam"
	"github.com/daniacca/rxdyn/internal/space"
)

// MaxOrder is one more than the largest supported reaction order.
const MaxOrder = 3

// Engine owns the catalogs for orders 0, 1 and 2 and runs detection against
// a molecule store and its spatial partition.
type Engine struct {
	store *molec.Store
	scene *geometry.Scene
	part  *space.Partition
	rng   *random.Source
	model rxnparam.Model

	logger  Logger
	workers int

	dim        int
	nsrf       int
	maxSpecies int
	dt         float64

	cats      [MaxOrder]*Catalog
	counts    Counts
	observers []func(Event)
}

// NewEngine creates an engine for the species currently registered in
// store. Species added to the store later cannot take part in reactions.
func NewEngine(store *molec.Store, scene *geometry.Scene, part *space.Partition, rng *random.Source) (*Engine, error) {
	if store == nil {
		return nil, setupErrorf("new engine", "molecule store is required")
	}
	if scene == nil || scene.Domain == nil {
		return nil, setupErrorf("new engine", "%v", geometry.ErrNoDomain)
	}
	if part == nil {
		return nil, setupErrorf("new engine", "spatial partition is required")
	}
	if scene.Dim() != store.Dim() {
		return nil, setupErrorf("new engine", "scene has dimension %d, store has %d", scene.Dim(), store.Dim())
	}
	if rng == nil {
		rng = random.New(0)
	}
	e := &Engine{
		store:      store,
		scene:      scene,
		part:       part,
		rng:        rng,
		model:      rxnparam.Default,
		logger:     &NoOpLogger{},
		dim:        store.Dim(),
		nsrf:       scene.NumSurfaces(),
		maxSpecies: store.SpeciesCount(),
	}
	for order := range MaxOrder {
		e.cats[order] = newCatalog(order, e.maxSpecies)
	}
	return e, nil
}

func (e *Engine) SetLogger(l Logger) {
	if l == nil {
		l = &NoOpLogger{}
	}
	e.logger = l
}

// SetWorkers selects the detection mode. n <= 1 scans serially; larger
// values split candidate search across n goroutines.
func (e *Engine) SetWorkers(n int) { e.workers = n }

func (e *Engine) Workers() int { return e.workers }

// SetModel replaces the rate model used by parameter resolution.
func (e *Engine) SetModel(m rxnparam.Model) {
	e.model = m
	e.SetCondition(-1, space.CondParams, space.Downgrade)
}

// OnEvent registers fn to be called after every executed reaction.
func (e *Engine) OnEvent(fn func(Event)) { e.observers = append(e.observers, fn) }

func (e *Engine) Store() *molec.Store             { return e.store }
func (e *Engine) Scene() *geometry.Scene          { return e.scene }
func (e *Engine) Partition() *space.Partition     { return e.part }
func (e *Engine) TimeStep() float64               { return e.dt }
func (e *Engine) Events() Counts                  { return e.counts }
func (e *Engine) Catalog(order int) *Catalog      { return e.cats[order] }
func (e *Engine) Reactions(order int) []*Reaction { return e.cats[order].reactions }

// ResetEvents zeroes the event counters.
func (e *Engine) ResetEvents() { e.counts = Counts{} }

// Condition returns the least advanced condition of all catalogs.
func (e *Engine) Condition() space.Condition {
	c := space.CondReady
	for _, cat := range e.cats {
		if len(cat.reactions) > 0 {
			c = min(c, cat.cond)
		}
	}
	return c
}

// SetCondition moves the condition of catalog order, or of every catalog
// when order is negative.
func (e *Engine) SetCondition(order int, c space.Condition, mode space.SetMode) {
	for o, cat := range e.cats {
		if order < 0 || o == order {
			cat.cond = cat.cond.Apply(c, mode)
		}
	}
}

// Find looks a reaction up by name in any catalog.
func (e *Engine) Find(name string) (*Reaction, bool) {
	for _, cat := range e.cats {
		if r, ok := cat.Find(name); ok {
			return r, true
		}
	}
	return nil, false
}

// Step runs one full reaction pass: zeroth order, unimolecular, bimolecular
// within boxes and bimolecular between neighboring boxes. Store changes are
// committed after each order.
func (e *Engine) Step() error {
	if err := e.checkReady(); err != nil {
		return err
	}
	for _, order := range []int{0, 1, 2} {
		if err := e.DetectAndExecute(order); err != nil {
			return err
		}
	}
	return nil
}

// DetectAndExecute runs the detection pass of one order and commits the
// resulting store changes. Order 2 runs both the same-box and the
// neighbor-box scans.
func (e *Engine) DetectAndExecute(order int) error {
	if err := e.checkReady(); err != nil {
		return err
	}
	var err error
	switch order {
	case 0:
		err = e.ZeroOrder()
	case 1:
		if e.workers > 1 {
			err = e.parallelUnimolecular()
		} else {
			err = e.Unimolecular()
		}
	case 2:
		if e.workers > 1 {
			err = e.parallelBimolecular(false)
			if err == nil {
				err = e.parallelBimolecular(true)
			}
		} else {
			err = e.Bimolecular(false)
			if err == nil {
				err = e.Bimolecular(true)
			}
		}
	default:
		return setupErrorf("detect", "reaction order %d out of range", order)
	}
	e.store.Sort(e.part)
	return err
}

func (e *Engine) notify(ev Event) {
	for _, fn := range e.observers {
		fn(ev)
	}
}
