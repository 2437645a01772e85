package molec

import (
	"errors"
	"fmt"

	"github.com/daniacca/rxdyn/internal/geometry"
)

// ErrStoreFull is returned by Alloc when every molecule slot is in use.
var ErrStoreFull = errors.New("molecule store is full")

// Boxer receives membership changes when the store commits a pass.
type Boxer interface {
	Insert(m *Molecule)
	Remove(m *Molecule)
}

type surfaceDifcKey struct {
	ident   Ident
	state   State
	surface int
}

// Store owns every molecule: the live lists, the molecules allocated during
// the current pass and the free pool.
type Store struct {
	dim      int
	capacity int

	species []Species
	byName  map[string]Ident
	lists   []string

	live     [][]*Molecule
	born     []*Molecule
	free     []*Molecule
	inUse    int
	serial   uint64
	surfDifc map[surfaceDifcKey]float64
	grow     func(capacity int)
}

// NewStore creates a store for dim-dimensional molecules holding at most
// capacity of them. The void species and a default live list named "system"
// are created up front.
func NewStore(dim, capacity int) *Store {
	s := &Store{
		dim:      dim,
		capacity: capacity,
		byName:   make(map[string]Ident),
		surfDifc: make(map[surfaceDifcKey]float64),
	}
	s.species = append(s.species, Species{Name: "empty"})
	s.AddList("system")
	return s
}

func (s *Store) Dim() int      { return s.dim }
func (s *Store) Capacity() int { return s.capacity }

// SetCapacity changes the maximum number of molecules. It cannot drop below
// the number currently allocated.
func (s *Store) SetCapacity(n int) error {
	if n < s.inUse {
		return fmt.Errorf("capacity %d below %d molecules in use", n, s.inUse)
	}
	s.capacity = n
	return nil
}

// SetGrowth lets the store double its capacity instead of failing when it
// runs out of slots. fn is told the new capacity. A nil fn fixes the
// capacity again.
func (s *Store) SetGrowth(fn func(capacity int)) { s.grow = fn }

// Reserve makes sure n more molecules can be allocated, growing the store
// when growth is enabled. It returns ErrStoreFull otherwise.
func (s *Store) Reserve(n int) error {
	if s.inUse+n <= s.capacity {
		return nil
	}
	if s.grow == nil {
		return ErrStoreFull
	}
	c := max(s.capacity, 1)
	for s.inUse+n > c {
		c *= 2
	}
	s.capacity = c
	s.grow(c)
	return nil
}

// AddSpecies registers a species and maps all of its states to list 0.
func (s *Store) AddSpecies(name string) (Ident, error) {
	if name == "" {
		return Void, errors.New("species name is required")
	}
	if _, ok := s.byName[name]; ok {
		return Void, fmt.Errorf("duplicate species name: %s", name)
	}
	id := Ident(len(s.species))
	s.species = append(s.species, Species{Name: name})
	s.byName[name] = id
	return id, nil
}

// SpeciesCount returns the number of species including the void species.
func (s *Store) SpeciesCount() int { return len(s.species) }

// Lookup finds a species by name.
func (s *Store) Lookup(name string) (Ident, bool) {
	id, ok := s.byName[name]
	return id, ok
}

func (s *Store) SpeciesName(id Ident) string {
	if int(id) < 0 || int(id) >= len(s.species) {
		return ""
	}
	return s.species[id].Name
}

// AddList creates a new live list and returns its index.
func (s *Store) AddList(name string) int {
	s.lists = append(s.lists, name)
	s.live = append(s.live, nil)
	return len(s.lists) - 1
}

func (s *Store) NumLists() int         { return len(s.lists) }
func (s *Store) ListName(ll int) string { return s.lists[ll] }

// SetList assigns the molecules of species id in state ms (or All states) to
// live list ll.
func (s *Store) SetList(id Ident, ms State, ll int) error {
	if err := s.checkIdent(id); err != nil {
		return err
	}
	if ll < 0 || ll >= len(s.lists) {
		return fmt.Errorf("live list %d out of range", ll)
	}
	for st := State(0); st < NumStates; st++ {
		if ms == All || ms == st || (ms == Soln && st == Bsoln) {
			s.species[id].Lists[st] = ll
		}
	}
	return nil
}

// ListLookup returns the live list of species id in state ms.
func (s *Store) ListLookup(id Ident, ms State) int {
	return s.species[id].Lists[ms.Solution()]
}

// SetDifc sets the diffusion constant of species id in state ms (or All).
func (s *Store) SetDifc(id Ident, ms State, difc float64) error {
	if err := s.checkIdent(id); err != nil {
		return err
	}
	if difc < 0 {
		return fmt.Errorf("negative diffusion constant for %s", s.species[id].Name)
	}
	for st := State(0); st < NumStates; st++ {
		if ms == All || ms.Solution() == st.Solution() {
			s.species[id].Difc[st] = difc
		}
	}
	return nil
}

// SetSurfaceDifc overrides the diffusion constant of species id in state ms
// for molecules bound to the given surface.
func (s *Store) SetSurfaceDifc(id Ident, ms State, surface int, difc float64) error {
	if err := s.checkIdent(id); err != nil {
		return err
	}
	if surface <= 0 {
		return fmt.Errorf("surface index %d out of range", surface)
	}
	s.surfDifc[surfaceDifcKey{id, ms.Solution(), surface}] = difc
	return nil
}

// Difc returns the diffusion constant of species id in state ms, using the
// override for surface when one is set.
func (s *Store) Difc(id Ident, ms State, surface int) float64 {
	ms = ms.Solution()
	if surface > 0 {
		if d, ok := s.surfDifc[surfaceDifcKey{id, ms, surface}]; ok {
			return d
		}
	}
	return s.species[id].Difc[ms]
}

func (s *Store) checkIdent(id Ident) error {
	if id <= Void || int(id) >= len(s.species) {
		return fmt.Errorf("species identity %d out of range", id)
	}
	return nil
}

// Alloc returns an uncommitted molecule. It joins its live list at the next
// Sort, so it cannot react during the pass that created it.
func (s *Store) Alloc() (*Molecule, error) {
	if err := s.Reserve(1); err != nil {
		return nil, err
	}
	var m *Molecule
	if n := len(s.free); n > 0 {
		m = s.free[n-1]
		s.free = s.free[:n-1]
	} else {
		m = &Molecule{Pos: make([]float64, s.dim)}
	}
	s.serial++
	m.Serial = s.serial
	m.Ident = Void
	m.State = Soln
	m.Panel = nil
	m.Box = -1
	m.List = -1
	s.inUse++
	s.born = append(s.born, m)
	return m, nil
}

// Insert allocates a molecule with the given species, state and position.
func (s *Store) Insert(id Ident, ms State, pos []float64, panel *geometry.Panel) (*Molecule, error) {
	if err := s.checkIdent(id); err != nil {
		return nil, err
	}
	if !ms.Valid() || ms == Bsoln {
		return nil, fmt.Errorf("molecule state %s cannot be stored", ms)
	}
	if len(pos) != s.dim {
		return nil, fmt.Errorf("position has dimension %d, want %d", len(pos), s.dim)
	}
	if ms.Bound() && panel == nil {
		return nil, fmt.Errorf("surface-bound molecule of %s needs a panel", s.species[id].Name)
	}
	m, err := s.Alloc()
	if err != nil {
		return nil, err
	}
	m.Ident = id
	m.State = ms
	copy(m.Pos, pos)
	if ms != Soln {
		m.Panel = panel
	}
	return m, nil
}

// Kill marks m as consumed. It stays in its live list and box until Sort.
func (s *Store) Kill(m *Molecule) {
	m.Ident = Void
}

// Live returns live list ll. Killed molecules remain in it until Sort.
func (s *Store) Live(ll int) []*Molecule { return s.live[ll] }

// Pending returns the molecules allocated since the last Sort.
func (s *Store) Pending() []*Molecule { return s.born }

// Sort retires killed molecules and commits newly allocated ones to their
// live lists, reporting both changes to b when it is not nil.
func (s *Store) Sort(b Boxer) {
	for ll, list := range s.live {
		kept := list[:0]
		for _, m := range list {
			if m.Alive() {
				kept = append(kept, m)
				continue
			}
			if b != nil && m.Box >= 0 {
				b.Remove(m)
			}
			s.release(m)
		}
		clear(list[len(kept):])
		s.live[ll] = kept
	}
	for _, m := range s.born {
		if !m.Alive() {
			s.release(m)
			continue
		}
		m.List = s.ListLookup(m.Ident, m.State)
		s.live[m.List] = append(s.live[m.List], m)
		if b != nil {
			b.Insert(m)
		}
	}
	clear(s.born)
	s.born = s.born[:0]
}

func (s *Store) release(m *Molecule) {
	m.Ident = Void
	m.Panel = nil
	m.Box = -1
	m.List = -1
	s.inUse--
	s.free = append(s.free, m)
}

// Relist moves molecules whose species or state changed to the live list the
// lookup table now assigns them.
func (s *Store) Relist(b Boxer) {
	var moved []*Molecule
	for ll, list := range s.live {
		kept := list[:0]
		for _, m := range list {
			if m.Alive() && s.ListLookup(m.Ident, m.State) != ll {
				if b != nil && m.Box >= 0 {
					b.Remove(m)
				}
				moved = append(moved, m)
				continue
			}
			kept = append(kept, m)
		}
		clear(list[len(kept):])
		s.live[ll] = kept
	}
	for _, m := range moved {
		m.List = s.ListLookup(m.Ident, m.State)
		s.live[m.List] = append(s.live[m.List], m)
		if b != nil {
			b.Insert(m)
		}
	}
}

// Count returns the number of committed, alive molecules of species id in
// state ms. id Void counts all species and ms All counts all states.
func (s *Store) Count(id Ident, ms State) int {
	n := 0
	for _, list := range s.live {
		for _, m := range list {
			if !m.Alive() {
				continue
			}
			if (id == Void || m.Ident == id) && (ms == All || m.State == ms) {
				n++
			}
		}
	}
	return n
}

// Each calls fn for every committed, alive molecule.
func (s *Store) Each(fn func(m *Molecule)) {
	for _, list := range s.live {
		for _, m := range list {
			if m.Alive() {
				fn(m)
			}
		}
	}
}

// InUse returns the number of allocated molecules, committed or pending.
func (s *Store) InUse() int { return s.inUse }
