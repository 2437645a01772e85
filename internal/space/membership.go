package space

import (
	"fmt"
	"slices"

	"github.com/daniacca/rxdyn/internal/molec"
)

func (p *Partition) ensureList(bx *Box, ll int) {
	for len(bx.Mols) <= ll {
		bx.Mols = append(bx.Mols, nil)
	}
}

// Add lists m in box m.Box for live list m.List.
func (p *Partition) Add(m *molec.Molecule) {
	bx := &p.boxes[m.Box]
	p.ensureList(bx, m.List)
	bx.Mols[m.List] = append(bx.Mols[m.List], m)
}

// Remove unlists m from its box. The last molecule of the box list takes its
// slot. Removing a molecule that is not listed is an internal error.
func (p *Partition) Remove(m *molec.Molecule) {
	bx := &p.boxes[m.Box]
	list := bx.Mols[m.List]
	i := len(list) - 1
	for ; i >= 0 && list[i] != m; i-- {
	}
	if i < 0 {
		panic(fmt.Sprintf("space: molecule %d not listed in box %d list %d", m.Serial, m.Box, m.List))
	}
	last := len(list) - 1
	list[i] = list[last]
	list[last] = nil
	bx.Mols[m.List] = list[:last]
}

// Insert locates m and adds it to its box.
func (p *Partition) Insert(m *molec.Molecule) {
	m.Box = p.Locate(m.Pos)
	p.Add(m)
}

// Reassign moves m to the box containing its position and reports whether
// the box changed.
func (p *Partition) Reassign(m *molec.Molecule) bool {
	b := p.Locate(m.Pos)
	if b == m.Box {
		return false
	}
	if m.Box >= 0 {
		p.Remove(m)
	}
	m.Box = b
	p.Add(m)
	return true
}

// ReassignAll reassigns every committed molecule of the store and returns the
// number that changed boxes.
func (p *Partition) ReassignAll(store *molec.Store) int {
	if len(p.boxes) == 1 {
		return 0
	}
	n := 0
	for ll := range store.NumLists() {
		for _, m := range store.Live(ll) {
			if p.Reassign(m) {
				n++
			}
		}
	}
	return n
}

// Populate clears every box and lists all committed molecules of the store.
func (p *Partition) Populate(store *molec.Store) {
	for b := range p.boxes {
		for ll := range p.boxes[b].Mols {
			clear(p.boxes[b].Mols[ll])
			p.boxes[b].Mols[ll] = p.boxes[b].Mols[ll][:0]
		}
	}
	for ll := range store.NumLists() {
		for _, m := range store.Live(ll) {
			m.Box = p.Locate(m.Pos)
			p.Add(m)
		}
	}
}

// SetNumLists records that the store now has n live lists. A count above
// the one the boxes were built for drops the partition to CondLists.
func (p *Partition) SetNumLists(n int) {
	if n > p.nlist {
		p.nlist = n
		p.cond = p.cond.Apply(CondLists, Downgrade)
	}
}

// Update brings the partition back to CondReady. Boxes get one list per live
// list of store and are refilled from it.
func (p *Partition) Update(store *molec.Store) {
	if p.cond == CondReady {
		return
	}
	p.SetNumLists(store.NumLists())
	for b := range p.boxes {
		p.ensureList(&p.boxes[b], p.nlist-1)
	}
	p.Populate(store)
	p.cond = CondReady
}

// Grow changes the capacity of the list of box b for live list ll by n.
// A negative n shrinks it; molecules beyond the new capacity are dropped
// from the box and their box reference is cleared. It returns the number of
// molecules dropped.
func (p *Partition) Grow(b, ll, n int) int {
	bx := &p.boxes[b]
	p.ensureList(bx, ll)
	list := bx.Mols[ll]
	if n >= 0 {
		bx.Mols[ll] = slices.Grow(list, n)
		return 0
	}
	capacity := max(cap(list)+n, 0)
	dropped := 0
	if len(list) > capacity {
		for _, m := range list[capacity:] {
			m.Box = -1
		}
		dropped = len(list) - capacity
		list = list[:capacity]
	}
	bx.Mols[ll] = slices.Clip(append(make([]*molec.Molecule, 0, capacity), list...))
	return dropped
}

// Verify checks that every committed molecule is listed exactly once, in the
// box and list it points to.
func (p *Partition) Verify(store *molec.Store) error {
	seen := make(map[*molec.Molecule]int)
	for b := range p.boxes {
		for ll, list := range p.boxes[b].Mols {
			for _, m := range list {
				if m.Box != b || m.List != ll {
					return fmt.Errorf("molecule %d listed in box %d list %d but refers to box %d list %d", m.Serial, b, ll, m.Box, m.List)
				}
				seen[m]++
			}
		}
	}
	for ll := range store.NumLists() {
		for _, m := range store.Live(ll) {
			if n := seen[m]; n != 1 {
				return fmt.Errorf("molecule %d listed %d times", m.Serial, n)
			}
			if want := p.Locate(m.Pos); want != m.Box {
				return fmt.Errorf("molecule %d in box %d, position is in box %d", m.Serial, m.Box, want)
			}
			delete(seen, m)
		}
	}
	for m := range seen {
		return fmt.Errorf("molecule %d listed but not in the store", m.Serial)
	}
	return nil
}

// Count returns the number of molecules listed in box b over all live lists.
func (p *Partition) Count(b int) int {
	n := 0
	for _, list := range p.boxes[b].Mols {
		n += len(list)
	}
	return n
}

// CheckParams reports box settings likely to slow the simulation.
func (p *Partition) CheckParams() []string {
	var warns []string
	if p.cond != CondReady {
		warns = append(warns, fmt.Sprintf("box structure %s", p.cond))
	}
	mpbox := p.cfg.MolPerBox
	if p.cfg.BoxSize > 0 {
		mpbox = 0
	}
	if mpbox > 100 {
		warns = append(warns, fmt.Sprintf("requested molecules per box, %g, is very high", mpbox))
	} else if mpbox > 0 && mpbox < 1 {
		warns = append(warns, fmt.Sprintf("requested molecules per box, %g, is very low", mpbox))
	}
	if mpbox <= 0 {
		mpbox = 10
	}
	for b := range p.boxes {
		if n := p.Count(b); float64(n) > 10*mpbox {
			warns = append(warns, fmt.Sprintf("box %v has %d molecules in it, which is very high", p.boxes[b].Index, n))
		}
		if n := len(p.boxes[b].Panels); n > 20 {
			warns = append(warns, fmt.Sprintf("box %v has %d panels in it, which is very high", p.boxes[b].Index, n))
		}
	}
	return warns
}
