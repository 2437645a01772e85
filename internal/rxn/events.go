package rxn

import "github.com/daniacca/rxdyn/internal/molec"

// EventType classifies executed reactions.
type EventType int

const (
	Rxn0 EventType = iota
	Rxn1
	Rxn2Intra
	Rxn2Inter
	Rxn2Wrap
	NumEventTypes
)

var eventNames = [...]string{"rxn0", "rxn1", "rxn2intra", "rxn2inter", "rxn2wrap"}

func (et EventType) String() string {
	if et < 0 || et >= NumEventTypes {
		return "unknown"
	}
	return eventNames[et]
}

// Counts holds one counter per event type.
type Counts [NumEventTypes]int64

// Total sums every counter.
func (c Counts) Total() int64 {
	var n int64
	for _, v := range c {
		n += v
	}
	return n
}

// Map returns the counters keyed by event type name.
func (c Counts) Map() map[string]int64 {
	m := make(map[string]int64, NumEventTypes)
	for et, v := range c {
		m[EventType(et).String()] = v
	}
	return m
}

// Event describes one executed reaction. Products are not yet committed to
// the live lists when observers see them.
type Event struct {
	Type      EventType
	Reaction  *Reaction
	Reactants []molec.Ident
	Products  []*molec.Molecule
	Position  []float64
}
