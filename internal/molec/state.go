package molec

import (
	"fmt"
	"strings"
)

// State is the physical state of a molecule: free in solution or bound to a
// surface in one of four orientations. Bsoln is solution on the back side of
// a surface and only appears in reaction permission tables.
type State int

const (
	Soln State = iota
	Front
	Back
	Up
	Down
	Bsoln
	All
	None
)

// NumStates is the state cardinality used by permission tables.
const NumStates = 6

var stateNames = [...]string{"soln", "front", "back", "up", "down", "bsoln", "all", "none"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "none"
	}
	return stateNames[s]
}

// ParseState accepts the lower-case state names, plus "fsoln" for soln.
func ParseState(name string) (State, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" || n == "fsoln" {
		return Soln, nil
	}
	for i, s := range stateNames {
		if s == n {
			return State(i), nil
		}
	}
	return None, fmt.Errorf("unknown molecule state: %q", name)
}

// Valid reports whether s indexes a permission table entry.
func (s State) Valid() bool { return s >= 0 && s < NumStates }

// Bound reports whether s is one of the four surface-bound states.
func (s State) Bound() bool { return s >= Front && s <= Down }

// Solution maps Bsoln onto Soln and leaves other states unchanged.
func (s State) Solution() State {
	if s == Bsoln {
		return Soln
	}
	return s
}
