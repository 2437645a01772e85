package rxn

import "github.com/daniacca/rxdyn/internal/molec"

// PackState folds the reactant states of a reaction of the given order into
// a permission table index. It is a bijection onto [0, NumStates^order).
func PackState(order int, states []molec.State) int {
	switch order {
	case 1:
		return int(states[0])
	case 2:
		return int(states[0])*molec.NumStates + int(states[1])
	default:
		return 0
	}
}

// UnpackState is the inverse of PackState.
func UnpackState(order, code int) []molec.State {
	switch order {
	case 1:
		return []molec.State{molec.State(code)}
	case 2:
		return []molec.State{molec.State(code / molec.NumStates), molec.State(code % molec.NumStates)}
	default:
		return nil
	}
}

// PackIdent folds reactant identities into a catalog index key for a species
// table of size maxSpecies.
func PackIdent(order, maxSpecies int, idents []molec.Ident) int {
	switch order {
	case 1:
		return int(idents[0])
	case 2:
		return int(idents[0])*maxSpecies + int(idents[1])
	default:
		return 0
	}
}

// UnpackIdent is the inverse of PackIdent.
func UnpackIdent(order, maxSpecies, key int) []molec.Ident {
	switch order {
	case 1:
		return []molec.Ident{molec.Ident(key)}
	case 2:
		return []molec.Ident{molec.Ident(key / maxSpecies), molec.Ident(key % maxSpecies)}
	default:
		return nil
	}
}

func numPermits(order int) int {
	n := 1
	for range order {
		n *= molec.NumStates
	}
	return n
}

// permutations returns the distinct orderings of idents; order is at most 2.
func permutations(idents []molec.Ident) [][]molec.Ident {
	out := [][]molec.Ident{append([]molec.Ident(nil), idents...)}
	if len(idents) == 2 && idents[0] != idents[1] {
		out = append(out, []molec.Ident{idents[1], idents[0]})
	}
	return out
}
