package achem

import (
	"fmt"
	"strings"

	"github.com/daniacca/rxdyn/internal/molec"
	"github.com/daniacca/rxdyn/internal/rxn"
)

// ValidationError collects multiple validation issues
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "invalid scenario: unknown validation error"
	}
	if len(e.Issues) == 1 {
		return e.Issues[0]
	}
	return "scenario validation errors: " + strings.Join(e.Issues, "; ")
}

func (e *ValidationError) Add(issue string) {
	e.Issues = append(e.Issues, issue)
}

func (e *ValidationError) Addf(format string, args ...any) {
	e.Add(fmt.Sprintf(format, args...))
}

func (e *ValidationError) HasIssues() bool {
	return len(e.Issues) > 0
}

// ValidateScenarioConfig performs comprehensive validation of a ScenarioConfig.
// Every issue found is reported, not only the first.
func ValidateScenarioConfig(cfg ScenarioConfig) error {
	err := &ValidationError{}

	if cfg.Name == "" {
		err.Add("scenario name is required")
	}
	if !(cfg.TimeStep > 0) {
		err.Addf("time step must be positive, got %g", cfg.TimeStep)
	}
	if cfg.Workers < 0 {
		err.Add("workers cannot be negative")
	}
	if cfg.MaxMolecules < 0 {
		err.Add("max_molecules cannot be negative")
	}
	if cfg.Boxes.MolPerBox < 0 || cfg.Boxes.BoxSize < 0 {
		err.Add("box sizing cannot be negative")
	}

	dim := cfg.Dim()
	validateDomain(cfg.Domain, err)

	surfaces := make(map[string]bool)
	for i, sc := range cfg.Surfaces {
		prefix := fmt.Sprintf("surface at index %d", i)
		if sc.Name == "" {
			err.Add(prefix + ": surface name is required")
			continue
		}
		prefix = "surface '" + sc.Name + "'"
		if surfaces[sc.Name] {
			err.Add("duplicate surface name: " + sc.Name)
		}
		surfaces[sc.Name] = true
		if len(sc.Panels) == 0 {
			err.Add(prefix + ": at least one panel is required")
		}
		for j, pc := range sc.Panels {
			pp := fmt.Sprintf("%s panel at index %d", prefix, j)
			if pc.Axis < 0 || pc.Axis >= max(dim, 1) {
				err.Addf("%s: axis %d out of range", pp, pc.Axis)
			}
			if len(pc.Low) != dim || len(pc.High) != dim {
				err.Addf("%s: bounds must have dimension %d", pp, dim)
			}
			if pc.Front != 0 && pc.Front != 1 && pc.Front != -1 {
				err.Addf("%s: front must be 1 or -1", pp)
			}
		}
	}

	compartments := make(map[string]bool)
	for i, cc := range cfg.Compartments {
		if cc.Name == "" {
			err.Addf("compartment at index %d: compartment name is required", i)
			continue
		}
		if compartments[cc.Name] {
			err.Add("duplicate compartment name: " + cc.Name)
		}
		compartments[cc.Name] = true
		if len(cc.Low) != dim || len(cc.High) != dim {
			err.Addf("compartment '%s': bounds must have dimension %d", cc.Name, dim)
		}
	}

	species := make(map[string]bool)
	for i, sp := range cfg.Species {
		if sp.Name == "" {
			err.Addf("species at index %d: species name is required", i)
			continue
		}
		if species[sp.Name] {
			err.Add("duplicate species name: " + sp.Name)
		}
		species[sp.Name] = true
		prefix := "species '" + sp.Name + "'"
		if sp.Difc < 0 {
			err.Add(prefix + ": diffusion constant cannot be negative")
		}
		for name, d := range sp.StateDifc {
			if ms, perr := molec.ParseState(name); perr != nil || !ms.Valid() {
				err.Addf("%s: invalid state '%s' in state_difc", prefix, name)
			}
			if d < 0 {
				err.Addf("%s: diffusion constant for state '%s' cannot be negative", prefix, name)
			}
		}
		for _, sd := range sp.SurfaceDifc {
			if !surfaces[sd.Surface] {
				err.Addf("%s: surface '%s' does not exist", prefix, sd.Surface)
			}
			if ms, perr := molec.ParseState(sd.State); perr != nil || !ms.Bound() {
				err.Addf("%s: surface diffusion state '%s' must be a surface-bound state", prefix, sd.State)
			}
		}
	}

	reactions := make(map[string]bool)
	for i, rc := range cfg.Reactions {
		prefix := fmt.Sprintf("reaction at index %d", i)
		if rc.Name == "" {
			err.Add(prefix + ": reaction name is required")
		} else {
			prefix = "reaction '" + rc.Name + "'"
			if reactions[rc.Name] {
				err.Add("duplicate reaction name: " + rc.Name)
			}
			reactions[rc.Name] = true
		}
		validateReaction(rc, prefix, dim, species, surfaces, compartments, err)
	}

	for i, pc := range cfg.Molecules {
		prefix := fmt.Sprintf("molecules at index %d", i)
		if pc.Species == "" {
			err.Add(prefix + ": species is required")
		} else if !species[pc.Species] {
			err.Addf("%s: species '%s' does not exist", prefix, pc.Species)
		}
		if pc.Count < 0 {
			err.Add(prefix + ": count cannot be negative")
		}
		ms, perr := molec.ParseState(pc.State)
		if perr != nil || !ms.Valid() || ms == molec.Bsoln {
			err.Addf("%s: invalid state '%s'", prefix, pc.State)
		}
		if pc.Pos != nil && len(pc.Pos) != dim {
			err.Addf("%s: position must have dimension %d", prefix, dim)
		}
		if pc.Surface != "" && pc.Compartment != "" {
			err.Add(prefix + ": cannot place on a surface and in a compartment")
		}
		if pc.Surface != "" && !surfaces[pc.Surface] {
			err.Addf("%s: surface '%s' does not exist", prefix, pc.Surface)
		}
		if pc.Compartment != "" && !compartments[pc.Compartment] {
			err.Addf("%s: compartment '%s' does not exist", prefix, pc.Compartment)
		}
		if perr == nil && ms.Bound() && pc.Surface == "" {
			err.Addf("%s: state '%s' requires a surface", prefix, ms)
		}
	}

	if err.HasIssues() {
		return err
	}
	return nil
}

func validateDomain(dc DomainConfig, err *ValidationError) {
	dim := len(dc.Low)
	if dim == 0 {
		err.Add("domain bounds are required")
		return
	}
	if len(dc.High) != dim {
		err.Addf("domain high has dimension %d, low has %d", len(dc.High), dim)
		return
	}
	if dc.Periodic != nil && len(dc.Periodic) != dim {
		err.Addf("domain periodic flags must have dimension %d", dim)
	}
	for d := range dim {
		if !(dc.High[d] > dc.Low[d]) {
			err.Addf("domain is empty in dimension %d", d)
		}
	}
}

func validateReaction(rc ReactionConfig, prefix string, dim int, species, surfaces, compartments map[string]bool, err *ValidationError) {
	order := len(rc.Reactants)
	if order >= rxn.MaxOrder {
		err.Addf("%s: at most %d reactants are supported, got %d", prefix, rxn.MaxOrder-1, order)
	}
	refs := func(kind string, list []SpeciesRef, product bool) {
		for j, ref := range list {
			if ref.Species == "" {
				err.Addf("%s: %s at index %d: species is required", prefix, kind, j)
			} else if !species[ref.Species] {
				err.Addf("%s: %s species '%s' does not exist", prefix, kind, ref.Species)
			}
			ms, perr := molec.ParseState(ref.State)
			switch {
			case perr != nil:
				err.Addf("%s: %s at index %d: %v", prefix, kind, j, perr)
			case product && !ms.Valid():
				err.Addf("%s: %s at index %d: state '%s' is not a molecule state", prefix, kind, j, ref.State)
			case !product && !ms.Valid() && ms != molec.All:
				err.Addf("%s: %s at index %d: state '%s' cannot react", prefix, kind, j, ref.State)
			}
		}
	}
	refs("reactant", rc.Reactants, false)
	refs("product", rc.Products, true)

	if rc.Rate != nil && rc.Probability != nil {
		err.Add(prefix + ": rate and probability are mutually exclusive")
	}
	if rc.Rate != nil && *rc.Rate < 0 {
		err.Add(prefix + ": rate cannot be negative")
	}
	if rc.Probability != nil && (*rc.Probability < 0 || (order > 0 && *rc.Probability > 1)) {
		err.Add(prefix + ": probability out of range")
	}
	if rc.BindRadius != nil && *rc.BindRadius < 0 {
		err.Add(prefix + ": bind_radius cannot be negative")
	}

	rp := rxn.ParseRevParam(rc.RevParam)
	if rc.RevParam != "" && rp == rxn.RevNone && !strings.EqualFold(strings.TrimSpace(rc.RevParam), "none") {
		err.Addf("%s: unknown rev_param '%s'", prefix, rc.RevParam)
	}
	if rc.BindRadius != nil && rc.Rate != nil && rp != rxn.RevConfspread {
		err.Add(prefix + ": bind_radius and rate are mutually exclusive unless rev_param is confspread")
	}
	if rp == rxn.RevConfspread && (order != 2 || len(rc.Products) != 2) {
		err.Add(prefix + ": confspread needs two reactants and two products")
	}
	switch rp {
	case rxn.RevOffset, rxn.RevFixed:
		if len(rc.Offsets) != len(rc.Products) {
			err.Addf("%s: %s needs one offset per product", prefix, rp)
		}
		for j, off := range rc.Offsets {
			if len(off) != dim {
				err.Addf("%s: offset at index %d must have dimension %d", prefix, j, dim)
			}
		}
	default:
		if len(rc.Offsets) > 0 {
			err.Addf("%s: offsets are only used with the offset and fixed placements", prefix)
		}
	}

	if rc.Compartment != "" && rc.Surface != "" {
		err.Add(prefix + ": cannot be scoped to both a compartment and a surface")
	}
	if rc.Compartment != "" && !compartments[rc.Compartment] {
		err.Addf("%s: compartment '%s' does not exist", prefix, rc.Compartment)
	}
	if rc.Surface != "" && !surfaces[rc.Surface] {
		err.Addf("%s: surface '%s' does not exist", prefix, rc.Surface)
	}

	for _, set := range []struct {
		kind   string
		combos [][]string
	}{{"permit", rc.Permit}, {"forbid", rc.Forbid}} {
		kind := set.kind
		for j, combo := range set.combos {
			if len(combo) != order {
				err.Addf("%s: %s entry %d needs %d states", prefix, kind, j, order)
				continue
			}
			for _, name := range combo {
				if ms, perr := molec.ParseState(name); perr != nil || (!ms.Valid() && ms != molec.All) {
					err.Addf("%s: %s entry %d has invalid state '%s'", prefix, kind, j, name)
				}
			}
		}
	}

	if rc.Notify != nil && rc.Notify.Enabled && len(rc.Notify.Notifiers) == 0 {
		err.Add(prefix + ": notifications enabled without notifiers")
	}
}
