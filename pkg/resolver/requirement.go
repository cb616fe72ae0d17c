package resolver

import (
	"fmt"
	"sort"

	"github.com/lu-zero/portage-resolver/pkg/pms"
)

// RequirementKind discriminates the closed Requirement variant set.
type RequirementKind int

const (
	// ReqSimple demands one candidate of a name matching a clause.
	ReqSimple RequirementKind = iota
	// ReqUnion demands that at least one member requirement holds.
	ReqUnion
	// ReqBlocker forbids co-selection with matching candidates.
	ReqBlocker
)

// Requirement is a solver-facing demand built from one structured atom or
// group. The variant set is fixed; nothing outside this package constructs
// requirements except through InternRequirement.
type Requirement struct {
	Kind RequirementKind

	// Name and Set, when Kind is ReqSimple.
	Name NameID
	Set  VersionSetID

	// Members, when Kind is ReqUnion. Never empty.
	Members []Requirement

	// Cpn, Set, and Strength, when Kind is ReqBlocker. Blockers match on
	// the unslotted name so they span every slot the clause admits.
	Cpn      pms.Cpn
	Strength pms.Blocker
}

// InternRequirement converts one structured atom into a Requirement,
// resolving its USE-dependencies against the session's UseConfig and
// interning its match clause. Malformed atoms are rejected here rather
// than deferred to the engine. An atom naming an unknown package still
// interns, so unsatisfiability is the engine's verdict, not the builder's.
func (p *Provider) InternRequirement(atom pms.Atom) (Requirement, error) {
	if atom.Op != 0 && !atom.Op.Valid() {
		return Requirement{}, fmt.Errorf("unknown operator in atom %s", atom.Cpn)
	}
	if atom.Slot.SubSlot != "" && atom.Slot.Slot == "" {
		return Requirement{}, fmt.Errorf("sub-slot without slot in atom %s", atom)
	}
	if atom.Slot.Op == pms.SlotOpStar && atom.Slot.Slot != "" {
		return Requirement{}, fmt.Errorf("slot name combined with :* in atom %s", atom)
	}

	use, err := p.resolveUseDeps(atom.UseDeps)
	if err != nil {
		return Requirement{}, err
	}

	clause := VersionConstraint{
		Op:       atom.Op,
		Version:  atom.Version,
		Slot:     atom.Slot.Slot,
		SubSlot:  atom.Slot.SubSlot,
		SlotOp:   atom.Slot.Op,
		Repo:     atom.Repo,
		Use:      use,
		Inverted: atom.Blocker != pms.BlockNone,
	}
	set := p.pool.InternVersionSet(clause)
	if atom.Slot.RebuildTrigger() {
		p.rebuild[set] = true
	}

	if atom.Blocker != pms.BlockNone {
		p.strengths[set] = atom.Blocker
		return Requirement{
			Kind:     ReqBlocker,
			Cpn:      atom.Cpn,
			Set:      set,
			Strength: atom.Blocker,
		}, nil
	}

	if atom.Slot.Slot != "" {
		name := p.pool.InternName(PackageName{Cpn: atom.Cpn, Slot: atom.Slot.Slot})
		return Requirement{Kind: ReqSimple, Name: name, Set: set}, nil
	}

	// No slot restriction: the requirement spans the union of the name's
	// known slots. `:*` and `:=` accept the same candidates; `:=` only
	// adds the rebuild-trigger mark above.
	slots := p.slotsOf(atom.Cpn)
	if len(slots) == 0 {
		name := p.pool.InternName(PackageName{Cpn: atom.Cpn})
		return Requirement{Kind: ReqSimple, Name: name, Set: set}, nil
	}
	if len(slots) == 1 {
		name := p.pool.InternName(PackageName{Cpn: atom.Cpn, Slot: slots[0]})
		return Requirement{Kind: ReqSimple, Name: name, Set: set}, nil
	}
	// Newest-first holds across slots too: the member whose best
	// candidate is newest comes first so the engine prefers it.
	names := make([]NameID, 0, len(slots))
	for _, slot := range slots {
		names = append(names, p.pool.InternName(PackageName{Cpn: atom.Cpn, Slot: slot}))
	}
	sort.SliceStable(names, func(i, j int) bool {
		a, aok := p.newestOf(names[i])
		b, bok := p.newestOf(names[j])
		if aok != bok {
			return aok
		}
		if !aok {
			return false
		}
		return a.Compare(b) > 0
	})
	members := make([]Requirement, 0, len(names))
	for _, name := range names {
		members = append(members, Requirement{Kind: ReqSimple, Name: name, Set: set})
	}
	return Requirement{Kind: ReqUnion, Members: members}, nil
}

// newestOf returns the highest candidate version of a name.
func (p *Provider) newestOf(name NameID) (pms.Version, bool) {
	cands := p.candidates[name]
	if len(cands) == 0 {
		return pms.Version{}, false
	}
	// Candidate lists are already newest-first.
	return p.pool.Solvable(cands[0]).Cpv.Version, true
}

// IsRebuildTrigger reports whether a clause came from a `:=` slot spec.
// Advisory metadata for rebuild scheduling, not a resolution constraint.
func (p *Provider) IsRebuildTrigger(set VersionSetID) bool {
	return p.rebuild[set]
}

// BlockerStrength returns the strength a blocker-derived clause was built
// with, or BlockNone for ordinary clauses.
func (p *Provider) BlockerStrength(set VersionSetID) pms.Blocker {
	return p.strengths[set]
}

// resolveUseDeps folds the six atom USE-dependency forms into concrete
// enabled/disabled requirements on candidates. The conditional forms read
// the referencing package's configuration; in strict mode a solver-decided
// flag is an error, otherwise it resolves as disabled.
func (p *Provider) resolveUseDeps(deps []pms.UseDep) ([]UseConstraint, error) {
	if len(deps) == 0 {
		return nil, nil
	}
	var out []UseConstraint
	for _, d := range deps {
		state := p.use.State(d.Flag)
		if state == UseSolverDecided {
			if p.requireCompleteUse {
				return nil, AmbiguousUseError{Flag: d.Flag}
			}
			state = UseDisabled
		}
		enabled := state == UseEnabled
		switch d.Kind {
		case pms.UseDepEnabled:
			out = append(out, UseConstraint{Flag: d.Flag, Enabled: true})
		case pms.UseDepDisabled:
			out = append(out, UseConstraint{Flag: d.Flag, Enabled: false})
		case pms.UseDepConditional:
			// [flag?]: flag required on when we have it on.
			if enabled {
				out = append(out, UseConstraint{Flag: d.Flag, Enabled: true})
			}
		case pms.UseDepConditionalNegate:
			// [!flag?]: flag required off when we have it off.
			if !enabled {
				out = append(out, UseConstraint{Flag: d.Flag, Enabled: false})
			}
		case pms.UseDepEqual:
			// [flag=]: candidate mirrors our value.
			out = append(out, UseConstraint{Flag: d.Flag, Enabled: enabled})
		case pms.UseDepEqualNegate:
			// [!flag=]: candidate takes the opposite value.
			out = append(out, UseConstraint{Flag: d.Flag, Enabled: !enabled})
		default:
			return nil, fmt.Errorf("unknown USE dependency form on flag %q", d.Flag)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Flag < out[j].Flag
	})
	return out, nil
}
