package resolver

import (
	"fmt"
	"sort"

	"github.com/lu-zero/portage-resolver/internal/sat"
	"github.com/lu-zero/portage-resolver/pkg/pms"
)

// WeakBlockerPolicy decides how `!atom` blockers are enforced. Strong
// blockers (`!!atom`) are always hard constraints.
type WeakBlockerPolicy int

const (
	// WeakBlockersEnforce treats weak blockers like strong ones: blocker
	// and blocked are never co-selected.
	WeakBlockersEnforce WeakBlockerPolicy = iota
	// WeakBlockersAdvisory records weak blocker pairs for the caller to
	// act on at merge time but lets the engine co-select them.
	WeakBlockersAdvisory
)

// AdvisoryBlock is one weak blocker pair recorded under the advisory
// policy: Subject declared the blocker, Blocked matched it.
type AdvisoryBlock struct {
	Subject SolvableID
	Blocked SolvableID
}

// Provider mediates between repository metadata and the solving engine.
// It interns everything it sees into its Pool, compiles every candidate's
// dependency declarations into engine constraints, and answers the
// advisory queries (rebuild triggers, blocker strength) after the fact.
//
// A Provider is built once per resolution session and is not safe for
// concurrent use.
type Provider struct {
	pool               *Pool
	repo               Repository
	use                UseConfig
	weakPolicy         WeakBlockerPolicy
	requireCompleteUse bool

	candidates map[NameID][]SolvableID
	cpnSlots   map[pms.Cpn][]string
	rebuild    map[VersionSetID]bool
	strengths  map[VersionSetID]pms.Blocker
	advisory   []AdvisoryBlock

	compiled    []sat.Variable
	varSolvable map[sat.Identifier]SolvableID
	flagPairs   map[string]flagPair
	flagOf      map[sat.Identifier]flagValue
	choiceSeq   int

	// extra points at compile's working set so virtual variables created
	// mid-compile land in the output. Nil outside compile.
	extra *[]*variable
}

type flagPair struct {
	on  sat.Identifier
	off sat.Identifier
}

type flagValue struct {
	flag    string
	enabled bool
}

// variable is the compiled form of one solvable or virtual choice.
type variable struct {
	id          sat.Identifier
	constraints []sat.Constraint
}

func (v *variable) Identifier() sat.Identifier {
	return v.id
}

func (v *variable) Constraints() []sat.Constraint {
	return v.constraints
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider) error

// WithUseConfig supplies the session's USE-flag context.
func WithUseConfig(c UseConfig) ProviderOption {
	return func(p *Provider) error {
		p.use = c
		return nil
	}
}

// WithWeakBlockerPolicy selects enforcement for `!atom` blockers.
func WithWeakBlockerPolicy(policy WeakBlockerPolicy) ProviderOption {
	return func(p *Provider) error {
		p.weakPolicy = policy
		return nil
	}
}

// WithRequireCompleteUse makes any conditional over a solver-decided flag
// an AmbiguousUseError instead of a solver choice.
func WithRequireCompleteUse() ProviderOption {
	return func(p *Provider) error {
		p.requireCompleteUse = true
		return nil
	}
}

// NewProvider walks the repository once, interning every candidate and
// precomputing per-name candidate order: locked names are hard-filtered,
// the rest sort newest-first with the favored version winning ties.
// Installed packages the repository no longer carries are injected as
// candidates so the engine can keep them selected.
func NewProvider(repo Repository, options ...ProviderOption) (*Provider, error) {
	p := &Provider{
		pool:        NewPool(),
		repo:        repo,
		candidates:  map[NameID][]SolvableID{},
		cpnSlots:    map[pms.Cpn][]string{},
		rebuild:     map[VersionSetID]bool{},
		strengths:   map[VersionSetID]pms.Blocker{},
		varSolvable: map[sat.Identifier]SolvableID{},
		flagPairs:   map[string]flagPair{},
		flagOf:      map[sat.Identifier]flagValue{},
	}
	for _, option := range options {
		if err := option(p); err != nil {
			return nil, err
		}
	}

	for _, m := range repo.AllPackages() {
		p.pool.AddSolvable(m)
	}
	for _, m := range repo.Installed() {
		p.pool.AddSolvable(m)
	}

	seenSlot := map[PackageName]bool{}
	for id := SolvableID(0); int(id) < len(p.pool.solvables); id++ {
		name := p.pool.NameOf(id)
		pn := p.pool.Name(name)
		if !seenSlot[pn] {
			seenSlot[pn] = true
			p.cpnSlots[pn.Cpn] = append(p.cpnSlots[pn.Cpn], pn.Slot)
		}
	}
	for _, slots := range p.cpnSlots {
		sort.Strings(slots)
	}

	for name := NameID(0); int(name) < len(p.pool.names); name++ {
		p.candidates[name] = p.orderCandidates(name)
	}
	return p, nil
}

// Pool exposes the session's arena for id resolution.
func (p *Provider) Pool() *Pool {
	return p.pool
}

// AdvisoryBlocks returns the weak blocker pairs recorded while compiling
// under the advisory policy. Populated by Resolve.
func (p *Provider) AdvisoryBlocks() []AdvisoryBlock {
	return p.advisory
}

// orderCandidates applies the lock filter and sorts what survives:
// newest first, favored version first among equal versions, repository
// name as the final deterministic tie-break.
func (p *Provider) orderCandidates(name NameID) []SolvableID {
	pn := p.pool.Name(name)
	lock, locked := p.repo.Locked(pn.Cpn)
	favored, hasFavored := p.repo.Favored(pn.Cpn)

	var ids []SolvableID
	for _, id := range p.pool.SolvablesFor(name) {
		if locked {
			if lock.Slot != "" && lock.Slot != pn.Slot {
				continue
			}
			if !lock.Matches(p.pool.Solvable(id)) {
				continue
			}
		}
		ids = append(ids, id)
	}

	sort.SliceStable(ids, func(i, j int) bool {
		a, b := p.pool.Solvable(ids[i]), p.pool.Solvable(ids[j])
		if c := a.Cpv.Version.Compare(b.Cpv.Version); c != 0 {
			return c > 0
		}
		if hasFavored {
			af, bf := a.Cpv.Version.Equal(favored), b.Cpv.Version.Equal(favored)
			if af != bf {
				return af
			}
		}
		return a.Repo < b.Repo
	})
	return ids
}

func (p *Provider) slotsOf(cpn pms.Cpn) []string {
	return p.cpnSlots[cpn]
}

func solvableIdentifier(m PackageMetadata) sat.Identifier {
	return sat.IdentifierFromString(m.String())
}

// candidatesFor lists the ordered candidates of a name that satisfy a
// clause, as engine identifiers.
func (p *Provider) candidatesFor(name NameID, set VersionSetID) []sat.Identifier {
	clause := p.pool.VersionSet(set)
	var out []sat.Identifier
	for _, id := range p.candidates[name] {
		if clause.Matches(p.pool.Solvable(id)) {
			out = append(out, solvableIdentifier(p.pool.Solvable(id)))
		}
	}
	return out
}

// requirementCandidates flattens a Simple or Union requirement into its
// ordered candidate identifiers.
func (p *Provider) requirementCandidates(req Requirement) ([]sat.Identifier, error) {
	switch req.Kind {
	case ReqSimple:
		return p.candidatesFor(req.Name, req.Set), nil
	case ReqUnion:
		var out []sat.Identifier
		for _, m := range req.Members {
			ids, err := p.requirementCandidates(m)
			if err != nil {
				return nil, err
			}
			out = append(out, ids...)
		}
		return out, nil
	}
	return nil, fmt.Errorf("blocker requirement has no candidate list")
}

// blockerTargets lists the solvables a blocker clause matches, spanning
// every slot the clause admits. A package never blocks its own identity.
func (p *Provider) blockerTargets(req Requirement, self SolvableID, haveSelf bool) []SolvableID {
	clause := p.pool.VersionSet(req.Set)
	slots := p.slotsOf(req.Cpn)
	if clause.Slot != "" {
		slots = []string{clause.Slot}
	}
	var out []SolvableID
	for _, slot := range slots {
		name, ok := p.pool.nameIDs[PackageName{Cpn: req.Cpn, Slot: slot}]
		if !ok {
			continue
		}
		for _, id := range p.candidates[name] {
			if haveSelf && id == self {
				continue
			}
			if clause.Matches(p.pool.Solvable(id)) {
				out = append(out, id)
			}
		}
	}
	return out
}

// compile builds the engine's variable set: one variable per solvable
// carrying its dependency constraints, a cardinality-one constraint per
// slotted name, and whatever virtual flag and choice variables the
// dependency trees demanded.
func (p *Provider) compile() ([]sat.Variable, error) {
	if p.compiled != nil {
		return p.compiled, nil
	}

	vars := make([]*variable, 0, len(p.pool.solvables))
	index := map[SolvableID]*variable{}
	for id := SolvableID(0); int(id) < len(p.pool.solvables); id++ {
		v := &variable{id: solvableIdentifier(p.pool.Solvable(id))}
		p.varSolvable[v.id] = id
		vars = append(vars, v)
		index[id] = v
	}
	p.extra = &vars

	// Locked-out candidates are never selectable; one version per
	// slotted name otherwise.
	for name := NameID(0); int(name) < len(p.pool.names); name++ {
		allowed := map[SolvableID]bool{}
		cands := p.candidates[name]
		for _, id := range cands {
			allowed[id] = true
		}
		for _, id := range p.pool.SolvablesFor(name) {
			if !allowed[id] {
				index[id].constraints = append(index[id].constraints, sat.Prohibited())
			}
		}
		if len(cands) > 1 {
			ids := make([]sat.Identifier, len(cands))
			for i, id := range cands {
				ids[i] = solvableIdentifier(p.pool.Solvable(id))
			}
			index[cands[0]].constraints = append(index[cands[0]].constraints, sat.AtMost(1, ids...))
		}
	}

	for id := SolvableID(0); int(id) < len(p.pool.solvables); id++ {
		v := index[id]
		forced := map[string]bool{}
		for _, ce := range p.pool.Solvable(id).Deps.Classes() {
			for _, entry := range ce.Entries {
				if err := p.compileEntry(v, id, entry, nil, forced); err != nil {
					return nil, fmt.Errorf("%s %s: %w", p.pool.Solvable(id), ce.Class, err)
				}
			}
		}
	}

	out := make([]sat.Variable, len(*p.extra))
	for i, v := range *p.extra {
		out[i] = v
	}
	p.extra = nil
	p.compiled = out
	return out, nil
}

// compileEntry translates one dependency tree node into constraints on v.
// guards is the accumulated list of escape hatches from enclosing
// solver-decided conditionals: a guarded clause is satisfied when any
// guard is selected.
func (p *Provider) compileEntry(v *variable, self SolvableID, entry pms.DepEntry, guards []sat.Identifier, forced map[string]bool) error {
	switch entry.Kind {
	case pms.EntryAtom:
		return p.compileAtom(v, self, entry.Atom, guards)

	case pms.EntryUseConditional:
		switch p.use.State(entry.Flag) {
		case UseSolverDecided:
			if p.requireCompleteUse {
				return AmbiguousUseError{Flag: entry.Flag}
			}
			pair := p.flagPair(entry.Flag)
			if !forced[entry.Flag] {
				forced[entry.Flag] = true
				v.constraints = append(v.constraints, sat.Dependency(pair.off, pair.on))
			}
			guard := pair.off
			if entry.Negate {
				guard = pair.on
			}
			guards = append(append([]sat.Identifier{}, guards...), guard)
		case UseEnabled:
			if entry.Negate {
				return nil
			}
		case UseDisabled:
			if !entry.Negate {
				return nil
			}
		}
		for _, child := range entry.Children {
			if err := p.compileEntry(v, self, child, guards, forced); err != nil {
				return err
			}
		}
		return nil

	case pms.EntryAnyOf:
		ids, err := p.anyOfCandidates(entry.Children)
		if err != nil {
			return err
		}
		v.constraints = append(v.constraints, sat.Dependency(append(append([]sat.Identifier{}, guards...), ids...)...))
		return nil

	case pms.EntryExactlyOneOf, pms.EntryAtMostOneOf:
		return p.compileOneOf(v, self, entry, guards)
	}
	return fmt.Errorf("unknown dependency entry kind %d", entry.Kind)
}

func (p *Provider) compileAtom(v *variable, self SolvableID, atom pms.Atom, guards []sat.Identifier) error {
	req, err := p.InternRequirement(atom)
	if err != nil {
		return err
	}
	if req.Kind == ReqBlocker {
		targets := p.blockerTargets(req, self, true)
		if req.Strength == pms.BlockWeak && p.weakPolicy == WeakBlockersAdvisory {
			for _, t := range targets {
				p.advisory = append(p.advisory, AdvisoryBlock{Subject: self, Blocked: t})
			}
			return nil
		}
		// Blockers stay unconditional even under conditional guards:
		// forbidding co-selection is the safe reading when the flag's
		// value is the engine's choice.
		for _, t := range targets {
			v.constraints = append(v.constraints, sat.Conflict(solvableIdentifier(p.pool.Solvable(t))))
		}
		return nil
	}
	ids, err := p.requirementCandidates(req)
	if err != nil {
		return err
	}
	v.constraints = append(v.constraints, sat.Dependency(append(append([]sat.Identifier{}, guards...), ids...)...))
	return nil
}

// anyOfCandidates flattens `|| ( … )` members into one preference-ordered
// candidate list. Conditional members must be eagerly decidable; an active
// conditional contributes its body's atoms as further alternatives.
func (p *Provider) anyOfCandidates(children []pms.DepEntry) ([]sat.Identifier, error) {
	var out []sat.Identifier
	for _, child := range children {
		switch child.Kind {
		case pms.EntryAtom:
			req, err := p.InternRequirement(child.Atom)
			if err != nil {
				return nil, err
			}
			if req.Kind == ReqBlocker {
				return nil, fmt.Errorf("blocker inside any-of group")
			}
			ids, err := p.requirementCandidates(req)
			if err != nil {
				return nil, err
			}
			out = append(out, ids...)
		case pms.EntryAnyOf:
			ids, err := p.anyOfCandidates(child.Children)
			if err != nil {
				return nil, err
			}
			out = append(out, ids...)
		case pms.EntryUseConditional:
			state := p.use.State(child.Flag)
			if state == UseSolverDecided {
				return nil, AmbiguousUseError{Flag: child.Flag}
			}
			active := (state == UseEnabled) != child.Negate
			if !active {
				continue
			}
			ids, err := p.anyOfCandidates(child.Children)
			if err != nil {
				return nil, err
			}
			out = append(out, ids...)
		default:
			return nil, fmt.Errorf("unsupported group nesting inside any-of")
		}
	}
	return out, nil
}

// compileOneOf encodes `^^ ( … )` and `?? ( … )` through virtual choice
// variables: selecting a choice activates its alternative's constraints,
// pairwise conflicts keep the choices mutually exclusive, and `??` lists
// an empty "none" choice first so taking nothing stays the preferred
// outcome.
func (p *Provider) compileOneOf(v *variable, self SolvableID, entry pms.DepEntry, guards []sat.Identifier) error {
	p.choiceSeq++
	group := p.choiceSeq
	var choices []sat.Identifier

	if entry.Kind == pms.EntryAtMostOneOf {
		none := p.newVirtual(sat.Identifier(fmt.Sprintf("choice(%d.none)", group)))
		choices = append(choices, none.id)
	}
	for i, alt := range entry.Children {
		cv := p.newVirtual(sat.Identifier(fmt.Sprintf("choice(%d.%d)", group, i)))
		if err := p.compileEntry(cv, self, alt, nil, map[string]bool{}); err != nil {
			return err
		}
		for _, prior := range choices {
			cv.constraints = append(cv.constraints, sat.Conflict(prior))
		}
		choices = append(choices, cv.id)
	}
	v.constraints = append(v.constraints, sat.Dependency(append(append([]sat.Identifier{}, guards...), choices...)...))
	return nil
}

// flagPair lazily creates the complementary virtual variables standing in
// for a solver-decided flag. Exactly one of the pair can be selected.
func (p *Provider) flagPair(flag string) flagPair {
	if pair, ok := p.flagPairs[flag]; ok {
		return pair
	}
	on := p.newVirtual(sat.Identifier(fmt.Sprintf("use(%s)", flag)))
	off := p.newVirtual(sat.Identifier(fmt.Sprintf("use(-%s)", flag)))
	off.constraints = append(off.constraints, sat.Conflict(on.id))
	pair := flagPair{on: on.id, off: off.id}
	p.flagPairs[flag] = pair
	p.flagOf[on.id] = flagValue{flag: flag, enabled: true}
	p.flagOf[off.id] = flagValue{flag: flag, enabled: false}
	return pair
}

func (p *Provider) newVirtual(id sat.Identifier) *variable {
	v := &variable{id: id}
	*p.extra = append(*p.extra, v)
	return v
}
