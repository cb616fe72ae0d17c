// Package resolver bridges Portage dependency metadata and a SAT solving
// engine. A Pool interns package identity data, a Provider compiles
// repositories and dependency declarations into solver constraints, and the
// post-solve layer turns the engine's selection into a dependency graph and
// an install order.
package resolver

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lu-zero/portage-resolver/pkg/pms"
)

// NameID identifies one interned PackageName within a Pool.
type NameID int

// SolvableID identifies one interned candidate package within a Pool.
type SolvableID int

// VersionSetID identifies one interned VersionConstraint within a Pool.
// Structurally equal constraints share an id.
type VersionSetID int

// PackageName is the solver's name axis: a category/package name combined
// with a slot. Folding the slot into the name means per-name cardinality
// constraints limit versions within a slot while different slots of the
// same package coexist.
type PackageName struct {
	Cpn  pms.Cpn
	Slot string
}

func (n PackageName) String() string {
	if n.Slot == "" {
		return n.Cpn.String()
	}
	return n.Cpn.String() + ":" + n.Slot
}

// PackageMetadata describes one buildable candidate.
type PackageMetadata struct {
	Cpv     pms.Cpv
	Slot    string
	SubSlot string
	Repo    string
	// Use lists the flags enabled for this candidate's build. Atom
	// USE-dependencies are checked against it.
	Use  []string
	Deps pms.PackageDeps
}

func (m PackageMetadata) String() string {
	var b strings.Builder
	b.WriteString(m.Cpv.String())
	if m.Slot != "" {
		b.WriteByte(':')
		b.WriteString(m.Slot)
		if m.SubSlot != "" {
			b.WriteByte('/')
			b.WriteString(m.SubSlot)
		}
	}
	if m.Repo != "" {
		b.WriteString("::")
		b.WriteString(m.Repo)
	}
	return b.String()
}

// UseEnabled reports whether the candidate was built with the flag on.
func (m PackageMetadata) UseEnabled(flag string) bool {
	for _, f := range m.Use {
		if f == flag {
			return true
		}
	}
	return false
}

// UseConstraint is one resolved USE requirement on matching candidates.
type UseConstraint struct {
	Flag    string
	Enabled bool
}

// VersionConstraint is a single match clause against candidates of a name.
// A zero Op places no version restriction.
type VersionConstraint struct {
	Op      pms.Operator
	Version pms.Version
	Slot    string
	SubSlot string
	SlotOp  pms.SlotOperator
	Repo    string
	// Use carries atom USE-dependencies already resolved against the
	// session's UseConfig, sorted by flag name.
	Use []UseConstraint
	// Inverted marks blocker-derived constraints: candidates that match
	// must not be co-selected with the requiring package.
	Inverted bool
}

// key is the structural identity used for interning.
func (c VersionConstraint) key() string {
	var b strings.Builder
	if c.Op != 0 {
		b.WriteString(c.Op.String())
		b.WriteString(c.Version.String())
	}
	b.WriteByte(':')
	b.WriteString(c.Slot)
	if c.SubSlot != "" {
		b.WriteByte('/')
		b.WriteString(c.SubSlot)
	}
	b.WriteString(strconv.Itoa(int(c.SlotOp)))
	b.WriteString("::")
	b.WriteString(c.Repo)
	for _, u := range c.Use {
		b.WriteByte('[')
		if !u.Enabled {
			b.WriteByte('-')
		}
		b.WriteString(u.Flag)
		b.WriteByte(']')
	}
	if c.Inverted {
		b.WriteByte('!')
	}
	return b.String()
}

// Matches reports whether a candidate satisfies the clause's version,
// sub-slot, repository, and USE requirements. Slot selection happens on
// the name axis and is not re-checked here.
func (c VersionConstraint) Matches(m PackageMetadata) bool {
	if c.Op != 0 && !pms.Matches(m.Cpv.Version, c.Op, c.Version) {
		return false
	}
	if c.SubSlot != "" && m.SubSlot != c.SubSlot {
		return false
	}
	if c.Repo != "" && m.Repo != c.Repo {
		return false
	}
	for _, u := range c.Use {
		if m.UseEnabled(u.Flag) != u.Enabled {
			return false
		}
	}
	return true
}

// Pool is the interning arena. It owns all interned content by index and
// grows monotonically for the lifetime of one resolution session. A session
// owns exactly one Pool; the Pool performs no internal locking.
type Pool struct {
	names     []PackageName
	nameIDs   map[PackageName]NameID
	solvables []solvableRecord
	byName    map[NameID][]SolvableID
	byID      map[string]SolvableID
	sets      []VersionConstraint
	setIDs    map[string]VersionSetID
}

type solvableRecord struct {
	name NameID
	meta PackageMetadata
}

func NewPool() *Pool {
	return &Pool{
		nameIDs: map[PackageName]NameID{},
		byName:  map[NameID][]SolvableID{},
		byID:    map[string]SolvableID{},
		setIDs:  map[string]VersionSetID{},
	}
}

// InternName returns the id for a name, creating it on first use. The same
// name always yields the same id within one Pool.
func (p *Pool) InternName(n PackageName) NameID {
	if id, ok := p.nameIDs[n]; ok {
		return id
	}
	id := NameID(len(p.names))
	p.names = append(p.names, n)
	p.nameIDs[n] = id
	return id
}

// Name returns the content behind a NameID.
func (p *Pool) Name(id NameID) PackageName {
	return p.names[id]
}

// AddSolvable interns one candidate under its (name, version, slot,
// sub-slot, repo) identity. Re-adding the same identity returns the
// existing id without replacing the stored metadata.
func (p *Pool) AddSolvable(m PackageMetadata) SolvableID {
	key := m.String()
	if id, ok := p.byID[key]; ok {
		return id
	}
	name := p.InternName(PackageName{Cpn: m.Cpv.Cpn, Slot: m.Slot})
	id := SolvableID(len(p.solvables))
	p.solvables = append(p.solvables, solvableRecord{name: name, meta: m})
	p.byName[name] = append(p.byName[name], id)
	p.byID[key] = id
	return id
}

// Solvable returns the metadata behind a SolvableID.
func (p *Pool) Solvable(id SolvableID) PackageMetadata {
	return p.solvables[id].meta
}

// NameOf returns the name axis a solvable was interned under.
func (p *Pool) NameOf(id SolvableID) NameID {
	return p.solvables[id].name
}

// SolvablesFor returns the candidates interned under a name, in insertion
// order.
func (p *Pool) SolvablesFor(name NameID) []SolvableID {
	return p.byName[name]
}

// InternVersionSet deduplicates a constraint clause. Structurally equal
// clauses share one id; different clauses never collide.
func (p *Pool) InternVersionSet(c VersionConstraint) VersionSetID {
	key := c.key()
	if id, ok := p.setIDs[key]; ok {
		return id
	}
	id := VersionSetID(len(p.sets))
	p.sets = append(p.sets, c)
	p.setIDs[key] = id
	return id
}

// VersionSet returns the clause behind a VersionSetID.
func (p *Pool) VersionSet(id VersionSetID) VersionConstraint {
	return p.sets[id]
}

// DescribeSet renders a clause for conflict messages.
func (p *Pool) DescribeSet(name NameID, id VersionSetID) string {
	c := p.sets[id]
	n := p.names[name]
	if c.Op == 0 {
		return n.String()
	}
	out := fmt.Sprintf("%s%s-%s", c.Op, n.Cpn, c.Version)
	if n.Slot != "" {
		out += ":" + n.Slot
	}
	return out
}
