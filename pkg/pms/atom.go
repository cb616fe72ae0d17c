package pms

import (
	"fmt"
	"strings"
)

// Operator is one of the seven PMS version comparison operators. The set
// is closed; requirement construction rejects anything else.
type Operator int

const (
	OpLess Operator = iota + 1
	OpLessOrEqual
	OpEqual
	OpGreaterOrEqual
	OpGreater
	OpApproximate // ~
	OpEqualGlob   // =*
)

var operatorNames = map[Operator]string{
	OpLess:           "<",
	OpLessOrEqual:    "<=",
	OpEqual:          "=",
	OpGreaterOrEqual: ">=",
	OpGreater:        ">",
	OpApproximate:    "~",
	OpEqualGlob:      "=*",
}

func (op Operator) String() string {
	if s, ok := operatorNames[op]; ok {
		return s
	}
	return fmt.Sprintf("Operator(%d)", int(op))
}

// Valid reports whether op is one of the seven known operators.
func (op Operator) Valid() bool {
	_, ok := operatorNames[op]
	return ok
}

// Blocker is the strength of a blocking atom: `!atom` is weak, `!!atom`
// is strong.
type Blocker int

const (
	BlockNone Blocker = iota
	BlockWeak
	BlockStrong
)

func (b Blocker) String() string {
	switch b {
	case BlockWeak:
		return "!"
	case BlockStrong:
		return "!!"
	}
	return ""
}

// Cpn is an unversioned category/package name, e.g. "dev-lang/python".
type Cpn struct {
	Category string
	Package  string
}

func NewCpn(category, pkg string) Cpn {
	return Cpn{Category: category, Package: pkg}
}

func (c Cpn) String() string {
	return c.Category + "/" + c.Package
}

// Cpv is a fully qualified category/package-version.
type Cpv struct {
	Cpn     Cpn
	Version Version
}

func (c Cpv) String() string {
	return c.Cpn.String() + "-" + c.Version.String()
}

// SlotOperator is the `:*` or `:=` slot dependency operator.
type SlotOperator int

const (
	SlotOpNone SlotOperator = iota
	SlotOpStar               // :* matches any slot
	SlotOpEqual              // := matches any slot, rebuild on slot/sub-slot change
)

// SlotSpec is the slot part of a dependency atom. The zero value means no
// slot restriction. Slot names an exact slot, SubSlot additionally pins
// the sub-slot, and Op carries `:*`/`:=`. `:slot=` combines Slot with
// SlotOpEqual.
type SlotSpec struct {
	Slot    string
	SubSlot string
	Op      SlotOperator
}

// RebuildTrigger reports whether the spec carries a `:=` operator, in
// either the bare or the `:slot=` form.
func (s SlotSpec) RebuildTrigger() bool {
	return s.Op == SlotOpEqual
}

func (s SlotSpec) String() string {
	switch {
	case s.Op == SlotOpStar:
		return ":*"
	case s.Op == SlotOpEqual && s.Slot == "":
		return ":="
	case s.Slot == "":
		return ""
	}
	out := ":" + s.Slot
	if s.SubSlot != "" {
		out += "/" + s.SubSlot
	}
	if s.Op == SlotOpEqual {
		out += "="
	}
	return out
}

// UseDepKind is one of the six PMS USE-dependency forms that can appear
// in an atom's `[...]` list.
type UseDepKind int

const (
	UseDepEnabled           UseDepKind = iota // [flag]
	UseDepDisabled                            // [-flag]
	UseDepConditional                         // [flag?]
	UseDepConditionalNegate                   // [!flag?]
	UseDepEqual                               // [flag=]
	UseDepEqualNegate                         // [!flag=]
)

// UseDep is one USE-dependency constraint on an atom.
type UseDep struct {
	Flag string
	Kind UseDepKind
}

// Atom is a structured dependency specification. Version and Op are only
// meaningful together; an unversioned atom leaves Op zero.
type Atom struct {
	Cpn     Cpn
	Op      Operator
	Version Version
	Slot    SlotSpec
	Repo    string
	UseDeps []UseDep
	Blocker Blocker
}

// Versioned reports whether the atom constrains the version.
func (a Atom) Versioned() bool {
	return a.Op != 0
}

func (a Atom) String() string {
	var b strings.Builder
	b.WriteString(a.Blocker.String())
	if a.Versioned() {
		op := a.Op
		if op == OpEqualGlob {
			op = OpEqual
		}
		b.WriteString(op.String())
		b.WriteString(a.Cpn.String())
		b.WriteByte('-')
		b.WriteString(a.Version.String())
		if a.Op == OpEqualGlob {
			b.WriteByte('*')
		}
	} else {
		b.WriteString(a.Cpn.String())
	}
	b.WriteString(a.Slot.String())
	if len(a.UseDeps) > 0 {
		b.WriteByte('[')
		for i, ud := range a.UseDeps {
			if i > 0 {
				b.WriteByte(',')
			}
			switch ud.Kind {
			case UseDepDisabled:
				b.WriteByte('-')
				b.WriteString(ud.Flag)
			case UseDepConditional:
				b.WriteString(ud.Flag)
				b.WriteByte('?')
			case UseDepConditionalNegate:
				b.WriteByte('!')
				b.WriteString(ud.Flag)
				b.WriteByte('?')
			case UseDepEqual:
				b.WriteString(ud.Flag)
				b.WriteByte('=')
			case UseDepEqualNegate:
				b.WriteByte('!')
				b.WriteString(ud.Flag)
				b.WriteByte('=')
			default:
				b.WriteString(ud.Flag)
			}
		}
		b.WriteByte(']')
	}
	if a.Repo != "" {
		b.WriteString("::")
		b.WriteString(a.Repo)
	}
	return b.String()
}

// DepEntry is one node of a structured dependency tree: a leaf atom or one
// of the PMS group forms. Exactly one of the fields below is meaningful,
// selected by Kind.
type DepEntry struct {
	Kind DepEntryKind

	// Atom, when Kind == EntryAtom.
	Atom Atom

	// Flag and Negate, when Kind == EntryUseConditional.
	Flag   string
	Negate bool

	// Children: conditional body or group alternatives.
	Children []DepEntry
}

// DepEntryKind discriminates DepEntry variants.
type DepEntryKind int

const (
	EntryAtom           DepEntryKind = iota
	EntryUseConditional              // use? ( ... ) / !use? ( ... )
	EntryAnyOf                       // || ( ... )
	EntryExactlyOneOf                // ^^ ( ... )
	EntryAtMostOneOf                 // ?? ( ... )
)

// DepAtom wraps an Atom as a tree leaf.
func DepAtom(a Atom) DepEntry {
	return DepEntry{Kind: EntryAtom, Atom: a}
}

// DepUse builds a `use? ( children )` conditional (negate for `!use?`).
func DepUse(flag string, negate bool, children ...DepEntry) DepEntry {
	return DepEntry{Kind: EntryUseConditional, Flag: flag, Negate: negate, Children: children}
}

// DepAnyOf builds a `|| ( alternatives )` group.
func DepAnyOf(alternatives ...DepEntry) DepEntry {
	return DepEntry{Kind: EntryAnyOf, Children: alternatives}
}

// DepExactlyOneOf builds a `^^ ( alternatives )` group.
func DepExactlyOneOf(alternatives ...DepEntry) DepEntry {
	return DepEntry{Kind: EntryExactlyOneOf, Children: alternatives}
}

// DepAtMostOneOf builds a `?? ( alternatives )` group.
func DepAtMostOneOf(alternatives ...DepEntry) DepEntry {
	return DepEntry{Kind: EntryAtMostOneOf, Children: alternatives}
}

// DepClass is one of the five PMS dependency classes. PDEPEND is the only
// class excluded from install-order precedence edges.
type DepClass int

const (
	Depend  DepClass = iota // DEPEND: build-time
	Rdepend                 // RDEPEND: runtime
	Bdepend                 // BDEPEND: build host
	Pdepend                 // PDEPEND: post-merge
	Idepend                 // IDEPEND: install-time
)

var depClassNames = map[DepClass]string{
	Depend:  "DEPEND",
	Rdepend: "RDEPEND",
	Bdepend: "BDEPEND",
	Pdepend: "PDEPEND",
	Idepend: "IDEPEND",
}

func (c DepClass) String() string {
	return depClassNames[c]
}

// PackageDeps holds one package's dependency trees, one field per class.
// The classes are independent; none implies another.
type PackageDeps struct {
	Depend  []DepEntry
	Rdepend []DepEntry
	Bdepend []DepEntry
	Pdepend []DepEntry
	Idepend []DepEntry
}

// ClassEntries pairs a dependency class with its entries.
type ClassEntries struct {
	Class   DepClass
	Entries []DepEntry
}

// Classes returns the non-empty dependency classes in declaration order.
func (d PackageDeps) Classes() []ClassEntries {
	all := []ClassEntries{
		{Depend, d.Depend},
		{Rdepend, d.Rdepend},
		{Bdepend, d.Bdepend},
		{Pdepend, d.Pdepend},
		{Idepend, d.Idepend},
	}
	out := all[:0]
	for _, ce := range all {
		if len(ce.Entries) > 0 {
			out = append(out, ce)
		}
	}
	return out
}
