package pms

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAtomString(t *testing.T) {
	python := NewCpn("dev-lang", "python")

	for _, tt := range []struct {
		Name     string
		Atom     Atom
		Expected string
	}{
		{
			Name:     "unversioned",
			Atom:     Atom{Cpn: python},
			Expected: "dev-lang/python",
		},
		{
			Name: "versioned",
			Atom: Atom{
				Cpn:     python,
				Op:      OpGreaterOrEqual,
				Version: MustParseVersion("3.11"),
			},
			Expected: ">=dev-lang/python-3.11",
		},
		{
			Name: "glob spelled with trailing star",
			Atom: Atom{
				Cpn:     python,
				Op:      OpEqualGlob,
				Version: MustParseVersion("3.11"),
			},
			Expected: "=dev-lang/python-3.11*",
		},
		{
			Name: "slot",
			Atom: Atom{
				Cpn:  python,
				Slot: SlotSpec{Slot: "3.11"},
			},
			Expected: "dev-lang/python:3.11",
		},
		{
			Name: "sub-slot with rebuild operator",
			Atom: Atom{
				Cpn:  NewCpn("dev-libs", "openssl"),
				Slot: SlotSpec{Slot: "0", SubSlot: "3", Op: SlotOpEqual},
			},
			Expected: "dev-libs/openssl:0/3=",
		},
		{
			Name: "bare slot operators",
			Atom: Atom{
				Cpn:  python,
				Slot: SlotSpec{Op: SlotOpEqual},
			},
			Expected: "dev-lang/python:=",
		},
		{
			Name: "use dependencies",
			Atom: Atom{
				Cpn: python,
				UseDeps: []UseDep{
					{Flag: "ssl", Kind: UseDepEnabled},
					{Flag: "bluetooth", Kind: UseDepDisabled},
					{Flag: "threads", Kind: UseDepConditional},
					{Flag: "static", Kind: UseDepConditionalNegate},
					{Flag: "abi", Kind: UseDepEqual},
					{Flag: "debug", Kind: UseDepEqualNegate},
				},
			},
			Expected: "dev-lang/python[ssl,-bluetooth,threads?,!static?,abi=,!debug=]",
		},
		{
			Name: "weak blocker",
			Atom: Atom{
				Cpn:     NewCpn("sys-apps", "systemd"),
				Blocker: BlockWeak,
			},
			Expected: "!sys-apps/systemd",
		},
		{
			Name: "strong blocker with version",
			Atom: Atom{
				Cpn:     NewCpn("sys-apps", "systemd"),
				Op:      OpLess,
				Version: MustParseVersion("250"),
				Blocker: BlockStrong,
			},
			Expected: "!!<sys-apps/systemd-250",
		},
		{
			Name: "repository restriction",
			Atom: Atom{
				Cpn:  python,
				Repo: "gentoo",
			},
			Expected: "dev-lang/python::gentoo",
		},
	} {
		t.Run(tt.Name, func(t *testing.T) {
			assert.Equal(t, tt.Expected, tt.Atom.String())
		})
	}
}

func TestSlotSpecRebuildTrigger(t *testing.T) {
	assert.False(t, SlotSpec{}.RebuildTrigger())
	assert.False(t, SlotSpec{Op: SlotOpStar}.RebuildTrigger())
	assert.True(t, SlotSpec{Op: SlotOpEqual}.RebuildTrigger())
	assert.True(t, SlotSpec{Slot: "0", Op: SlotOpEqual}.RebuildTrigger())
}

func TestPackageDepsClasses(t *testing.T) {
	deps := PackageDeps{
		Rdepend: []DepEntry{DepAtom(Atom{Cpn: NewCpn("dev-libs", "glib")})},
		Pdepend: []DepEntry{DepAtom(Atom{Cpn: NewCpn("dev-libs", "gobject-introspection")})},
	}
	classes := deps.Classes()
	assert.Len(t, classes, 2)
	assert.Equal(t, Rdepend, classes[0].Class)
	assert.Equal(t, Pdepend, classes[1].Class)
}
