// Package pms models Package Manager Specification (PMS) versions, atoms,
// and dependency trees. Atom strings are assumed to arrive already parsed
// into the structured types in this package; only version literals are
// parsed here.
package pms

import (
	"fmt"
	"strconv"
	"strings"
)

// SuffixKind identifies one of the five PMS version suffixes, ordered by
// precedence: _alpha < _beta < _pre < _rc < (no suffix) < _p.
type SuffixKind int

const (
	SuffixAlpha SuffixKind = iota
	SuffixBeta
	SuffixPre
	SuffixRC
	SuffixP
)

var suffixNames = map[SuffixKind]string{
	SuffixAlpha: "alpha",
	SuffixBeta:  "beta",
	SuffixPre:   "pre",
	SuffixRC:    "rc",
	SuffixP:     "p",
}

var suffixKinds = map[string]SuffixKind{
	"alpha": SuffixAlpha,
	"beta":  SuffixBeta,
	"pre":   SuffixPre,
	"rc":    SuffixRC,
	"p":     SuffixP,
}

func (k SuffixKind) String() string {
	return suffixNames[k]
}

// Suffix is one `_<kind><number>` version suffix. A missing number is zero.
type Suffix struct {
	Kind   SuffixKind
	Number int
}

// Version is a parsed PMS version: dotted numeric components, an optional
// single trailing letter, ordered suffixes, and a revision.
//
// Numeric components are kept as written so that the PMS leading-zero
// comparison rule (components after the first with a leading zero compare
// as strings) can be applied.
type Version struct {
	Numbers  []string
	Letter   byte // 0 when absent
	Suffixes []Suffix
	Revision int
}

// ParseVersion parses a PMS version literal such as "1.2.3b_rc1-r2".
func ParseVersion(s string) (Version, error) {
	var v Version
	rest := s

	// Revision.
	if i := strings.LastIndex(rest, "-r"); i >= 0 {
		rev, err := strconv.Atoi(rest[i+2:])
		if err != nil || rev < 0 {
			return Version{}, fmt.Errorf("invalid revision in version %q", s)
		}
		v.Revision = rev
		rest = rest[:i]
	}

	// Suffixes.
	for {
		i := strings.LastIndex(rest, "_")
		if i < 0 {
			break
		}
		suffix := rest[i+1:]
		j := len(suffix)
		for j > 0 && suffix[j-1] >= '0' && suffix[j-1] <= '9' {
			j--
		}
		kind, ok := suffixKinds[suffix[:j]]
		if !ok {
			return Version{}, fmt.Errorf("unknown suffix %q in version %q", suffix[:j], s)
		}
		num := 0
		if j < len(suffix) {
			num, _ = strconv.Atoi(suffix[j:])
		}
		v.Suffixes = append([]Suffix{{Kind: kind, Number: num}}, v.Suffixes...)
		rest = rest[:i]
	}

	// Optional trailing letter.
	if len(rest) > 0 {
		last := rest[len(rest)-1]
		if last >= 'a' && last <= 'z' {
			v.Letter = last
			rest = rest[:len(rest)-1]
		}
	}

	// Dotted numeric components.
	if rest == "" {
		return Version{}, fmt.Errorf("empty version %q", s)
	}
	for _, comp := range strings.Split(rest, ".") {
		if comp == "" {
			return Version{}, fmt.Errorf("empty component in version %q", s)
		}
		for i := 0; i < len(comp); i++ {
			if comp[i] < '0' || comp[i] > '9' {
				return Version{}, fmt.Errorf("non-numeric component %q in version %q", comp, s)
			}
		}
		v.Numbers = append(v.Numbers, comp)
	}

	return v, nil
}

// MustParseVersion is ParseVersion that panics on error. Intended for
// literals in tests and examples.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

func (v Version) String() string {
	var b strings.Builder
	b.WriteString(strings.Join(v.Numbers, "."))
	if v.Letter != 0 {
		b.WriteByte(v.Letter)
	}
	for _, s := range v.Suffixes {
		b.WriteByte('_')
		b.WriteString(s.Kind.String())
		if s.Number != 0 {
			b.WriteString(strconv.Itoa(s.Number))
		}
	}
	if v.Revision != 0 {
		b.WriteString("-r")
		b.WriteString(strconv.Itoa(v.Revision))
	}
	return b.String()
}

// WithoutRevision returns a copy of v with the revision cleared. This is
// the comparison basis of the `~` operator.
func (v Version) WithoutRevision() Version {
	v.Revision = 0
	return v
}

// Compare orders two versions per PMS section 3.3. It returns a negative
// number when v sorts before o, zero when they are equal, and a positive
// number otherwise.
func (v Version) Compare(o Version) int {
	// First numeric component: integer comparison.
	if c := compareNumeric(v.Numbers[0], o.Numbers[0]); c != 0 {
		return c
	}

	// Later components: string comparison (with trailing zeros stripped)
	// when either side has a leading zero, integer comparison otherwise.
	n := len(v.Numbers)
	if len(o.Numbers) < n {
		n = len(o.Numbers)
	}
	for i := 1; i < n; i++ {
		a, b := v.Numbers[i], o.Numbers[i]
		var c int
		if strings.HasPrefix(a, "0") || strings.HasPrefix(b, "0") {
			c = strings.Compare(strings.TrimRight(a, "0"), strings.TrimRight(b, "0"))
		} else {
			c = compareNumeric(a, b)
		}
		if c != 0 {
			return c
		}
	}
	if len(v.Numbers) != len(o.Numbers) {
		if len(v.Numbers) < len(o.Numbers) {
			return -1
		}
		return 1
	}

	// Letter: absent sorts before any letter.
	if v.Letter != o.Letter {
		if v.Letter < o.Letter {
			return -1
		}
		return 1
	}

	// Suffixes: pairwise by kind then number; when one side runs out, a
	// remaining _p makes the longer version greater and any other suffix
	// makes it smaller.
	for i := 0; i < len(v.Suffixes) || i < len(o.Suffixes); i++ {
		switch {
		case i >= len(v.Suffixes):
			if o.Suffixes[i].Kind == SuffixP {
				return -1
			}
			return 1
		case i >= len(o.Suffixes):
			if v.Suffixes[i].Kind == SuffixP {
				return 1
			}
			return -1
		}
		a, b := v.Suffixes[i], o.Suffixes[i]
		if a.Kind != b.Kind {
			if a.Kind < b.Kind {
				return -1
			}
			return 1
		}
		if a.Number != b.Number {
			if a.Number < b.Number {
				return -1
			}
			return 1
		}
	}

	// Revision.
	switch {
	case v.Revision < o.Revision:
		return -1
	case v.Revision > o.Revision:
		return 1
	}
	return 0
}

// Equal reports exact version equality, revision included.
func (v Version) Equal(o Version) bool {
	return v.Compare(o) == 0
}

func compareNumeric(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

// componentEqual reports whether two numeric components denote the same
// value. Used by `=*` glob matching.
func componentEqual(a, b string) bool {
	return compareNumeric(a, b) == 0
}
