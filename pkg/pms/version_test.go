package pms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	for _, tt := range []struct {
		Input    string
		Expected Version
	}{
		{
			Input:    "1",
			Expected: Version{Numbers: []string{"1"}},
		},
		{
			Input:    "1.2.3",
			Expected: Version{Numbers: []string{"1", "2", "3"}},
		},
		{
			Input:    "1.2.3b",
			Expected: Version{Numbers: []string{"1", "2", "3"}, Letter: 'b'},
		},
		{
			Input: "1.0_alpha",
			Expected: Version{
				Numbers:  []string{"1", "0"},
				Suffixes: []Suffix{{Kind: SuffixAlpha}},
			},
		},
		{
			Input: "1.0_rc3",
			Expected: Version{
				Numbers:  []string{"1", "0"},
				Suffixes: []Suffix{{Kind: SuffixRC, Number: 3}},
			},
		},
		{
			Input: "2.4.1_pre2_p7",
			Expected: Version{
				Numbers: []string{"2", "4", "1"},
				Suffixes: []Suffix{
					{Kind: SuffixPre, Number: 2},
					{Kind: SuffixP, Number: 7},
				},
			},
		},
		{
			Input:    "1.2.3-r5",
			Expected: Version{Numbers: []string{"1", "2", "3"}, Revision: 5},
		},
		{
			Input: "4.20.0c_beta1-r1",
			Expected: Version{
				Numbers:  []string{"4", "20", "0"},
				Letter:   'c',
				Suffixes: []Suffix{{Kind: SuffixBeta, Number: 1}},
				Revision: 1,
			},
		},
		{
			// Leading zeros are preserved for string comparison.
			Input:    "1.01",
			Expected: Version{Numbers: []string{"1", "01"}},
		},
	} {
		t.Run(tt.Input, func(t *testing.T) {
			v, err := ParseVersion(tt.Input)
			require.NoError(t, err)
			assert.Equal(t, tt.Expected, v)
			assert.Equal(t, tt.Input, v.String())
		})
	}
}

func TestParseVersionErrors(t *testing.T) {
	for _, input := range []string{
		"",
		"1..2",
		"1.2.",
		"a.b",
		"1.2_omega",
		"1.2-rX",
		"-r1",
	} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseVersion(input)
			assert.Error(t, err)
		})
	}
}

func TestCompare(t *testing.T) {
	// Each entry sorts strictly before the next.
	ordered := []string{
		"0.9",
		"1.0_alpha",
		"1.0_alpha1",
		"1.0_beta",
		"1.0_pre1",
		"1.0_rc1",
		"1.0_rc2",
		"1.0",
		"1.0-r1",
		"1.0_p1",
		"1.0.1",
		"1.0.2",
		"1.0.2a",
		"1.0.2b",
		"1.1",
		"1.9",
		"1.10",
		"2.0",
		"10.0",
	}

	for i, lo := range ordered {
		for j, hi := range ordered {
			a, b := MustParseVersion(lo), MustParseVersion(hi)
			switch {
			case i < j:
				assert.Negative(t, a.Compare(b), "%s < %s", lo, hi)
				assert.Positive(t, b.Compare(a), "%s > %s", hi, lo)
			case i == j:
				assert.Zero(t, a.Compare(b), "%s == %s", lo, hi)
			}
		}
	}
}

func TestCompareLeadingZeros(t *testing.T) {
	// Components after the first compare as strings when either side has
	// a leading zero, trailing zeros stripped first: 1.01 == 1.010, and
	// 1.01 sorts before 1.1.
	assert.Zero(t, MustParseVersion("1.01").Compare(MustParseVersion("1.010")))
	assert.Negative(t, MustParseVersion("1.01").Compare(MustParseVersion("1.1")))
	assert.Negative(t, MustParseVersion("1.02").Compare(MustParseVersion("1.1")))

	// The first component is always an integer.
	assert.Zero(t, MustParseVersion("01").Compare(MustParseVersion("1")))
	assert.Positive(t, MustParseVersion("010").Compare(MustParseVersion("9")))
}

func TestWithoutRevision(t *testing.T) {
	v := MustParseVersion("1.2.3-r4")
	assert.Equal(t, MustParseVersion("1.2.3"), v.WithoutRevision())
	assert.Equal(t, 4, v.Revision)
}
