package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lu-zero/portage-resolver/pkg/pms"
)

var (
	python = pms.NewCpn("dev-lang", "python")
	app    = pms.NewCpn("app-misc", "frob")
)

func pythonRepo() *InMemoryRepository {
	return NewInMemoryRepository().Add(
		pkg("dev-lang", "python", "3.11.9", "3.11"),
		pkg("dev-lang", "python", "3.12.5", "3.12"),
	)
}

func requireProvider(t *testing.T, repo Repository, options ...ProviderOption) *Provider {
	t.Helper()
	p, err := NewProvider(repo, options...)
	require.NoError(t, err)
	return p
}

func names(p *Provider, ids []SolvableID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = p.pool.Solvable(id).String()
	}
	return out
}

func TestCandidateOrdering(t *testing.T) {
	repo := NewInMemoryRepository().Add(
		pkg("dev-libs", "foo", "1.0.0", "0"),
		pkg("dev-libs", "foo", "2.0.0", "0"),
		pkg("dev-libs", "foo", "1.2.0", "0"),
	)
	foo := pms.NewCpn("dev-libs", "foo")

	t.Run("newest first", func(t *testing.T) {
		p := requireProvider(t, repo)
		name := p.pool.InternName(PackageName{Cpn: foo, Slot: "0"})
		assert.Equal(t,
			[]string{"dev-libs/foo-2.0.0:0", "dev-libs/foo-1.2.0:0", "dev-libs/foo-1.0.0:0"},
			names(p, p.candidates[name]))
	})

	t.Run("favored breaks ties only", func(t *testing.T) {
		repo := NewInMemoryRepository().Add(
			pkg("dev-libs", "foo", "1.0.0", "0"),
			pkg("dev-libs", "foo", "2.0.0", "0"),
			pkg("dev-libs", "foo", "1.2.0", "0"),
		).SetFavored(foo, pms.MustParseVersion("1.0.0"))
		p := requireProvider(t, repo)
		name := p.pool.InternName(PackageName{Cpn: foo, Slot: "0"})
		// Newest-first is not overridden by the favored version.
		assert.Equal(t, "dev-libs/foo-2.0.0:0", names(p, p.candidates[name])[0])
	})

	t.Run("equal versions break ties by repository", func(t *testing.T) {
		gentoo := pkg("dev-libs", "foo", "1.0.0", "0")
		gentoo.Repo = "gentoo"
		overlay := pkg("dev-libs", "foo", "1.0.0", "0")
		overlay.Repo = "overlay"
		repo := NewInMemoryRepository().Add(gentoo, overlay).
			SetFavored(foo, pms.MustParseVersion("1.0.0"))
		p := requireProvider(t, repo)
		name := p.pool.InternName(PackageName{Cpn: foo, Slot: "0"})
		got := names(p, p.candidates[name])
		assert.Len(t, got, 2)
		// Both carry the favored version; the repository name is the
		// final deterministic tie-break.
		assert.Equal(t, "dev-libs/foo-1.0.0:0::gentoo", got[0])
	})

	t.Run("locked hard-filters", func(t *testing.T) {
		repo := NewInMemoryRepository().Add(
			pkg("dev-libs", "foo", "1.0.0", "0"),
			pkg("dev-libs", "foo", "2.0.0", "0"),
			pkg("dev-libs", "foo", "1.2.0", "0"),
		).SetLocked(foo, VersionConstraint{Op: pms.OpEqual, Version: pms.MustParseVersion("1.2.0")})
		p := requireProvider(t, repo)
		name := p.pool.InternName(PackageName{Cpn: foo, Slot: "0"})
		assert.Equal(t, []string{"dev-libs/foo-1.2.0:0"}, names(p, p.candidates[name]))
	})
}

func TestInternRequirementSlots(t *testing.T) {
	p := requireProvider(t, pythonRepo())

	t.Run("unslotted spans all slots", func(t *testing.T) {
		req, err := p.InternRequirement(pms.Atom{Cpn: python})
		require.NoError(t, err)
		require.Equal(t, ReqUnion, req.Kind)
		assert.Len(t, req.Members, 2)
		ids, err := p.requirementCandidates(req)
		require.NoError(t, err)
		assert.Len(t, ids, 2)
	})

	t.Run("exact slot narrows", func(t *testing.T) {
		req, err := p.InternRequirement(pms.Atom{Cpn: python, Slot: pms.SlotSpec{Slot: "3.12"}})
		require.NoError(t, err)
		require.Equal(t, ReqSimple, req.Kind)
		ids, err := p.requirementCandidates(req)
		require.NoError(t, err)
		require.Len(t, ids, 1)
		assert.Equal(t, "dev-lang/python-3.12.5:3.12", ids[0].String())
	})

	t.Run("star matches every slot", func(t *testing.T) {
		req, err := p.InternRequirement(pms.Atom{Cpn: python, Slot: pms.SlotSpec{Op: pms.SlotOpStar}})
		require.NoError(t, err)
		ids, err := p.requirementCandidates(req)
		require.NoError(t, err)
		assert.Len(t, ids, 2)
	})

	t.Run("rebuild trigger is advisory metadata", func(t *testing.T) {
		req, err := p.InternRequirement(pms.Atom{Cpn: python, Slot: pms.SlotSpec{Op: pms.SlotOpEqual}})
		require.NoError(t, err)
		var set VersionSetID
		switch req.Kind {
		case ReqSimple:
			set = req.Set
		case ReqUnion:
			set = req.Members[0].Set
		}
		assert.True(t, p.IsRebuildTrigger(set))

		plain, err := p.InternRequirement(pms.Atom{Cpn: python, Slot: pms.SlotSpec{Slot: "3.12"}})
		require.NoError(t, err)
		assert.False(t, p.IsRebuildTrigger(plain.Set))
	})

	t.Run("unknown name still interns", func(t *testing.T) {
		req, err := p.InternRequirement(pms.Atom{Cpn: pms.NewCpn("dev-libs", "no-such")})
		require.NoError(t, err)
		ids, err := p.requirementCandidates(req)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})
}

func TestInternRequirementRejectsMalformed(t *testing.T) {
	p := requireProvider(t, pythonRepo())

	_, err := p.InternRequirement(pms.Atom{Cpn: python, Op: pms.Operator(42), Version: pms.MustParseVersion("1")})
	assert.Error(t, err)

	_, err = p.InternRequirement(pms.Atom{Cpn: python, Slot: pms.SlotSpec{SubSlot: "0"}})
	assert.Error(t, err)

	_, err = p.InternRequirement(pms.Atom{Cpn: python, Slot: pms.SlotSpec{Slot: "3.11", Op: pms.SlotOpStar}})
	assert.Error(t, err)
}

func TestResolveUseDeps(t *testing.T) {
	use := UseConfig{"ssl": UseEnabled, "abi": UseDisabled, "later": UseSolverDecided}

	t.Run("conditional forms read the config", func(t *testing.T) {
		p := requireProvider(t, pythonRepo(), WithUseConfig(use))
		got, err := p.resolveUseDeps([]pms.UseDep{
			{Flag: "ssl", Kind: pms.UseDepConditional},  // on -> required on
			{Flag: "abi", Kind: pms.UseDepEqual},        // off -> required off
			{Flag: "zlib", Kind: pms.UseDepEqualNegate}, // unlisted=off -> required on
		})
		require.NoError(t, err)
		assert.Equal(t, []UseConstraint{
			{Flag: "abi", Enabled: false},
			{Flag: "ssl", Enabled: true},
			{Flag: "zlib", Enabled: true},
		}, got)
	})

	t.Run("inactive conditionals drop out", func(t *testing.T) {
		p := requireProvider(t, pythonRepo(), WithUseConfig(use))
		got, err := p.resolveUseDeps([]pms.UseDep{
			{Flag: "abi", Kind: pms.UseDepConditional},       // off -> no constraint
			{Flag: "ssl", Kind: pms.UseDepConditionalNegate}, // on -> no constraint
		})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("strict mode rejects solver-decided flags", func(t *testing.T) {
		p := requireProvider(t, pythonRepo(), WithUseConfig(use), WithRequireCompleteUse())
		_, err := p.resolveUseDeps([]pms.UseDep{{Flag: "later", Kind: pms.UseDepEqual}})
		assert.Equal(t, AmbiguousUseError{Flag: "later"}, err)
	})
}

func appWith(deps pms.PackageDeps) PackageMetadata {
	m := pkg("app-misc", "frob", "1.0", "0")
	m.Deps = deps
	return m
}

func resolve(t *testing.T, p *Provider, roots ...pms.Atom) (*Solution, error) {
	t.Helper()
	reqs := make([]Requirement, 0, len(roots))
	for _, atom := range roots {
		req, err := p.InternRequirement(atom)
		require.NoError(t, err)
		reqs = append(reqs, req)
	}
	return (&Problem{Provider: p, Roots: reqs}).Resolve(context.Background())
}

func selectedNames(s *Solution) []string {
	out := make([]string, 0, len(s.Selected()))
	for _, m := range s.Packages() {
		out = append(out, m.String())
	}
	return out
}

func TestResolveSimple(t *testing.T) {
	repo := pythonRepo().Add(appWith(pms.PackageDeps{
		Rdepend: []pms.DepEntry{pms.DepAtom(pms.Atom{Cpn: python, Slot: pms.SlotSpec{Op: pms.SlotOpStar}})},
	}))
	p := requireProvider(t, repo)

	s, err := resolve(t, p, pms.Atom{Cpn: app})
	require.NoError(t, err)
	// One python slot suffices; the newer one is preferred.
	assert.Equal(t, []string{
		"app-misc/frob-1.0:0",
		"dev-lang/python-3.12.5:3.12",
	}, selectedNames(s))
}

func TestResolveMultiSlotCoexistence(t *testing.T) {
	repo := pythonRepo().Add(appWith(pms.PackageDeps{
		Rdepend: []pms.DepEntry{pms.DepAtom(pms.Atom{Cpn: python, Slot: pms.SlotSpec{Op: pms.SlotOpStar}})},
	}))
	p := requireProvider(t, repo)

	// A second root pins the older slot exactly; the pin must hold and
	// app may keep the slot it prefers.
	s, err := resolve(t, p,
		pms.Atom{Cpn: app},
		pms.Atom{Cpn: python, Slot: pms.SlotSpec{Slot: "3.11"}},
	)
	require.NoError(t, err)
	got := selectedNames(s)
	assert.Contains(t, got, "dev-lang/python-3.11.9:3.11")
	assert.Contains(t, got, "app-misc/frob-1.0:0")
}

func TestResolveOneVersionPerSlot(t *testing.T) {
	repo := NewInMemoryRepository().Add(
		pkg("dev-lang", "python", "3.11.8", "3.11"),
		pkg("dev-lang", "python", "3.11.9", "3.11"),
	).Add(appWith(pms.PackageDeps{
		Rdepend: []pms.DepEntry{pms.DepAtom(pms.Atom{Cpn: python})},
	}))
	p := requireProvider(t, repo)

	s, err := resolve(t, p, pms.Atom{Cpn: app})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"app-misc/frob-1.0:0",
		"dev-lang/python-3.11.9:3.11",
	}, selectedNames(s))
}

func TestResolveUnsatisfiable(t *testing.T) {
	repo := pythonRepo().Add(appWith(pms.PackageDeps{
		Rdepend: []pms.DepEntry{pms.DepAtom(pms.Atom{
			Cpn:     python,
			Op:      pms.OpGreaterOrEqual,
			Version: pms.MustParseVersion("4"),
		})},
	}))
	p := requireProvider(t, repo)

	_, err := resolve(t, p, pms.Atom{Cpn: app})
	var unsat *UnsatisfiableError
	require.ErrorAs(t, err, &unsat)
	assert.NotEmpty(t, unsat.Conflicts)
}

func TestResolveBlockers(t *testing.T) {
	systemd := pms.NewCpn("sys-apps", "systemd")
	openrc := pms.NewCpn("sys-apps", "openrc")
	base := func() *InMemoryRepository {
		rc := pkg("sys-apps", "openrc", "0.54", "0")
		rc.Deps = pms.PackageDeps{
			Rdepend: []pms.DepEntry{pms.DepAtom(pms.Atom{Cpn: systemd, Blocker: pms.BlockStrong})},
		}
		return NewInMemoryRepository().Add(rc, pkg("sys-apps", "systemd", "255", "0"))
	}

	t.Run("strong blocker forbids co-selection", func(t *testing.T) {
		p := requireProvider(t, base())
		_, err := resolve(t, p, pms.Atom{Cpn: openrc}, pms.Atom{Cpn: systemd})
		var unsat *UnsatisfiableError
		assert.ErrorAs(t, err, &unsat)
	})

	t.Run("strong blocker steers selection", func(t *testing.T) {
		p := requireProvider(t, base())
		s, err := resolve(t, p, pms.Atom{Cpn: openrc})
		require.NoError(t, err)
		assert.Equal(t, []string{"sys-apps/openrc-0.54:0"}, selectedNames(s))
	})

	t.Run("weak blocker enforced by default", func(t *testing.T) {
		rc := pkg("sys-apps", "openrc", "0.54", "0")
		rc.Deps = pms.PackageDeps{
			Rdepend: []pms.DepEntry{pms.DepAtom(pms.Atom{Cpn: systemd, Blocker: pms.BlockWeak})},
		}
		repo := NewInMemoryRepository().Add(rc, pkg("sys-apps", "systemd", "255", "0"))
		p := requireProvider(t, repo)
		_, err := resolve(t, p, pms.Atom{Cpn: openrc}, pms.Atom{Cpn: systemd})
		var unsat *UnsatisfiableError
		assert.ErrorAs(t, err, &unsat)
	})

	t.Run("weak blocker advisory policy co-selects and records", func(t *testing.T) {
		rc := pkg("sys-apps", "openrc", "0.54", "0")
		rc.Deps = pms.PackageDeps{
			Rdepend: []pms.DepEntry{pms.DepAtom(pms.Atom{Cpn: systemd, Blocker: pms.BlockWeak})},
		}
		repo := NewInMemoryRepository().Add(rc, pkg("sys-apps", "systemd", "255", "0"))
		p := requireProvider(t, repo, WithWeakBlockerPolicy(WeakBlockersAdvisory))
		s, err := resolve(t, p, pms.Atom{Cpn: openrc}, pms.Atom{Cpn: systemd})
		require.NoError(t, err)
		assert.Len(t, s.Selected(), 2)
		require.Len(t, p.AdvisoryBlocks(), 1)
		blocked := p.Pool().Solvable(p.AdvisoryBlocks()[0].Blocked)
		assert.Equal(t, "sys-apps/systemd-255:0", blocked.String())
	})

	t.Run("blocker strength is queryable", func(t *testing.T) {
		p := requireProvider(t, base())
		req, err := p.InternRequirement(pms.Atom{Cpn: systemd, Blocker: pms.BlockStrong})
		require.NoError(t, err)
		assert.Equal(t, pms.BlockStrong, p.BlockerStrength(req.Set))
	})
}

func TestResolveAnyOf(t *testing.T) {
	gif := pms.NewCpn("media-libs", "giflib")
	ungif := pms.NewCpn("media-libs", "libungif")
	repo := NewInMemoryRepository().Add(
		pkg("media-libs", "giflib", "5.2.2", "0"),
		pkg("media-libs", "libungif", "4.1.4", "0"),
	).Add(appWith(pms.PackageDeps{
		Rdepend: []pms.DepEntry{pms.DepAnyOf(
			pms.DepAtom(pms.Atom{Cpn: gif}),
			pms.DepAtom(pms.Atom{Cpn: ungif}),
		)},
	}))
	p := requireProvider(t, repo)

	s, err := resolve(t, p, pms.Atom{Cpn: app})
	require.NoError(t, err)
	// The first listed alternative wins.
	assert.Equal(t, []string{
		"app-misc/frob-1.0:0",
		"media-libs/giflib-5.2.2:0",
	}, selectedNames(s))
}

func TestResolveUseConditionals(t *testing.T) {
	openssl := pms.NewCpn("dev-libs", "openssl")
	repo := func() *InMemoryRepository {
		return NewInMemoryRepository().Add(
			pkg("dev-libs", "openssl", "3.3.1", "0"),
		).Add(appWith(pms.PackageDeps{
			Rdepend: []pms.DepEntry{pms.DepUse("ssl", false,
				pms.DepAtom(pms.Atom{Cpn: openssl}),
			)},
		}))
	}

	t.Run("eagerly enabled", func(t *testing.T) {
		p := requireProvider(t, repo(), WithUseConfig(UseConfig{"ssl": UseEnabled}))
		s, err := resolve(t, p, pms.Atom{Cpn: app})
		require.NoError(t, err)
		assert.Contains(t, selectedNames(s), "dev-libs/openssl-3.3.1:0")
	})

	t.Run("eagerly disabled", func(t *testing.T) {
		p := requireProvider(t, repo())
		s, err := resolve(t, p, pms.Atom{Cpn: app})
		require.NoError(t, err)
		assert.Equal(t, []string{"app-misc/frob-1.0:0"}, selectedNames(s))
	})

	t.Run("solver-decided prefers off", func(t *testing.T) {
		p := requireProvider(t, repo(), WithUseConfig(UseConfig{"ssl": UseSolverDecided}))
		s, err := resolve(t, p, pms.Atom{Cpn: app})
		require.NoError(t, err)
		assert.Equal(t, []string{"app-misc/frob-1.0:0"}, selectedNames(s))
		enabled, decided := s.FlagOutcome("ssl")
		assert.True(t, decided)
		assert.False(t, enabled)
	})

	t.Run("strict mode fails fast", func(t *testing.T) {
		p := requireProvider(t, repo(), WithUseConfig(UseConfig{"ssl": UseSolverDecided}), WithRequireCompleteUse())
		_, err := resolve(t, p, pms.Atom{Cpn: app})
		var ambiguous AmbiguousUseError
		assert.ErrorAs(t, err, &ambiguous)
	})
}

func TestResolveInjectsInstalled(t *testing.T) {
	legacy := pkg("dev-libs", "legacy", "1.0", "0")
	repo := NewInMemoryRepository().MarkInstalled(legacy)
	p := requireProvider(t, repo)

	s, err := resolve(t, p, pms.Atom{Cpn: pms.NewCpn("dev-libs", "legacy")})
	require.NoError(t, err)
	assert.Equal(t, []string{"dev-libs/legacy-1.0:0"}, selectedNames(s))
}
