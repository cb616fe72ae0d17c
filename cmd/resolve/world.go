package resolve

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lu-zero/portage-resolver/pkg/pms"
	"github.com/lu-zero/portage-resolver/pkg/resolver"
)

// World is the YAML description of one resolution request: a repository,
// the installed set, the USE context, and the root atoms. Dependency
// metadata arrives structured; this file format is a stand-in for a real
// repository backend, not an atom parser.
type World struct {
	Packages  []PackageSpec     `yaml:"packages"`
	Installed []PackageSpec     `yaml:"installed"`
	Use       map[string]string `yaml:"use"`
	Favored   map[string]string `yaml:"favored"`
	Locked    map[string]string `yaml:"locked"`
	// WeakBlockers is "enforce" (default) or "advisory".
	WeakBlockers string     `yaml:"weakBlockers"`
	Roots        []AtomSpec `yaml:"roots"`
}

type PackageSpec struct {
	Name    string   `yaml:"name"`
	Version string   `yaml:"version"`
	Slot    string   `yaml:"slot"`
	SubSlot string   `yaml:"subslot"`
	Repo    string   `yaml:"repo"`
	Use     []string `yaml:"use"`

	Depend  []EntrySpec `yaml:"depend"`
	Rdepend []EntrySpec `yaml:"rdepend"`
	Bdepend []EntrySpec `yaml:"bdepend"`
	Pdepend []EntrySpec `yaml:"pdepend"`
	Idepend []EntrySpec `yaml:"idepend"`
}

// EntrySpec is one dependency tree node; exactly one field may be set.
type EntrySpec struct {
	Atom      *AtomSpec   `yaml:"atom"`
	Use       *UseSpec    `yaml:"use"`
	AnyOf     []EntrySpec `yaml:"anyOf"`
	OneOf     []EntrySpec `yaml:"oneOf"`
	AtMostOne []EntrySpec `yaml:"atMostOne"`
}

type UseSpec struct {
	Flag     string      `yaml:"flag"`
	Negate   bool        `yaml:"negate"`
	Children []EntrySpec `yaml:"children"`
}

type AtomSpec struct {
	Name    string `yaml:"name"`
	Op      string `yaml:"op"`
	Version string `yaml:"version"`
	Slot    string `yaml:"slot"`
	SubSlot string `yaml:"subslot"`
	SlotOp  string `yaml:"slotOp"`
	Repo    string `yaml:"repo"`
	Blocker string `yaml:"blocker"`
	UseDeps []struct {
		Flag string `yaml:"flag"`
		Kind string `yaml:"kind"`
	} `yaml:"useDeps"`
}

var operators = map[string]pms.Operator{
	"<":  pms.OpLess,
	"<=": pms.OpLessOrEqual,
	"=":  pms.OpEqual,
	">=": pms.OpGreaterOrEqual,
	">":  pms.OpGreater,
	"~":  pms.OpApproximate,
	"=*": pms.OpEqualGlob,
}

var useDepKinds = map[string]pms.UseDepKind{
	"enabled":           pms.UseDepEnabled,
	"disabled":          pms.UseDepDisabled,
	"conditional":       pms.UseDepConditional,
	"conditionalNegate": pms.UseDepConditionalNegate,
	"equal":             pms.UseDepEqual,
	"equalNegate":       pms.UseDepEqualNegate,
}

func LoadWorld(r io.Reader) (*World, error) {
	var w World
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&w); err != nil {
		return nil, err
	}
	return &w, nil
}

func splitCpn(name string) (pms.Cpn, error) {
	category, pkg, ok := strings.Cut(name, "/")
	if !ok || category == "" || pkg == "" {
		return pms.Cpn{}, fmt.Errorf("package name %q is not category/package", name)
	}
	return pms.NewCpn(category, pkg), nil
}

func (s PackageSpec) metadata() (resolver.PackageMetadata, error) {
	cpn, err := splitCpn(s.Name)
	if err != nil {
		return resolver.PackageMetadata{}, err
	}
	version, err := pms.ParseVersion(s.Version)
	if err != nil {
		return resolver.PackageMetadata{}, fmt.Errorf("package %s: %w", s.Name, err)
	}
	slot := s.Slot
	if slot == "" {
		slot = "0"
	}
	deps := pms.PackageDeps{}
	for _, class := range []struct {
		entries []EntrySpec
		out     *[]pms.DepEntry
	}{
		{s.Depend, &deps.Depend},
		{s.Rdepend, &deps.Rdepend},
		{s.Bdepend, &deps.Bdepend},
		{s.Pdepend, &deps.Pdepend},
		{s.Idepend, &deps.Idepend},
	} {
		for _, e := range class.entries {
			entry, err := e.depEntry()
			if err != nil {
				return resolver.PackageMetadata{}, fmt.Errorf("package %s: %w", s.Name, err)
			}
			*class.out = append(*class.out, entry)
		}
	}
	return resolver.PackageMetadata{
		Cpv:     pms.Cpv{Cpn: cpn, Version: version},
		Slot:    slot,
		SubSlot: s.SubSlot,
		Repo:    s.Repo,
		Use:     s.Use,
		Deps:    deps,
	}, nil
}

func (e EntrySpec) depEntry() (pms.DepEntry, error) {
	set := 0
	for _, present := range []bool{e.Atom != nil, e.Use != nil, e.AnyOf != nil, e.OneOf != nil, e.AtMostOne != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return pms.DepEntry{}, fmt.Errorf("dependency entry needs exactly one of atom, use, anyOf, oneOf, atMostOne")
	}

	switch {
	case e.Atom != nil:
		atom, err := e.Atom.atom()
		if err != nil {
			return pms.DepEntry{}, err
		}
		return pms.DepAtom(atom), nil
	case e.Use != nil:
		children, err := depEntries(e.Use.Children)
		if err != nil {
			return pms.DepEntry{}, err
		}
		return pms.DepUse(e.Use.Flag, e.Use.Negate, children...), nil
	case e.AnyOf != nil:
		children, err := depEntries(e.AnyOf)
		if err != nil {
			return pms.DepEntry{}, err
		}
		return pms.DepAnyOf(children...), nil
	case e.OneOf != nil:
		children, err := depEntries(e.OneOf)
		if err != nil {
			return pms.DepEntry{}, err
		}
		return pms.DepExactlyOneOf(children...), nil
	default:
		children, err := depEntries(e.AtMostOne)
		if err != nil {
			return pms.DepEntry{}, err
		}
		return pms.DepAtMostOneOf(children...), nil
	}
}

func depEntries(specs []EntrySpec) ([]pms.DepEntry, error) {
	out := make([]pms.DepEntry, 0, len(specs))
	for _, s := range specs {
		e, err := s.depEntry()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (s AtomSpec) atom() (pms.Atom, error) {
	cpn, err := splitCpn(s.Name)
	if err != nil {
		return pms.Atom{}, err
	}
	atom := pms.Atom{Cpn: cpn, Repo: s.Repo}

	if s.Op != "" {
		op, ok := operators[s.Op]
		if !ok {
			return pms.Atom{}, fmt.Errorf("atom %s: unknown operator %q", s.Name, s.Op)
		}
		version, err := pms.ParseVersion(s.Version)
		if err != nil {
			return pms.Atom{}, fmt.Errorf("atom %s: %w", s.Name, err)
		}
		atom.Op = op
		atom.Version = version
	} else if s.Version != "" {
		return pms.Atom{}, fmt.Errorf("atom %s: version without operator", s.Name)
	}

	atom.Slot = pms.SlotSpec{Slot: s.Slot, SubSlot: s.SubSlot}
	switch s.SlotOp {
	case "":
	case "*":
		atom.Slot.Op = pms.SlotOpStar
	case "=":
		atom.Slot.Op = pms.SlotOpEqual
	default:
		return pms.Atom{}, fmt.Errorf("atom %s: unknown slot operator %q", s.Name, s.SlotOp)
	}

	switch s.Blocker {
	case "":
	case "!":
		atom.Blocker = pms.BlockWeak
	case "!!":
		atom.Blocker = pms.BlockStrong
	default:
		return pms.Atom{}, fmt.Errorf("atom %s: unknown blocker %q", s.Name, s.Blocker)
	}

	for _, ud := range s.UseDeps {
		kind, ok := useDepKinds[ud.Kind]
		if !ok && ud.Kind != "" {
			return pms.Atom{}, fmt.Errorf("atom %s: unknown USE dependency kind %q", s.Name, ud.Kind)
		}
		atom.UseDeps = append(atom.UseDeps, pms.UseDep{Flag: ud.Flag, Kind: kind})
	}
	return atom, nil
}

// repository materializes the world into the in-memory backend.
func (w *World) repository() (*resolver.InMemoryRepository, error) {
	repo := resolver.NewInMemoryRepository()
	for _, s := range w.Packages {
		m, err := s.metadata()
		if err != nil {
			return nil, err
		}
		repo.Add(m)
	}
	for _, s := range w.Installed {
		m, err := s.metadata()
		if err != nil {
			return nil, err
		}
		repo.MarkInstalled(m)
	}
	for name, version := range w.Favored {
		cpn, err := splitCpn(name)
		if err != nil {
			return nil, err
		}
		v, err := pms.ParseVersion(version)
		if err != nil {
			return nil, fmt.Errorf("favored %s: %w", name, err)
		}
		repo.SetFavored(cpn, v)
	}
	for name, version := range w.Locked {
		cpn, err := splitCpn(name)
		if err != nil {
			return nil, err
		}
		v, err := pms.ParseVersion(version)
		if err != nil {
			return nil, fmt.Errorf("locked %s: %w", name, err)
		}
		repo.SetLocked(cpn, resolver.VersionConstraint{Op: pms.OpEqual, Version: v})
	}
	return repo, nil
}

func (w *World) useConfig() (resolver.UseConfig, error) {
	if len(w.Use) == 0 {
		return nil, nil
	}
	config := resolver.UseConfig{}
	for flag, state := range w.Use {
		switch state {
		case "enabled":
			config[flag] = resolver.UseEnabled
		case "disabled":
			config[flag] = resolver.UseDisabled
		case "solver":
			config[flag] = resolver.UseSolverDecided
		default:
			return nil, fmt.Errorf("use flag %s: unknown state %q", flag, state)
		}
	}
	return config, nil
}

func (w *World) providerOptions() ([]resolver.ProviderOption, error) {
	var options []resolver.ProviderOption
	config, err := w.useConfig()
	if err != nil {
		return nil, err
	}
	if config != nil {
		options = append(options, resolver.WithUseConfig(config))
	}
	switch w.WeakBlockers {
	case "", "enforce":
	case "advisory":
		options = append(options, resolver.WithWeakBlockerPolicy(resolver.WeakBlockersAdvisory))
	default:
		return nil, fmt.Errorf("unknown weakBlockers policy %q", w.WeakBlockers)
	}
	return options, nil
}
