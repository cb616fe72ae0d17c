package resolver

import (
	"sort"

	"github.com/lu-zero/portage-resolver/pkg/pms"
)

// Repository is the capability set a backing store must offer. Candidate
// order is stable but unspecified; sorting is the Provider's job.
type Repository interface {
	// AllPackages returns every known candidate.
	AllPackages() []PackageMetadata
	// Installed returns the currently-installed packages. The set is only
	// read for favored/locked derivation and for injecting installed
	// packages the repository no longer carries; resolution never mutates
	// it.
	Installed() []PackageMetadata
	// Favored returns the soft-preferred version of a name, when one
	// exists. A favored version wins ties during candidate ordering but
	// never overrides newest-first.
	Favored(cpn pms.Cpn) (pms.Version, bool)
	// Locked returns the hard constraint on a name, when one exists.
	// Candidates not matching the lock are dropped before any other
	// filtering.
	Locked(cpn pms.Cpn) (VersionConstraint, bool)
}

// InMemoryRepository answers the Repository capabilities synchronously
// from maps. It is the reference implementation and the test fixture.
type InMemoryRepository struct {
	packages  map[pms.Cpn][]PackageMetadata
	installed []PackageMetadata
	favored   map[pms.Cpn]pms.Version
	locked    map[pms.Cpn]VersionConstraint
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		packages: map[pms.Cpn][]PackageMetadata{},
		favored:  map[pms.Cpn]pms.Version{},
		locked:   map[pms.Cpn]VersionConstraint{},
	}
}

// Add registers candidates.
func (r *InMemoryRepository) Add(packages ...PackageMetadata) *InMemoryRepository {
	for _, m := range packages {
		r.packages[m.Cpv.Cpn] = append(r.packages[m.Cpv.Cpn], m)
	}
	return r
}

// MarkInstalled records packages as installed. An installed package absent
// from the repository is still offered as a candidate by the Provider.
func (r *InMemoryRepository) MarkInstalled(packages ...PackageMetadata) *InMemoryRepository {
	r.installed = append(r.installed, packages...)
	return r
}

// SetFavored pins the soft preference for a name.
func (r *InMemoryRepository) SetFavored(cpn pms.Cpn, v pms.Version) *InMemoryRepository {
	r.favored[cpn] = v
	return r
}

// SetLocked pins the hard constraint for a name.
func (r *InMemoryRepository) SetLocked(cpn pms.Cpn, c VersionConstraint) *InMemoryRepository {
	r.locked[cpn] = c
	return r
}

func (r *InMemoryRepository) AllPackages() []PackageMetadata {
	cpns := make([]pms.Cpn, 0, len(r.packages))
	for cpn := range r.packages {
		cpns = append(cpns, cpn)
	}
	sort.Slice(cpns, func(i, j int) bool {
		return cpns[i].String() < cpns[j].String()
	})
	var out []PackageMetadata
	for _, cpn := range cpns {
		out = append(out, r.packages[cpn]...)
	}
	return out
}

func (r *InMemoryRepository) Installed() []PackageMetadata {
	return r.installed
}

// Favored prefers an explicit pin and falls back to the installed version
// of the name, so that resolution leans toward keeping what is already on
// the system.
func (r *InMemoryRepository) Favored(cpn pms.Cpn) (pms.Version, bool) {
	if v, ok := r.favored[cpn]; ok {
		return v, true
	}
	for _, m := range r.installed {
		if m.Cpv.Cpn == cpn {
			return m.Cpv.Version, true
		}
	}
	return pms.Version{}, false
}

func (r *InMemoryRepository) Locked(cpn pms.Cpn) (VersionConstraint, bool) {
	c, ok := r.locked[cpn]
	return c, ok
}
