package resolver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lu-zero/portage-resolver/pkg/pms"
)

// DepEdge is one labeled dependency-graph edge: From depends on To
// through the named class.
type DepEdge struct {
	From  SolvableID
	To    SolvableID
	Class pms.DepClass
}

// DependencyGraph relates the selected solvables through their declared
// dependencies. Edges only ever connect two selected nodes.
type DependencyGraph struct {
	pool  *Pool
	Nodes []SolvableID
	Edges []DepEdge
}

// CycleError reports a dependency cycle that survives PDEPEND relaxation.
type CycleError struct {
	Members []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle involving %s", strings.Join(e.Members, ", "))
}

// DependencyGraph walks every selected package's dependency declarations
// and records a labeled edge to each selected package the declaration
// resolves to. Conditionals are evaluated against the session's config
// and the engine's flag outcomes; blockers contribute no edges.
func (s *Solution) DependencyGraph() (*DependencyGraph, error) {
	p := s.provider
	g := &DependencyGraph{
		pool:  p.pool,
		Nodes: append([]SolvableID{}, s.ids...),
	}
	for _, from := range s.ids {
		for _, ce := range p.pool.Solvable(from).Deps.Classes() {
			for _, entry := range ce.Entries {
				if err := s.edgesFor(g, from, ce.Class, entry); err != nil {
					return nil, err
				}
			}
		}
	}
	return g, nil
}

func (s *Solution) edgesFor(g *DependencyGraph, from SolvableID, class pms.DepClass, entry pms.DepEntry) error {
	p := s.provider
	switch entry.Kind {
	case pms.EntryAtom:
		if entry.Atom.Blocker != pms.BlockNone {
			return nil
		}
		req, err := p.InternRequirement(entry.Atom)
		if err != nil {
			return err
		}
		for _, to := range s.requirementTargets(req) {
			if to != from {
				g.Edges = append(g.Edges, DepEdge{From: from, To: to, Class: class})
			}
		}
		return nil

	case pms.EntryUseConditional:
		active := false
		switch p.use.State(entry.Flag) {
		case UseEnabled:
			active = !entry.Negate
		case UseDisabled:
			active = entry.Negate
		case UseSolverDecided:
			enabled, _ := s.FlagOutcome(entry.Flag)
			active = enabled != entry.Negate
		}
		if !active {
			return nil
		}
		for _, child := range entry.Children {
			if err := s.edgesFor(g, from, class, child); err != nil {
				return err
			}
		}
		return nil

	case pms.EntryAnyOf, pms.EntryExactlyOneOf, pms.EntryAtMostOneOf:
		// Whichever alternatives ended up selected are real
		// dependencies.
		for _, child := range entry.Children {
			if err := s.edgesFor(g, from, class, child); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("unknown dependency entry kind %d", entry.Kind)
}

// requirementTargets lists the selected solvables a Simple or Union
// requirement resolves to.
func (s *Solution) requirementTargets(req Requirement) []SolvableID {
	p := s.provider
	var out []SolvableID
	seen := map[SolvableID]bool{}
	var walk func(Requirement)
	walk = func(r Requirement) {
		switch r.Kind {
		case ReqSimple:
			clause := p.pool.VersionSet(r.Set)
			for _, id := range p.candidates[r.Name] {
				if s.set[id] && !seen[id] && clause.Matches(p.pool.Solvable(id)) {
					seen[id] = true
					out = append(out, id)
				}
			}
		case ReqUnion:
			for _, m := range r.Members {
				walk(m)
			}
		}
	}
	walk(req)
	return out
}

// InstallOrder linearizes the graph with Kahn's algorithm after dropping
// every PDEPEND edge: a package installs after everything it depends on
// through the other four classes. Ties break deterministically by package
// identity. A cycle that survives the relaxation is a genuine modeling
// error, reported with its members rather than broken arbitrarily.
func (g *DependencyGraph) InstallOrder() ([]SolvableID, error) {
	type pair struct{ from, to SolvableID }
	indegree := map[SolvableID]int{}
	dependents := map[SolvableID][]SolvableID{}
	seen := map[pair]bool{}
	for _, n := range g.Nodes {
		indegree[n] = 0
	}
	for _, e := range g.Edges {
		if e.Class == pms.Pdepend || e.From == e.To {
			continue
		}
		pr := pair{from: e.From, to: e.To}
		if seen[pr] {
			continue
		}
		seen[pr] = true
		indegree[e.From]++
		dependents[e.To] = append(dependents[e.To], e.From)
	}

	key := func(id SolvableID) string {
		return g.pool.Solvable(id).String()
	}
	var ready []SolvableID
	for _, n := range g.Nodes {
		if indegree[n] == 0 {
			ready = append(ready, n)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return key(ready[i]) < key(ready[j]) })

	var order []SolvableID
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		for _, d := range dependents[n] {
			indegree[d]--
			if indegree[d] == 0 {
				ready = append(ready, d)
			}
		}
		sort.Slice(ready, func(i, j int) bool { return key(ready[i]) < key(ready[j]) })
	}

	if len(order) != len(g.Nodes) {
		var members []string
		for _, n := range g.Nodes {
			if indegree[n] > 0 {
				members = append(members, key(n))
			}
		}
		sort.Strings(members)
		return nil, &CycleError{Members: members}
	}
	return order, nil
}
