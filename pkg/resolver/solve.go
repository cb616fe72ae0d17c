package resolver

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"

	"github.com/lu-zero/portage-resolver/internal/sat"
)

// worldIdentifier anchors the root requirements in the engine's input.
const worldIdentifier = sat.Identifier("@world")

// UnsatisfiableError carries the engine's conflict set verbatim, one
// rendered constraint per entry.
type UnsatisfiableError struct {
	Conflicts []string
}

func (e *UnsatisfiableError) Error() string {
	if len(e.Conflicts) == 0 {
		return "requirements not satisfiable"
	}
	return "requirements not satisfiable:\n" + strings.Join(e.Conflicts, "\n")
}

// Problem is one resolution request: root requirements against a
// Provider's compiled repository view. A fresh Problem is expected per
// request; nothing is reused across sessions.
type Problem struct {
	Provider *Provider
	Roots    []Requirement

	// Trace, when set, receives the engine's search trace.
	Trace io.Writer
}

// Resolve hands the compiled problem to the engine and maps its selection
// back to solvables. Resolution is synchronous; bounded solve time is the
// caller's concern, imposed through ctx.
func (prob *Problem) Resolve(ctx context.Context) (*Solution, error) {
	p := prob.Provider
	vars, err := p.compile()
	if err != nil {
		return nil, err
	}

	world := &variable{id: worldIdentifier, constraints: []sat.Constraint{sat.Mandatory()}}
	for _, root := range prob.Roots {
		if root.Kind == ReqBlocker {
			for _, t := range p.blockerTargets(root, 0, false) {
				world.constraints = append(world.constraints, sat.Conflict(solvableIdentifier(p.pool.Solvable(t))))
			}
			continue
		}
		ids, err := p.requirementCandidates(root)
		if err != nil {
			return nil, err
		}
		world.constraints = append(world.constraints, sat.Dependency(ids...))
	}

	options := []sat.Option{sat.WithInput(append(append([]sat.Variable{}, vars...), world))}
	if prob.Trace != nil {
		options = append(options, sat.WithTracer(sat.LoggingTracer{Writer: prob.Trace}))
	}
	solver, err := sat.NewSolver(options...)
	if err != nil {
		return nil, err
	}

	selected, err := solver.Solve(ctx)
	if err != nil {
		var ns sat.NotSatisfiable
		if errors.As(err, &ns) {
			conflicts := make([]string, len(ns))
			for i, ac := range ns {
				conflicts[i] = ac.String()
			}
			return nil, &UnsatisfiableError{Conflicts: conflicts}
		}
		return nil, err
	}

	s := &Solution{
		provider: p,
		set:      map[SolvableID]bool{},
		flags:    map[string]bool{},
	}
	for _, v := range selected {
		if id, ok := p.varSolvable[v.Identifier()]; ok {
			s.ids = append(s.ids, id)
			s.set[id] = true
			continue
		}
		if fv, ok := p.flagOf[v.Identifier()]; ok && fv.enabled {
			s.flags[fv.flag] = true
		} else if ok {
			s.flags[fv.flag] = false
		}
	}
	sort.Slice(s.ids, func(i, j int) bool {
		return p.pool.Solvable(s.ids[i]).String() < p.pool.Solvable(s.ids[j]).String()
	})
	return s, nil
}

// Solution is the engine's selected candidate set plus the outcome of any
// solver-decided flags it had to commit to.
type Solution struct {
	provider *Provider
	ids      []SolvableID
	set      map[SolvableID]bool
	flags    map[string]bool
}

// Selected returns the chosen solvables in deterministic identity order.
func (s *Solution) Selected() []SolvableID {
	return s.ids
}

// Contains reports whether a solvable was selected.
func (s *Solution) Contains(id SolvableID) bool {
	return s.set[id]
}

// Packages returns the chosen solvables' metadata, in Selected order.
func (s *Solution) Packages() []PackageMetadata {
	out := make([]PackageMetadata, len(s.ids))
	for i, id := range s.ids {
		out[i] = s.provider.pool.Solvable(id)
	}
	return out
}

// FlagOutcome reports the value the engine chose for a solver-decided
// flag. decided is false when no referencing package was selected, in
// which case the flag's value never mattered.
func (s *Solution) FlagOutcome(flag string) (enabled, decided bool) {
	enabled, decided = s.flags[flag]
	return enabled, decided
}
