package sat

import (
	"context"

	"github.com/go-air/gini/inter"
	"github.com/go-air/gini/z"
)

// search walks the preference structure of the problem: every Dependency
// constraint orders its candidates from most to least preferred, and the
// search assumes candidates in that order, backtracking through gini test
// scopes when an assumption propagates to a contradiction. The result is
// a model that honors candidate preference wherever the formula allows it.
type search struct {
	s      inter.S
	lits   *litMapping
	tracer Tracer

	assumptions []z.Lit
	aset        map[z.Lit]struct{}
	visited     map[Identifier]struct{}
	scopes      int
}

type searchPosition struct {
	variables []Variable
	conflicts []AppliedConstraint
}

func (p searchPosition) Variables() []Variable {
	return p.variables
}

func (p searchPosition) Conflicts() []AppliedConstraint {
	return p.conflicts
}

// Do runs the guided search under the given baseline assumptions. It
// returns the solver outcome, the full set of assumptions that produced
// it, and that set keyed for membership tests. On a satisfiable outcome
// the solver is left inside the winning test scopes so that literal
// values can be read; the caller pops them with UntestAll.
func (h *search) Do(ctx context.Context, anchors []z.Lit) (int, []z.Lit, map[z.Lit]struct{}) {
	h.assumptions = append([]z.Lit(nil), anchors...)
	h.aset = make(map[z.Lit]struct{}, len(anchors))
	h.visited = make(map[Identifier]struct{})
	for _, m := range anchors {
		h.aset[m] = struct{}{}
	}

	var pending [][]z.Lit
	for _, m := range anchors {
		pending = h.pushOrders(h.lits.VariableOf(m), pending)
	}

	outcome := h.decide(ctx, pending)
	return outcome, h.assumptions, h.aset
}

// decide takes the next pending candidate list and tries its candidates
// in preference order. A list one of whose candidates is already assumed
// is satisfied and skipped. Exhausting every candidate of every list
// without a model means the baseline itself is unsatisfiable.
func (h *search) decide(ctx context.Context, pending [][]z.Lit) int {
	if ctx.Err() != nil {
		return unknown
	}
	if len(pending) == 0 {
		return h.s.Solve()
	}

	head, rest := pending[0], pending[1:]
	for _, m := range head {
		if _, ok := h.aset[m]; ok {
			return h.decide(ctx, rest)
		}
	}

	for _, m := range head {
		h.s.Assume(m)
		h.scopes++
		result, _ := h.s.Test(nil)
		if result == unsatisfiable {
			h.tracer.Trace(searchPosition{
				variables: h.variables(),
				conflicts: h.lits.Conflicts(h.s),
			})
			h.s.Untest()
			h.scopes--
			continue
		}

		h.assumptions = append(h.assumptions, m)
		h.aset[m] = struct{}{}
		if result == satisfiable {
			return satisfiable
		}

		next := h.pushOrders(h.lits.VariableOf(m), rest)
		if outcome := h.decide(ctx, next); outcome != unsatisfiable {
			return outcome
		}

		// backtrack
		h.assumptions = h.assumptions[:len(h.assumptions)-1]
		delete(h.aset, m)
		h.s.Untest()
		h.scopes--
	}

	return unsatisfiable
}

// pushOrders appends one candidate list per ordered constraint of the
// given variable. Each variable contributes its lists once.
func (h *search) pushOrders(variable Variable, pending [][]z.Lit) [][]z.Lit {
	if _, ok := h.visited[variable.Identifier()]; ok {
		return pending
	}
	h.visited[variable.Identifier()] = struct{}{}
	for _, constraint := range variable.Constraints() {
		order := constraint.Order()
		if len(order) == 0 {
			continue
		}
		ms := make([]z.Lit, len(order))
		for i, id := range order {
			ms[i] = h.lits.LitOf(id)
		}
		pending = append(pending, ms)
	}
	return pending
}

func (h *search) variables() []Variable {
	variables := make([]Variable, len(h.assumptions))
	for i, m := range h.assumptions {
		variables[i] = h.lits.VariableOf(m)
	}
	return variables
}

// UntestAll pops every test scope the search pushed, returning the solver
// to the scope it was given in.
func (h *search) UntestAll() {
	for h.scopes > 0 {
		h.s.Untest()
		h.scopes--
	}
}
