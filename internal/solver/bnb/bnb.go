// Package bnb is an in-process exact solver for small mixed-binary models:
// a dense two-phase simplex for the relaxations and depth-first branch and
// bound on the most fractional binary. It is meant for tests and toy
// instances; production instances should go to a real MILP solver.
package bnb

import (
	"context"
	"fmt"
	"log"
	"math"

	"evdarp/internal/lp"
)

// Solver implements lp.Solver.
type Solver struct {
	// MaxNodes bounds the search. Reaching it returns the incumbent with
	// status lp.Feasible, or an error wrapping lp.ErrSolver when there is
	// none.
	MaxNodes int
	// Tol is the integrality and feasibility tolerance.
	Tol float64
	// MaxPivots bounds the simplex iterations of one relaxation.
	MaxPivots int
	// Logf receives progress lines; nil disables logging.
	Logf func(format string, args ...any)
}

type Option func(*Solver)

func WithMaxNodes(n int) Option { return func(s *Solver) { s.MaxNodes = n } }

// WithLogging reports search progress through the standard logger.
func WithLogging() Option { return func(s *Solver) { s.Logf = log.Printf } }

func New(opts ...Option) *Solver {
	s := &Solver{MaxNodes: 200000, Tol: 1e-6, MaxPivots: 100000}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Solver) Name() string { return "bnb" }

type node struct {
	lower, upper []float64
	depth        int
}

// Solve runs the search. Cancellation of ctx is checked between nodes.
func (s *Solver) Solve(ctx context.Context, m *lp.Model) (*lp.Solution, error) {
	vars := m.Vars()
	root := node{lower: make([]float64, len(vars)), upper: make([]float64, len(vars))}
	for i, v := range vars {
		if math.IsInf(v.Lower, -1) {
			return nil, fmt.Errorf("%w: bnb: variable %s has no lower bound", lp.ErrSolver, v.Name)
		}
		root.lower[i], root.upper[i] = v.Lower, v.Upper
	}

	var (
		incumbent []float64
		best      = math.Inf(1)
		explored  int
		truncated bool
		stack     = []node{root}
	)
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("bnb: %w", err)
		}
		if explored >= s.MaxNodes {
			if incumbent == nil {
				return nil, fmt.Errorf("%w: bnb: node limit %d reached without a solution", lp.ErrSolver, s.MaxNodes)
			}
			s.logf("bnb: node limit %d reached, returning incumbent %g", s.MaxNodes, best)
			truncated = true
			break
		}
		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		explored++

		st, x, obj := s.relax(m, nd)
		switch st {
		case lpInfeasible:
			continue
		case lpOptimal:
		default:
			return nil, fmt.Errorf("%w: bnb: relaxation at depth %d did not converge", lp.ErrSolver, nd.depth)
		}
		if incumbent != nil && obj >= best-s.Tol*math.Max(1, math.Abs(best)) {
			continue
		}

		branch, frac := -1, 0.0
		for i, v := range vars {
			if v.Kind != lp.Binary {
				continue
			}
			f := math.Abs(x[i] - math.Round(x[i]))
			if f > s.Tol && f > frac {
				branch, frac = i, f
			}
		}
		if branch < 0 {
			for i, v := range vars {
				if v.Kind == lp.Binary {
					x[i] = math.Round(x[i])
				}
			}
			incumbent, best = x, obj
			s.logf("bnb: incumbent %g at node %d depth %d", obj, explored, nd.depth)
			continue
		}

		down, up := nd.child(branch, 0), nd.child(branch, 1)
		// explore the side nearer the fractional value first
		if x[branch] >= 0.5 {
			stack = append(stack, down, up)
		} else {
			stack = append(stack, up, down)
		}
	}

	if incumbent == nil {
		return lp.NewSolution(m, lp.Infeasible, 0, nil), nil
	}
	status := lp.Optimal
	if truncated {
		status = lp.Feasible
	}
	sol := lp.NewSolution(m, status, best, incumbent)
	sol.Nodes = explored
	return sol, nil
}

func (nd node) child(v int, value float64) node {
	c := node{
		lower: append([]float64(nil), nd.lower...),
		upper: append([]float64(nil), nd.upper...),
		depth: nd.depth + 1,
	}
	c.lower[v], c.upper[v] = value, value
	return c
}

// relax solves the LP relaxation of m under the bounds of nd. Variables with
// equal bounds are substituted out; the rest are shifted to y = x - lower.
func (s *Solver) relax(m *lp.Model, nd node) (lpStatus, []float64, float64) {
	vars := m.Vars()
	col := make([]int, len(vars))
	var free []int
	for i := range vars {
		if nd.upper[i]-nd.lower[i] <= s.Tol {
			col[i] = -1
			continue
		}
		col[i] = len(free)
		free = append(free, i)
	}

	var p problem
	for _, c := range m.Rows() {
		row := make([]float64, len(free))
		rhs := c.RHS
		nonzero := false
		for _, t := range c.Terms {
			rhs -= t.Coef * nd.lower[t.Var]
			if j := col[t.Var]; j >= 0 {
				row[j] += t.Coef
				nonzero = true
			}
		}
		if !nonzero {
			if !holds(0, c.Sense, rhs, s.Tol) {
				return lpInfeasible, nil, 0
			}
			continue
		}
		p.a = append(p.a, row)
		p.sense = append(p.sense, c.Sense)
		p.b = append(p.b, rhs)
	}
	for j, i := range free {
		if math.IsInf(nd.upper[i], 1) {
			continue
		}
		row := make([]float64, len(free))
		row[j] = 1
		p.a = append(p.a, row)
		p.sense = append(p.sense, lp.LE)
		p.b = append(p.b, nd.upper[i]-nd.lower[i])
	}

	obj := m.Objective()
	shift := obj.Const
	p.c = make([]float64, len(free))
	for _, t := range obj.Terms {
		shift += t.Coef * nd.lower[t.Var]
		if j := col[t.Var]; j >= 0 {
			p.c[j] += t.Coef
		}
	}

	st, y, z := simplex(p, 1e-9, s.MaxPivots)
	if st != lpOptimal {
		return st, nil, 0
	}
	x := append([]float64(nil), nd.lower...)
	for j, i := range free {
		x[i] += y[j]
	}
	return lpOptimal, x, z + shift
}

func holds(lhs float64, sense lp.Sense, rhs, tol float64) bool {
	switch sense {
	case lp.LE:
		return lhs <= rhs+tol
	case lp.GE:
		return lhs >= rhs-tol
	}
	return math.Abs(lhs-rhs) <= tol
}

func (s *Solver) logf(format string, args ...any) {
	if s.Logf != nil {
		s.Logf(format, args...)
	}
}
