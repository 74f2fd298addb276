package lp

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNoSolution is returned when values are read from a solution that
	// carries no assignment.
	ErrNoSolution = errors.New("lp: no solution available")
	// ErrUnknownVariable is returned for handles the model never declared.
	ErrUnknownVariable = errors.New("lp: unknown variable")
	// ErrSolver wraps solver-internal failures (licence, resources,
	// numerics). It is never used for infeasibility.
	ErrSolver = errors.New("lp: solver failure")
)

// Status is the outcome of a solve.
type Status int

const (
	Optimal Status = iota
	Infeasible
	Error
	// Feasible is an integer assignment whose optimality was not proven,
	// e.g. the incumbent left when a search limit is hit.
	Feasible
)

func (s Status) String() string {
	switch s {
	case Optimal:
		return "optimal"
	case Infeasible:
		return "infeasible"
	case Error:
		return "error"
	case Feasible:
		return "feasible"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// HasValues reports whether a solution with status s carries an assignment.
func (s Status) HasValues() bool { return s == Optimal || s == Feasible }

// Solver solves a model. Solve blocks until the solver reports a definite
// status; the error return is reserved for failures wrapping ErrSolver.
type Solver interface {
	Solve(ctx context.Context, m *Model) (*Solution, error)
}

// Solution is a solver result bound to the model it was produced for.
type Solution struct {
	Status    Status
	Objective float64
	// Nodes is the number of search nodes explored, when the solver reports it.
	Nodes int

	numVars int
	values  []float64
}

// NewSolution binds values (indexed by Var) to m. Values are ignored unless
// status is Optimal or Feasible.
func NewSolution(m *Model, status Status, objective float64, values []float64) *Solution {
	s := &Solution{Status: status, Objective: objective, numVars: m.NumVars()}
	if status.HasValues() {
		s.values = append([]float64(nil), values...)
	}
	return s
}

// Value returns the value of v.
func (s *Solution) Value(v Var) (float64, error) {
	if s == nil || !s.Status.HasValues() {
		return 0, ErrNoSolution
	}
	if int(v) < 0 || int(v) >= s.numVars || int(v) >= len(s.values) {
		return 0, fmt.Errorf("%w: %d", ErrUnknownVariable, v)
	}
	return s.values[v], nil
}

// MustValue is Value for callers that already checked the status and only
// pass handles from the same model.
func (s *Solution) MustValue(v Var) float64 {
	x, err := s.Value(v)
	if err != nil {
		panic(err)
	}
	return x
}

// Values returns a copy of every variable value, or nil without an assignment.
func (s *Solution) Values() []float64 {
	if s == nil || !s.Status.HasValues() {
		return nil
	}
	return append([]float64(nil), s.values...)
}
