package lp

import (
	"fmt"
	"math"
)

// Violation is a row or bound not satisfied by an assignment.
type Violation struct {
	Name string
	// Bound is true for variable bound and integrality violations.
	Bound bool
	LHS   float64
	Sense Sense
	RHS   float64
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %g %s %g", v.Name, v.LHS, v.Sense, v.RHS)
}

// Check evaluates every row, bound and integrality requirement of m under
// values and returns the ones violated by more than tol.
func (m *Model) Check(values []float64, tol float64) []Violation {
	if len(values) != len(m.vars) {
		return []Violation{{Name: fmt.Sprintf("assignment has %d values for %d variables", len(values), len(m.vars))}}
	}
	var out []Violation
	for i, v := range m.vars {
		x := values[i]
		if x < v.Lower-tol {
			out = append(out, Violation{Name: v.Name, Bound: true, LHS: x, Sense: GE, RHS: v.Lower})
		}
		if x > v.Upper+tol {
			out = append(out, Violation{Name: v.Name, Bound: true, LHS: x, Sense: LE, RHS: v.Upper})
		}
		if v.Kind == Binary && math.Abs(x-math.Round(x)) > tol {
			out = append(out, Violation{Name: v.Name, Bound: true, LHS: x, Sense: EQ, RHS: math.Round(x)})
		}
	}
	for _, c := range m.rows {
		lhs := 0.0
		for _, t := range c.Terms {
			lhs += t.Coef * values[t.Var]
		}
		ok := true
		switch c.Sense {
		case LE:
			ok = lhs <= c.RHS+tol
		case GE:
			ok = lhs >= c.RHS-tol
		case EQ:
			ok = math.Abs(lhs-c.RHS) <= tol
		}
		if !ok {
			out = append(out, Violation{Name: c.Name, LHS: lhs, Sense: c.Sense, RHS: c.RHS})
		}
	}
	return out
}
