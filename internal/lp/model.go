// Package lp holds a solver-neutral mixed-integer linear model: named
// variables with bounds, named linear rows and a minimisation objective.
// Solver adapters read a Model and return a Solution.
package lp

import (
	"fmt"
	"math"
)

// Var is a variable handle, dense in declaration order.
type Var int

// Row is a constraint handle, dense in insertion order.
type Row int

// Kind is the domain of a variable.
type Kind int

const (
	Continuous Kind = iota
	Binary
)

// Variable describes one declared column.
type Variable struct {
	Name  string
	Kind  Kind
	Lower float64
	Upper float64
}

// Sense is the comparison of a row against its right-hand side.
type Sense int

const (
	LE Sense = iota
	GE
	EQ
)

func (s Sense) String() string {
	switch s {
	case LE:
		return "<="
	case GE:
		return ">="
	case EQ:
		return "="
	}
	return fmt.Sprintf("sense(%d)", int(s))
}

// Term is coef·var.
type Term struct {
	Var  Var
	Coef float64
}

// Expr is a linear expression kept in insertion order. Adding a variable
// twice merges the coefficients.
type Expr struct {
	Terms []Term
	Const float64
	pos   map[Var]int
}

// Add appends coef·v and returns e for chaining.
func (e *Expr) Add(coef float64, v Var) *Expr {
	if e.pos == nil {
		e.pos = make(map[Var]int)
	}
	if i, ok := e.pos[v]; ok {
		e.Terms[i].Coef += coef
		return e
	}
	e.pos[v] = len(e.Terms)
	e.Terms = append(e.Terms, Term{Var: v, Coef: coef})
	return e
}

// Plus adds a constant.
func (e *Expr) Plus(c float64) *Expr {
	e.Const += c
	return e
}

// Eval returns the expression value under values indexed by Var.
func (e *Expr) Eval(values []float64) float64 {
	s := e.Const
	for _, t := range e.Terms {
		s += t.Coef * values[t.Var]
	}
	return s
}

// Constraint is a stored row: Σ Terms Sense RHS. Constants of the source
// expression are folded into RHS and zero coefficients dropped.
type Constraint struct {
	Name  string
	Terms []Term
	Sense Sense
	RHS   float64
}

// Model is one formulation instance. It is not safe for concurrent use.
type Model struct {
	Name string

	vars     []Variable
	varNames map[string]Var
	rows     []Constraint
	rowNames map[string]Row
	obj      Expr
}

func NewModel(name string) *Model {
	return &Model{
		Name:     name,
		varNames: map[string]Var{},
		rowNames: map[string]Row{},
	}
}

// AddBinary declares a {0,1} variable. Duplicate names panic.
func (m *Model) AddBinary(name string) Var {
	return m.addVar(Variable{Name: name, Kind: Binary, Lower: 0, Upper: 1})
}

// AddContinuous declares a bounded continuous variable. Duplicate names and
// lb > ub panic.
func (m *Model) AddContinuous(name string, lb, ub float64) Var {
	if lb > ub || math.IsNaN(lb) || math.IsNaN(ub) {
		panic(fmt.Sprintf("lp: variable %s: bounds [%v, %v]", name, lb, ub))
	}
	return m.addVar(Variable{Name: name, Kind: Continuous, Lower: lb, Upper: ub})
}

func (m *Model) addVar(v Variable) Var {
	if _, dup := m.varNames[v.Name]; dup {
		panic("lp: duplicate variable " + v.Name)
	}
	h := Var(len(m.vars))
	m.vars = append(m.vars, v)
	m.varNames[v.Name] = h
	return h
}

// AddConstraint stores expr sense rhs under name. Duplicate names panic.
func (m *Model) AddConstraint(name string, expr *Expr, sense Sense, rhs float64) Row {
	if _, dup := m.rowNames[name]; dup {
		panic("lp: duplicate constraint " + name)
	}
	c := Constraint{Name: name, Sense: sense, RHS: rhs - expr.Const}
	for _, t := range expr.Terms {
		if int(t.Var) < 0 || int(t.Var) >= len(m.vars) {
			panic(fmt.Sprintf("lp: constraint %s references unknown variable %d", name, t.Var))
		}
		if t.Coef != 0 {
			c.Terms = append(c.Terms, t)
		}
	}
	r := Row(len(m.rows))
	m.rows = append(m.rows, c)
	m.rowNames[name] = r
	return r
}

// Minimize sets the objective.
func (m *Model) Minimize(expr *Expr) {
	m.obj = Expr{Const: expr.Const}
	for _, t := range expr.Terms {
		if t.Coef != 0 {
			m.obj.Terms = append(m.obj.Terms, t)
		}
	}
}

func (m *Model) Vars() []Variable   { return m.vars }
func (m *Model) Rows() []Constraint { return m.rows }
func (m *Model) Objective() Expr    { return m.obj }
func (m *Model) NumVars() int       { return len(m.vars) }
func (m *Model) NumRows() int       { return len(m.rows) }

// Variable returns the declaration behind v.
func (m *Model) Variable(v Var) Variable { return m.vars[v] }

// Lookup returns the handle of a named variable.
func (m *Model) Lookup(name string) (Var, bool) {
	v, ok := m.varNames[name]
	return v, ok
}

// Constraint returns the named row.
func (m *Model) Constraint(name string) (Constraint, bool) {
	r, ok := m.rowNames[name]
	if !ok {
		return Constraint{}, false
	}
	return m.rows[r], true
}

// NumBinaries counts binary variables.
func (m *Model) NumBinaries() int {
	n := 0
	for _, v := range m.vars {
		if v.Kind == Binary {
			n++
		}
	}
	return n
}
