//go:build glpk

// Package glpk solves models with the GNU Linear Programming Kit through
// github.com/lukpank/go-glpk. Building it needs cgo, libglpk and the glpk
// build tag; without the tag New returns a solver that always fails.
package glpk

import (
	"context"
	"fmt"
	"log"

	"github.com/lukpank/go-glpk/glpk"

	"evdarp/internal/lp"
)

// Available reports whether the GLPK backend is compiled in.
const Available = true

type Solver struct {
	// Presolve enables the MIP presolver of Intopt.
	Presolve bool
	// Verbose lets GLPK print its own progress.
	Verbose bool
}

func New() *Solver { return &Solver{} }

func (s *Solver) Name() string { return "glpk" }

// Solve loads m into a fresh GLPK problem, runs the simplex on the
// relaxation and then the branch and cut. ctx is only checked before the
// call; GLPK itself cannot be interrupted.
func (s *Solver) Solve(ctx context.Context, m *lp.Model) (*lp.Solution, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("glpk: %w", err)
	}
	prob := glpk.New()
	defer prob.Delete()
	prob.SetProbName(m.Name)
	prob.SetObjDir(glpk.ObjDir(glpk.MIN))

	vars := m.Vars()
	if len(vars) > 0 {
		prob.AddCols(len(vars))
	}
	for i, v := range vars {
		col := i + 1
		prob.SetColName(col, v.Name)
		if v.Kind == lp.Binary {
			prob.SetColKind(col, glpk.VarType(glpk.BV))
			continue
		}
		if v.Lower == v.Upper {
			prob.SetColBnds(col, glpk.BndsType(glpk.FX), v.Lower, v.Upper)
		} else {
			prob.SetColBnds(col, glpk.BndsType(glpk.DB), v.Lower, v.Upper)
		}
	}
	obj := m.Objective()
	for _, t := range obj.Terms {
		prob.SetObjCoef(int(t.Var)+1, t.Coef)
	}

	rows := m.Rows()
	if len(rows) > 0 {
		prob.AddRows(len(rows))
	}
	for i, c := range rows {
		row := i + 1
		prob.SetRowName(row, c.Name)
		switch c.Sense {
		case lp.LE:
			prob.SetRowBnds(row, glpk.BndsType(glpk.UP), 0, c.RHS)
		case lp.GE:
			prob.SetRowBnds(row, glpk.BndsType(glpk.LO), c.RHS, 0)
		case lp.EQ:
			prob.SetRowBnds(row, glpk.BndsType(glpk.FX), c.RHS, c.RHS)
		}
		// index 0 of both slices is ignored by GLPK
		ind := make([]int32, 1, len(c.Terms)+1)
		val := make([]float64, 1, len(c.Terms)+1)
		for _, t := range c.Terms {
			ind = append(ind, int32(t.Var)+1)
			val = append(val, t.Coef)
		}
		prob.SetMatRow(row, ind, val)
	}

	msg := glpk.MsgLev(glpk.MSG_ERR)
	if s.Verbose {
		msg = glpk.MsgLev(glpk.MSG_ON)
	}
	smcp := glpk.NewSmcp()
	smcp.SetMsgLev(msg)
	if err := prob.Simplex(smcp); err != nil {
		return nil, fmt.Errorf("%w: glpk simplex: %v", lp.ErrSolver, err)
	}
	switch prob.Status() {
	case glpk.NOFEAS, glpk.INFEAS:
		return lp.NewSolution(m, lp.Infeasible, 0, nil), nil
	case glpk.UNBND:
		return nil, fmt.Errorf("%w: glpk: relaxation unbounded", lp.ErrSolver)
	}

	iocp := glpk.NewIocp()
	iocp.SetPresolve(s.Presolve)
	iocp.SetMsgLev(msg)
	if err := prob.Intopt(iocp); err != nil {
		return nil, fmt.Errorf("%w: glpk intopt: %v", lp.ErrSolver, err)
	}

	status := lp.Optimal
	switch prob.MipStatus() {
	case glpk.OPT:
	case glpk.FEAS:
		log.Printf("glpk: model=%s stopped with a feasible, unproven solution", m.Name)
		status = lp.Feasible
	case glpk.NOFEAS:
		return lp.NewSolution(m, lp.Infeasible, 0, nil), nil
	default:
		return nil, fmt.Errorf("%w: glpk: mip status %v", lp.ErrSolver, prob.MipStatus())
	}

	values := make([]float64, len(vars))
	for i := range vars {
		values[i] = prob.MipColVal(i + 1)
	}
	return lp.NewSolution(m, status, prob.MipObjVal()+obj.Const, values), nil
}
