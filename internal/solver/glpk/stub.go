//go:build !glpk

package glpk

import (
	"context"
	"fmt"

	"evdarp/internal/lp"
)

// Available reports whether the GLPK backend is compiled in.
const Available = false

type Solver struct {
	Presolve bool
	Verbose  bool
}

func New() *Solver { return &Solver{} }

func (s *Solver) Name() string { return "glpk" }

// Solve always fails: the binary was built without the glpk tag.
func (s *Solver) Solve(ctx context.Context, m *lp.Model) (*lp.Solution, error) {
	return nil, fmt.Errorf("%w: built without glpk (rebuild with -tags glpk)", lp.ErrSolver)
}
