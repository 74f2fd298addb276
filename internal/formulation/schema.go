package formulation

import (
	"fmt"

	"evdarp/internal/lp"
)

// None marks a tensor slot without a variable (the x diagonal, L at
// non-pickups, z when fuel is off).
const None lp.Var = -1

func xName(i, j, k int) string { return fmt.Sprintf("x_i%d_j%d_k%d", i, j, k) }
func qName(i, r, k int) string { return fmt.Sprintf("Q_i%d_r%d_k%d", i, r, k) }
func bName(i, k int) string    { return fmt.Sprintf("B_i%d_k%d", i, k) }
func lName(i, k int) string    { return fmt.Sprintf("L_i%d_k%d", i, k) }
func zName(i, k int) string    { return fmt.Sprintf("z_i%d_k%d", i, k) }

// declare creates every variable family by total nested iteration. The
// declaration order fixes the column order of the LP export.
func (b *builder) declare() {
	in, f, m := b.in, b.f, b.f.Model
	n, K, R := in.Len(), in.NumVehicles(), in.Resources

	f.X = make([][][]lp.Var, n)
	for i := 0; i < n; i++ {
		f.X[i] = make([][]lp.Var, n)
		for j := 0; j < n; j++ {
			f.X[i][j] = make([]lp.Var, K)
			for k := 0; k < K; k++ {
				if i == j {
					f.X[i][j][k] = None
					continue
				}
				f.X[i][j][k] = m.AddBinary(xName(i, j, k))
			}
		}
	}

	f.Q = make([][][]lp.Var, n)
	for i := 0; i < n; i++ {
		f.Q[i] = make([][]lp.Var, R)
		for r := 0; r < R; r++ {
			f.Q[i][r] = make([]lp.Var, K)
			for k := 0; k < K; k++ {
				f.Q[i][r][k] = m.AddContinuous(qName(i, r, k), 0, float64(b.fleet[k].Capacity[r]))
			}
		}
	}

	f.B = make([][]lp.Var, n)
	for i := 0; i < n; i++ {
		f.B[i] = make([]lp.Var, K)
		e, l := in.Window(i)
		for k := 0; k < K; k++ {
			f.B[i][k] = m.AddContinuous(bName(i, k), e, l)
		}
	}

	f.L = make([][]lp.Var, n)
	for i := 0; i < n; i++ {
		f.L[i] = make([]lp.Var, K)
		for k := 0; k < K; k++ {
			f.L[i][k] = None
		}
	}
	for _, i := range in.Pickups() {
		for k := 0; k < K; k++ {
			f.L[i][k] = m.AddContinuous(lName(i, k), 0, in.MaxRide)
		}
	}

	if !b.feats.Fuel {
		return
	}
	f.Z = make([][]lp.Var, n)
	for i := 0; i < n; i++ {
		f.Z[i] = make([]lp.Var, K)
		for k := 0; k < K; k++ {
			f.Z[i][k] = m.AddContinuous(zName(i, k), 0, b.fleet[k].Tank)
		}
	}
}
