package formulation

import "evdarp/internal/lp"

// objective minimises the cost of every used arc. The closing arc of a
// closed tour is free.
func (b *builder) objective() {
	e := new(lp.Expr)
	for k := 0; k < b.vehicles(); k++ {
		b.arcs(func(i, j int) {
			e.Add(b.f.Cost(i, j), b.f.X[i][j][k])
		})
	}
	b.f.Model.Minimize(e)
}

// ObjectiveOf recomputes the objective of a set of arcs per vehicle.
func (f *Formulation) ObjectiveOf(arcs [][][2]int) float64 {
	total := 0.0
	for _, route := range arcs {
		for _, a := range route {
			if f.Closing(a[0], a[1]) {
				continue
			}
			total += f.Cost(a[0], a[1])
		}
	}
	return total
}
