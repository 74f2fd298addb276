// Package formulation turns an instance into the mixed-integer model of the
// pickup-and-delivery problem with multi-resource loads, time windows, ride
// times and fuel. Constraint families live in a registry and are emitted in
// a fixed order, so the same instance and features always produce the same
// model.
package formulation

import (
	"fmt"

	"evdarp/internal/instance"
	"evdarp/internal/lp"
	"evdarp/internal/network"
)

// Formulation is a built model together with the variable tensors needed to
// read a solution back.
type Formulation struct {
	Instance *instance.Instance
	Matrices *network.Matrices
	Features Features
	Model    *lp.Model

	// X[i][j][k] is None on the diagonal.
	X [][][]lp.Var
	// Q[i][r][k]
	Q [][][]lp.Var
	// B[i][k]
	B [][]lp.Var
	// L[i][k] is None unless i is a pickup.
	L [][]lp.Var
	// Z[i][k] is nil when fuel is not modelled.
	Z [][]lp.Var

	// Families lists the emitted families in emission order with their row
	// counts.
	Families []FamilyCount
}

type FamilyCount struct {
	Name string
	Rows int
}

// Build declares the variables, emits every enabled family and sets the
// objective. The instance is reduced with WithoutDummies when dummy stations
// are disabled; matrices must cover at least the nodes of the model.
func Build(in *instance.Instance, mats *network.Matrices, feats Features) (*Formulation, error) {
	if err := feats.validate(); err != nil {
		return nil, err
	}
	if !feats.DummyStations {
		in = in.WithoutDummies()
	}
	if mats == nil || mats.Size() < in.Len() {
		return nil, fmt.Errorf("formulation: matrices cover fewer than %d nodes", in.Len())
	}
	name := in.Name
	if name == "" {
		name = "evdarp"
	}
	f := &Formulation{
		Instance: in,
		Matrices: mats,
		Features: feats,
		Model:    lp.NewModel(name),
	}
	b := &builder{f: f, in: in, mats: mats, feats: feats}
	for k := 0; k < in.NumVehicles(); k++ {
		b.fleet = append(b.fleet, in.Vehicle(k))
	}
	b.declare()
	for _, fam := range registry {
		if !fam.enabled(feats) {
			continue
		}
		before := f.Model.NumRows()
		fam.emit(b)
		f.Families = append(f.Families, FamilyCount{Name: fam.name, Rows: f.Model.NumRows() - before})
	}
	b.objective()
	return f, nil
}

// Closing reports whether i→j is the forced return arc of a closed tour.
func (f *Formulation) Closing(i, j int) bool {
	return f.Features.Tour == TourClosed && i == f.Instance.Destination() && j == f.Instance.Origin()
}

// Arc returns the x variable of i→j for vehicle k.
func (f *Formulation) Arc(i, j, k int) lp.Var { return f.X[i][j][k] }

// Cost is the objective coefficient of arc i→j.
func (f *Formulation) Cost(i, j int) float64 {
	if f.Features.Objective == ObjectiveDistance {
		return f.Matrices.Dist[i][j]
	}
	return f.Matrices.Time[i][j] + f.Instance.Service(j)
}

type builder struct {
	f     *Formulation
	in    *instance.Instance
	mats  *network.Matrices
	feats Features
	// fleet holds one copy of every vehicle, read by the row loops.
	fleet []instance.Vehicle
}

func (b *builder) add(name string, e *lp.Expr, sense lp.Sense, rhs float64) {
	b.f.Model.AddConstraint(name, e, sense, rhs)
}

// arcs calls fn for every declared arc, skipping the closing arc.
func (b *builder) arcs(fn func(i, j int)) {
	n := b.in.Len()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j || b.f.Closing(i, j) {
				continue
			}
			fn(i, j)
		}
	}
}

func (b *builder) vehicles() int { return b.in.NumVehicles() }
