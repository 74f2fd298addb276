//go:build glpk

package glpk

import (
	"context"
	"testing"

	"evdarp/internal/lp"
)

func TestKnapsack(t *testing.T) {
	m := lp.NewModel("knapsack")
	weights := []float64{3, 4, 5, 6}
	values := []float64{4, 5, 6, 7}
	load, obj := new(lp.Expr), new(lp.Expr)
	var items []lp.Var
	for i := range weights {
		v := m.AddBinary(string(rune('a' + i)))
		items = append(items, v)
		load.Add(weights[i], v)
		obj.Add(-values[i], v)
	}
	m.AddConstraint("capacity", load, lp.LE, 10)
	m.Minimize(obj)

	sol, err := New().Solve(context.Background(), m)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if sol.Status != lp.Optimal || sol.Objective != -12 {
		t.Fatalf("status %v objective %v, want optimal -12", sol.Status, sol.Objective)
	}
	if sol.MustValue(items[1]) != 1 || sol.MustValue(items[3]) != 1 {
		t.Fatalf("want items b and d, got %v", sol.Values())
	}
}

func TestInfeasible(t *testing.T) {
	m := lp.NewModel("infeasible")
	x := m.AddBinary("x")
	m.AddConstraint("over", new(lp.Expr).Add(1, x), lp.GE, 2)
	m.Minimize(new(lp.Expr).Add(1, x))
	sol, err := New().Solve(context.Background(), m)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if sol.Status != lp.Infeasible {
		t.Fatalf("status %v, want infeasible", sol.Status)
	}
}
